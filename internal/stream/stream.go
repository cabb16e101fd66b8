// Package stream publishes recorded ticks over a nanomsg PUB socket so that
// a long simulation can be watched while it runs.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register all transports (tcp, ipc, inproc, ws).
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"chialvo/internal/simulation"
)

var (
	tickTopic = []byte("TICK:")
	doneTopic = []byte("DONE:")
)

var ErrClosed = errors.New("stream closed")

// Message is one published frame. Done frames carry the run status and no
// values.
type Message struct {
	RunID  string    `json:"run_id"`
	Tick   int       `json:"tick"`
	Step   int       `json:"step"`
	Time   float64   `json:"time"`
	X      []float64 `json:"x,omitempty"`
	Done   bool      `json:"done,omitempty"`
	Status string    `json:"status,omitempty"`
}

// Publisher owns a listening PUB socket. Subscribers that connect late miss
// earlier ticks.
type Publisher struct {
	mu       sync.Mutex
	sock     mangos.Socket
	addr     string
	onResult func(error)
}

// NewPublisher listens on addr, e.g. tcp://127.0.0.1:40899 or inproc://name.
// onResult, when non-nil, is told the outcome of every send.
func NewPublisher(addr string, onResult func(error)) (*Publisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("create pub socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Publisher{sock: sock, addr: addr, onResult: onResult}, nil
}

func (p *Publisher) Addr() string { return p.addr }

// Sink binds the publisher to one run. dt converts steps to simulated time.
func (p *Publisher) Sink(runID string, dt float64) simulation.SampleSink {
	return &runSink{pub: p, runID: runID, dt: dt}
}

// Finish announces the end of a run.
func (p *Publisher) Finish(runID, status string) error {
	return p.send(doneTopic, Message{RunID: runID, Done: true, Status: status})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sock == nil {
		return nil
	}
	err := p.sock.Close()
	p.sock = nil
	return err
}

func (p *Publisher) send(topic []byte, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	frame := make([]byte, 0, len(topic)+len(payload))
	frame = append(frame, topic...)
	frame = append(frame, payload...)

	p.mu.Lock()
	sock := p.sock
	p.mu.Unlock()
	if sock == nil {
		err = ErrClosed
	} else {
		err = sock.Send(frame)
	}
	if p.onResult != nil {
		p.onResult(err)
	}
	return err
}

type runSink struct {
	pub   *Publisher
	runID string
	dt    float64
}

func (s *runSink) Sample(tick, step int, x []float64) error {
	return s.pub.send(tickTopic, Message{
		RunID: s.runID,
		Tick:  tick,
		Step:  step,
		Time:  float64(step) * s.dt,
		X:     append([]float64(nil), x...),
	})
}

// Subscriber receives tick and done frames.
type Subscriber struct {
	sock mangos.Socket
}

// NewSubscriber dials addr. Receives give up after timeout when it is
// positive.
func NewSubscriber(addr string, timeout time.Duration) (*Subscriber, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("create sub socket: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	for _, topic := range [][]byte{tickTopic, doneTopic} {
		if err := sock.SetOption(mangos.OptionSubscribe, topic); err != nil {
			_ = sock.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	if timeout > 0 {
		if err := sock.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
			_ = sock.Close()
			return nil, err
		}
	}
	return &Subscriber{sock: sock}, nil
}

// Next blocks for the next frame. It returns mangos.ErrRecvTimeout when the
// deadline passes.
func (s *Subscriber) Next() (Message, error) {
	frame, err := s.sock.Recv()
	if err != nil {
		return Message{}, err
	}
	var payload []byte
	switch {
	case bytes.HasPrefix(frame, tickTopic):
		payload = frame[len(tickTopic):]
	case bytes.HasPrefix(frame, doneTopic):
		payload = frame[len(doneTopic):]
	default:
		return Message{}, errors.New("unexpected frame topic")
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	return msg, nil
}

func (s *Subscriber) Close() error {
	return s.sock.Close()
}
