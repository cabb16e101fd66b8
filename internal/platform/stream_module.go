package platform

import (
	"context"
	"fmt"

	"chialvo/internal/metrics"
	"chialvo/internal/simulation"
	"chialvo/internal/stream"
)

// StreamModule publishes every run's ticks on a nanomsg PUB socket.
type StreamModule struct {
	addr    string
	metrics *metrics.Registry

	publisher *stream.Publisher
}

func NewStreamModule(addr string, reg *metrics.Registry) *StreamModule {
	return &StreamModule{addr: addr, metrics: reg}
}

func (m *StreamModule) Name() string { return "stream" }

func (m *StreamModule) Start(_ context.Context) error {
	if m.addr == "" {
		return fmt.Errorf("stream address is required")
	}
	var onResult func(error)
	if m.metrics != nil {
		onResult = m.metrics.RecordPublish
	}
	publisher, err := stream.NewPublisher(m.addr, onResult)
	if err != nil {
		return err
	}
	m.publisher = publisher
	return nil
}

func (m *StreamModule) Stop(_ context.Context) error {
	if m.publisher == nil {
		return nil
	}
	err := m.publisher.Close()
	m.publisher = nil
	return err
}

func (m *StreamModule) RunSink(runID string, params simulation.Params) simulation.SampleSink {
	return m.publisher.Sink(runID, params.DT)
}

func (m *StreamModule) RunFinished(runID, status string) error {
	return m.publisher.Finish(runID, status)
}
