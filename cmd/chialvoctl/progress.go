package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// progressBar redraws a single terminal line as the run advances.
type progressBar struct {
	w    io.Writer
	bar  progress.Model
	last int
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{
		w:    w,
		bar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		last: -1,
	}
}

// Update redraws at most once per percent.
func (p *progressBar) Update(done, total int) {
	if total <= 0 {
		return
	}
	pct := done * 100 / total
	if pct == p.last {
		return
	}
	p.last = pct
	fmt.Fprintf(p.w, "\r%s %s/%s steps",
		p.bar.ViewAs(float64(done)/float64(total)),
		humanize.Comma(int64(done)),
		humanize.Comma(int64(total)),
	)
}

func (p *progressBar) Finish() {
	if p.last >= 0 {
		fmt.Fprintln(p.w)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
