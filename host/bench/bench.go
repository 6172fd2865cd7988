// Package bench drives a simulated encoder board from real encoder lines
// wired to a Linux single-board computer, so encoders can be checked
// without flashing firmware.
package bench

import (
	"context"
	"fmt"

	"github.com/aamcrae/config"
	gpio "github.com/aamcrae/gpio"
	"github.com/golang/glog"

	"quadenc/core"
	"quadenc/sim"
)

// Config holds the sysfs GPIO numbers of the four encoder lines,
// indexed by core.Line
type Config struct {
	Pins [core.LineCount]int
}

// ParseConfig reads the [encoder] section of a configuration file.
// Sample config:
//
//	[encoder]
//	right=17,27    # GPIOs for lines A and B
//	left=22,23
func ParseConfig(path string) (*Config, error) {
	conf, err := config.ParseFile(path)
	if err != nil {
		return nil, err
	}
	s := conf.GetSection("encoder")
	if s == nil {
		return nil, fmt.Errorf("%s: no [encoder] section", path)
	}

	var c Config
	n, err := s.Parse("right", "%d,%d", &c.Pins[core.RightA], &c.Pins[core.RightB])
	if err != nil {
		return nil, fmt.Errorf("right: %v", err)
	}
	if n != 2 {
		return nil, fmt.Errorf("right: argument count")
	}
	n, err = s.Parse("left", "%d,%d", &c.Pins[core.LeftA], &c.Pins[core.LeftB])
	if err != nil {
		return nil, fmt.Errorf("left: %v", err)
	}
	if n != 2 {
		return nil, fmt.Errorf("left: argument count")
	}
	return &c, nil
}

// Input is one edge-triggered input line. Get blocks until the level
// changes and returns the new level.
type Input interface {
	Get() (int, error)
	Close()
}

// Bench copies input line levels onto a simulated board
type Bench struct {
	board *sim.Machine
	lines [core.LineCount]Input
}

// Open exports the configured GPIOs as inputs with edge detection on both
// edges
func Open(c *Config, board *sim.Machine) (*Bench, error) {
	var lines [core.LineCount]Input
	for l, num := range c.Pins {
		g, err := gpio.Pin(num)
		if err != nil {
			closeAll(lines[:l])
			return nil, fmt.Errorf("gpio%d: %v", num, err)
		}
		if err := g.Edge(gpio.BOTH); err != nil {
			g.Close()
			closeAll(lines[:l])
			return nil, fmt.Errorf("gpio%d: %v", num, err)
		}
		lines[l] = g
	}
	return New(board, lines), nil
}

// New creates a bench from already opened inputs
func New(board *sim.Machine, lines [core.LineCount]Input) *Bench {
	return &Bench{board: board, lines: lines}
}

// Run starts one watcher per line and returns when ctx is done or a line
// fails. A watcher blocked in Get exits with its next edge.
func (b *Bench) Run(ctx context.Context) error {
	errCh := make(chan error, core.LineCount)
	for l := range b.lines {
		go b.watch(ctx, core.Line(l), errCh)
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bench) watch(ctx context.Context, l core.Line, errCh chan<- error) {
	in := b.lines[l]
	for ctx.Err() == nil {
		v, err := in.Get()
		if err != nil {
			errCh <- fmt.Errorf("line %d: %w", l, err)
			return
		}
		glog.V(3).Infof("line %d -> %d", l, v)
		b.board.SetLine(l, v != 0)
	}
}

// Close releases the GPIOs
func (b *Bench) Close() {
	closeAll(b.lines[:])
}

func closeAll(lines []Input) {
	for _, in := range lines {
		if in != nil {
			in.Close()
		}
	}
}
