package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"quadenc/core"
	"quadenc/host/mcu"
)

// shell is the interactive front end. board is nil unless running -sim.
type shell struct {
	mcu   *mcu.MCU
	board *simBoard
}

func (s *shell) run(args []string) {
	sh := ishell.New()
	sh.SetPrompt("quadenc > ")
	for _, cmd := range s.commands() {
		sh.AddCmd(cmd)
	}
	if s.board != nil {
		for _, cmd := range s.simCommands() {
			sh.AddCmd(cmd)
		}
	}

	if len(args) > 0 {
		if err := sh.Process(args...); err != nil {
			glog.Exitln(err)
		}
		return
	}
	if evalOnly {
		glog.Exitln("command expected")
	}
	sh.Println("quadenc monitor, 'help' lists commands")
	sh.Run()
}

func (s *shell) commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "state",
			Help: "show the last reported encoder state",
			Func: func(c *ishell.Context) {
				st, err := s.mcu.State()
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(formatState(st))
			},
		},
		{
			Name:    "watch",
			Aliases: []string{"w"},
			Help:    "[N] print the next N reported states (default 10)",
			Func: func(c *ishell.Context) {
				n := 10
				if len(c.Args) > 0 {
					v, err := strconv.Atoi(c.Args[0])
					if err != nil || v <= 0 {
						c.Err(fmt.Errorf("invalid count %q", c.Args[0]))
						return
					}
					n = v
				}
				states, cancel := s.mcu.Subscribe()
				defer cancel()
				for i := 0; i < n; i++ {
					select {
					case st, ok := <-states:
						if !ok {
							c.Err(fmt.Errorf("connection closed"))
							return
						}
						c.Println(formatState(st))
					case <-time.After(2 * time.Second):
						c.Err(fmt.Errorf("no telemetry"))
						return
					}
				}
			},
		},
		{
			Name: "trace",
			Help: "list the trace entries received from the board",
			Func: func(c *ishell.Context) {
				entries := s.mcu.Trace()
				if len(entries) == 0 {
					c.Println("no trace entries")
					return
				}
				for _, e := range entries {
					c.Printf("%-14s wheel=%-5s seq=%d v=%d\n", e.Kind, e.Wheel, e.Seq, e.Value)
				}
			},
		},
		{
			Name: "stats",
			Help: "show link statistics",
			Func: func(c *ishell.Context) {
				st := s.mcu.Stats()
				c.Printf("frames=%d errors=%d lost=%d unknown=%d\n", st.Frames, st.Errors, st.Lost, st.Unknown)
			},
		},
		{
			Name:    "identity",
			Aliases: []string{"id"},
			Help:    "show the firmware version and bus setup",
			Func: func(c *ishell.Context) {
				id := s.mcu.Identity()
				if id == nil {
					c.Err(fmt.Errorf("board has not identified"))
					return
				}
				c.Printf("protocol %s address 0x%02X sampler %s\n", id.Version(), uint8(id.Address), id.Sampler)
			},
		},
	}
}

// simCommands act on the simulated board directly
func (s *shell) simCommands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name:    "turn",
			Aliases: []string{"t"},
			Help:    "WHEEL STEPS  move a wheel by STEPS edges, negative for reverse",
			Func: func(c *ishell.Context) {
				if len(c.Args) < 2 {
					c.Err(fmt.Errorf("WHEEL and STEPS required"))
					return
				}
				w, err := parseWheel(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				steps, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("invalid STEPS: %v", err))
					return
				}
				s.board.machine.Turn(w, steps)
			},
		},
		{
			Name: "jump",
			Help: "WHEEL STATE  drive a wheel straight to quadrature STATE (0-3)",
			Func: func(c *ishell.Context) {
				if len(c.Args) < 2 {
					c.Err(fmt.Errorf("WHEEL and STATE required"))
					return
				}
				w, err := parseWheel(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				v, err := strconv.ParseUint(c.Args[1], 10, 8)
				if err != nil || v > 3 {
					c.Err(fmt.Errorf("invalid STATE %q", c.Args[1]))
					return
				}
				s.board.machine.Jump(w, core.State(v))
			},
		},
		{
			Name:    "read",
			Aliases: []string{"r"},
			Help:    "read the board over the simulated bus",
			Func: func(c *ishell.Context) {
				r, err := s.board.master.Read()
				if err != nil {
					c.Err(err)
					return
				}
				right, left := s.board.master.Odometry().Counts()
				c.Printf("right %s %d  left %s %d  (total %d/%d)\n",
					r.RightDirection, r.RightCount, r.LeftDirection, r.LeftCount, right, left)
			},
		},
		{
			Name: "reset",
			Help: "reset both counters with a bus write",
			Func: func(c *ishell.Context) {
				if err := s.board.master.Reset(); err != nil {
					c.Err(err)
					return
				}
				c.Println("OK")
			},
		},
	}
}

func parseWheel(name string) (core.Wheel, error) {
	for w := core.Wheel(0); w < core.WheelCount; w++ {
		if w.String() == name {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown wheel %q, want right or left", name)
}

func formatState(st mcu.State) string {
	return fmt.Sprintf("%s right %s %d (skip %d)  left %s %d (skip %d)  resets=%d sessions=%d",
		st.Received.Format("15:04:05.000"),
		st.Right.Direction, st.Right.Count, st.Right.Skipped,
		st.Left.Direction, st.Left.Count, st.Left.Skipped,
		st.Resets, st.Sessions)
}
