// Package sh is the interactive console of the simulator.
package sh

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/bridge"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/sim"
)

// DefaultTimeout bounds the wait for a command answer.
const DefaultTimeout = 2 * time.Second

// Shell provides ishell backed interactive console.
type Shell struct {
	Interactive bool
	Timeout     time.Duration

	Shell *ishell.Shell
	Loop  fx.LoopControl
}

// Op is a console command forwarded to a loop component.
type Op struct {
	Name    string
	Aliases []string
	Help    string
	// Target and Command select the loop component and its command.
	Target  string
	Command string
	// Args is the number of arguments required.
	Args int
}

const shellKey = "$shell"

var (
	evalOnly bool

	// Ops are the forwarded commands.
	Ops = []Op{
		{Name: "connect", Aliases: []string{"c"}, Help: "advertise the timer to the bridge", Target: sim.CommandTarget, Command: "connect"},
		{Name: "disconnect", Aliases: []string{"d"}, Help: "drop the link", Target: sim.CommandTarget, Command: "disconnect"},
		{Name: "start", Aliases: []string{"st"}, Help: "start a session", Target: sim.CommandTarget, Command: "start"},
		{Name: "stop", Aliases: []string{"sp"}, Help: "stop the session", Target: sim.CommandTarget, Command: "stop"},
		{Name: "shot", Aliases: []string{"sh"}, Help: "fire a shot", Target: sim.CommandTarget, Command: "shot"},
		{Name: "suspend", Help: "suspend the session", Target: sim.CommandTarget, Command: "suspend"},
		{Name: "resume", Help: "resume the session", Target: sim.CommandTarget, Command: "resume"},
		{Name: "auto", Help: "MODE: manual, auto-connect, auto-shots or realistic", Target: sim.CommandTarget, Command: "auto", Args: 1},
		{Name: "reset", Aliases: []string{"r"}, Help: "press the reset button", Target: bridge.CommandTarget, Command: "reset"},
		{Name: "shots", Help: "[SESSION] read the shot list", Target: bridge.CommandTarget, Command: "shots"},
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// LookupOp finds the op by name or alias.
func LookupOp(name string) (Op, bool) {
	for _, op := range Ops {
		if op.Name == name {
			return op, true
		}
		for _, alias := range op.Aliases {
			if alias == name {
				return op, true
			}
		}
	}
	return Op{}, false
}

// New creates a shell sending commands to the loop.
func New(lc fx.LoopControl) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Timeout:     DefaultTimeout,
		Shell:       ishell.New(),
		Loop:        lc,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("shotsim > ")
	s.Shell.AddCmd(&StatusCmd)
	for _, op := range Ops {
		s.Shell.AddCmd(op.Cmd())
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Do sends a command to the loop and waits for the answer.
func (s *Shell) Do(target, name string, args ...string) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fx.Do(ctx, s.Loop, fx.NewCommand(target, name, args...))
}

// Cmd creates the ishell command.
func (op Op) Cmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name:    op.Name,
		Aliases: op.Aliases,
		Help:    op.Help,
		Func: func(c *ishell.Context) {
			if len(c.Args) < op.Args {
				c.Err(fmt.Errorf("usage: %s %s", op.Name, op.Help))
				return
			}
			out, err := ShellFrom(c).Do(op.Target, op.Command, c.Args...)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(out)
		},
	}
}

// StatusCmd prints the status of the simulator and the bridge.
var StatusCmd = ishell.Cmd{
	Name:    "status",
	Aliases: []string{"s"},
	Help:    "show the simulator and bridge status",
	Func: func(c *ishell.Context) {
		out, err := ShellFrom(c).Status()
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(out)
	},
}

// Status queries both the simulator and the bridge.
func (s *Shell) Status() (string, error) {
	var lines []string
	errs := &fx.AggregatedError{}
	for _, target := range []string{sim.CommandTarget, bridge.CommandTarget} {
		out, err := s.Do(target, "status")
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", target, err))
			continue
		}
		lines = append(lines, out)
	}
	return strings.Join(lines, "\n"), errs.Aggregate()
}

// Run runs the shell, args are evaluated as one command if present.
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	if s.Interactive {
		s.Shell.Run()
		return nil
	}
	return fmt.Errorf("command expected")
}

// Close releases the terminal.
func (s *Shell) Close() error {
	s.Shell.Close()
	glog.V(4).Info("shell closed")
	return nil
}
