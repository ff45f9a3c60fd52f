package sim

import (
	"fmt"
	"strings"
	"time"

	fx "github.com/robotalks/shotbridge/pkg/framework"
)

// CommandTarget is the target of commands taken by the Radio.
const CommandTarget = "sim"

// HandleCommands is a controller executing console commands.
func (r *Radio) HandleCommands(cc fx.ControlContext) error {
	fx.TakeCommands(cc, CommandTarget, func(cmd *fx.Command) {
		out, err := r.Execute(cc.Time(), cmd.Name, cmd.Args...)
		cmd.Done(out, err)
	})
	return nil
}

// Execute runs a console command against the first timer.
func (r *Radio) Execute(now time.Time, name string, args ...string) (string, error) {
	t := r.Timer("")
	if t == nil {
		return "", ErrNotLinked
	}
	switch name {
	case "status":
		lines := make([]string, 0, len(r.timers)+1)
		scan := "idle"
		if r.Scanning() {
			scan = "scanned"
		}
		lines = append(lines, "radio "+scan)
		for _, t := range r.timers {
			lines = append(lines, t.Status())
		}
		return strings.Join(lines, "\n"), nil
	case "connect":
		if t.Linked() {
			return "already connected", nil
		}
		t.Advertise()
		return "advertising " + t.Name, nil
	case "disconnect":
		return "link dropped", t.Drop()
	case "start":
		return "session started", t.StartSession(now)
	case "stop":
		return "session stopped", t.StopSession()
	case "shot":
		return "shot fired", t.Shot(now)
	case "suspend":
		return "session suspended", t.Suspend()
	case "resume":
		return "session resumed", t.Resume()
	case "auto":
		if len(args) == 0 {
			return "mode " + t.Mode().String(), nil
		}
		mode, err := ParseMode(args[0])
		if err != nil {
			return "", err
		}
		for _, t := range r.timers {
			t.SetMode(mode)
		}
		return "mode " + mode.String(), nil
	}
	return "", fmt.Errorf("unknown command %q", name)
}
