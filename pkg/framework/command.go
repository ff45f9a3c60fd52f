package framework

import (
	"context"
	"errors"
	"strings"
)

// ErrNoHandler indicates no controller took the command in time.
var ErrNoHandler = errors.New("command not handled")

// Command is a request posted to the loop and answered by the controller
// which takes it. Target selects the component, Name the operation.
type Command struct {
	Target string
	Name   string
	Args   []string

	resultCh chan commandResult
}

type commandResult struct {
	output string
	err    error
}

// NewCommand creates a Command.
func NewCommand(target, name string, args ...string) *Command {
	return &Command{
		Target:   target,
		Name:     name,
		Args:     args,
		resultCh: make(chan commandResult, 1),
	}
}

// String implements fmt.Stringer.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Target, c.Name}, c.Args...), " ")
}

// Done answers the command, only the first answer counts.
func (c *Command) Done(output string, err error) {
	select {
	case c.resultCh <- commandResult{output: output, err: err}:
	default:
	}
}

// Wait waits for the answer.
func (c *Command) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-c.resultCh:
		return r.output, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrNoHandler
		}
		return "", ctx.Err()
	}
}

// Do posts the command to the loop and waits for the answer.
func Do(ctx context.Context, lc LoopControl, cmd *Command) (string, error) {
	lc.PostMessage(cmd)
	lc.TriggerNext()
	return cmd.Wait(ctx)
}

// TakeCommands passes commands of the target to fn, which must answer
// them with Done.
func TakeCommands(cc ControlContext, target string, fn func(*Command)) {
	cc.Messages().ProcessMessages(ProcessMessageFunc(func(mctx MessageProcessingContext) {
		if cmd, ok := mctx.CurrentMessage().(*Command); ok && cmd.Target == target {
			mctx.MessageTaken()
			fn(cmd)
		}
	}))
}
