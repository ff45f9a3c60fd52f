package sh

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/shotbridge/pkg/bridge"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/sim"
)

func TestLookupOp(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		command string
	}{
		{"c", sim.CommandTarget, "connect"},
		{"d", sim.CommandTarget, "disconnect"},
		{"st", sim.CommandTarget, "start"},
		{"sp", sim.CommandTarget, "stop"},
		{"sh", sim.CommandTarget, "shot"},
		{"suspend", sim.CommandTarget, "suspend"},
		{"resume", sim.CommandTarget, "resume"},
		{"auto", sim.CommandTarget, "auto"},
		{"r", bridge.CommandTarget, "reset"},
		{"reset", bridge.CommandTarget, "reset"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			op, ok := LookupOp(tc.name)
			require.True(t, ok)
			require.Equal(t, tc.target, op.Target)
			require.Equal(t, tc.command, op.Command)
		})
	}
	_, ok := LookupOp("jump")
	require.False(t, ok)
}

func echoTarget(target string) fx.ControlFunc {
	return func(cc fx.ControlContext) error {
		fx.TakeCommands(cc, target, func(cmd *fx.Command) {
			cmd.Done(target+" "+strings.Join(append([]string{cmd.Name}, cmd.Args...), " "), nil)
		})
		return nil
	}
}

func TestShellDo(t *testing.T) {
	loop := fx.NewLoop()
	loop.Interval = 10 * time.Millisecond
	loop.AddController(fx.PrLvControl, echoTarget(sim.CommandTarget), echoTarget(bridge.CommandTarget))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	s := &Shell{Loop: loop, Timeout: time.Second}
	out, err := s.Do(sim.CommandTarget, "auto", "realistic")
	require.NoError(t, err)
	require.Equal(t, "sim auto realistic", out)

	out, err = s.Status()
	require.NoError(t, err)
	require.Equal(t, "sim status\nbridge status", out)

	s.Timeout = 50 * time.Millisecond
	_, err = s.Do("nobody", "status")
	require.Equal(t, fx.ErrNoHandler, err)
}
