package framework

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testMsg int

func TestLoopStepOrder(t *testing.T) {
	var trace []string
	l := NewLoop()
	l.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		trace = append(trace, "control")
		require.Equal(t, PrLvControl, cc.PriorityLevel())
		return nil
	}))
	l.AddController(PrLvSense, ControlFunc(func(cc ControlContext) error {
		trace = append(trace, "sense")
		return errors.New("logged only")
	}))
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		trace = append(trace, "idle")
		return nil
	}))
	l.Step(context.Background())
	require.Equal(t, []string{"sense", "control", "idle"}, trace)
}

func TestLoopMessages(t *testing.T) {
	testCases := []struct {
		name   string
		posted []int
		take   func(int) bool
		stopAt int
		seen   []int
		left   []int
	}{
		{
			name:   "take all",
			posted: []int{1, 2, 3},
			take:   func(int) bool { return true },
			stopAt: -1,
			seen:   []int{1, 2, 3},
		},
		{
			name:   "take odd",
			posted: []int{1, 2, 3, 4},
			take:   func(v int) bool { return v%2 == 1 },
			stopAt: -1,
			seen:   []int{1, 2, 3, 4},
			left:   []int{2, 4},
		},
		{
			name:   "stop early",
			posted: []int{1, 2, 3, 4},
			take:   func(int) bool { return true },
			stopAt: 2,
			seen:   []int{1, 2},
			left:   []int{3, 4},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLoop()
			var seen, left []int
			l.AddController(PrLvSense, ControlFunc(func(cc ControlContext) error {
				cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
					v := int(mc.CurrentMessage().(testMsg))
					seen = append(seen, v)
					if tc.take(v) {
						mc.MessageTaken()
					}
					if v == tc.stopAt {
						mc.StopProcessing()
					}
				}))
				return nil
			}))
			l.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
				cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
					left = append(left, int(mc.CurrentMessage().(testMsg)))
				}))
				return nil
			}))
			for _, v := range tc.posted {
				l.PostMessage(testMsg(v))
			}
			l.Step(context.Background())
			require.Equal(t, tc.seen, seen)
			require.Equal(t, tc.left, left)
		})
	}
}

func TestLoopUsesClock(t *testing.T) {
	start := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := NewManualClock(start)
	l := NewLoop()
	l.Clock = clock
	var got []time.Time
	l.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		got = append(got, cc.Time())
		return nil
	}))
	l.Step(context.Background())
	clock.Advance(time.Second)
	l.Step(context.Background())
	require.Equal(t, []time.Time{start, start.Add(time.Second)}, got)
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Millisecond
	ran := make(chan struct{}, 1)
	l.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	l.TriggerNext()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not iterate")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())
	errs.Add(errors.New("a"))
	require.EqualError(t, errs.Aggregate(), "a")
	errs.Add(errors.New("b"))
	require.EqualError(t, errs.Aggregate(), "multiple errors:\n  a\n  b")
}

func TestLoopCommands(t *testing.T) {
	loop := NewLoop()
	loop.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		TakeCommands(cc, "echo", func(cmd *Command) {
			cmd.Done(strings.Join(cmd.Args, ","), nil)
		})
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	out, err := Do(ctx, loop, NewCommand("echo", "say", "a", "b"))
	require.NoError(t, err)
	require.Equal(t, "a,b", out)

	waitCtx, waitCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer waitCancel()
	_, err = Do(waitCtx, loop, NewCommand("nobody", "say"))
	require.Equal(t, ErrNoHandler, err)
}
