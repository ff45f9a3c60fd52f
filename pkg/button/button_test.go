package button

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs"
)

type fakeDevice struct {
	events []Event
	clock  *fx.ManualClock
	step   time.Duration
}

func (d *fakeDevice) Close() error { return nil }
func (d *fakeDevice) Index() int   { return 0 }
func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) ReadEvent() (Event, error) {
	if len(d.events) == 0 {
		return Event{}, io.EOF
	}
	ev := d.events[0]
	d.events = d.events[1:]
	d.clock.Advance(d.step)
	return ev, nil
}

type loopCtl struct {
	msgs     []fx.Message
	triggers int
}

func (c *loopCtl) PostMessage(msg fx.Message) { c.msgs = append(c.msgs, msg) }
func (c *loopCtl) TriggerNext()               { c.triggers++ }

func TestDebouncer(t *testing.T) {
	t0 := time.Unix(1000, 0)
	d := Debouncer{Interval: 50 * time.Millisecond}
	require.True(t, d.Press(t0))
	require.False(t, d.Press(t0.Add(10*time.Millisecond)))
	require.False(t, d.Press(t0.Add(49*time.Millisecond)))
	require.True(t, d.Press(t0.Add(50*time.Millisecond)))
	require.False(t, d.Press(t0.Add(60*time.Millisecond)))
}

func TestReaderRead(t *testing.T) {
	tests := []struct {
		name    string
		button  int
		step    time.Duration
		events  []Event
		presses int
	}{
		{
			name:    "press and release",
			button:  anyButton,
			step:    100 * time.Millisecond,
			events:  []Event{{Index: 0, Pressed: true}, {Index: 0}},
			presses: 1,
		},
		{
			name:    "init state ignored",
			button:  anyButton,
			step:    100 * time.Millisecond,
			events:  []Event{{Init: true, Index: 0, Pressed: true}, {Index: 1, Pressed: true}},
			presses: 1,
		},
		{
			name:    "bounces dropped",
			button:  anyButton,
			step:    10 * time.Millisecond,
			events:  []Event{{Index: 0, Pressed: true}, {Index: 0, Pressed: true}, {Index: 0, Pressed: true}},
			presses: 1,
		},
		{
			name:    "other buttons ignored",
			button:  2,
			step:    100 * time.Millisecond,
			events:  []Event{{Index: 0, Pressed: true}, {Index: 2, Pressed: true}, {Index: 3, Pressed: true}},
			presses: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := fx.NewManualClock(time.Unix(1000, 0))
			r := NewReader(0)
			r.Button = tc.button
			r.Clock = clock
			lc := &loopCtl{}
			err := r.read(&fakeDevice{events: tc.events, clock: clock, step: tc.step}, lc)
			require.True(t, errors.Is(err, io.EOF))
			require.Len(t, lc.msgs, tc.presses)
			require.Equal(t, tc.presses, lc.triggers)
			for _, msg := range lc.msgs {
				press, ok := msg.(*msgs.ButtonPress)
				require.True(t, ok)
				require.Equal(t, SourceInputDevice, press.Source)
			}
		})
	}
}
