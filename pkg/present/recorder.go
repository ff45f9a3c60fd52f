package present

import (
	"fmt"
	"sync"

	"github.com/robotalks/shotbridge/pkg/timer"
)

// Recorder keeps the signals it receives, it's used by tests and the
// simulator console.
type Recorder struct {
	lock    sync.Mutex
	signals []string
}

func (r *Recorder) add(format string, args ...interface{}) {
	r.lock.Lock()
	r.signals = append(r.signals, fmt.Sprintf(format, args...))
	r.lock.Unlock()
}

// Signals returns the recorded signals.
func (r *Recorder) Signals() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.signals...)
}

// Last returns the last signal or "".
func (r *Recorder) Last() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.signals) == 0 {
		return ""
	}
	return r.signals[len(r.signals)-1]
}

// Reset forgets recorded signals.
func (r *Recorder) Reset() {
	r.lock.Lock()
	r.signals = nil
	r.lock.Unlock()
}

// ShowStartup implements Presenter.
func (r *Recorder) ShowStartup() { r.add("startup") }

// ShowConnectionState implements Presenter.
func (r *Recorder) ShowConnectionState(state timer.ConnectionState, peerName string) {
	r.add("connection %s %s", state, peerName)
}

// ShowCountdown implements Presenter.
func (r *Recorder) ShowCountdown(session timer.Session) {
	r.add("countdown %d %.1f", session.SessionID, session.StartDelaySeconds)
}

// ShowWaitingForShots implements Presenter.
func (r *Recorder) ShowWaitingForShots(session timer.Session) {
	r.add("waiting %d", session.SessionID)
}

// ShowShotData implements Presenter.
func (r *Recorder) ShowShotData(shot timer.ShotEvent) {
	r.add("shot %d %d %d", shot.ShotNumber, shot.AbsoluteTimeMs, shot.SplitTimeMs)
}

// ShowSessionEnd implements Presenter.
func (r *Recorder) ShowSessionEnd(session timer.Session, lastShotNumber uint16) {
	r.add("end %d %d %d", session.SessionID, session.TotalShots, lastShotNumber)
}
