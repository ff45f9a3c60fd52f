// Package present defines the presentation surface fed by the bridge.
package present

import (
	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/timer"
)

// Presenter receives one-way lifecycle signals.
type Presenter interface {
	ShowStartup()
	ShowConnectionState(state timer.ConnectionState, peerName string)
	ShowCountdown(session timer.Session)
	ShowWaitingForShots(session timer.Session)
	ShowShotData(shot timer.ShotEvent)
	ShowSessionEnd(session timer.Session, lastShotNumber uint16)
}

// Multi fans signals out to several presenters.
type Multi []Presenter

// ShowStartup implements Presenter.
func (m Multi) ShowStartup() {
	for _, p := range m {
		p.ShowStartup()
	}
}

// ShowConnectionState implements Presenter.
func (m Multi) ShowConnectionState(state timer.ConnectionState, peerName string) {
	for _, p := range m {
		p.ShowConnectionState(state, peerName)
	}
}

// ShowCountdown implements Presenter.
func (m Multi) ShowCountdown(session timer.Session) {
	for _, p := range m {
		p.ShowCountdown(session)
	}
}

// ShowWaitingForShots implements Presenter.
func (m Multi) ShowWaitingForShots(session timer.Session) {
	for _, p := range m {
		p.ShowWaitingForShots(session)
	}
}

// ShowShotData implements Presenter.
func (m Multi) ShowShotData(shot timer.ShotEvent) {
	for _, p := range m {
		p.ShowShotData(shot)
	}
}

// ShowSessionEnd implements Presenter.
func (m Multi) ShowSessionEnd(session timer.Session, lastShotNumber uint16) {
	for _, p := range m {
		p.ShowSessionEnd(session, lastShotNumber)
	}
}

// Log writes signals to the log, it stands in for a display.
type Log struct{}

// ShowStartup implements Presenter.
func (Log) ShowStartup() { glog.Info("[display] starting") }

// ShowConnectionState implements Presenter.
func (Log) ShowConnectionState(state timer.ConnectionState, peerName string) {
	if peerName != "" {
		glog.Infof("[display] %s %s", state, peerName)
	} else {
		glog.Infof("[display] %s", state)
	}
}

// ShowCountdown implements Presenter.
func (Log) ShowCountdown(session timer.Session) {
	glog.Infof("[display] session %d starting in %.1fs", session.SessionID, session.StartDelaySeconds)
}

// ShowWaitingForShots implements Presenter.
func (Log) ShowWaitingForShots(session timer.Session) {
	glog.Infof("[display] session %d waiting for shots", session.SessionID)
}

// ShowShotData implements Presenter.
func (Log) ShowShotData(shot timer.ShotEvent) {
	glog.Infof("[display] #%d %s split %s", shot.ShotNumber,
		timer.FormatMillis(shot.AbsoluteTimeMs), timer.FormatMillis(shot.SplitTimeMs))
}

// ShowSessionEnd implements Presenter.
func (Log) ShowSessionEnd(session timer.Session, lastShotNumber uint16) {
	glog.Infof("[display] session %d ended, %d shots, last #%d",
		session.SessionID, session.TotalShots, lastShotNumber)
}
