package counter

import (
	"image"
	"time"
)

// State is the crossing classification of a single track.
type State int

const (
	// StateNone means the track has not touched either zone.
	StateNone State = iota
	// StateEntering means the track touched zone B and has not reached zone A yet.
	StateEntering
	// StateEntered means the track was counted as entering.
	StateEntered
	// StateExiting means the track touched zone A and has not reached zone B yet.
	StateExiting
	// StateExited means the track was counted as exiting.
	StateExited
)

func (s State) String() string {
	switch s {
	case StateEntering:
		return "entering"
	case StateEntered:
		return "entered"
	case StateExiting:
		return "exiting"
	case StateExited:
		return "exited"
	default:
		return "none"
	}
}

// Direction of a counted crossing.
type Direction string

const (
	Entering Direction = "entering"
	Exiting  Direction = "exiting"
)

// Event is a crossing counted for the first time.
type Event struct {
	SessionID string      `json:"session_id"`
	TrackID   int         `json:"track_id"`
	Direction Direction   `json:"direction"`
	Point     image.Point `json:"point"`
	Time      time.Time   `json:"time"`
}
