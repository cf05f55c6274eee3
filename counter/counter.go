// Package counter counts directional crossings of tracked objects between two zones.
//
// A track that touches the outer zone (B) and later the inner zone (A) is counted as entering;
// one that touches A and later B is counted as exiting. Counts are cumulative for the life of a
// Counter and never decrease, even after the tracker forgets the ID.
package counter

import (
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/viam-modules/people-counting/tracker"
	"github.com/viam-modules/people-counting/zone"
)

// Options tunes a Counter. The zero value reproduces the original counting rules.
type Options struct {
	// CountTrackOnce stops tracking a track in the provisional sets once it has been counted in
	// either direction, so one track never adds to both counts. Without it a track that enters
	// and then drifts back into the outer zone is also counted as exiting.
	CountTrackOnce bool
	// Now is used to timestamp events. Defaults to time.Now.
	Now func() time.Time
}

// Counter holds the crossing state for one stream. It is not safe for concurrent use.
type Counter struct {
	zoneA, zoneB *zone.Zone
	opts         Options
	sessionID    string

	provisionalEntry set
	provisionalExit  set
	entering         set
	exiting          set
	states           map[int]State
	events           []Event
}

type set map[int]struct{}

func (s set) has(id int) bool {
	_, ok := s[id]
	return ok
}

// add reports whether id was not already present.
func (s set) add(id int) bool {
	if s.has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// New returns a Counter for the inner zone A and the outer zone B.
func New(zoneA, zoneB *zone.Zone, opts Options) (*Counter, error) {
	if zoneA == nil || zoneB == nil {
		return nil, errors.New("counter needs both zone A and zone B")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Counter{
		zoneA:            zoneA,
		zoneB:            zoneB,
		opts:             opts,
		sessionID:        uuid.NewString(),
		provisionalEntry: set{},
		provisionalExit:  set{},
		entering:         set{},
		exiting:          set{},
		states:           map[int]State{},
	}, nil
}

// Point returns the point of a box that is tested against the zones: its bottom-right corner.
func Point(box image.Rectangle) image.Point {
	return box.Max
}

// Update classifies each tracked detection against the zones and returns the crossings that
// were counted for the first time this frame.
func (c *Counter) Update(tracked []tracker.TrackedDetection) []Event {
	var fresh []Event
	for _, td := range tracked {
		id := td.ID
		if c.opts.CountTrackOnce && (c.entering.has(id) || c.exiting.has(id)) {
			continue
		}
		pt := Point(td.Box())
		inA := c.zoneA.ContainsImagePoint(pt)
		inB := c.zoneB.ContainsImagePoint(pt)

		// order matters when the zones overlap
		if inB && c.provisionalEntry.add(id) {
			c.setProvisional(id, StateEntering)
		}
		if inA && c.provisionalEntry.has(id) && c.entering.add(id) {
			c.states[id] = StateEntered
			fresh = append(fresh, c.record(id, Entering, pt))
			if c.opts.CountTrackOnce {
				c.forget(id)
				continue
			}
		}
		if inA && c.provisionalExit.add(id) {
			c.setProvisional(id, StateExiting)
		}
		if inB && c.provisionalExit.has(id) && c.exiting.add(id) {
			c.states[id] = StateExited
			fresh = append(fresh, c.record(id, Exiting, pt))
			if c.opts.CountTrackOnce {
				c.forget(id)
			}
		}
	}
	return fresh
}

// setProvisional records a provisional state unless the track was already counted, in which case
// the counted state is kept.
func (c *Counter) setProvisional(id int, st State) {
	if cur := c.states[id]; cur == StateEntered || cur == StateExited {
		return
	}
	c.states[id] = st
}

func (c *Counter) forget(id int) {
	delete(c.provisionalEntry, id)
	delete(c.provisionalExit, id)
}

func (c *Counter) record(id int, dir Direction, pt image.Point) Event {
	ev := Event{
		SessionID: c.sessionID,
		TrackID:   id,
		Direction: dir,
		Point:     pt,
		Time:      c.opts.Now(),
	}
	c.events = append(c.events, ev)
	return ev
}

// EnteringCount returns how many tracks have crossed from zone B into zone A.
func (c *Counter) EnteringCount() int {
	return len(c.entering)
}

// ExitingCount returns how many tracks have crossed from zone A into zone B.
func (c *Counter) ExitingCount() int {
	return len(c.exiting)
}

// State returns the latest classification of a track.
func (c *Counter) State(id int) State {
	return c.states[id]
}

// Events returns every crossing counted so far, oldest first.
func (c *Counter) Events() []Event {
	return append([]Event(nil), c.events...)
}

// SessionID identifies this counter's counting session.
func (c *Counter) SessionID() string {
	return c.sessionID
}
