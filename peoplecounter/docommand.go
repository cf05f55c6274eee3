package peoplecounter

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// maxFrameTimes bounds how many loop timings are kept for "benchmark".
const maxFrameTimes = 1000

// frameTimes keeps the most recent loop timings, overwriting the oldest once full.
type frameTimes struct {
	buf  []time.Duration
	next int
}

func (f *frameTimes) add(d time.Duration) {
	if len(f.buf) < maxFrameTimes {
		f.buf = append(f.buf, d)
		return
	}
	f.buf[f.next] = d
	f.next = (f.next + 1) % maxFrameTimes
}

func (f *frameTimes) snapshot() []time.Duration {
	return append([]time.Duration(nil), f.buf...)
}

func benchmark(timeStats []time.Duration) map[string]interface{} {
	n := len(timeStats)
	if n == 0 {
		return map[string]interface{}{"number_of_runs": 0}
	}
	tmin, tmax := timeStats[0], timeStats[0]
	var sum time.Duration
	for _, tt := range timeStats {
		if tt < tmin {
			tmin = tt
		}
		if tt > tmax {
			tmax = tt
		}
		sum += tt
	}
	mean := time.Duration(int64(sum) / int64(n))
	return map[string]interface{}{
		"slowest":        float64(tmax),
		"fastest":        float64(tmin),
		"average":        float64(mean),
		"number_of_runs": n,
	}
}

// sessionFilter maps a command argument to a history session filter: "all" selects every
// session, anything else this one.
func sessionFilter(arg interface{}, sessionID string) string {
	if s, ok := arg.(string); ok && s == "all" {
		return ""
	}
	return sessionID
}

// DoCommand answers "counts" with the running totals, "logs" with this session's crossings,
// "history" and "history_totals" with the persisted crossings and their totals, and "benchmark"
// with the slowest, fastest, and average time of the counting loop.
func (pc *peopleCounter) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	pc.mutex.Lock()
	sessionID := pc.counter.SessionID()
	entering, exiting := pc.counter.EnteringCount(), pc.counter.ExitingCount()
	events := pc.counter.Events()
	timeStats := pc.timeStats.snapshot()
	pc.mutex.Unlock()

	if cmd["counts"] != nil {
		out["counts"] = map[string]interface{}{
			"entering":   entering,
			"exiting":    exiting,
			"session_id": sessionID,
		}
	}
	if cmd["logs"] != nil {
		logs := make([]interface{}, 0, len(events))
		for _, ev := range events {
			logs = append(logs, map[string]interface{}{
				"track_id":  ev.TrackID,
				"direction": string(ev.Direction),
				"x":         ev.Point.X,
				"y":         ev.Point.Y,
				"time":      ev.Time.Format(time.RFC3339Nano),
			})
		}
		out["logs"] = logs
	}
	if cmd["history"] != nil {
		if pc.store == nil {
			return nil, errors.New(`"history" needs history_db_path to be configured`)
		}
		recs, err := pc.store.List(sessionFilter(cmd["history"], sessionID))
		if err != nil {
			return nil, err
		}
		history := make([]interface{}, 0, len(recs))
		for _, rec := range recs {
			history = append(history, map[string]interface{}{
				"crossing_id":   rec.CrossingID,
				"session_id":    rec.SessionID,
				"track_id":      rec.TrackID,
				"direction":     string(rec.Direction),
				"x":             rec.X,
				"y":             rec.Y,
				"created_at_ns": rec.CreatedAtNs,
			})
		}
		out["history"] = history
	}
	if cmd["history_totals"] != nil {
		if pc.store == nil {
			return nil, errors.New(`"history_totals" needs history_db_path to be configured`)
		}
		storedEntering, storedExiting, err := pc.store.Totals(sessionFilter(cmd["history_totals"], sessionID))
		if err != nil {
			return nil, err
		}
		out["history_totals"] = map[string]interface{}{
			"entering": storedEntering,
			"exiting":  storedExiting,
		}
	}
	if cmd["benchmark"] != nil {
		out["benchmark"] = benchmark(timeStats)
	}
	return out, nil
}
