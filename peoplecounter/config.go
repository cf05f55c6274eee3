package peoplecounter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/viam-modules/people-counting/counter"
	"github.com/viam-modules/people-counting/tracker"
	"github.com/viam-modules/people-counting/zone"
)

// Config contains names for necessary resources (camera and vision service) and the counting zones.
type Config struct {
	CameraName        string             `json:"camera_name"`
	DetectorName      string             `json:"detector_name"`
	ChosenLabels      map[string]float64 `json:"chosen_labels,omitempty"`
	MaxFrequency      float64            `json:"max_frequency_hz"`
	MinConfidence     *float64           `json:"min_confidence,omitempty"`
	TriggerCoolDown   *float64           `json:"trigger_cool_down_s,omitempty"`
	DistanceThreshold float64            `json:"distance_threshold_px,omitempty"`
	MatchStrategy     string             `json:"match_strategy,omitempty"`
	// ZoneA is the inner zone and ZoneB the outer one. Each is a list of polygons of [x, y] vertices.
	ZoneA          [][][2]float64 `json:"zone_a"`
	ZoneB          [][][2]float64 `json:"zone_b"`
	CountTrackOnce bool           `json:"count_track_once,omitempty"`
	HistoryDBPath  string         `json:"history_db_path,omitempty"`
}

// Validate validates the config and returns implicit dependencies,
// this Validate checks if the camera and detector(vision svc) exist for the module's vision model.
func (cfg *Config) Validate(path string) ([]string, error) {
	// this makes them required for the model to successfully build
	if cfg.CameraName == "" {
		return nil, fmt.Errorf(`expected "camera_name" attribute for people counter %q`, path)
	}
	if cfg.DetectorName == "" {
		return nil, fmt.Errorf(`expected "detector_name" attribute for people counter %q`, path)
	}
	if cfg.MaxFrequency < 0 {
		return nil, errors.New("frequency(Hz) must be a positive number")
	}
	if cfg.MinConfidence != nil && (*cfg.MinConfidence < 0 || *cfg.MinConfidence > 1) {
		return nil, errors.New("minimum thresholding confidence must be between 0.0 and 1.0")
	}
	if cfg.TriggerCoolDown != nil && *cfg.TriggerCoolDown < 0 {
		return nil, errors.New("trigger_cool_down_s is a duration given in seconds and should be above 0.")
	}
	if _, _, err := cfg.newPipeline(); err != nil {
		return nil, errors.Wrapf(err, "invalid people counter %q", path)
	}

	// Return the resource names so that newPeopleCounter can access them as dependencies.
	return []string{cfg.CameraName, cfg.DetectorName}, nil
}

// newPipeline builds a fresh tracker and counter from the config. Every call starts a new
// counting session.
func (cfg *Config) newPipeline() (*tracker.Tracker, *counter.Counter, error) {
	tr, err := tracker.New(tracker.Config{
		DistanceThreshold: cfg.DistanceThreshold,
		Strategy:          tracker.Strategy(cfg.MatchStrategy),
	})
	if err != nil {
		return nil, nil, err
	}
	zoneA, err := zone.FromConfig("zone_a", cfg.ZoneA)
	if err != nil {
		return nil, nil, err
	}
	zoneB, err := zone.FromConfig("zone_b", cfg.ZoneB)
	if err != nil {
		return nil, nil, err
	}
	c, err := counter.New(zoneA, zoneB, counter.Options{CountTrackOnce: cfg.CountTrackOnce})
	if err != nil {
		return nil, nil, err
	}
	return tr, c, nil
}

// chosenLabels returns the configured classes keyed in lower case, or the default classes.
func (cfg *Config) chosenLabels() map[string]float64 {
	src := cfg.ChosenLabels
	if len(src) == 0 {
		src = DefaultChosenLabels
	}
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[strings.ToLower(k)] = v
	}
	return out
}
