// Package harness runs playback sessions against simulated media and exposes
// them over HTTP.
package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"ad-orchestrator/internal/orchestrator"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is returned when a manifest cannot be turned into a
// schedule.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest describes one playback: how long the content runs and where its
// ad breaks sit.
type Manifest struct {
	ContentDuration time.Duration
	Breaks          []orchestrator.AdBreak
}

// Schedule validates the breaks and returns them in play order.
func (m Manifest) Schedule() (orchestrator.Schedule, error) {
	s, err := orchestrator.NewSchedule(m.Breaks...)
	if err != nil {
		return orchestrator.Schedule{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return s, nil
}

type manifestDocument struct {
	ContentDuration string          `yaml:"content_duration"`
	Breaks          []breakDocument `yaml:"breaks"`
}

type breakDocument struct {
	ID     string       `yaml:"id"`
	Offset string       `yaml:"offset"`
	Ads    []adDocument `yaml:"ads"`
}

type adDocument struct {
	ID      string    `yaml:"id"`
	Inline  yaml.Node `yaml:"inline"`
	Locator string    `yaml:"locator"`
}

// DecodeManifest reads a YAML or JSON manifest:
//
//	content_duration: "00:10:00"
//	breaks:
//	  - id: pre
//	    offset: start
//	    ads:
//	      - id: ad-1
//	        inline: {id: ad-1, duration: 15, media_uri: "https://cdn.example/1.mp4"}
//	  - id: mid
//	    offset: "00:05:00"
//	    ads:
//	      - id: ad-2
//	        locator: https://ads.example/creatives/2
//
// An inline creative may be given as a mapping or as a JSON string.
func DecodeManifest(r io.Reader) (Manifest, error) {
	var doc manifestDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Manifest{}, fmt.Errorf("%w: empty document", ErrInvalidManifest)
		}
		return Manifest{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	duration, err := ParseClock(doc.ContentDuration)
	if err != nil || duration <= 0 {
		return Manifest{}, fmt.Errorf("%w: content_duration %q", ErrInvalidManifest, doc.ContentDuration)
	}

	m := Manifest{ContentDuration: duration, Breaks: make([]orchestrator.AdBreak, 0, len(doc.Breaks))}
	for _, bd := range doc.Breaks {
		offset, err := ParseOffset(bd.Offset, duration)
		if err != nil {
			return Manifest{}, fmt.Errorf("%w: break %q: %w", ErrInvalidManifest, bd.ID, err)
		}
		b := orchestrator.AdBreak{ID: bd.ID, Offset: offset}
		for _, ad := range bd.Ads {
			ref, err := ad.reference()
			if err != nil {
				return Manifest{}, fmt.Errorf("%w: break %q: %w", ErrInvalidManifest, bd.ID, err)
			}
			b.Ads = append(b.Ads, ref)
		}
		m.Breaks = append(m.Breaks, b)
	}
	return m, nil
}

func (d adDocument) reference() (orchestrator.AdReference, error) {
	ref := orchestrator.AdReference{ID: d.ID, Locator: d.Locator}
	switch d.Inline.Kind {
	case 0:
	case yaml.ScalarNode:
		if d.Inline.Tag != "!!null" {
			ref.Inline = d.Inline.Value
		}
	case yaml.MappingNode:
		var creative map[string]any
		if err := d.Inline.Decode(&creative); err != nil {
			return ref, fmt.Errorf("ad %q: %w", d.ID, err)
		}
		b, err := json.Marshal(creative)
		if err != nil {
			return ref, fmt.Errorf("ad %q: %w", d.ID, err)
		}
		ref.Inline = string(b)
	default:
		return ref, fmt.Errorf("ad %q: inline creative must be a mapping or a string", d.ID)
	}

	if (ref.Inline == "") == (ref.Locator == "") {
		return ref, fmt.Errorf("ad %q: exactly one of inline or locator is required", d.ID)
	}
	return ref, nil
}

// ParseOffset parses a break position: "start", "end", a clock time
// "HH:MM:SS" or "HH:MM:SS.mmm", or a percentage "n%" of contentDuration.
func ParseOffset(s string, contentDuration time.Duration) (orchestrator.TimeOffset, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "start":
		return orchestrator.PreRoll(), nil
	case "end":
		return orchestrator.PostRoll(), nil
	}

	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil || v < 0 || v > 100 {
			return orchestrator.TimeOffset{}, fmt.Errorf("invalid percentage offset %q", s)
		}
		return orchestrator.At(time.Duration(math.Round(float64(contentDuration) * v / 100))), nil
	}

	d, err := ParseClock(s)
	if err != nil {
		return orchestrator.TimeOffset{}, err
	}
	return orchestrator.At(d), nil
}

// FormatOffset renders o in the syntax ParseOffset accepts.
func FormatOffset(o orchestrator.TimeOffset) string {
	switch o.Kind {
	case orchestrator.OffsetPreRoll:
		return "start"
	case orchestrator.OffsetPostRoll:
		return "end"
	default:
		return FormatClock(o.At)
	}
}

// ParseClock parses "HH:MM:SS" or "HH:MM:SS.mmm".
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || strings.HasPrefix(parts[2], "-") || sec >= 60 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	return d + time.Duration(math.Round(sec*1000))*time.Millisecond, nil
}

// FormatClock renders d as "HH:MM:SS.mmm", dropping the fraction when it is
// zero.
func FormatClock(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ms := (d - s*time.Second) / time.Millisecond
	if ms == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", int64(h), int64(m), int64(s))
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", int64(h), int64(m), int64(s), int64(ms))
}
