package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"
)

// creativeDocument is the wire form of a creative, used both for inline
// payloads and for documents served at remote locators.
type creativeDocument struct {
	ID       string              `json:"id"`
	Duration float64             `json:"duration"` // seconds
	MediaURI string              `json:"media_uri"`
	Markup   string              `json:"markup"`
	Tracking map[string][]string `json:"tracking"`
}

var knownMilestones = map[Milestone]struct{}{
	MilestoneStart:         {},
	MilestoneFirstQuartile: {},
	MilestoneMidpoint:      {},
	MilestoneThirdQuartile: {},
	MilestoneComplete:      {},
	MilestonePause:         {},
	MilestoneResume:        {},
	MilestoneSkip:          {},
	MilestoneError:         {},
}

// DecodeCreative parses a creative document.
func DecodeCreative(data []byte) (ResolvedAd, error) {
	var doc creativeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ResolvedAd{}, fmt.Errorf("decode creative: %w", err)
	}
	if doc.Duration <= 0 {
		return ResolvedAd{}, fmt.Errorf("decode creative %q: duration must be positive", doc.ID)
	}
	if doc.MediaURI == "" && doc.Markup == "" {
		return ResolvedAd{}, fmt.Errorf("decode creative %q: no media uri or markup", doc.ID)
	}

	ad := ResolvedAd{
		ID:         doc.ID,
		CreativeID: doc.ID,
		Duration:   time.Duration(doc.Duration * float64(time.Second)),
		MediaURI:   doc.MediaURI,
		Markup:     doc.Markup,
		Tracking:   make(map[Milestone][]string, len(doc.Tracking)),
	}
	for name, uris := range doc.Tracking {
		m := Milestone(name)
		if _, ok := knownMilestones[m]; !ok {
			// Unknown VAST events (creativeView, mute, ...) are not tracked here.
			continue
		}
		ad.Tracking[m] = append([]string(nil), uris...)
	}
	return ad, nil
}
