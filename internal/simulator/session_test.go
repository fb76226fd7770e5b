package simulator

import (
	"testing"
	"time"

	"ad-orchestrator/internal/orchestrator"
	"ad-orchestrator/internal/platform/eventloop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkFunc func(uri string)

func (f sinkFunc) Fire(uri string) { f(uri) }

func creativeJSON(id string) string {
	return `{"id":"` + id + `","duration":10,"media_uri":"https://cdn.example/` + id + `.mp4",` +
		`"tracking":{"start":["https://t.example/` + id + `/start"],"complete":["https://t.example/` + id + `/complete"]}}`
}

func TestSession_plays_every_break_against_simulated_media(t *testing.T) {
	sched := eventloop.NewManual()
	content := NewContent(sched, time.Minute)
	player := NewPlayer(sched)

	schedule, err := orchestrator.NewSchedule(
		orchestrator.AdBreak{ID: "pre", Offset: orchestrator.PreRoll(), Ads: []orchestrator.AdReference{{ID: "a1", Inline: creativeJSON("a1")}}},
		orchestrator.AdBreak{ID: "mid", Offset: orchestrator.At(30 * time.Second), Ads: []orchestrator.AdReference{{ID: "a2", Inline: creativeJSON("a2")}}},
		orchestrator.AdBreak{ID: "post", Offset: orchestrator.PostRoll(), Ads: []orchestrator.AdReference{{ID: "a3", Inline: creativeJSON("a3")}}},
	)
	require.NoError(t, err)

	var (
		fired  []string
		events []orchestrator.EventType
	)
	s, err := orchestrator.NewSession(schedule, orchestrator.Config{ID: "e2e"}, orchestrator.Deps{
		Scheduler: sched,
		Player:    player,
		Tracking:  sinkFunc(func(uri string) { fired = append(fired, uri) }),
		Listener: orchestrator.EventListenerFunc(func(e orchestrator.Event) {
			events = append(events, e.Type)
			content.OnAdEvent(e)
		}),
	})
	require.NoError(t, err)
	content.OnEnded(s.ContentComplete)

	content.Play()
	require.NoError(t, s.Start(content))
	assert.False(t, content.Playing(), "pre-roll pauses content")

	sched.Advance(10 * time.Second)
	assert.Equal(t, orchestrator.StateContentPlaying, s.State())
	assert.True(t, content.Playing())

	sched.Advance(30 * time.Second)
	assert.Equal(t, orchestrator.StateAdPlaying, s.State())
	assert.Equal(t, "a2", player.Current())
	assert.Equal(t, 30*time.Second, content.Position())

	sched.Advance(2 * time.Minute)
	assert.True(t, s.Finished())
	assert.True(t, content.Ended())
	assert.Equal(t, orchestrator.StateIdle, s.State())
	assert.Equal(t, []string{
		"https://t.example/a1/start", "https://t.example/a1/complete",
		"https://t.example/a2/start", "https://t.example/a2/complete",
		"https://t.example/a3/start", "https://t.example/a3/complete",
	}, fired)
	assert.Equal(t, orchestrator.EventAllBreaksCompleted, events[len(events)-1])
	assert.Equal(t, 15, s.TrackingRecord().Len())

	s.Destroy()
	assert.Equal(t, 0, player.Callbacks())
	assert.Equal(t, orchestrator.StateIdle, s.State(), "a finished session stays idle")
}
