package simulator

import (
	"errors"
	"testing"
	"time"

	"ad-orchestrator/internal/orchestrator"
	"ad-orchestrator/internal/platform/eventloop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_clock(t *testing.T) {
	sched := eventloop.NewManual()
	c := NewContent(sched, time.Minute)

	sched.Advance(5 * time.Second)
	assert.Equal(t, time.Duration(0), c.Position(), "paused content does not move")

	c.Play()
	sched.Advance(10 * time.Second)
	assert.Equal(t, 10*time.Second, c.ContentProgress().Position)
	assert.Equal(t, time.Minute, c.ContentProgress().Duration)

	c.Pause()
	sched.Advance(10 * time.Second)
	assert.Equal(t, 10*time.Second, c.Position())

	c.Seek(40 * time.Second)
	assert.Equal(t, 40*time.Second, c.Position())
	c.Seek(-time.Second)
	assert.Equal(t, time.Duration(0), c.Position())
}

func TestContent_ends_once(t *testing.T) {
	sched := eventloop.NewManual()
	c := NewContent(sched, 30*time.Second)
	ended := 0
	c.OnEnded(func() { ended++ })

	c.Play()
	c.Seek(25 * time.Second)
	sched.Advance(4 * time.Second)
	assert.False(t, c.Ended())

	sched.Advance(time.Second)
	assert.True(t, c.Ended())
	assert.False(t, c.Playing())
	assert.Equal(t, 30*time.Second, c.Position())

	c.Play()
	sched.Advance(time.Minute)
	assert.Equal(t, 1, ended)
}

func TestContent_follows_pause_and_resume_requests(t *testing.T) {
	sched := eventloop.NewManual()
	c := NewContent(sched, time.Minute)
	c.Play()

	c.OnAdEvent(orchestrator.Event{Type: orchestrator.EventContentPauseRequested})
	assert.False(t, c.Playing())
	c.OnAdEvent(orchestrator.Event{Type: orchestrator.EventBreakStarted})
	assert.False(t, c.Playing())
	c.OnAdEvent(orchestrator.Event{Type: orchestrator.EventContentResumeRequested})
	assert.True(t, c.Playing())
}

type callbackLog struct{ calls []string }

func (l *callbackLog) OnAdStarted() { l.calls = append(l.calls, "started") }
func (l *callbackLog) OnAdPaused() { l.calls = append(l.calls, "paused") }
func (l *callbackLog) OnAdResumed() { l.calls = append(l.calls, "resumed") }
func (l *callbackLog) OnAdCompleted() { l.calls = append(l.calls, "completed") }
func (l *callbackLog) OnAdSkipped() { l.calls = append(l.calls, "skipped") }
func (l *callbackLog) OnAdError(error) { l.calls = append(l.calls, "error") }

func testCreative() orchestrator.ResolvedAd {
	return orchestrator.ResolvedAd{ID: "ad", Duration: 10 * time.Second, MediaURI: "https://cdn.example/ad.mp4"}
}

func TestPlayer_lifecycle(t *testing.T) {
	sched := eventloop.NewManual()
	p := NewPlayer(sched)
	log := &callbackLog{}
	require.NoError(t, p.RegisterCallback(log))
	require.NoError(t, p.RegisterCallback(log))
	assert.Equal(t, 1, p.Callbacks())

	require.NoError(t, p.Load(testCreative()))
	require.NoError(t, p.Play())
	sched.Advance(4 * time.Second)
	assert.Equal(t, 4*time.Second, p.AdProgress().Position)

	require.NoError(t, p.Pause())
	sched.Advance(time.Minute)
	assert.Equal(t, 4*time.Second, p.AdProgress().Position)

	require.NoError(t, p.Play())
	sched.Advance(6 * time.Second)
	assert.Equal(t, []string{"started", "paused", "resumed", "completed"}, log.calls)
	assert.Equal(t, 10*time.Second, p.AdProgress().Position)
	assert.False(t, p.Playing())
}

func TestPlayer_Skip_and_Fail(t *testing.T) {
	sched := eventloop.NewManual()
	p := NewPlayer(sched)
	log := &callbackLog{}
	require.NoError(t, p.RegisterCallback(log))

	assert.ErrorIs(t, p.Skip(), ErrNoCreative)

	require.NoError(t, p.Load(testCreative()))
	require.NoError(t, p.Play())
	sched.Advance(time.Second)
	require.NoError(t, p.Skip())
	sched.Advance(time.Minute)
	assert.Equal(t, []string{"started", "skipped"}, log.calls, "a skipped ad never completes")

	p.Fail(errors.New("decode"))
	assert.Equal(t, "error", log.calls[len(log.calls)-1])
}

func TestPlayer_Load_requires_media(t *testing.T) {
	p := NewPlayer(eventloop.NewManual())

	err := p.Load(orchestrator.ResolvedAd{ID: "html", Duration: time.Second, Markup: "<div/>"})
	assert.ErrorIs(t, err, ErrNoMedia)
	assert.ErrorIs(t, p.Play(), ErrNoCreative)
	assert.ErrorIs(t, p.RegisterCallback(nil), ErrNilCallback)
}

func TestPlayer_Stop_unloads(t *testing.T) {
	sched := eventloop.NewManual()
	p := NewPlayer(sched)
	log := &callbackLog{}
	require.NoError(t, p.RegisterCallback(log))
	require.NoError(t, p.Load(testCreative()))
	require.NoError(t, p.Play())

	require.NoError(t, p.Stop())
	sched.Advance(time.Minute)
	assert.Equal(t, "", p.Current())
	assert.Equal(t, []string{"started"}, log.calls)

	p.UnregisterCallback(log)
	assert.Equal(t, 0, p.Callbacks())
}
