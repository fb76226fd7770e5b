package orchestrator

import "context"

// ContentProgressProvider reports the content playback clock. Positions are
// not assumed monotonic; they reflect the current scrub/seek state.
type ContentProgressProvider interface {
	ContentProgress() Progress
}

// AdProgressProvider reports the ad playback clock.
type AdProgressProvider interface {
	AdProgress() Progress
}

// ContentProgressListener receives content clock samples while content plays.
type ContentProgressListener interface {
	OnContentProgress(p Progress)
}

// AdProgressListener receives ad clock samples while an ad plays.
type AdProgressListener interface {
	OnAdProgress(p Progress)
}

// PlayerCallback receives ad player lifecycle signals. Implementations must
// tolerate calls from any goroutine.
type PlayerCallback interface {
	OnAdStarted()
	OnAdPaused()
	OnAdResumed()
	OnAdCompleted()
	OnAdSkipped()
	OnAdError(err error)
}

// AdPlayer is the capability set the session drives.
type AdPlayer interface {
	AdProgressProvider
	Load(ad ResolvedAd) error
	Play() error
	Pause() error
	Stop() error
	RegisterCallback(cb PlayerCallback) error
	UnregisterCallback(cb PlayerCallback)
}

// Loader fetches a creative from a remote locator. It may block and fail
// transiently; it is never called on the event loop.
type Loader interface {
	Fetch(ctx context.Context, locator string) (ResolvedAd, error)
}

// TrackingSink fires a tracking URI. Fire must not block; delivery failures
// are the sink's to log.
type TrackingSink interface {
	Fire(uri string)
}

// EventType enumerates outbound ad events.
type EventType string

const (
	EventContentPauseRequested  EventType = "content_pause_requested"
	EventContentResumeRequested EventType = "content_resume_requested"
	EventBreakStarted           EventType = "break_started"
	EventBreakEnded             EventType = "break_ended"
	EventBreakSkipped           EventType = "break_skipped"
	EventAdStarted              EventType = "ad_started"
	EventAdCompleted            EventType = "ad_completed"
	EventAdError                EventType = "ad_error"
	EventAllBreaksCompleted     EventType = "all_breaks_completed"
	EventSessionError           EventType = "session_error"
	EventSessionDestroyed       EventType = "session_destroyed"
)

// Event is a notification for the UI layer.
type Event struct {
	Type    EventType
	BreakID string
	AdID    string
	Err     error
}

// EventListener receives ad events. Return values are never consumed.
type EventListener interface {
	OnAdEvent(e Event)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(e Event)

// OnAdEvent implements EventListener.OnAdEvent.
func (f EventListenerFunc) OnAdEvent(e Event) { f(e) }
