package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EventKind identifies the crawl step that produced an Event.
type EventKind int

const (
	// EventStarted is emitted once when the seed has been admitted.
	EventStarted EventKind = iota + 1

	// EventFetching is emitted right before a URL is fetched.
	EventFetching

	// EventRetrying is emitted after a failed attempt when another one follows.
	EventRetrying

	// EventFetched is emitted after a page was fetched and its links admitted.
	EventFetched

	// EventFetchFailed is emitted when every attempt for a URL failed.
	EventFetchFailed

	// EventCompleted is emitted once when the frontier is exhausted or the
	// page cap is reached.
	EventCompleted

	// EventAborted is emitted once when the context ends the crawl early.
	EventAborted
)

// String returns the lowercase name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFetching:
		return "fetching"
	case EventRetrying:
		return "retrying"
	case EventFetched:
		return "fetched"
	case EventFetchFailed:
		return "fetch_failed"
	case EventCompleted:
		return "completed"
	case EventAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Event is an immutable snapshot of crawl progress.
type Event struct {
	// Kind is the step that produced the event.
	Kind EventKind

	// Message is a human-readable description of the step.
	Message string

	// URL is the URL being processed. Empty for Started, Completed and Aborted
	// events that do not concern a single page.
	URL string

	// Visited is the number of URLs whose fetch has been attempted.
	Visited int

	// Queued is the number of URLs waiting in the frontier.
	Queued int

	// Found is the number of distinct URLs admitted so far, seed included.
	Found int

	// LinksOnPage is the number of admissible links on the current page.
	// Only set for EventFetched.
	LinksOnPage int

	// MaxPages is the configured page cap.
	MaxPages int

	// Percent is min(Visited/MaxPages*100, 100), or 0 when MaxPages is 0.
	Percent float64

	// Time is when the event was emitted.
	Time time.Time
}

// Observer receives crawl events.
// OnEvent is called synchronously from the crawl loop in emission order;
// the loop does not continue until it returns.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts an ordinary function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}

// ChannelObserver forwards events to a channel.
// Sends block, so the receiver paces the crawl. A send is abandoned when the
// observer's context is done, which keeps a crawl from hanging on a receiver
// that went away.
type ChannelObserver struct {
	ctx context.Context
	ch  chan<- Event
}

// NewChannelObserver returns an Observer that sends every event to ch until
// ctx is done.
func NewChannelObserver(ctx context.Context, ch chan<- Event) *ChannelObserver {
	return &ChannelObserver{ctx: ctx, ch: ch}
}

// OnEvent sends e to the channel.
func (o *ChannelObserver) OnEvent(e Event) {
	select {
	case o.ch <- e:
	case <-o.ctx.Done():
	}
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// OnEvent appends e.
func (r *Recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in emission order.
func (r *Recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// LogObserver writes every event to a slog.Logger.
// Fetch failures are logged at Warn, per-page steps at Debug and the rest
// at Info.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns a LogObserver. A nil logger means slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// OnEvent logs e.
func (o *LogObserver) OnEvent(e Event) {
	level := slog.LevelInfo
	switch e.Kind {
	case EventFetching, EventFetched:
		level = slog.LevelDebug
	case EventFetchFailed, EventRetrying, EventAborted:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("event", e.Kind.String()),
		slog.Int("visited", e.Visited),
		slog.Int("queued", e.Queued),
		slog.Int("found", e.Found),
		slog.String("progress", fmt.Sprintf("%.1f%%", e.Percent)),
	}
	if e.URL != "" {
		attrs = append(attrs, slog.String("url", e.URL))
	}
	if e.Kind == EventFetched {
		attrs = append(attrs, slog.Int("links", e.LinksOnPage))
	}

	o.logger.LogAttrs(context.Background(), level, e.Message, attrs...)
}

// notify delivers e to every observer in order.
// A panicking observer is logged and skipped.
func notify(logger *slog.Logger, observers []Observer, e Event) {
	for _, o := range observers {
		deliver(logger, o, e)
	}
}

func deliver(logger *slog.Logger, o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("observer panicked",
				"event", e.Kind.String(),
				"panic", fmt.Sprint(r))
		}
	}()
	o.OnEvent(e)
}
