package hearth

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// CollectorEndReason indicates why a collector stopped delivering
// events.
type CollectorEndReason string

const (
	// CollectorTimedOut means the timeout elapsed with no further
	// matching events
	CollectorTimedOut CollectorEndReason = "timeout"

	// CollectorMaxEvents means the configured event limit was reached
	CollectorMaxEvents CollectorEndReason = "max_events"

	// CollectorStopped means the owning controller stopped the
	// collector explicitly
	CollectorStopped CollectorEndReason = "stopped"
)

// collectorBufferSize bounds undelivered matching events per collector.
// Workflow sessions process one event at a time; anything past the
// buffer during an in-flight transition would be dropped by the session
// guard anyway.
const collectorBufferSize = 16

// CollectorOptions configures a Collector's scope and filters.
type CollectorOptions struct {
	// ViewID scopes the collector to component actions belonging to one
	// rendered view. Empty for message-only collectors.
	ViewID string

	// ChannelID scopes the collector to plain-message actions in one
	// channel. Empty for component-only collectors.
	ChannelID string

	// AuthorFilter admits only actions from matching users - typically
	// "is the original invoker". Required.
	AuthorFilter func(userID string) bool

	// KindFilter admits only matching actions (specific button op,
	// select menu, message shape). Required.
	KindFilter func(Action) bool

	// Timeout ends the collector after this long with no matching
	// events. Each delivered event resets the clock.
	Timeout time.Duration

	// MaxEvents ends the collector after this many deliveries.
	// 0 = unlimited.
	MaxEvents int
}

// Collector is a time-bounded subscription to user actions matching a
// filter. Matching actions are delivered exactly once, in arrival order,
// on Actions(); Done() fires once with the end reason. After the end
// signal no further events are delivered, even if they arrive.
type Collector struct {
	opts    CollectorOptions
	actions chan Action
	done    chan CollectorEndReason
	timer   *time.Timer
	hub     *CollectorHub
	logger  *slog.Logger

	mu        sync.Mutex
	ended     bool
	delivered int
}

// Actions returns the delivery channel. It is closed when the collector
// ends.
func (c *Collector) Actions() <-chan Action {
	return c.actions
}

// Done returns a channel that receives the end reason exactly once.
func (c *Collector) Done() <-chan CollectorEndReason {
	return c.done
}

// Stop ends the collector explicitly. Safe to call multiple times and
// concurrently with event arrival.
func (c *Collector) Stop() {
	c.end(CollectorStopped)
}

func (c *Collector) end(reason CollectorEndReason) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.actions)
	c.mu.Unlock()

	if c.hub != nil {
		c.hub.remove(c)
	}
	c.done <- reason
}

// offer applies the collector's filters to an action and delivers it if
// it matches. Returns true if the action was delivered.
func (c *Collector) offer(a Action) bool {
	if c.opts.AuthorFilter != nil && !c.opts.AuthorFilter(a.UserID) {
		return false
	}
	if c.opts.KindFilter != nil && !c.opts.KindFilter(a) {
		return false
	}

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return false
	}

	select {
	case c.actions <- a:
	default:
		c.mu.Unlock()
		c.logger.Warn("collector buffer full, dropping action", "action", a)
		return false
	}

	c.delivered++
	reachedMax := c.opts.MaxEvents > 0 && c.delivered >= c.opts.MaxEvents
	if !reachedMax && c.timer != nil {
		c.timer.Reset(c.opts.Timeout)
	}
	if reachedMax {
		// mirror end() inline; the lock is already held
		c.ended = true
		if c.timer != nil {
			c.timer.Stop()
		}
		close(c.actions)
		c.mu.Unlock()
		if c.hub != nil {
			c.hub.remove(c)
		}
		c.done <- CollectorMaxEvents
		return true
	}
	c.mu.Unlock()
	return true
}

// CollectorHub routes decoded actions to open collectors: component
// actions by the view ID encoded in their custom_id, plain messages by
// channel ID. Multiple collectors may be open on the same view
// concurrently (a button collector and a message collector on one
// settings screen); the owning controller stops siblings when one fires.
type CollectorHub struct {
	mu        sync.Mutex
	byView    map[string][]*Collector
	byChannel map[string][]*Collector
	logger    *slog.Logger
}

// NewCollectorHub returns an empty hub.
func NewCollectorHub(log *slog.Logger) *CollectorHub {
	if log == nil {
		log = slog.Default()
	}
	return &CollectorHub{
		byView:    map[string][]*Collector{},
		byChannel: map[string][]*Collector{},
		logger:    log.With(loggerNameKey, "collector_hub"),
	}
}

// Open registers a new collector and starts its timeout clock.
func (h *CollectorHub) Open(opts CollectorOptions) *Collector {
	c := &Collector{
		opts:    opts,
		actions: make(chan Action, collectorBufferSize),
		done:    make(chan CollectorEndReason, 1),
		hub:     h,
		logger:  h.logger,
	}
	if opts.Timeout > 0 {
		c.timer = time.AfterFunc(
			opts.Timeout,
			func() { c.end(CollectorTimedOut) },
		)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if opts.ViewID != "" {
		h.byView[opts.ViewID] = append(h.byView[opts.ViewID], c)
	}
	if opts.ChannelID != "" {
		h.byChannel[opts.ChannelID] = append(h.byChannel[opts.ChannelID], c)
	}
	return c
}

func (h *CollectorHub) remove(c *Collector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.opts.ViewID != "" {
		h.byView[c.opts.ViewID] = slices.DeleteFunc(
			h.byView[c.opts.ViewID],
			func(x *Collector) bool { return x == c },
		)
		if len(h.byView[c.opts.ViewID]) == 0 {
			delete(h.byView, c.opts.ViewID)
		}
	}
	if c.opts.ChannelID != "" {
		h.byChannel[c.opts.ChannelID] = slices.DeleteFunc(
			h.byChannel[c.opts.ChannelID],
			func(x *Collector) bool { return x == c },
		)
		if len(h.byChannel[c.opts.ChannelID]) == 0 {
			delete(h.byChannel, c.opts.ChannelID)
		}
	}
}

// DispatchComponent routes a decoded component action to collectors open
// on its view. Returns true if any collector accepted it.
func (h *CollectorHub) DispatchComponent(a Action) bool {
	h.mu.Lock()
	targets := slices.Clone(h.byView[a.ViewID])
	h.mu.Unlock()

	accepted := false
	for _, c := range targets {
		if c.offer(a) {
			accepted = true
		}
	}
	return accepted
}

// DispatchMessage routes a plain-message action to collectors open on
// its channel. Returns true if any collector accepted it.
func (h *CollectorHub) DispatchMessage(a Action) bool {
	h.mu.Lock()
	targets := slices.Clone(h.byChannel[a.ChannelID])
	h.mu.Unlock()

	accepted := false
	for _, c := range targets {
		if c.offer(a) {
			accepted = true
		}
	}
	return accepted
}

// OpenCount reports the number of open collectors, for the admin API.
func (h *CollectorHub) OpenCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := map[*Collector]struct{}{}
	for _, cs := range h.byView {
		for _, c := range cs {
			seen[c] = struct{}{}
		}
	}
	for _, cs := range h.byChannel {
		for _, c := range cs {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}
