// Package sse implements the live subscription fan-out for chat messages.
//
// The Hub owns all in-memory subscription and buffering state and is the
// single source of truth for "who should receive this chat's messages right
// now". One subscription is held per user (subscribing again replaces the
// previous one), messages sent to a chat with no subscriber are buffered and
// drained in arrival order on the next subscribe, and a periodic reaper
// removes subscriptions whose clients vanished without a clean close.
//
// Concurrency model: every map mutation happens under a single mutex, and
// writes to a subscriber channel are performed while holding it, so message
// order per chat follows SendMessageToChat call order and the subscribe-time
// drain completes before any later send can interleave. Channels must
// therefore not block indefinitely in Write; the HTTP channel implementation
// writes to an in-process response buffer and flushes.
package sse

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Default timer settings, overridable through Options.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultReapInterval      = 60 * time.Second
	DefaultIdleTimeout       = 5 * time.Minute
)

// Options configures the hub timers. Zero values fall back to the defaults.
// The heartbeat interval must stay well below the idle timeout so a live
// client is always refreshed before the reaper can consider it stale.
type Options struct {
	HeartbeatInterval time.Duration
	ReapInterval      time.Duration
	IdleTimeout       time.Duration
}

// subscription ties one user to one chat and one open push channel.
type subscription struct {
	userID   string
	chatID   string
	ch       Channel
	lastSeen time.Time
	stop     chan struct{}
}

// Hub is the fan-out service. Construct with NewHub, call Start to launch the
// reaper, and Close on shutdown to tear down all subscriptions and timers.
// All methods are safe for concurrent use.
type Hub struct {
	heartbeatInterval time.Duration
	reapInterval      time.Duration
	idleTimeout       time.Duration

	mu      sync.Mutex
	subs    map[string]*subscription // userID → subscription
	buffers map[string][]Event       // chatID → undelivered events, arrival order

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub constructs a hub with the given timer options. The reaper is not
// running until Start is called.
func NewHub(opts Options) *Hub {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = DefaultReapInterval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Hub{
		heartbeatInterval: opts.HeartbeatInterval,
		reapInterval:      opts.ReapInterval,
		idleTimeout:       opts.IdleTimeout,
		subs:              make(map[string]*subscription),
		buffers:           make(map[string][]Event),
		stop:              make(chan struct{}),
	}
}

// Start launches the background reaper. Calling Start more than once is not
// supported; the server wires it exactly once at boot.
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		t := time.NewTicker(h.reapInterval)
		defer t.Stop()
		for {
			select {
			case <-h.stop:
				return
			case now := <-t.C:
				h.reap(now)
			}
		}
	}()
}

// Close stops the reaper, tears down every active subscription (closing its
// channel), and waits for all background timers to exit.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })

	h.mu.Lock()
	for _, sub := range h.subs {
		h.removeLocked(sub)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

// Subscribe registers ch as userID's push channel for chatID, replacing any
// prior subscription held by that user. Immediately after registering it
// writes the connection frame, then drains any events buffered for chatID in
// arrival order and clears the buffer, then starts the heartbeat timer.
//
// Blank identifiers and nil channels are rejected with a log entry; the
// caller (HTTP layer) validates these before reaching the hub in practice.
func (h *Hub) Subscribe(userID, chatID string, ch Channel) {
	if userID == "" || chatID == "" || ch == nil {
		log.Warn().Str("user_id", userID).Str("chat_id", chatID).
			Msg("sse: rejecting subscribe with missing identity or channel")
		return
	}

	h.mu.Lock()
	if prev, ok := h.subs[userID]; ok {
		log.Debug().Str("user_id", userID).Str("old_chat_id", prev.chatID).
			Str("new_chat_id", chatID).Msg("sse: replacing subscription")
		h.removeLocked(prev)
	}

	sub := &subscription{
		userID:   userID,
		chatID:   chatID,
		ch:       ch,
		lastSeen: time.Now(),
		stop:     make(chan struct{}),
	}
	h.subs[userID] = sub
	subsActive.Set(float64(len(h.subs)))

	if err := ch.Write(ConnectionEvent()); err != nil {
		h.failLocked(sub, err)
		h.mu.Unlock()
		return
	}
	eventsDelivered.WithLabelValues(EventConnection).Inc()

	// Drain-then-clear: the buffer is consumed entirely, even if a write
	// fails partway (channel failure is a disconnect, not a retry signal).
	pending := h.buffers[chatID]
	delete(h.buffers, chatID)
	eventsBuffered.Sub(float64(len(pending)))
	for i, evt := range pending {
		if err := sub.ch.Write(evt); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("chat_id", chatID).
				Int("undelivered", len(pending)-i).Msg("sse: drain aborted by channel failure")
			h.failLocked(sub, err)
			h.mu.Unlock()
			return
		}
		eventsDelivered.WithLabelValues(evt.Type).Inc()
	}
	sub.lastSeen = time.Now()
	h.mu.Unlock()

	h.wg.Add(1)
	go h.heartbeatLoop(sub)

	log.Info().Str("user_id", userID).Str("chat_id", chatID).
		Int("drained", len(pending)).Msg("sse: subscribed")
}

// Unsubscribe removes userID's subscription, cancelling its heartbeat and
// closing its channel. It is a no-op when the user has no subscription.
func (h *Hub) Unsubscribe(userID string) {
	h.mu.Lock()
	sub, ok := h.subs[userID]
	if ok {
		h.removeLocked(sub)
	}
	h.mu.Unlock()
	if ok {
		log.Info().Str("user_id", userID).Msg("sse: unsubscribed")
	}
}

// SendMessageToChat routes evt to every subscriber of chatID. With no
// subscribers the event is appended to the chat's offline buffer. A write
// failure unsubscribes the failing subscriber and is never surfaced to the
// caller: delivery must not fail the persistence path that triggered it.
func (h *Hub) SendMessageToChat(chatID string, evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var targets []*subscription
	for _, sub := range h.subs {
		if sub.chatID == chatID {
			targets = append(targets, sub)
		}
	}

	if len(targets) == 0 {
		h.buffers[chatID] = append(h.buffers[chatID], evt)
		eventsBuffered.Inc()
		log.Debug().Str("chat_id", chatID).Int("buffered", len(h.buffers[chatID])).
			Msg("sse: no subscriber, message buffered")
		return
	}

	now := time.Now()
	for _, sub := range targets {
		if err := sub.ch.Write(evt); err != nil {
			log.Warn().Err(err).Str("user_id", sub.userID).Str("chat_id", chatID).
				Msg("sse: write failed, dropping subscriber")
			h.failLocked(sub, err)
			continue
		}
		sub.lastSeen = now
		eventsDelivered.WithLabelValues(evt.Type).Inc()
	}
}

// ActiveSubscriptions reports the number of registered subscriptions.
func (h *Hub) ActiveSubscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// BufferedFor reports how many events are parked for a chat with no subscriber.
func (h *Hub) BufferedFor(chatID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buffers[chatID])
}

// heartbeatLoop emits keepalive frames for one subscription until the
// subscription or the hub stops. A failed heartbeat write is a disconnect.
func (h *Hub) heartbeatLoop(sub *subscription) {
	defer h.wg.Done()
	t := time.NewTicker(h.heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-sub.stop:
			return
		case <-h.stop:
			return
		case now := <-t.C:
			if err := sub.ch.Write(HeartbeatEvent(now)); err != nil {
				h.dropIfCurrent(sub, err)
				return
			}
			eventsDelivered.WithLabelValues(EventHeartbeat).Inc()
			h.mu.Lock()
			sub.lastSeen = now
			h.mu.Unlock()
		}
	}
}

// reap removes every subscription idle beyond the timeout. Full scan per
// tick; fine at the subscriber counts this service is built for.
func (h *Hub) reap(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if now.Sub(sub.lastSeen) > h.idleTimeout {
			log.Info().Str("user_id", sub.userID).Str("chat_id", sub.chatID).
				Dur("idle", now.Sub(sub.lastSeen)).Msg("sse: reaping stale subscription")
			h.removeLocked(sub)
			subsReaped.Inc()
		}
	}
}

// dropIfCurrent removes sub only when it is still the registered subscription
// for its user, so a heartbeat failure cannot tear down a replacement that
// subscribed in the meantime.
func (h *Hub) dropIfCurrent(sub *subscription, err error) {
	h.mu.Lock()
	if cur, ok := h.subs[sub.userID]; ok && cur == sub {
		log.Warn().Err(err).Str("user_id", sub.userID).
			Msg("sse: heartbeat failed, dropping subscriber")
		h.failLocked(sub, err)
	}
	h.mu.Unlock()
}

// failLocked records a write failure and removes the subscription.
// Caller must hold h.mu.
func (h *Hub) failLocked(sub *subscription, err error) {
	writeFailures.Inc()
	h.removeLocked(sub)
}

// removeLocked deregisters sub, stops its heartbeat, and closes its channel.
// It tolerates being called for a subscription that was already replaced.
// Caller must hold h.mu.
func (h *Hub) removeLocked(sub *subscription) {
	if cur, ok := h.subs[sub.userID]; ok && cur == sub {
		delete(h.subs, sub.userID)
		subsActive.Set(float64(len(h.subs)))
	}
	select {
	case <-sub.stop:
		// already stopped
	default:
		close(sub.stop)
	}
	_ = sub.ch.Close()
}
