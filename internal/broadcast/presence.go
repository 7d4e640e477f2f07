package broadcast

import (
	"sync"
	"time"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

// PresenceState is the ephemeral per-actor status. It lives only as long as
// an active subscription/heartbeat and is never persisted.
type PresenceState struct {
	Actor    models.Actor
	Status   PresenceStatus
	LastSeen time.Time
}

// DefaultPresenceTimeout is how long an actor may miss heartbeats before
// being expired to offline. Kept above typical reconnect blips.
const DefaultPresenceTimeout = 90 * time.Second

// PresenceTracker owns the in-memory presence map: created on first
// announcement, refreshed by heartbeat, expired to offline by the sweeper
// after the heartbeat timeout. Status transitions are reported through the
// onChange callback (wired to the event publisher).
type PresenceTracker struct {
	mu       sync.RWMutex
	states   map[string]*PresenceState // keyed by actor id
	timeout  time.Duration
	onChange func(PresenceState)

	stopOnce sync.Once
	stop     chan struct{}
}

func NewPresenceTracker(timeout time.Duration, onChange func(PresenceState)) *PresenceTracker {
	if timeout <= 0 {
		timeout = DefaultPresenceTimeout
	}
	return &PresenceTracker{
		states:   make(map[string]*PresenceState),
		timeout:  timeout,
		onChange: onChange,
		stop:     make(chan struct{}),
	}
}

// Start runs the expiry sweeper until Stop is called.
func (t *PresenceTracker) Start() {
	go func() {
		ticker := time.NewTicker(t.timeout / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.expire(time.Now())
			case <-t.stop:
				return
			}
		}
	}()
}

func (t *PresenceTracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Touch records a heartbeat. A first announcement or a return from offline
// transitions the actor to online and fires onChange.
func (t *PresenceTracker) Touch(actor models.Actor) {
	t.mu.Lock()
	state, exists := t.states[actor.ID]
	var changed PresenceState
	fire := false
	if !exists {
		state = &PresenceState{Actor: actor, Status: StatusOnline, LastSeen: time.Now()}
		t.states[actor.ID] = state
		changed, fire = *state, true
	} else {
		state.LastSeen = time.Now()
		if state.Status == StatusOffline {
			state.Status = StatusOnline
			changed, fire = *state, true
		}
	}
	t.mu.Unlock()

	if fire && t.onChange != nil {
		t.onChange(changed)
	}
}

// SetStatus applies an explicit status change (online/away/offline).
func (t *PresenceTracker) SetStatus(actor models.Actor, status PresenceStatus) {
	t.mu.Lock()
	state, exists := t.states[actor.ID]
	if !exists {
		state = &PresenceState{Actor: actor}
		t.states[actor.ID] = state
	}
	state.LastSeen = time.Now()
	fire := state.Status != status
	state.Status = status
	changed := *state
	t.mu.Unlock()

	if fire && t.onChange != nil {
		t.onChange(changed)
	}
}

// Get returns the current state for an actor, if any.
func (t *PresenceTracker) Get(actorID string) (PresenceState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.states[actorID]
	if !ok {
		return PresenceState{}, false
	}
	return *state, true
}

// IsOnline reports whether the actor currently has a live (non-offline)
// presence entry.
func (t *PresenceTracker) IsOnline(actorID string) bool {
	state, ok := t.Get(actorID)
	return ok && state.Status != StatusOffline
}

// Roster returns a snapshot of all non-offline actors (public presence list).
func (t *PresenceTracker) Roster() []PresenceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	roster := make([]PresenceState, 0, len(t.states))
	for _, state := range t.states {
		if state.Status != StatusOffline {
			roster = append(roster, *state)
		}
	}
	return roster
}

// expire transitions actors past the heartbeat timeout to offline. Entries
// already offline longer than one more timeout are removed entirely.
func (t *PresenceTracker) expire(now time.Time) {
	t.mu.Lock()
	var changes []PresenceState
	for id, state := range t.states {
		age := now.Sub(state.LastSeen)
		switch {
		case state.Status != StatusOffline && age > t.timeout:
			state.Status = StatusOffline
			changes = append(changes, *state)
		case state.Status == StatusOffline && age > 2*t.timeout:
			delete(t.states, id)
		}
	}
	t.mu.Unlock()

	if t.onChange != nil {
		for _, c := range changes {
			t.onChange(c)
		}
	}
}

// ExpireNow forces an expiry pass (used by tests and shutdown).
func (t *PresenceTracker) ExpireNow() {
	t.expire(time.Now().Add(2 * t.timeout))
}
