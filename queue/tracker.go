// Package queue maintains the live order queue shown on the kiosk displays:
// an active list (pending/processing) and a short recent-completed strip.
// State is fed by the realtime change feed and backstopped by a fixed-interval
// wholesale refetch, because push delivery is not guaranteed to be complete
// or ordered.
package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hanyong5/kiview/models"
	"github.com/hanyong5/kiview/realtime"
)

// CompletedCap is the maximum number of orders kept in the recent-completed
// strip; the oldest entry is evicted beyond it.
const CompletedCap = 10

// FetchFunc loads the full active and recent-completed lists from storage.
// Active must be ordered oldest first, completed newest first.
type FetchFunc func() (active, completed []models.Order, err error)

// DetailFunc loads a single order with its user and items.
type DetailFunc func(id uint) (models.Order, error)

// Tracker reconciles push events and poll results into the two queue views.
type Tracker struct {
	mu        sync.Mutex
	active    []models.Order
	completed []models.Order
	lastSeq   map[uint]uint64 // last applied event seq per order id
	maxSeq    uint64          // highest event seq applied so far

	fetch        FetchFunc
	detail       DetailFunc
	events       <-chan realtime.ChangeEvent
	pollInterval time.Duration
}

// Snapshot is a point-in-time copy of the queue state.
type Snapshot struct {
	Active          []models.Order `json:"active"`
	Completed       []models.Order `json:"completed"`
	PendingCount    int            `json:"pending_count"`
	ProcessingCount int            `json:"processing_count"`
}

var trackerInstance *Tracker

// InitTracker creates the tracker singleton
func InitTracker(fetch FetchFunc, detail DetailFunc, events <-chan realtime.ChangeEvent, pollInterval time.Duration) *Tracker {
	trackerInstance = NewTracker(fetch, detail, events, pollInterval)
	return trackerInstance
}

// GetTracker returns the tracker instance
func GetTracker() *Tracker {
	return trackerInstance
}

// SetTracker sets the tracker instance (primarily for testing)
func SetTracker(t *Tracker) {
	trackerInstance = t
}

// NewTracker builds a Tracker. Call Run in a goroutine to start the feed
// loop, or drive it manually with Apply and Refresh in tests.
func NewTracker(fetch FetchFunc, detail DetailFunc, events <-chan realtime.ChangeEvent, pollInterval time.Duration) *Tracker {
	return &Tracker{
		lastSeq:      make(map[uint]uint64),
		fetch:        fetch,
		detail:       detail,
		events:       events,
		pollInterval: pollInterval,
	}
}

// Run loads the initial state and then processes push events and poll ticks
// until the context is cancelled. A failed poll is logged and retried on the
// next tick; it never stops the loop.
func (t *Tracker) Run(ctx context.Context) {
	if err := t.Refresh(); err != nil {
		log.Printf("queue: initial load failed: %v", err)
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			t.Apply(ev)
		case <-ticker.C:
			if err := t.Refresh(); err != nil {
				log.Printf("queue: poll failed: %v", err)
			}
		}
	}
}

// Apply reconciles one change event into the queue views. Events whose
// sequence number is not newer than the last one applied for the same order
// are dropped, which makes reconciliation idempotent and order-independent.
func (t *Tracker) Apply(ev realtime.ChangeEvent) {
	if ev.Table != "orders" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := ev.Order.ID
	if ev.Seq != 0 {
		if ev.Seq <= t.lastSeq[id] {
			return
		}
		t.lastSeq[id] = ev.Seq
		if ev.Seq > t.maxSeq {
			t.maxSeq = ev.Seq
		}
	}

	switch ev.Type {
	case realtime.EventInsert:
		if ev.Order.IsActive() && !containsOrder(t.active, id) {
			t.active = append(t.active, ev.Order)
		}

	case realtime.EventUpdate:
		if ev.Order.IsActive() {
			for i := range t.active {
				if t.active[i].ID == id {
					t.active[i] = ev.Order
					break
				}
			}
			return
		}
		t.active = removeOrder(t.active, id)
		if isCompletedStatus(ev.Order.Status) {
			t.prependCompleted(t.fullOrder(ev.Order))
		}

	case realtime.EventDelete:
		t.active = removeOrder(t.active, id)
		t.completed = removeOrder(t.completed, id)
	}
}

// Refresh refetches both lists wholesale and replaces the local state.
// If a push event lands while the fetch is in flight, the stale result is
// discarded and the next tick tries again.
func (t *Tracker) Refresh() error {
	t.mu.Lock()
	seqAtStart := t.maxSeq
	t.mu.Unlock()

	active, completed, err := t.fetch()
	if err != nil {
		return err
	}
	if len(completed) > CompletedCap {
		completed = completed[:CompletedCap]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxSeq != seqAtStart {
		return nil
	}
	t.active = active
	t.completed = completed
	return nil
}

// Snapshot returns a copy of the current queue state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Active:    make([]models.Order, len(t.active)),
		Completed: make([]models.Order, len(t.completed)),
	}
	copy(snap.Active, t.active)
	copy(snap.Completed, t.completed)
	for _, o := range t.active {
		switch o.Status {
		case models.StatusPending:
			snap.PendingCount++
		case models.StatusProcessing:
			snap.ProcessingCount++
		}
	}
	return snap
}

// fullOrder resolves the order detail (user, items, products) for the
// completed strip. The event payload is used as-is when no detail loader is
// wired or the lookup fails.
func (t *Tracker) fullOrder(o models.Order) models.Order {
	if t.detail == nil {
		return o
	}
	full, err := t.detail(o.ID)
	if err != nil {
		log.Printf("queue: order %d detail fetch failed: %v", o.ID, err)
		return o
	}
	return full
}

// prependCompleted puts the order at the head of the completed strip,
// evicting the oldest entry past the cap. Caller holds the lock.
func (t *Tracker) prependCompleted(o models.Order) {
	t.completed = removeOrder(t.completed, o.ID)
	t.completed = append([]models.Order{o}, t.completed...)
	if len(t.completed) > CompletedCap {
		t.completed = t.completed[:CompletedCap]
	}
}

func isCompletedStatus(s string) bool {
	return s == models.StatusCompleted || s == models.StatusDelivered
}

func containsOrder(list []models.Order, id uint) bool {
	for i := range list {
		if list[i].ID == id {
			return true
		}
	}
	return false
}

func removeOrder(list []models.Order, id uint) []models.Order {
	out := list[:0]
	for i := range list {
		if list[i].ID != id {
			out = append(out, list[i])
		}
	}
	return out
}
