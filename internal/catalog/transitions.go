package catalog

import (
	"fmt"

	"libraflow/pkg/eventstore"
)

// Trigger names the operation that moved an item.
type Trigger string

const (
	TriggerBorrow  Trigger = "borrow"
	TriggerReserve Trigger = "reserve"
	TriggerReturn  Trigger = "return"
	TriggerRevoke  Trigger = "revoke"
	TriggerReview  Trigger = "review_complete"
	TriggerCancel  Trigger = "cancel_reservation"
	TriggerExpire  Trigger = "expire_reservation"
)

// table lists, per trigger, the statuses reachable from each status.
var table = map[Trigger]map[Status][]Status{
	TriggerBorrow: {
		Available: {CheckedOut, Available, Reserved},
		Reserved:  {CheckedOut, Reserved, Available},
	},
	TriggerReserve: {
		Available:   {Reserved},
		CheckedOut:  {CheckedOut},
		Reserved:    {Reserved},
		UnderReview: {UnderReview},
	},
	TriggerReturn: {
		Available:  {Available, Reserved, UnderReview},
		CheckedOut: {Available, Reserved, UnderReview},
		Reserved:   {Reserved, Available, UnderReview},
	},
	TriggerRevoke: {
		Available:   {Available},
		CheckedOut:  {Available},
		Reserved:    {Available},
		UnderReview: {Available},
	},
	TriggerReview: {
		UnderReview: {UnderReview, Available, Reserved},
	},
	TriggerCancel: {
		Available:   {Available},
		CheckedOut:  {CheckedOut},
		Reserved:    {Reserved, Available},
		UnderReview: {UnderReview},
	},
	TriggerExpire: {
		Available:   {Available},
		CheckedOut:  {CheckedOut},
		Reserved:    {Reserved, Available},
		UnderReview: {UnderReview},
	},
}

// Allowed reports whether trigger may move an item from one status to another.
func Allowed(trigger Trigger, from, to Status) bool {
	for _, s := range table[trigger][from] {
		if s == to {
			return true
		}
	}
	return false
}

// Derive computes the resting status of an undamaged item.
func Derive(copies, waiting int) Status {
	switch {
	case copies == 0:
		return CheckedOut
	case waiting > 0:
		return Reserved
	default:
		return Available
	}
}

// Snapshot is the state folded from an item's history.
type Snapshot struct {
	Status          Status
	CopiesAvailable int
	TotalCopies     int
	Damaged         bool
	Version         int
}

// Replay folds a history and fails on the first event that the transition
// table or the copy invariant does not allow.
func Replay(events []eventstore.Event) (Snapshot, error) {
	var snap Snapshot
	if len(events) == 0 {
		return snap, fmt.Errorf("empty history")
	}

	for i, ev := range events {
		switch ev.EventType {
		case EventItemAdded:
			if i != 0 {
				return snap, fmt.Errorf("event %d: %s after creation", ev.Version, ev.EventType)
			}
			var added ItemAddedEvent
			if err := ev.Decode(&added); err != nil {
				return snap, fmt.Errorf("event %d: decode: %w", ev.Version, err)
			}
			snap = Snapshot{
				Status:          Available,
				CopiesAvailable: added.TotalCopies,
				TotalCopies:     added.TotalCopies,
			}

		case EventItemCirculated:
			if i == 0 {
				return snap, fmt.Errorf("event %d: history does not start with %s", ev.Version, EventItemAdded)
			}
			var c ItemCirculatedEvent
			if err := ev.Decode(&c); err != nil {
				return snap, fmt.Errorf("event %d: decode: %w", ev.Version, err)
			}
			if c.From != snap.Status {
				return snap, fmt.Errorf("event %d: recorded from %s but item was %s", ev.Version, c.From, snap.Status)
			}
			if !Allowed(c.Trigger, c.From, c.To) {
				return snap, fmt.Errorf("event %d: %s may not move %s to %s", ev.Version, c.Trigger, c.From, c.To)
			}
			if c.CopiesAvailable < 0 || c.CopiesAvailable > snap.TotalCopies {
				return snap, fmt.Errorf("event %d: %d copies outside [0,%d]", ev.Version, c.CopiesAvailable, snap.TotalCopies)
			}
			if (c.To == CheckedOut) != (c.CopiesAvailable == 0) {
				return snap, fmt.Errorf("event %d: status %s with %d copies", ev.Version, c.To, c.CopiesAvailable)
			}
			snap.Status = c.To
			snap.CopiesAvailable = c.CopiesAvailable
			snap.Damaged = c.Damaged

		default:
			return snap, fmt.Errorf("event %d: unknown type %s", ev.Version, ev.EventType)
		}
		snap.Version = ev.Version
	}
	return snap, nil
}
