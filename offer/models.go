package offer

import "time"

// Offer mirrors the offers table columns touched by the engine. Draft
// offers (sent_at unset) never reach this package; creation and pricing
// happen upstream.
type Offer struct {
	ID                string
	CreatedAt         time.Time
	SentAt            time.Time
	AmountCents       int64
	Currency          string
	Status            Status
	LastTransitionAt  time.Time
	NotificationsSent TagSet
	AssignedOwnerID   string
	CustomerContactID string
	Version           int64
}

// HistoryEntry captures one immutable status transition for an offer.
type HistoryEntry struct {
	ID         int64
	OfferID    string
	FromStatus Status
	ToStatus   Status
	OccurredAt time.Time
	Trigger    Trigger
	ActorID    *string
	Note       string
}

// TagSet holds the idempotency tags of notifications already fired for
// an offer. The set only ever grows.
type TagSet []string

// Has reports whether tag is present.
func (t TagSet) Has(tag string) bool {
	for _, existing := range t {
		if existing == tag {
			return true
		}
	}
	return false
}

// With returns a copy of the set including tag. The receiver is never
// mutated so callers can keep pre-write snapshots.
func (t TagSet) With(tag string) TagSet {
	if tag == "" || t.Has(tag) {
		return t
	}
	out := make(TagSet, 0, len(t)+1)
	out = append(out, t...)
	return append(out, tag)
}
