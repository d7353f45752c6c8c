package offer

import (
	"fmt"
	"time"
)

// DecisionKind discriminates what the sweep should do with an offer.
type DecisionKind int

const (
	DecisionNoop DecisionKind = iota
	DecisionTransition
	DecisionNotifyOnly
)

// Recipient names one notification target computed by a decision.
type Recipient struct {
	Channel     string
	RecipientID string
}

// Decision is the outcome of evaluating one offer against the clock.
// Transition decisions carry the target status; notify-only decisions
// carry just the tag and recipients. Recipients reference the offer's
// customer contact and assigned owner.
type Decision struct {
	Kind       DecisionKind
	ToStatus   Status
	Tag        string
	Recipients []Recipient
}

// Rules holds the calendar thresholds, in days after sent_at, at which
// automated transitions fire. Tags embed the day number so reconfiguring
// a threshold never collides with tags already recorded under the old one.
type Rules struct {
	FollowUpDays int
	EscalateDays int
	ExpireDays   int
}

// DefaultRules returns the production thresholds.
func DefaultRules() Rules {
	return Rules{FollowUpDays: 7, EscalateDays: 14, ExpireDays: 30}
}

// Validate rejects non-ascending or non-positive thresholds.
func (r Rules) Validate() error {
	if r.FollowUpDays <= 0 {
		return fmt.Errorf("offer: follow-up threshold must be positive")
	}
	if r.EscalateDays <= r.FollowUpDays {
		return fmt.Errorf("offer: escalate threshold must exceed follow-up threshold")
	}
	if r.ExpireDays <= r.EscalateDays {
		return fmt.Errorf("offer: expire threshold must exceed escalate threshold")
	}
	return nil
}

// FollowUpTag is the idempotency tag recorded when the follow-up reminder fires.
func (r Rules) FollowUpTag() string { return fmt.Sprintf("followup%d", r.FollowUpDays) }

// EscalateTag is the idempotency tag recorded when the escalation fires.
func (r Rules) EscalateTag() string { return fmt.Sprintf("escalate%d", r.EscalateDays) }

// ExpireTag is the idempotency tag recorded when the expiration fires.
func (r Rules) ExpireTag() string { return fmt.Sprintf("expire%d", r.ExpireDays) }

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
)

type step struct {
	after      time.Duration
	tag        string
	target     Status
	eligible   []Status
	toCustomer bool
	toOwner    bool
}

func (r Rules) steps() [3]step {
	day := 24 * time.Hour
	return [3]step{
		{
			after:      time.Duration(r.FollowUpDays) * day,
			tag:        r.FollowUpTag(),
			target:     StatusFollowedUp,
			eligible:   []Status{StatusPending},
			toCustomer: true,
		},
		{
			after:    time.Duration(r.EscalateDays) * day,
			tag:      r.EscalateTag(),
			target:   StatusEscalated,
			eligible: []Status{StatusPending, StatusFollowedUp},
			toOwner:  true,
		},
		{
			after:      time.Duration(r.ExpireDays) * day,
			tag:        r.ExpireTag(),
			target:     StatusExpired,
			eligible:   []Status{StatusPending, StatusFollowedUp, StatusEscalated},
			toCustomer: true,
			toOwner:    true,
		},
	}
}

// Decide evaluates one offer against now and returns the next action, if
// any. It is a pure function of (status, sentAt, notificationsSent, now):
// no I/O, no clock reads, no mutation of the offer.
//
// Thresholds are anchored on sentAt so they stay fixed calendar points
// regardless of when sweeps actually ran. They are evaluated in ascending
// day order and Decide returns only the earliest pending one; the sweep
// re-invokes Decide after persisting so an offer swept for the first time
// after a long gap still walks every intermediate state, each separately
// recorded and notified.
//
// When a threshold finds the offer already at or past its target status
// with the tag unset (a manual override outran the calendar), the
// notification still fires as a notify-only decision without a state change.
func (r Rules) Decide(o Offer, now time.Time) Decision {
	if o.Status.IsTerminal() {
		return Decision{Kind: DecisionNoop}
	}

	elapsed := now.Sub(o.SentAt)
	for _, s := range r.steps() {
		if elapsed < s.after || o.NotificationsSent.Has(s.tag) {
			continue
		}

		recipients := make([]Recipient, 0, 2)
		if s.toCustomer {
			recipients = append(recipients, Recipient{Channel: ChannelEmail, RecipientID: o.CustomerContactID})
		}
		if s.toOwner {
			recipients = append(recipients, Recipient{Channel: ChannelEmail, RecipientID: o.AssignedOwnerID})
		}

		for _, from := range s.eligible {
			if o.Status == from {
				return Decision{
					Kind:       DecisionTransition,
					ToStatus:   s.target,
					Tag:        s.tag,
					Recipients: recipients,
				}
			}
		}

		if automatedRank[o.Status] >= automatedRank[s.target] {
			return Decision{
				Kind:       DecisionNotifyOnly,
				Tag:        s.tag,
				Recipients: recipients,
			}
		}
	}

	return Decision{Kind: DecisionNoop}
}
