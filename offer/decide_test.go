package offer

import (
	"testing"
	"time"
)

var sentAt = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func openOffer(status Status, tags ...string) Offer {
	return Offer{
		ID:                "offer-1",
		SentAt:            sentAt,
		Status:            status,
		NotificationsSent: TagSet(tags),
		AssignedOwnerID:   "owner-1",
		CustomerContactID: "customer-1",
		Version:           1,
	}
}

func days(n int) time.Time { return sentAt.Add(time.Duration(n) * 24 * time.Hour) }

func TestDecide_BeforeFirstThreshold(t *testing.T) {
	d := DefaultRules().Decide(openOffer(StatusPending), days(6))
	if d.Kind != DecisionNoop {
		t.Fatalf("expected noop before day 7, got %+v", d)
	}
}

func TestDecide_FollowUpAtDaySeven(t *testing.T) {
	d := DefaultRules().Decide(openOffer(StatusPending), days(7))
	if d.Kind != DecisionTransition {
		t.Fatalf("expected transition, got %+v", d)
	}
	if d.ToStatus != StatusFollowedUp {
		t.Errorf("expected followedUp, got %s", d.ToStatus)
	}
	if d.Tag != "followup7" {
		t.Errorf("expected tag followup7, got %s", d.Tag)
	}
	if len(d.Recipients) != 1 || d.Recipients[0].RecipientID != "customer-1" {
		t.Errorf("expected reminder routed to customer, got %+v", d.Recipients)
	}
}

func TestDecide_EscalateRoutesToOwner(t *testing.T) {
	d := DefaultRules().Decide(openOffer(StatusFollowedUp, "followup7"), days(14))
	if d.Kind != DecisionTransition || d.ToStatus != StatusEscalated {
		t.Fatalf("expected escalation, got %+v", d)
	}
	if len(d.Recipients) != 1 || d.Recipients[0].RecipientID != "owner-1" {
		t.Errorf("expected escalation routed to owner, got %+v", d.Recipients)
	}
}

func TestDecide_ExpireNotifiesBoth(t *testing.T) {
	d := DefaultRules().Decide(openOffer(StatusEscalated, "followup7", "escalate14"), days(30))
	if d.Kind != DecisionTransition || d.ToStatus != StatusExpired {
		t.Fatalf("expected expiration, got %+v", d)
	}
	if len(d.Recipients) != 2 {
		t.Fatalf("expected customer and owner recipients, got %+v", d.Recipients)
	}
}

func TestDecide_AscendingOrderUnderCatchUp(t *testing.T) {
	// First sweep after a long outage: earliest threshold wins first so
	// the offer walks every intermediate state across repeated calls.
	o := openOffer(StatusPending)
	now := days(40)

	want := []struct {
		to  Status
		tag string
	}{
		{StatusFollowedUp, "followup7"},
		{StatusEscalated, "escalate14"},
		{StatusExpired, "expire30"},
	}

	for _, step := range want {
		d := DefaultRules().Decide(o, now)
		if d.Kind != DecisionTransition {
			t.Fatalf("expected transition to %s, got %+v", step.to, d)
		}
		if d.ToStatus != step.to || d.Tag != step.tag {
			t.Fatalf("expected %s/%s, got %s/%s", step.to, step.tag, d.ToStatus, d.Tag)
		}
		o.Status = d.ToStatus
		o.NotificationsSent = o.NotificationsSent.With(d.Tag)
	}

	if d := DefaultRules().Decide(o, now); d.Kind != DecisionNoop {
		t.Fatalf("expected noop once expired, got %+v", d)
	}
}

func TestDecide_TerminalIsNoop(t *testing.T) {
	for _, status := range []Status{StatusAccepted, StatusRejected, StatusExpired} {
		if d := DefaultRules().Decide(openOffer(status), days(90)); d.Kind != DecisionNoop {
			t.Errorf("expected noop for %s, got %+v", status, d)
		}
	}
}

func TestDecide_TagSuppressesRefire(t *testing.T) {
	// Sweep re-run on the same day: the recorded tag keeps the threshold
	// from firing twice even though the calendar condition still holds.
	o := openOffer(StatusFollowedUp, "followup7")
	if d := DefaultRules().Decide(o, days(8)); d.Kind != DecisionNoop {
		t.Fatalf("expected noop on re-run, got %+v", d)
	}
}

func TestDecide_NotifyOnlyWhenOverrideOutranCalendar(t *testing.T) {
	// A manual override escalated the offer on day 3; the day-7 reminder
	// still belongs to the customer even though no state change is left.
	o := openOffer(StatusEscalated)
	d := DefaultRules().Decide(o, days(7))
	if d.Kind != DecisionNotifyOnly {
		t.Fatalf("expected notify-only, got %+v", d)
	}
	if d.Tag != "followup7" {
		t.Errorf("expected tag followup7, got %s", d.Tag)
	}
	if len(d.Recipients) != 1 || d.Recipients[0].RecipientID != "customer-1" {
		t.Errorf("expected customer recipient, got %+v", d.Recipients)
	}
}

func TestDecide_Pure(t *testing.T) {
	o := openOffer(StatusPending)
	now := days(16)
	first := DefaultRules().Decide(o, now)
	for i := 0; i < 5; i++ {
		got := DefaultRules().Decide(o, now)
		if got.Kind != first.Kind || got.ToStatus != first.ToStatus || got.Tag != first.Tag {
			t.Fatalf("decide not deterministic: %+v vs %+v", first, got)
		}
	}
	if o.Status != StatusPending || len(o.NotificationsSent) != 0 {
		t.Fatalf("decide mutated its input: %+v", o)
	}
}

func TestRules_Validate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
	bad := Rules{FollowUpDays: 10, EscalateDays: 10, ExpireDays: 30}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for non-ascending thresholds")
	}
}

func TestRules_TagsTrackConfiguredDays(t *testing.T) {
	r := Rules{FollowUpDays: 5, EscalateDays: 10, ExpireDays: 20}
	if r.FollowUpTag() != "followup5" || r.EscalateTag() != "escalate10" || r.ExpireTag() != "expire20" {
		t.Fatalf("unexpected tags: %s %s %s", r.FollowUpTag(), r.EscalateTag(), r.ExpireTag())
	}
}
