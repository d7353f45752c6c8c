package offer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"offerflow/notify"
)

// Action is a customer decision on an open offer.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// Template tags handed to the notifier; rendering is its problem.
const (
	TemplateCustomerAccepted = "offer.customer_accepted"
	TemplateCustomerRejected = "offer.customer_rejected"
	TemplateManualOverride   = "offer.manual_override"
)

// CustomerActionParams carries one accept/reject request. ExpectedVersion
// is optional: when set it guards against the customer acting on stale
// offer data (a browser tab open since before an escalation fired).
type CustomerActionParams struct {
	OfferID         string
	Action          Action
	ExpectedVersion *int64
	ActorID         string
}

// ActionResult reports the offer state after a successful action.
type ActionResult struct {
	Status        Status
	Version       int64
	OwnerNotified bool
}

// ManualOverrideParams carries an operator-forced transition.
type ManualOverrideParams struct {
	OfferID  string
	ToStatus Status
	ActorID  string
	Note     string
}

// Service applies externally-triggered transitions: customer accept/reject
// and operator overrides. Automated transitions live in the sweep.
type Service struct {
	store    Store
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(store Store, notifier notify.Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ApplyCustomerAction validates and applies an accept/reject request.
// Terminal offers return ErrAlreadyResolved; a stale expected version
// returns ErrVersionConflict so the caller can reload and retry. The
// assigned owner is notified synchronously after the transition commits;
// a notification failure is reported in the result, not as an error.
func (s *Service) ApplyCustomerAction(ctx context.Context, params CustomerActionParams) (ActionResult, error) {
	if params.OfferID == "" {
		return ActionResult{}, fmt.Errorf("offer: missing offer id")
	}

	var target Status
	var template string
	switch params.Action {
	case ActionAccept:
		target = StatusAccepted
		template = TemplateCustomerAccepted
	case ActionReject:
		target = StatusRejected
		template = TemplateCustomerRejected
	default:
		return ActionResult{}, fmt.Errorf("offer: unknown action %q", params.Action)
	}

	o, err := s.store.Get(ctx, params.OfferID)
	if err != nil {
		return ActionResult{}, err
	}
	if o.Status.IsTerminal() {
		return ActionResult{}, ErrAlreadyResolved
	}
	if params.ExpectedVersion != nil && *params.ExpectedVersion != o.Version {
		return ActionResult{}, ErrVersionConflict
	}

	var actor *string
	if params.ActorID != "" {
		actor = &params.ActorID
	}
	updated, err := s.store.ApplyTransition(ctx, TransitionParams{
		OfferID:         o.ID,
		ExpectedVersion: o.Version,
		ToStatus:        target,
		OccurredAt:      s.now().UTC(),
		Trigger:         TriggerCustomerAction,
		ActorID:         actor,
	})
	if err != nil {
		return ActionResult{}, err
	}

	result := ActionResult{Status: updated.Status, Version: updated.Version}

	msg := notify.Message{
		Channel:     ChannelEmail,
		RecipientID: updated.AssignedOwnerID,
		TemplateTag: template,
		Context: map[string]any{
			"offer_id":     updated.ID,
			"status":       string(updated.Status),
			"amount_cents": updated.AmountCents,
			"currency":     updated.Currency,
		},
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).
			Str("offer_id", updated.ID).
			Str("recipient_id", updated.AssignedOwnerID).
			Msg("owner notification failed after customer action")
	} else {
		result.OwnerNotified = true
	}

	return result, nil
}

// ApplyManualOverride forces a graph-legal transition on behalf of an
// operator, recorded with the manualOverride trigger and the operator's
// note. The automated thresholds still apply afterwards; any notification
// whose calendar point the override ran ahead of fires on the next sweep.
func (s *Service) ApplyManualOverride(ctx context.Context, params ManualOverrideParams) (ActionResult, error) {
	if params.OfferID == "" {
		return ActionResult{}, fmt.Errorf("offer: missing offer id")
	}
	if params.ActorID == "" {
		return ActionResult{}, fmt.Errorf("offer: manual override requires an actor")
	}
	if !params.ToStatus.IsValid() {
		return ActionResult{}, fmt.Errorf("offer: unknown target status %q", params.ToStatus)
	}

	o, err := s.store.Get(ctx, params.OfferID)
	if err != nil {
		return ActionResult{}, err
	}
	if o.Status.IsTerminal() {
		return ActionResult{}, ErrAlreadyResolved
	}
	if !CanTransition(o.Status, params.ToStatus) {
		return ActionResult{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, params.ToStatus)
	}

	updated, err := s.store.ApplyTransition(ctx, TransitionParams{
		OfferID:         o.ID,
		ExpectedVersion: o.Version,
		ToStatus:        params.ToStatus,
		OccurredAt:      s.now().UTC(),
		Trigger:         TriggerManualOverride,
		ActorID:         &params.ActorID,
		Note:            params.Note,
	})
	if err != nil {
		return ActionResult{}, err
	}

	result := ActionResult{Status: updated.Status, Version: updated.Version}

	msg := notify.Message{
		Channel:     ChannelEmail,
		RecipientID: updated.AssignedOwnerID,
		TemplateTag: TemplateManualOverride,
		Context: map[string]any{
			"offer_id": updated.ID,
			"status":   string(updated.Status),
			"actor_id": params.ActorID,
			"note":     params.Note,
		},
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Warn().Err(err).
			Str("offer_id", updated.ID).
			Msg("owner notification failed after manual override")
	} else {
		result.OwnerNotified = true
	}

	return result, nil
}

// History returns the audit trail for one offer.
func (s *Service) History(ctx context.Context, offerID string) ([]HistoryEntry, error) {
	if _, err := s.store.Get(ctx, offerID); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, offerID)
}
