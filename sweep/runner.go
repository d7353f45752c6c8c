// Package sweep implements the daily automated pass over all open offers.
// An external cron-like trigger invokes Run once per day; the run is safe
// to repeat on the same day and safe to resume after a crash because every
// fired notification is guarded by an idempotency tag and every transition
// is durably persisted before its notifications go out.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"offerflow/actionlink"
	"offerflow/notify"
	"offerflow/offer"
)

// Template tags for the time-triggered notifications.
const (
	TemplateFollowUp = "offer.followup_reminder"
	TemplateEscalate = "offer.escalation"
	TemplateExpire   = "offer.expired"
)

// Runner orchestrates one sweep: load candidates, decide, persist,
// notify, report.
type Runner struct {
	store    offer.Store
	notifier notify.Notifier
	rules    offer.Rules
	links    *actionlink.Issuer
	log      zerolog.Logger
}

func NewRunner(store offer.Store, notifier notify.Notifier, rules offer.Rules, log zerolog.Logger) *Runner {
	return &Runner{
		store:    store,
		notifier: notifier,
		rules:    rules,
		log:      log,
	}
}

// WithActionLinks makes follow-up reminders carry a signed accept/reject
// token for the customer.
func (r *Runner) WithActionLinks(issuer *actionlink.Issuer) *Runner {
	r.links = issuer
	return r
}

// Run executes one sweep at the given instant. Offers are processed
// sequentially; each offer's read-decide-write sequence uses the version
// field to coexist with concurrent customer actions, retrying once on
// conflict before skipping the offer until the next run. A store failure
// aborts the remaining offers and is returned alongside the partial
// report; transitions committed earlier in the run remain valid.
func (r *Runner) Run(ctx context.Context, now time.Time) (*Report, error) {
	report := newReport(now.UTC())
	defer func() { report.FinishedAt = time.Now().UTC() }()

	offers, err := r.store.ListNonTerminal(ctx)
	if err != nil {
		return report, fmt.Errorf("sweep: load candidates: %w", err)
	}
	report.OffersExamined = len(offers)

	for _, o := range offers {
		if err := r.sweepOffer(ctx, o, now, report); err != nil {
			return report, err
		}
	}

	r.log.Info().
		Int("offers_examined", report.OffersExamined).
		Interface("transitioned", report.Transitioned).
		Int("notifications_sent", report.NotificationsSent).
		Int("notification_failures", len(report.NotificationFailures)).
		Int("skipped_conflicts", len(report.SkippedConflicts)).
		Msg("sweep finished")

	return report, nil
}

// sweepOffer applies decisions to one offer until the decision core
// returns noop. An offer first swept long after several thresholds have
// passed walks every intermediate state here, each transition separately
// persisted and notified so the audit trail never skips a step.
func (r *Runner) sweepOffer(ctx context.Context, o offer.Offer, now time.Time, report *Report) error {
	retried := false

	for {
		d := r.rules.Decide(o, now)
		if d.Kind == offer.DecisionNoop {
			return nil
		}

		updated, err := r.applyDecision(ctx, o, d, now)
		switch {
		case errors.Is(err, offer.ErrVersionConflict):
			if retried {
				report.SkippedConflicts = append(report.SkippedConflicts, o.ID)
				r.log.Info().Str("offer_id", o.ID).Msg("offer skipped after repeated version conflict")
				return nil
			}
			retried = true
			reloaded, err := r.store.Get(ctx, o.ID)
			if err != nil {
				if errors.Is(err, offer.ErrOfferNotFound) {
					return nil
				}
				return fmt.Errorf("sweep: reload offer %s: %w", o.ID, err)
			}
			o = reloaded
			continue
		case err != nil:
			return fmt.Errorf("sweep: apply decision for offer %s: %w", o.ID, err)
		}

		if d.Kind == offer.DecisionTransition {
			report.Transitioned[d.ToStatus]++
		}
		r.dispatch(ctx, updated, d, report)

		o = updated
	}
}

func (r *Runner) applyDecision(ctx context.Context, o offer.Offer, d offer.Decision, now time.Time) (offer.Offer, error) {
	switch d.Kind {
	case offer.DecisionTransition:
		return r.store.ApplyTransition(ctx, offer.TransitionParams{
			OfferID:         o.ID,
			ExpectedVersion: o.Version,
			ToStatus:        d.ToStatus,
			Tag:             d.Tag,
			OccurredAt:      now.UTC(),
			Trigger:         offer.TriggerScheduledSweep,
		})
	case offer.DecisionNotifyOnly:
		return r.store.RecordNotification(ctx, o.ID, o.Version, d.Tag)
	default:
		return o, fmt.Errorf("sweep: unexpected decision kind %d", d.Kind)
	}
}

// dispatch fans the decision's notifications out concurrently. Failures
// are recorded for operator retry; the committed transition stands.
func (r *Runner) dispatch(ctx context.Context, o offer.Offer, d offer.Decision, report *Report) {
	results := make([]error, len(d.Recipients))

	g, gctx := errgroup.WithContext(ctx)
	for i, recipient := range d.Recipients {
		g.Go(func() error {
			results[i] = r.notifier.Send(gctx, notify.Message{
				Channel:     recipient.Channel,
				RecipientID: recipient.RecipientID,
				TemplateTag: r.templateFor(d.Tag),
				Context:     r.messageContext(o, d, recipient),
			})
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		if err != nil {
			report.NotificationFailures = append(report.NotificationFailures, NotificationFailure{
				OfferID:     o.ID,
				RecipientID: d.Recipients[i].RecipientID,
				Tag:         d.Tag,
				Error:       err.Error(),
			})
			r.log.Warn().Err(err).
				Str("offer_id", o.ID).
				Str("recipient_id", d.Recipients[i].RecipientID).
				Str("tag", d.Tag).
				Msg("notification failed")
			continue
		}
		report.NotificationsSent++
	}
}

func (r *Runner) messageContext(o offer.Offer, d offer.Decision, recipient offer.Recipient) map[string]any {
	msgCtx := map[string]any{
		"offer_id":     o.ID,
		"status":       string(o.Status),
		"tag":          d.Tag,
		"amount_cents": o.AmountCents,
		"currency":     o.Currency,
	}
	if r.links != nil && recipient.RecipientID == o.CustomerContactID && !o.Status.IsTerminal() {
		token, err := r.links.Issue(o.ID, o.CustomerContactID)
		if err != nil {
			r.log.Warn().Err(err).Str("offer_id", o.ID).Msg("action link issuance failed")
		} else {
			msgCtx["action_token"] = token
		}
	}
	return msgCtx
}

func (r *Runner) templateFor(tag string) string {
	switch tag {
	case r.rules.EscalateTag():
		return TemplateEscalate
	case r.rules.ExpireTag():
		return TemplateExpire
	default:
		return TemplateFollowUp
	}
}
