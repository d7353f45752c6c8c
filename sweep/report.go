package sweep

import (
	"time"

	"offerflow/offer"
)

// NotificationFailure records one delivery the notifier could not make.
// The transition it belongs to stays committed; operators retry from here.
type NotificationFailure struct {
	OfferID     string `json:"offer_id"`
	RecipientID string `json:"recipient_id"`
	Tag         string `json:"tag"`
	Error       string `json:"error"`
}

// Report summarizes one sweep run for the operational log.
type Report struct {
	StartedAt            time.Time             `json:"started_at"`
	FinishedAt           time.Time             `json:"finished_at"`
	OffersExamined       int                   `json:"offers_examined"`
	Transitioned         map[offer.Status]int  `json:"transitioned"`
	NotificationsSent    int                   `json:"notifications_sent"`
	NotificationFailures []NotificationFailure `json:"notification_failures"`
	SkippedConflicts     []string              `json:"skipped_conflicts"`
}

func newReport(startedAt time.Time) *Report {
	return &Report{
		StartedAt:            startedAt,
		Transitioned:         make(map[offer.Status]int),
		NotificationFailures: []NotificationFailure{},
		SkippedConflicts:     []string{},
	}
}
