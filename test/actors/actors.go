// Package actors provides the concurrent workloads for the contention
// test: sweeps and customer actions racing over the same offers.
package actors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"offerflow/notify"
	"offerflow/offer"
	"offerflow/sweep"
)

// Sweeper runs the real sweep orchestrator in a loop against the pool.
// Repeat runs on the same instant must be no-ops thanks to the tag set.
func Sweeper(ctx context.Context, pool *pgxpool.Pool, now time.Time, stop <-chan struct{}) error {
	store := offer.NewRepository(pool)
	notifier := notify.NewLogNotifier(zerolog.Nop())
	runner := sweep.NewRunner(store, notifier, offer.DefaultRules(), zerolog.Nop())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := runner.Run(ctx, now); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// Customer fires accept/reject requests at one offer until it lands a
// terminal decision or someone else does.
func Customer(ctx context.Context, pool *pgxpool.Pool, offerID, contactID string, stop <-chan struct{}) error {
	store := offer.NewRepository(pool)
	svc := offer.NewService(store, notify.NewLogNotifier(zerolog.Nop()), zerolog.Nop())

	action := offer.ActionAccept
	if rand.Intn(2) == 0 {
		action = offer.ActionReject
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, err := svc.ApplyCustomerAction(ctx, offer.CustomerActionParams{
			OfferID: offerID,
			Action:  action,
			ActorID: contactID,
		})
		switch {
		case err == nil, errors.Is(err, offer.ErrAlreadyResolved):
			return nil
		case errors.Is(err, offer.ErrVersionConflict):
			// Sweep got there first; reload-and-retry is the caller's job.
			time.Sleep(time.Duration(1+rand.Intn(5)) * time.Millisecond)
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return err
		}
	}
}
