// Package store persists trading snapshots and news articles.
//
// Every backend honours the same contract: snapshots are keyed by date and
// written through InsertIfAbsent, next-day fields are write-once, and
// articles are append-only with no URL de-duplication.
package store

import (
	"context"
	"errors"

	"dailysignal/internal/model"
)

// ErrNotFound is returned when a snapshot lookup has no row.
var ErrNotFound = errors.New("store: not found")

// SnapshotStore owns TradingSnapshot rows.
type SnapshotStore interface {
	Get(ctx context.Context, date model.Date) (*model.Snapshot, error)
	// InsertIfAbsent writes s unless a row for s.Date exists. An existing row
	// with equal market fields yields (false, nil); a differing one yields
	// ErrConsistencyViolation and is left untouched.
	InsertIfAbsent(ctx context.Context, s *model.Snapshot) (bool, error)
	// UpsertOverwrite replaces the market and indicator fields of a row, keeping
	// sentiment, next-day and prediction fields. Reserved for operator repairs.
	UpsertOverwrite(ctx context.Context, s *model.Snapshot) error
	UpdateSentiment(ctx context.Context, date model.Date, sent model.Sentiment) error
	// SetNextDay records the following session's close once. Re-setting the
	// same values is a no-op; different values are ErrConsistencyViolation.
	SetNextDay(ctx context.Context, date model.Date, nextClose, changePct float64, actual model.Movement) error
	SetPrediction(ctx context.Context, date model.Date, label model.Movement, confidence float64) error
	// Previous returns the latest row strictly before date.
	Previous(ctx context.Context, date model.Date) (*model.Snapshot, error)
	Latest(ctx context.Context) (*model.Snapshot, error)
	// Recent returns up to n most recent rows in ascending date order.
	Recent(ctx context.Context, n int) ([]model.Snapshot, error)
}

// ArticleStore owns Article rows.
type ArticleStore interface {
	Append(ctx context.Context, articles ...model.Article) error
	ExistsURL(ctx context.Context, url string) (bool, error)
	// Between returns articles dated in [from, to], ordered by date then id.
	Between(ctx context.Context, from, to model.Date) ([]model.Article, error)
	// Earliest returns the oldest article date, or the zero Date when empty.
	Earliest(ctx context.Context) (model.Date, error)
}

// Bundle groups the two stores of one backend.
type Bundle struct {
	Driver    string
	Snapshots SnapshotStore
	Articles  ArticleStore
	closer    func() error
}

// Close releases backend resources.
func (b *Bundle) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer()
}
