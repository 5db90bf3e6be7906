package store

import (
	"context"
	"errors"
	"sort"

	"dailysignal/internal/model"
)

// DryRun wraps a backend so reads fall through to it while writes land in
// an in-memory overlay. Later steps of the same run see earlier writes;
// nothing reaches the backend.
func DryRun(base *Bundle) *Bundle {
	return &Bundle{
		Driver:    base.Driver + "+dryrun",
		Snapshots: &dryRunSnapshots{base: base.Snapshots, overlay: NewMemorySnapshots()},
		Articles:  &dryRunArticles{base: base.Articles, overlay: NewMemoryArticles()},
		closer:    base.Close,
	}
}

type dryRunSnapshots struct {
	base    SnapshotStore
	overlay *MemorySnapshots
}

func (d *dryRunSnapshots) Get(ctx context.Context, date model.Date) (*model.Snapshot, error) {
	snap, err := d.overlay.Get(ctx, date)
	if err == nil {
		return snap, nil
	}
	return d.base.Get(ctx, date)
}

func (d *dryRunSnapshots) InsertIfAbsent(ctx context.Context, s *model.Snapshot) (bool, error) {
	existing, err := d.base.Get(ctx, s.Date)
	switch {
	case err == nil:
		if existing.MarketEqual(s) {
			return false, nil
		}
		return false, conflictingInsert(s.Date)
	case !errors.Is(err, ErrNotFound):
		return false, err
	}
	return d.overlay.InsertIfAbsent(ctx, s)
}

// hydrate copies the backend row for date into the overlay once.
func (d *dryRunSnapshots) hydrate(ctx context.Context, date model.Date) error {
	if _, err := d.overlay.Get(ctx, date); err == nil {
		return nil
	}
	row, err := d.base.Get(ctx, date)
	if err != nil {
		return err
	}
	_, err = d.overlay.InsertIfAbsent(ctx, row)
	if err != nil {
		return err
	}
	return d.overlay.mutate(date, func(dst *model.Snapshot) error {
		*dst = *row.Clone()
		return nil
	})
}

func (d *dryRunSnapshots) UpsertOverwrite(ctx context.Context, s *model.Snapshot) error {
	if err := d.hydrate(ctx, s.Date); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return d.overlay.UpsertOverwrite(ctx, s)
}

func (d *dryRunSnapshots) UpdateSentiment(ctx context.Context, date model.Date, sent model.Sentiment) error {
	if err := d.hydrate(ctx, date); err != nil {
		return err
	}
	return d.overlay.UpdateSentiment(ctx, date, sent)
}

func (d *dryRunSnapshots) SetNextDay(ctx context.Context, date model.Date, nextClose, changePct float64, actual model.Movement) error {
	if err := d.hydrate(ctx, date); err != nil {
		return err
	}
	return d.overlay.SetNextDay(ctx, date, nextClose, changePct, actual)
}

func (d *dryRunSnapshots) SetPrediction(ctx context.Context, date model.Date, label model.Movement, confidence float64) error {
	if err := d.hydrate(ctx, date); err != nil {
		return err
	}
	return d.overlay.SetPrediction(ctx, date, label, confidence)
}

func (d *dryRunSnapshots) Previous(ctx context.Context, date model.Date) (*model.Snapshot, error) {
	return pickLater(d.overlay.Previous(ctx, date))(d.base.Previous(ctx, date))
}

func (d *dryRunSnapshots) Latest(ctx context.Context) (*model.Snapshot, error) {
	return pickLater(d.overlay.Latest(ctx))(d.base.Latest(ctx))
}

// pickLater chooses the later of two lookups, tolerating ErrNotFound on either side.
func pickLater(a *model.Snapshot, aErr error) func(*model.Snapshot, error) (*model.Snapshot, error) {
	return func(b *model.Snapshot, bErr error) (*model.Snapshot, error) {
		if aErr != nil && !errors.Is(aErr, ErrNotFound) {
			return nil, aErr
		}
		if bErr != nil && !errors.Is(bErr, ErrNotFound) {
			return nil, bErr
		}
		switch {
		case aErr != nil && bErr != nil:
			return nil, bErr
		case aErr != nil:
			return b, nil
		case bErr != nil:
			return a, nil
		case b.Date.After(a.Date):
			return b, nil
		default:
			return a, nil
		}
	}
}

func (d *dryRunSnapshots) Recent(ctx context.Context, n int) ([]model.Snapshot, error) {
	baseRows, err := d.base.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	overlayRows, _ := d.overlay.Recent(ctx, 0)
	merged := make(map[model.Date]model.Snapshot, len(baseRows)+len(overlayRows))
	for _, row := range baseRows {
		merged[row.Date] = row
	}
	for _, row := range overlayRows {
		merged[row.Date] = row
	}
	out := make([]model.Snapshot, 0, len(merged))
	for _, row := range merged {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

type dryRunArticles struct {
	base    ArticleStore
	overlay *MemoryArticles
}

func (d *dryRunArticles) Append(ctx context.Context, articles ...model.Article) error {
	return d.overlay.Append(ctx, articles...)
}

func (d *dryRunArticles) ExistsURL(ctx context.Context, url string) (bool, error) {
	if ok, _ := d.overlay.ExistsURL(ctx, url); ok {
		return true, nil
	}
	return d.base.ExistsURL(ctx, url)
}

func (d *dryRunArticles) Between(ctx context.Context, from, to model.Date) ([]model.Article, error) {
	rows, err := d.base.Between(ctx, from, to)
	if err != nil {
		return nil, err
	}
	extra, _ := d.overlay.Between(ctx, from, to)
	rows = append(rows, extra...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

func (d *dryRunArticles) Earliest(ctx context.Context) (model.Date, error) {
	oldest, err := d.base.Earliest(ctx)
	if err != nil {
		return model.Date{}, err
	}
	extra, _ := d.overlay.Earliest(ctx)
	if oldest.IsZero() || (!extra.IsZero() && extra.Before(oldest)) {
		return extra, nil
	}
	return oldest, nil
}
