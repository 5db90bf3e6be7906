package store

import (
	"errors"
	"fmt"

	"dailysignal/internal/model"
	"dailysignal/pkg/faults"
)

func notFound(date model.Date) error {
	return fmt.Errorf("snapshot %s: %w", date, ErrNotFound)
}

func conflictingInsert(date model.Date) error {
	return faults.Wrap(faults.KindConsistency, "store: snapshot %s already exists with different market values", date)
}

func conflictingNextDay(date model.Date, have, want float64) error {
	return faults.Wrap(faults.KindConsistency, "store: snapshot %s next_day_close already %.4f, refusing %.4f", date, have, want)
}

func nextDayMatches(s *model.Snapshot, nextClose, changePct float64, actual model.Movement) bool {
	return s.NextDayClose != nil && model.FloatEqual(*s.NextDayClose, nextClose) &&
		(s.NextDayChangePct == nil || model.FloatEqual(*s.NextDayChangePct, changePct)) &&
		(s.ActualMovement == "" || s.ActualMovement == actual)
}

// errUnchanged short-circuits a mutation that would not change the row.
var errUnchanged = errors.New("store: unchanged")
