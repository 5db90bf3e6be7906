package predict

import (
	"context"
	"fmt"
	"strings"

	"dailysignal/internal/model"
)

// Outcome is the result state of one gate invocation.
type Outcome string

const (
	OutcomePredicted          Outcome = "PREDICTED"
	OutcomeInsufficientData   Outcome = "INSUFFICIENT_DATA"
	OutcomeIncompleteFeatures Outcome = "SKIPPED_INCOMPLETE_FEATURES"
)

// DefaultMinHistory is the number of labelled complete rows required to train.
const DefaultMinHistory = 10

// Result describes what the gate decided.
type Result struct {
	Outcome      Outcome
	Date         model.Date
	Label        model.Movement
	Confidence   float64
	TrainingRows int
	Importances  map[string]float64
	Missing      []string
}

// Detail is a one-line description for reports.
func (r Result) Detail() string {
	switch r.Outcome {
	case OutcomePredicted:
		return fmt.Sprintf("%s %s confidence=%.2f rows=%d", r.Outcome, r.Label, r.Confidence, r.TrainingRows)
	case OutcomeIncompleteFeatures:
		return fmt.Sprintf("%s missing=%s", r.Outcome, strings.Join(r.Missing, ","))
	default:
		return fmt.Sprintf("%s rows=%d", r.Outcome, r.TrainingRows)
	}
}

// Gate decides whether a prediction may be attempted and runs the classifier.
// It holds no model state between calls.
type Gate struct {
	MinHistory    int
	NewClassifier func() Classifier
}

// NewGate returns a gate backed by logistic regression.
func NewGate(minHistory int) *Gate {
	if minHistory <= 0 {
		minHistory = DefaultMinHistory
	}
	return &Gate{
		MinHistory:    minHistory,
		NewClassifier: func() Classifier { return NewLogisticRegression() },
	}
}

// MaybePredict trains on history rows other than effective that have complete
// features and a known next close, then classifies the effective row.
// Persisting the result is left to the caller.
func (g *Gate) MaybePredict(ctx context.Context, effective model.Date, history []model.Snapshot) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res := Result{Date: effective}

	var (
		X      [][]float64
		y      []int
		target *model.Snapshot
	)
	for i := range history {
		row := &history[i]
		if row.Date.Equal(effective) {
			target = row
			continue
		}
		if row.Date.After(effective) {
			continue
		}
		x, ok := Features(row)
		if !ok {
			continue
		}
		label, ok := Label(row)
		if !ok {
			continue
		}
		X = append(X, x)
		y = append(y, label)
	}
	res.TrainingRows = len(X)

	if len(X) < g.MinHistory {
		res.Outcome = OutcomeInsufficientData
		return res, nil
	}
	x, ok := Features(target)
	if !ok {
		res.Outcome = OutcomeIncompleteFeatures
		res.Missing = Missing(target)
		return res, nil
	}

	clf := g.NewClassifier()
	if err := clf.Fit(X, y); err != nil {
		return res, fmt.Errorf("predict: fit: %w", err)
	}
	pred, err := clf.PredictOne(x)
	if err != nil {
		return res, fmt.Errorf("predict: classify %s: %w", effective, err)
	}

	res.Outcome = OutcomePredicted
	res.Label = model.MovementDown
	if pred.Label == 1 {
		res.Label = model.MovementUp
	}
	res.Confidence = pred.Probability
	if len(pred.FeatureImportances) == len(FeatureNames) {
		res.Importances = make(map[string]float64, len(FeatureNames))
		for i, name := range FeatureNames {
			res.Importances[name] = pred.FeatureImportances[i]
		}
	}
	return res, nil
}
