package predict

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dailysignal/internal/model"
)

// history builds n consecutive complete rows ending the day before target,
// plus the target row. Sentiment above zero is followed by an up move.
func history(n int, target model.Date, completeTarget bool) []model.Snapshot {
	out := make([]model.Snapshot, 0, n+1)
	start := target.AddDays(-n)
	for i := 0; i < n; i++ {
		sent := float64((i%4)*20 - 30)
		close := 100 + float64(i)
		next := close - 1
		if sent > 0 {
			next = close + 1
		}
		out = append(out, model.Snapshot{
			Date:              start.AddDays(i),
			Close:             close,
			CombinedSentiment: model.Float(sent),
			CompanySentiment:  model.Float(sent + 5),
			MacroSentiment:    model.Float(sent - 5),
			RSI:               model.Float(40 + float64(i%7)),
			MACD:              model.Float(float64(i%3) - 1),
			ChangePct:         model.Float(float64(i%5) - 2),
			VolumeRatio:       model.Float(1 + float64(i%3)/10),
			NextDayClose:      model.Float(next),
		})
	}
	row := model.Snapshot{
		Date:              target,
		Close:             200,
		CombinedSentiment: model.Float(30),
		CompanySentiment:  model.Float(35),
		MacroSentiment:    model.Float(25),
		RSI:               model.Float(50),
		MACD:              model.Float(0.5),
		ChangePct:         model.Float(1),
		VolumeRatio:       model.Float(1.1),
	}
	if !completeTarget {
		row.MacroSentiment = nil
	}
	return append(out, row)
}

func TestGateThreshold(t *testing.T) {
	target := model.MustParseDate("2026-03-02")
	gate := NewGate(DefaultMinHistory)
	ctx := context.Background()

	res, err := gate.MaybePredict(ctx, target, history(9, target, true))
	require.NoError(t, err)
	require.Equal(t, OutcomeInsufficientData, res.Outcome)
	require.Equal(t, 9, res.TrainingRows)

	res, err = gate.MaybePredict(ctx, target, history(10, target, true))
	require.NoError(t, err)
	require.Equal(t, OutcomePredicted, res.Outcome)
	require.Equal(t, model.MovementUp, res.Label)
	require.Greater(t, res.Confidence, 0.5)
	require.Len(t, res.Importances, len(FeatureNames))

	res, err = gate.MaybePredict(ctx, target, history(10, target, false))
	require.NoError(t, err)
	require.Equal(t, OutcomeIncompleteFeatures, res.Outcome)
	require.Equal(t, []string{"macro_sentiment"}, res.Missing)
}

func TestGateMissingTargetRow(t *testing.T) {
	target := model.MustParseDate("2026-03-02")
	rows := history(12, target, true)
	res, err := NewGate(10).MaybePredict(context.Background(), target, rows[:len(rows)-1])
	require.NoError(t, err)
	require.Equal(t, OutcomeIncompleteFeatures, res.Outcome)
	require.Len(t, res.Missing, len(FeatureNames))
}

func TestGateExcludesUnlabelledAndIncompleteRows(t *testing.T) {
	target := model.MustParseDate("2026-03-02")
	rows := history(11, target, true)
	rows[0].NextDayClose = nil
	rows[1].RSI = nil
	res, err := NewGate(10).MaybePredict(context.Background(), target, rows)
	require.NoError(t, err)
	require.Equal(t, OutcomeInsufficientData, res.Outcome)
	require.Equal(t, 9, res.TrainingRows)
}

func TestGateIsDeterministic(t *testing.T) {
	target := model.MustParseDate("2026-03-02")
	rows := history(30, target, true)
	gate := NewGate(10)
	a, err := gate.MaybePredict(context.Background(), target, rows)
	require.NoError(t, err)
	b, err := gate.MaybePredict(context.Background(), target, rows)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestGateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGate(10).MaybePredict(ctx, model.MustParseDate("2026-03-02"), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLogisticRegression(t *testing.T) {
	X := [][]float64{{-2, 1}, {-1, 1}, {-1.5, 1}, {1, 1}, {2, 1}, {1.5, 1}}
	y := []int{0, 0, 0, 1, 1, 1}
	m := NewLogisticRegression()

	_, err := m.PredictOne([]float64{0, 0})
	require.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, m.Fit(X, y))
	up, err := m.PredictOne([]float64{3, 1})
	require.NoError(t, err)
	require.Equal(t, 1, up.Label)
	require.Greater(t, up.Probability, 0.5)

	down, err := m.PredictOne([]float64{-3, 1})
	require.NoError(t, err)
	require.Equal(t, 0, down.Label)
	require.Greater(t, down.Probability, 0.5)

	// The constant column carries no signal.
	require.InDelta(t, 1, up.FeatureImportances[0], 1e-9)
	require.InDelta(t, 0, up.FeatureImportances[1], 1e-9)

	_, err = m.PredictOne([]float64{1})
	require.Error(t, err)
}

func TestLogisticRegressionValidation(t *testing.T) {
	m := NewLogisticRegression()
	require.Error(t, m.Fit(nil, nil))
	require.Error(t, m.Fit([][]float64{{1}}, []int{1, 0}))
	require.Error(t, m.Fit([][]float64{{1}, {1, 2}}, []int{1, 0}))
	require.Error(t, m.Fit([][]float64{{1}}, []int{2}))
}

func TestFeaturesAndLabel(t *testing.T) {
	s := &history(1, model.MustParseDate("2026-03-02"), true)[0]
	x, ok := Features(s)
	require.True(t, ok)
	require.Len(t, x, len(FeatureNames))
	require.Empty(t, Missing(s))

	label, ok := Label(s)
	require.True(t, ok)
	require.Equal(t, 0, label)

	s.VolumeRatio = nil
	_, ok = Features(s)
	require.False(t, ok)
	require.Equal(t, []string{"volume_ratio"}, Missing(s))

	s.NextDayClose = nil
	_, ok = Label(s)
	require.False(t, ok)
}

func TestEvaluate(t *testing.T) {
	rows := []model.Snapshot{
		{Prediction: model.MovementUp, ActualMovement: model.MovementUp},
		{Prediction: model.MovementUp, ActualMovement: model.MovementDown},
		{Prediction: model.MovementDown, ActualMovement: model.MovementDown},
		{Prediction: model.MovementDown},
		{ActualMovement: model.MovementUp},
	}
	ev := Evaluate(rows)
	require.Equal(t, Evaluation{Total: 3, Correct: 2, Accuracy: 66.67}, ev)
	require.Equal(t, Evaluation{}, Evaluate(nil))
}
