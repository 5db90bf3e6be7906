// Package predict gates and produces the next-day direction prediction.
package predict

import (
	"errors"
	"fmt"
	"math"
)

// Prediction is a classifier output for one feature vector.
type Prediction struct {
	Label              int
	Probability        float64
	FeatureImportances []float64
}

// Classifier is any binary classifier that can be refit from scratch.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	PredictOne(x []float64) (Prediction, error)
}

// ErrNotFitted is returned by PredictOne before a successful Fit.
var ErrNotFitted = errors.New("predict: classifier not fitted")

// LogisticRegression is an L2-regularised logistic regression trained with
// batch gradient descent on z-scored features. Training is deterministic.
type LogisticRegression struct {
	LearningRate float64
	Iterations   int
	L2           float64

	mean    []float64
	std     []float64
	weights []float64
	bias    float64
}

// NewLogisticRegression returns a classifier with the default schedule.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{LearningRate: 0.1, Iterations: 500, L2: 0.01}
}

// Fit trains on X and binary labels y.
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("predict: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("predict: %d rows but %d labels", len(X), len(y))
	}
	dim := len(X[0])
	for i, row := range X {
		if len(row) != dim {
			return fmt.Errorf("predict: row %d has %d features, want %d", i, len(row), dim)
		}
		if y[i] != 0 && y[i] != 1 {
			return fmt.Errorf("predict: label %d at row %d is not binary", y[i], i)
		}
	}

	m.mean, m.std = standardise(X, dim)
	Z := make([][]float64, len(X))
	for i, row := range X {
		Z[i] = m.scale(row)
	}

	m.weights = make([]float64, dim)
	m.bias = 0
	n := float64(len(Z))
	grad := make([]float64, dim)
	for iter := 0; iter < m.Iterations; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, row := range Z {
			diff := sigmoid(dot(m.weights, row)+m.bias) - float64(y[i])
			for j, v := range row {
				grad[j] += diff * v
			}
			gradBias += diff
		}
		for j := range m.weights {
			m.weights[j] -= m.LearningRate * (grad[j]/n + m.L2*m.weights[j])
		}
		m.bias -= m.LearningRate * gradBias / n
	}
	return nil
}

// PredictOne classifies x. Probability is that of the returned label.
func (m *LogisticRegression) PredictOne(x []float64) (Prediction, error) {
	if m.weights == nil {
		return Prediction{}, ErrNotFitted
	}
	if len(x) != len(m.weights) {
		return Prediction{}, fmt.Errorf("predict: got %d features, want %d", len(x), len(m.weights))
	}
	p := sigmoid(dot(m.weights, m.scale(x)) + m.bias)
	out := Prediction{Label: 0, Probability: 1 - p, FeatureImportances: m.importances()}
	if p > 0.5 {
		out.Label, out.Probability = 1, p
	}
	return out, nil
}

// importances are the absolute standardised weights normalised to sum to one.
func (m *LogisticRegression) importances() []float64 {
	out := make([]float64, len(m.weights))
	var total float64
	for i, w := range m.weights {
		out[i] = math.Abs(w)
		total += out[i]
	}
	if total == 0 {
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func (m *LogisticRegression) scale(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - m.mean[j]) / m.std[j]
	}
	return out
}

// standardise returns per-column mean and standard deviation; constant
// columns get a unit deviation so they scale to zero.
func standardise(X [][]float64, dim int) ([]float64, []float64) {
	mean := make([]float64, dim)
	std := make([]float64, dim)
	n := float64(len(X))
	for _, row := range X {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] < 1e-12 {
			std[j] = 1
		}
	}
	return mean, std
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
