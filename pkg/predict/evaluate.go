package predict

import "dailysignal/internal/model"

// Evaluation summarises past predictions whose outcome is known. Accuracy is
// a percentage.
type Evaluation struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Evaluate scores every row carrying both a prediction and an actual movement.
func Evaluate(history []model.Snapshot) Evaluation {
	var ev Evaluation
	for _, s := range history {
		if s.Prediction == "" || s.ActualMovement == "" {
			continue
		}
		ev.Total++
		if s.Prediction == s.ActualMovement {
			ev.Correct++
		}
	}
	if ev.Total > 0 {
		ev.Accuracy = model.Round2(float64(ev.Correct) / float64(ev.Total) * 100)
	}
	return ev
}
