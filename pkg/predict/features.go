package predict

import "dailysignal/internal/model"

// FeatureNames lists the feature vector layout.
var FeatureNames = []string{
	"combined_sentiment",
	"company_sentiment",
	"macro_sentiment",
	"rsi",
	"macd",
	"change_pct",
	"volume_ratio",
}

// Features extracts the feature vector of s. The bool is false when any
// feature is absent.
func Features(s *model.Snapshot) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	fields := []*float64{
		s.CombinedSentiment,
		s.CompanySentiment,
		s.MacroSentiment,
		s.RSI,
		s.MACD,
		s.ChangePct,
		s.VolumeRatio,
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		if f == nil {
			return nil, false
		}
		out[i] = *f
	}
	return out, true
}

// Missing names the absent features of s.
func Missing(s *model.Snapshot) []string {
	if s == nil {
		return append([]string(nil), FeatureNames...)
	}
	fields := []*float64{s.CombinedSentiment, s.CompanySentiment, s.MacroSentiment, s.RSI, s.MACD, s.ChangePct, s.VolumeRatio}
	var out []string
	for i, f := range fields {
		if f == nil {
			out = append(out, FeatureNames[i])
		}
	}
	return out
}

// Label is 1 when the next close is strictly above the close, 0 otherwise.
func Label(s *model.Snapshot) (int, bool) {
	if s == nil || s.NextDayClose == nil {
		return 0, false
	}
	if *s.NextDayClose > s.Close {
		return 1, true
	}
	return 0, true
}
