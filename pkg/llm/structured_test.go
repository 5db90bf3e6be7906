package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	t.Run("nil value", func(t *testing.T) {
		_, err := GenerateSchema(nil)
		require.ErrorContains(t, err, "cannot be nil")
	})

	t.Run("non-struct type", func(t *testing.T) {
		_, err := GenerateSchema("string")
		require.ErrorContains(t, err, "must be a struct")
	})

	t.Run("pointer to non-struct", func(t *testing.T) {
		val := 42
		_, err := GenerateSchema(&val)
		require.ErrorContains(t, err, "must be a struct")
	})

	t.Run("strict object", func(t *testing.T) {
		type Verdict struct {
			Score      int     `json:"score" description:"integer sentiment from -100 to 100"`
			Confidence float64 `json:"confidence"`
			Reasoning  string  `json:"reasoning,omitempty"`
			internal   string
			Skipped    string `json:"-"`
		}
		schema, err := GenerateSchema(&Verdict{})
		require.NoError(t, err)

		require.Equal(t, "object", schema["type"])
		require.Equal(t, false, schema["additionalProperties"])
		props := schema["properties"].(map[string]any)
		require.Len(t, props, 3)
		require.Equal(t, "integer", props["score"].(map[string]any)["type"])
		require.Equal(t, "integer sentiment from -100 to 100", props["score"].(map[string]any)["description"])
		require.Equal(t, "number", props["confidence"].(map[string]any)["type"])
		require.Equal(t, []string{"string", "null"}, props["reasoning"].(map[string]any)["type"])
		require.ElementsMatch(t, []string{"score", "confidence", "reasoning"}, schema["required"])
	})

	t.Run("nested values", func(t *testing.T) {
		type Inner struct {
			Label string `json:"label"`
		}
		type Outer struct {
			Tags  []string `json:"tags"`
			Inner Inner    `json:"inner"`
			Flag  *bool    `json:"flag"`
		}
		schema, err := GenerateSchema(Outer{})
		require.NoError(t, err)
		props := schema["properties"].(map[string]any)
		tags := props["tags"].(map[string]any)
		require.Equal(t, "array", tags["type"])
		require.Equal(t, "string", tags["items"].(map[string]any)["type"])
		inner := props["inner"].(map[string]any)
		require.Equal(t, false, inner["additionalProperties"])
		require.Equal(t, "boolean", props["flag"].(map[string]any)["type"])
	})
}

func TestParseStructured(t *testing.T) {
	type payload struct {
		Score int `json:"score"`
	}
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "plain", input: `{"score": 12}`, want: 12},
		{name: "fenced", input: "```json\n{\"score\": -7}\n```", want: -7},
		{name: "bare fence", input: "```\n{\"score\": 3}\n```", want: 3},
		{name: "garbage", input: "not json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out payload
			err := ParseStructured(tt.input, &out)
			if tt.wantErr {
				require.ErrorContains(t, err, "decode structured response")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, out.Score)
		})
	}

	require.Error(t, ParseStructured(`{}`, nil))
	require.Error(t, ParseStructured(`{}`, payload{}))
}
