package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateBasics(t *testing.T) {
	d := MustParseDate("2026-01-16")
	require.Equal(t, time.Friday, d.Weekday())
	require.Equal(t, "2026-01-17", d.AddDays(1).String())
	require.True(t, d.Before(d.AddDays(1)))
	require.Equal(t, 3, d.DaysUntil(MustParseDate("2026-01-19")))

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	late := time.Date(2026, 1, 16, 23, 30, 0, 0, ny)
	require.True(t, DateOf(late).Equal(d))
	require.True(t, DateOf(late.UTC()).Equal(d.AddDays(1)))
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2026-01-19", d.String())

	require.NoError(t, d.Scan("2026-01-20T00:00:00Z"))
	require.Equal(t, "2026-01-20", d.String())

	require.NoError(t, d.Scan([]byte("2026-01-21")))
	require.Equal(t, "2026-01-21", d.String())

	require.NoError(t, d.Scan(nil))
	require.True(t, d.IsZero())

	require.Error(t, d.Scan(42))

	v, err := MustParseDate("2026-02-02").Value()
	require.NoError(t, err)
	require.Equal(t, "2026-02-02", v)
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}
	raw, err := json.Marshal(wrapper{D: MustParseDate("2026-03-04")})
	require.NoError(t, err)
	require.JSONEq(t, `{"d":"2026-03-04"}`, string(raw))

	var out wrapper
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "2026-03-04", out.D.String())
}

func TestSnapshotMarketEqual(t *testing.T) {
	a := &Snapshot{Date: MustParseDate("2026-01-16"), Symbol: "NVDA", Close: 180.5, Volume: 10, RSI: Float(55.1)}
	b := a.Clone()
	b.CombinedSentiment = Float(12)
	require.True(t, a.MarketEqual(b), "sentiment is not part of market equality")

	b.Close = 181
	require.False(t, a.MarketEqual(b))

	c := a.Clone()
	c.RSI = nil
	require.False(t, a.MarketEqual(c))
}

func TestCloneIsDeep(t *testing.T) {
	a := &Snapshot{RSI: Float(40)}
	b := a.Clone()
	*b.RSI = 41
	require.InDelta(t, 40, *a.RSI, 1e-9)
}

func TestMovementAndRound(t *testing.T) {
	require.Equal(t, MovementUp, MovementOf(10, 10.01))
	require.Equal(t, MovementDown, MovementOf(10, 10))
	require.InDelta(t, 12.35, Round2(12.345000001), 1e-9)
	require.InDelta(t, -3.13, Round2(-3.125), 1e-9)
}

func TestParseArticleType(t *testing.T) {
	typ, err := ParseArticleType(" Macro ")
	require.NoError(t, err)
	require.Equal(t, ArticleMacro, typ)
	_, err = ParseArticleType("sports")
	require.Error(t, err)
}
