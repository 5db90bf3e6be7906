package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"dailysignal/internal/model"
)

//go:embed schema.sql
var schemaSQL string

const snapshotColumns = `date, symbol, open_price, high_price, low_price, close_price, volume,
    rsi, macd, macd_signal, moving_avg_50, moving_avg_200, change_pct, volume_ratio,
    company_sentiment, macro_sentiment, combined_sentiment,
    next_day_close, next_day_change_pct, actual_movement, prediction, prediction_confidence,
    created_at, updated_at`

const articleColumns = `id, date, url, source, title, summary, sentiment_score, article_type, source_tier, created_at`

type snapshotRow struct {
	Date                 time.Time       `db:"date"`
	Symbol               string          `db:"symbol"`
	Open                 float64         `db:"open_price"`
	High                 float64         `db:"high_price"`
	Low                  float64         `db:"low_price"`
	Close                float64         `db:"close_price"`
	Volume               int64           `db:"volume"`
	RSI                  sql.NullFloat64 `db:"rsi"`
	MACD                 sql.NullFloat64 `db:"macd"`
	MACDSignal           sql.NullFloat64 `db:"macd_signal"`
	MA50                 sql.NullFloat64 `db:"moving_avg_50"`
	MA200                sql.NullFloat64 `db:"moving_avg_200"`
	ChangePct            sql.NullFloat64 `db:"change_pct"`
	VolumeRatio          sql.NullFloat64 `db:"volume_ratio"`
	CompanySentiment     sql.NullFloat64 `db:"company_sentiment"`
	MacroSentiment       sql.NullFloat64 `db:"macro_sentiment"`
	CombinedSentiment    sql.NullFloat64 `db:"combined_sentiment"`
	NextDayClose         sql.NullFloat64 `db:"next_day_close"`
	NextDayChangePct     sql.NullFloat64 `db:"next_day_change_pct"`
	ActualMovement       sql.NullString  `db:"actual_movement"`
	Prediction           sql.NullString  `db:"prediction"`
	PredictionConfidence sql.NullFloat64 `db:"prediction_confidence"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

func (r *snapshotRow) toModel() *model.Snapshot {
	return &model.Snapshot{
		Date:                 model.DateOf(r.Date),
		Symbol:               r.Symbol,
		Open:                 r.Open,
		High:                 r.High,
		Low:                  r.Low,
		Close:                r.Close,
		Volume:               r.Volume,
		RSI:                  fromNull(r.RSI),
		MACD:                 fromNull(r.MACD),
		MACDSignal:           fromNull(r.MACDSignal),
		MA50:                 fromNull(r.MA50),
		MA200:                fromNull(r.MA200),
		ChangePct:            fromNull(r.ChangePct),
		VolumeRatio:          fromNull(r.VolumeRatio),
		CompanySentiment:     fromNull(r.CompanySentiment),
		MacroSentiment:       fromNull(r.MacroSentiment),
		CombinedSentiment:    fromNull(r.CombinedSentiment),
		NextDayClose:         fromNull(r.NextDayClose),
		NextDayChangePct:     fromNull(r.NextDayChangePct),
		ActualMovement:       model.Movement(r.ActualMovement.String),
		Prediction:           model.Movement(r.Prediction.String),
		PredictionConfidence: fromNull(r.PredictionConfidence),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type articleRow struct {
	ID             int64         `db:"id"`
	Date           time.Time     `db:"date"`
	URL            string        `db:"url"`
	Source         string        `db:"source"`
	Title          string        `db:"title"`
	Summary        string        `db:"summary"`
	SentimentScore sql.NullInt64 `db:"sentiment_score"`
	Type           string        `db:"article_type"`
	SourceTier     int           `db:"source_tier"`
	CreatedAt      time.Time     `db:"created_at"`
}

func (r *articleRow) toModel() model.Article {
	a := model.Article{
		ID:         r.ID,
		Date:       model.DateOf(r.Date),
		URL:        r.URL,
		Source:     r.Source,
		Title:      r.Title,
		Summary:    r.Summary,
		Type:       model.ArticleType(r.Type),
		SourceTier: r.SourceTier,
		CreatedAt:  r.CreatedAt,
	}
	if r.SentimentScore.Valid {
		a.SentimentScore = model.Int(int(r.SentimentScore.Int64))
	}
	return a
}

// PostgresSnapshots implements SnapshotStore over go-zero sqlx.
type PostgresSnapshots struct {
	conn sqlx.SqlConn
}

// PostgresArticles implements ArticleStore over go-zero sqlx.
type PostgresArticles struct {
	conn sqlx.SqlConn
}

// NewPostgres wraps an open connection. The pgx driver must be registered by the caller.
func NewPostgres(conn sqlx.SqlConn) *Bundle {
	return &Bundle{
		Driver:    DriverPostgres,
		Snapshots: &PostgresSnapshots{conn: conn},
		Articles:  &PostgresArticles{conn: conn},
		closer: func() error {
			db, err := conn.RawDB()
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

// EnsureSchema applies schema.sql statement by statement.
func EnsureSchema(ctx context.Context, conn sqlx.SqlConn) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := conn.ExecCtx(ctx, stmt); err != nil {
			return fmt.Errorf("store: apply schema: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			out = append(out, strings.TrimSpace(b.String()))
			b.Reset()
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

func (p *PostgresSnapshots) Get(ctx context.Context, date model.Date) (*model.Snapshot, error) {
	return p.queryOne(ctx, p.conn, date, "SELECT "+snapshotColumns+" FROM daily_data WHERE date = $1", date)
}

func (p *PostgresSnapshots) queryOne(ctx context.Context, q sqlx.Session, date model.Date, query string, args ...any) (*model.Snapshot, error) {
	var row snapshotRow
	if err := q.QueryRowCtx(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return nil, notFound(date)
		}
		return nil, fmt.Errorf("store: query snapshot %s: %w", date, err)
	}
	return row.toModel(), nil
}

const insertSnapshot = `
INSERT INTO daily_data (
    date, symbol, open_price, high_price, low_price, close_price, volume,
    rsi, macd, macd_signal, moving_avg_50, moving_avg_200, change_pct, volume_ratio,
    company_sentiment, macro_sentiment, combined_sentiment, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW()
)`

func snapshotArgs(s *model.Snapshot) []any {
	return []any{
		s.Date, s.Symbol, s.Open, s.High, s.Low, s.Close, s.Volume,
		toNull(s.RSI), toNull(s.MACD), toNull(s.MACDSignal), toNull(s.MA50), toNull(s.MA200),
		toNull(s.ChangePct), toNull(s.VolumeRatio),
		toNull(s.CompanySentiment), toNull(s.MacroSentiment), toNull(s.CombinedSentiment),
	}
}

// InsertIfAbsent relies on the primary key: ON CONFLICT DO NOTHING decides the
// race, and the loser compares against the locked winner row.
func (p *PostgresSnapshots) InsertIfAbsent(ctx context.Context, s *model.Snapshot) (bool, error) {
	inserted := false
	err := p.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		res, err := session.ExecCtx(ctx, insertSnapshot+" ON CONFLICT (date) DO NOTHING", snapshotArgs(s)...)
		if err != nil {
			return fmt.Errorf("store: insert snapshot %s: %w", s.Date, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			inserted = true
			return nil
		}
		existing, err := p.queryOne(ctx, session, s.Date,
			"SELECT "+snapshotColumns+" FROM daily_data WHERE date = $1 FOR UPDATE", s.Date)
		if err != nil {
			return err
		}
		if !existing.MarketEqual(s) {
			return conflictingInsert(s.Date)
		}
		return nil
	})
	if err != nil {
		logx.WithContext(ctx).Errorf("store: insert snapshot date=%s err=%v", s.Date, err)
		return false, err
	}
	return inserted, nil
}

func (p *PostgresSnapshots) UpsertOverwrite(ctx context.Context, s *model.Snapshot) error {
	stmt := insertSnapshot + `
ON CONFLICT (date) DO UPDATE SET
    symbol = EXCLUDED.symbol,
    open_price = EXCLUDED.open_price,
    high_price = EXCLUDED.high_price,
    low_price = EXCLUDED.low_price,
    close_price = EXCLUDED.close_price,
    volume = EXCLUDED.volume,
    rsi = EXCLUDED.rsi,
    macd = EXCLUDED.macd,
    macd_signal = EXCLUDED.macd_signal,
    moving_avg_50 = EXCLUDED.moving_avg_50,
    moving_avg_200 = EXCLUDED.moving_avg_200,
    change_pct = EXCLUDED.change_pct,
    volume_ratio = EXCLUDED.volume_ratio,
    updated_at = NOW()`
	if _, err := p.conn.ExecCtx(ctx, stmt, snapshotArgs(s)...); err != nil {
		return fmt.Errorf("store: overwrite snapshot %s: %w", s.Date, err)
	}
	return nil
}

func (p *PostgresSnapshots) UpdateSentiment(ctx context.Context, date model.Date, sent model.Sentiment) error {
	return p.execOne(ctx, date, `
UPDATE daily_data SET
    company_sentiment = $2,
    macro_sentiment = $3,
    combined_sentiment = $4,
    updated_at = NOW()
WHERE date = $1`, date, toNull(sent.Company), toNull(sent.Macro), toNull(sent.Combined))
}

func (p *PostgresSnapshots) SetNextDay(ctx context.Context, date model.Date, nextClose, changePct float64, actual model.Movement) error {
	res, err := p.conn.ExecCtx(ctx, `
UPDATE daily_data SET
    next_day_close = $2,
    next_day_change_pct = $3,
    actual_movement = $4,
    updated_at = NOW()
WHERE date = $1 AND next_day_close IS NULL`, date, nextClose, changePct, string(actual))
	if err != nil {
		return fmt.Errorf("store: set next day %s: %w", date, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}
	existing, err := p.Get(ctx, date)
	if err != nil {
		return err
	}
	if nextDayMatches(existing, nextClose, changePct, actual) {
		return nil
	}
	return conflictingNextDay(date, *existing.NextDayClose, nextClose)
}

func (p *PostgresSnapshots) SetPrediction(ctx context.Context, date model.Date, label model.Movement, confidence float64) error {
	return p.execOne(ctx, date, `
UPDATE daily_data SET
    prediction = $2,
    prediction_confidence = $3,
    updated_at = NOW()
WHERE date = $1`, date, string(label), confidence)
}

func (p *PostgresSnapshots) execOne(ctx context.Context, date model.Date, stmt string, args ...any) error {
	res, err := p.conn.ExecCtx(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("store: update snapshot %s: %w", date, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(date)
	}
	return nil
}

func (p *PostgresSnapshots) Previous(ctx context.Context, date model.Date) (*model.Snapshot, error) {
	return p.queryOne(ctx, p.conn, date,
		"SELECT "+snapshotColumns+" FROM daily_data WHERE date < $1 ORDER BY date DESC LIMIT 1", date)
}

func (p *PostgresSnapshots) Latest(ctx context.Context) (*model.Snapshot, error) {
	s, err := p.queryOne(ctx, p.conn, model.Date{},
		"SELECT "+snapshotColumns+" FROM daily_data ORDER BY date DESC LIMIT 1")
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	return s, err
}

func (p *PostgresSnapshots) Recent(ctx context.Context, n int) ([]model.Snapshot, error) {
	if n <= 0 {
		n = 1 << 20
	}
	var rows []snapshotRow
	query := "SELECT " + snapshotColumns + " FROM (SELECT * FROM daily_data ORDER BY date DESC LIMIT $1) recent ORDER BY date ASC"
	if err := p.conn.QueryRowsCtx(ctx, &rows, query, n); err != nil {
		return nil, fmt.Errorf("store: recent snapshots: %w", err)
	}
	out := make([]model.Snapshot, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toModel())
	}
	return out, nil
}

func (p *PostgresArticles) Append(ctx context.Context, articles ...model.Article) error {
	if len(articles) == 0 {
		return nil
	}
	stmt := `
INSERT INTO articles (date, url, source, title, summary, sentiment_score, article_type, source_tier, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`
	return p.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, a := range articles {
			score := sql.NullInt64{}
			if a.SentimentScore != nil {
				score = sql.NullInt64{Int64: int64(*a.SentimentScore), Valid: true}
			}
			if _, err := session.ExecCtx(ctx, stmt,
				a.Date, a.URL, a.Source, a.Title, a.Summary, score, string(a.Type), a.SourceTier,
			); err != nil {
				logx.WithContext(ctx).Errorf("store: append article url=%s err=%v", a.URL, err)
				return fmt.Errorf("store: append article: %w", err)
			}
		}
		return nil
	})
}

func (p *PostgresArticles) ExistsURL(ctx context.Context, url string) (bool, error) {
	var exists bool
	if err := p.conn.QueryRowCtx(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM articles WHERE url = $1)", strings.TrimSpace(url)); err != nil {
		return false, fmt.Errorf("store: article exists: %w", err)
	}
	return exists, nil
}

func (p *PostgresArticles) Between(ctx context.Context, from, to model.Date) ([]model.Article, error) {
	var rows []articleRow
	query := "SELECT " + articleColumns + " FROM articles WHERE date >= $1 AND date <= $2 ORDER BY date ASC, id ASC"
	if err := p.conn.QueryRowsCtx(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("store: articles between %s and %s: %w", from, to, err)
	}
	out := make([]model.Article, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (p *PostgresArticles) Earliest(ctx context.Context) (model.Date, error) {
	var raw string
	if err := p.conn.QueryRowCtx(ctx, &raw, "SELECT COALESCE(MIN(date)::text, '') FROM articles"); err != nil {
		return model.Date{}, fmt.Errorf("store: earliest article: %w", err)
	}
	if raw == "" {
		return model.Date{}, nil
	}
	return model.ParseDate(raw)
}

func toNull(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Float(v.Float64)
}
