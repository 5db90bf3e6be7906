package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"dailysignal/internal/model"
)

type sqliteSnapshot struct {
	Date                 string `gorm:"primaryKey;size:10"`
	Symbol               string `gorm:"not null"`
	OpenPrice            float64
	HighPrice            float64
	LowPrice             float64
	ClosePrice           float64
	Volume               int64
	RSI                  *float64 `gorm:"column:rsi"`
	MACD                 *float64 `gorm:"column:macd"`
	MACDSignal           *float64 `gorm:"column:macd_signal"`
	MovingAvg50          *float64 `gorm:"column:moving_avg_50"`
	MovingAvg200         *float64 `gorm:"column:moving_avg_200"`
	ChangePct            *float64
	VolumeRatio          *float64
	CompanySentiment     *float64
	MacroSentiment       *float64
	CombinedSentiment    *float64
	NextDayClose         *float64
	NextDayChangePct     *float64
	ActualMovement       string
	Prediction           string
	PredictionConfidence *float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (sqliteSnapshot) TableName() string { return "daily_data" }

func newSQLiteSnapshot(s *model.Snapshot) *sqliteSnapshot {
	return &sqliteSnapshot{
		Date:              s.Date.String(),
		Symbol:            s.Symbol,
		OpenPrice:         s.Open,
		HighPrice:         s.High,
		LowPrice:          s.Low,
		ClosePrice:        s.Close,
		Volume:            s.Volume,
		RSI:               s.RSI,
		MACD:              s.MACD,
		MACDSignal:        s.MACDSignal,
		MovingAvg50:       s.MA50,
		MovingAvg200:      s.MA200,
		ChangePct:         s.ChangePct,
		VolumeRatio:       s.VolumeRatio,
		CompanySentiment:  s.CompanySentiment,
		MacroSentiment:    s.MacroSentiment,
		CombinedSentiment: s.CombinedSentiment,
	}
}

func (r *sqliteSnapshot) toModel() (*model.Snapshot, error) {
	d, err := model.ParseDate(r.Date)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite row: %w", err)
	}
	return &model.Snapshot{
		Date:                 d,
		Symbol:               r.Symbol,
		Open:                 r.OpenPrice,
		High:                 r.HighPrice,
		Low:                  r.LowPrice,
		Close:                r.ClosePrice,
		Volume:               r.Volume,
		RSI:                  r.RSI,
		MACD:                 r.MACD,
		MACDSignal:           r.MACDSignal,
		MA50:                 r.MovingAvg50,
		MA200:                r.MovingAvg200,
		ChangePct:            r.ChangePct,
		VolumeRatio:          r.VolumeRatio,
		CompanySentiment:     r.CompanySentiment,
		MacroSentiment:       r.MacroSentiment,
		CombinedSentiment:    r.CombinedSentiment,
		NextDayClose:         r.NextDayClose,
		NextDayChangePct:     r.NextDayChangePct,
		ActualMovement:       model.Movement(r.ActualMovement),
		Prediction:           model.Movement(r.Prediction),
		PredictionConfidence: r.PredictionConfidence,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}, nil
}

type sqliteArticle struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Date           string `gorm:"index:idx_articles_date;size:10;not null"`
	URL            string `gorm:"column:url;index;not null"`
	Source         string
	Title          string
	Summary        string
	SentimentScore *int
	ArticleType    string `gorm:"not null"`
	SourceTier     int
	CreatedAt      time.Time
}

func (sqliteArticle) TableName() string { return "articles" }

// SQLiteSnapshots implements SnapshotStore with gorm.
type SQLiteSnapshots struct {
	db *gorm.DB
}

// SQLiteArticles implements ArticleStore with gorm.
type SQLiteArticles struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) a database file and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*Bundle, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(logxWriter{}, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		// one writer keeps same-date upserts serialized
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&sqliteSnapshot{}, &sqliteArticle{}); err != nil {
		return nil, fmt.Errorf("store: migrate sqlite: %w", err)
	}
	return &Bundle{
		Driver:    DriverSQLite,
		Snapshots: &SQLiteSnapshots{db: db},
		Articles:  &SQLiteArticles{db: db},
		closer: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}, nil
}

type logxWriter struct{}

func (logxWriter) Printf(format string, args ...any) {
	logx.Infof("gorm: "+strings.TrimSpace(format), args...)
}

func (s *SQLiteSnapshots) Get(ctx context.Context, date model.Date) (*model.Snapshot, error) {
	return s.first(s.db.WithContext(ctx).Where("date = ?", date.String()), date)
}

func (s *SQLiteSnapshots) first(q *gorm.DB, date model.Date) (*model.Snapshot, error) {
	var row sqliteSnapshot
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(date)
		}
		return nil, fmt.Errorf("store: query snapshot %s: %w", date, err)
	}
	return row.toModel()
}

func (s *SQLiteSnapshots) InsertIfAbsent(ctx context.Context, snap *model.Snapshot) (bool, error) {
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(newSQLiteSnapshot(snap))
		if res.Error != nil {
			return fmt.Errorf("store: insert snapshot %s: %w", snap.Date, res.Error)
		}
		if res.RowsAffected == 1 {
			inserted = true
			return nil
		}
		existing, err := s.first(tx.Where("date = ?", snap.Date.String()), snap.Date)
		if err != nil {
			return err
		}
		if !existing.MarketEqual(snap) {
			return conflictingInsert(snap.Date)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *SQLiteSnapshots) UpsertOverwrite(ctx context.Context, snap *model.Snapshot) error {
	row := newSQLiteSnapshot(snap)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"symbol", "open_price", "high_price", "low_price", "close_price", "volume",
			"rsi", "macd", "macd_signal", "moving_avg_50", "moving_avg_200",
			"change_pct", "volume_ratio", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("store: overwrite snapshot %s: %w", snap.Date, err)
	}
	return nil
}

func (s *SQLiteSnapshots) UpdateSentiment(ctx context.Context, date model.Date, sent model.Sentiment) error {
	return s.updateOne(ctx, date, map[string]any{
		"company_sentiment":  sent.Company,
		"macro_sentiment":    sent.Macro,
		"combined_sentiment": sent.Combined,
	})
}

func (s *SQLiteSnapshots) SetNextDay(ctx context.Context, date model.Date, nextClose, changePct float64, actual model.Movement) error {
	res := s.db.WithContext(ctx).Model(&sqliteSnapshot{}).
		Where("date = ? AND next_day_close IS NULL", date.String()).
		Updates(map[string]any{
			"next_day_close":      nextClose,
			"next_day_change_pct": changePct,
			"actual_movement":     string(actual),
		})
	if res.Error != nil {
		return fmt.Errorf("store: set next day %s: %w", date, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	existing, err := s.Get(ctx, date)
	if err != nil {
		return err
	}
	if nextDayMatches(existing, nextClose, changePct, actual) {
		return nil
	}
	return conflictingNextDay(date, *existing.NextDayClose, nextClose)
}

func (s *SQLiteSnapshots) SetPrediction(ctx context.Context, date model.Date, label model.Movement, confidence float64) error {
	return s.updateOne(ctx, date, map[string]any{
		"prediction":            string(label),
		"prediction_confidence": confidence,
	})
}

func (s *SQLiteSnapshots) updateOne(ctx context.Context, date model.Date, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&sqliteSnapshot{}).Where("date = ?", date.String()).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("store: update snapshot %s: %w", date, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(date)
	}
	return nil
}

func (s *SQLiteSnapshots) Previous(ctx context.Context, date model.Date) (*model.Snapshot, error) {
	return s.first(s.db.WithContext(ctx).Where("date < ?", date.String()).Order("date DESC"), date)
}

func (s *SQLiteSnapshots) Latest(ctx context.Context) (*model.Snapshot, error) {
	snap, err := s.first(s.db.WithContext(ctx).Order("date DESC"), model.Date{})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	return snap, err
}

func (s *SQLiteSnapshots) Recent(ctx context.Context, n int) ([]model.Snapshot, error) {
	q := s.db.WithContext(ctx).Order("date DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	var rows []sqliteSnapshot
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: recent snapshots: %w", err)
	}
	out := make([]model.Snapshot, len(rows))
	for i := range rows {
		snap, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out[len(rows)-1-i] = *snap
	}
	return out, nil
}

func (a *SQLiteArticles) Append(ctx context.Context, articles ...model.Article) error {
	if len(articles) == 0 {
		return nil
	}
	rows := make([]sqliteArticle, 0, len(articles))
	for _, art := range articles {
		rows = append(rows, sqliteArticle{
			Date:           art.Date.String(),
			URL:            strings.TrimSpace(art.URL),
			Source:         art.Source,
			Title:          art.Title,
			Summary:        art.Summary,
			SentimentScore: art.SentimentScore,
			ArticleType:    string(art.Type),
			SourceTier:     art.SourceTier,
		})
	}
	if err := a.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("store: append articles: %w", err)
	}
	return nil
}

func (a *SQLiteArticles) ExistsURL(ctx context.Context, url string) (bool, error) {
	var count int64
	if err := a.db.WithContext(ctx).Model(&sqliteArticle{}).Where("url = ?", strings.TrimSpace(url)).Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: article exists: %w", err)
	}
	return count > 0, nil
}

func (a *SQLiteArticles) Between(ctx context.Context, from, to model.Date) ([]model.Article, error) {
	var rows []sqliteArticle
	err := a.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from.String(), to.String()).
		Order("date ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: articles between %s and %s: %w", from, to, err)
	}
	out := make([]model.Article, 0, len(rows))
	for _, r := range rows {
		d, err := model.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("store: sqlite article %d: %w", r.ID, err)
		}
		out = append(out, model.Article{
			ID:             r.ID,
			Date:           d,
			URL:            r.URL,
			Source:         r.Source,
			Title:          r.Title,
			Summary:        r.Summary,
			SentimentScore: r.SentimentScore,
			Type:           model.ArticleType(r.ArticleType),
			SourceTier:     r.SourceTier,
			CreatedAt:      r.CreatedAt,
		})
	}
	return out, nil
}

func (a *SQLiteArticles) Earliest(ctx context.Context) (model.Date, error) {
	var raw sql.NullString
	row := a.db.WithContext(ctx).Model(&sqliteArticle{}).Select("MIN(date)").Row()
	if err := row.Scan(&raw); err != nil {
		return model.Date{}, fmt.Errorf("store: earliest article: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return model.Date{}, nil
	}
	return model.ParseDate(raw.String)
}
