package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"dailysignal/internal/model"
)

// MemorySnapshots is a mutex-guarded SnapshotStore.
type MemorySnapshots struct {
	mu   sync.Mutex
	rows map[model.Date]*model.Snapshot
	now  func() time.Time
}

// NewMemorySnapshots returns an empty store.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{rows: make(map[model.Date]*model.Snapshot), now: time.Now}
}

// NewMemory returns a Bundle backed by process memory.
func NewMemory() *Bundle {
	return &Bundle{Driver: DriverMemory, Snapshots: NewMemorySnapshots(), Articles: NewMemoryArticles()}
}

func (m *MemorySnapshots) Get(_ context.Context, date model.Date) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[date]
	if !ok {
		return nil, notFound(date)
	}
	return row.Clone(), nil
}

func (m *MemorySnapshots) InsertIfAbsent(_ context.Context, s *model.Snapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[s.Date]; ok {
		if existing.MarketEqual(s) {
			return false, nil
		}
		return false, conflictingInsert(s.Date)
	}
	row := s.Clone()
	row.CreatedAt = m.now().UTC()
	row.UpdatedAt = row.CreatedAt
	m.rows[s.Date] = row
	return true, nil
}

func (m *MemorySnapshots) UpsertOverwrite(_ context.Context, s *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	existing, ok := m.rows[s.Date]
	if !ok {
		row := s.Clone()
		row.CreatedAt, row.UpdatedAt = now, now
		m.rows[s.Date] = row
		return nil
	}
	fresh := s.Clone()
	existing.Symbol = fresh.Symbol
	existing.Open, existing.High, existing.Low, existing.Close, existing.Volume = fresh.Open, fresh.High, fresh.Low, fresh.Close, fresh.Volume
	existing.RSI, existing.MACD, existing.MACDSignal = fresh.RSI, fresh.MACD, fresh.MACDSignal
	existing.MA50, existing.MA200 = fresh.MA50, fresh.MA200
	existing.ChangePct, existing.VolumeRatio = fresh.ChangePct, fresh.VolumeRatio
	existing.UpdatedAt = now
	return nil
}

func (m *MemorySnapshots) UpdateSentiment(_ context.Context, date model.Date, sent model.Sentiment) error {
	return m.mutate(date, func(row *model.Snapshot) error {
		row.CompanySentiment = cloneFloat(sent.Company)
		row.MacroSentiment = cloneFloat(sent.Macro)
		row.CombinedSentiment = cloneFloat(sent.Combined)
		return nil
	})
}

func (m *MemorySnapshots) SetNextDay(_ context.Context, date model.Date, nextClose, changePct float64, actual model.Movement) error {
	return m.mutate(date, func(row *model.Snapshot) error {
		if row.NextDayClose != nil {
			if nextDayMatches(row, nextClose, changePct, actual) {
				return errUnchanged
			}
			return conflictingNextDay(date, *row.NextDayClose, nextClose)
		}
		row.NextDayClose = model.Float(nextClose)
		row.NextDayChangePct = model.Float(changePct)
		row.ActualMovement = actual
		return nil
	})
}

func (m *MemorySnapshots) SetPrediction(_ context.Context, date model.Date, label model.Movement, confidence float64) error {
	return m.mutate(date, func(row *model.Snapshot) error {
		row.Prediction = label
		row.PredictionConfidence = model.Float(confidence)
		return nil
	})
}

func (m *MemorySnapshots) mutate(date model.Date, fn func(*model.Snapshot) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[date]
	if !ok {
		return notFound(date)
	}
	if err := fn(row); err != nil {
		if err == errUnchanged {
			return nil
		}
		return err
	}
	row.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemorySnapshots) Previous(_ context.Context, date model.Date) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Snapshot
	for d, row := range m.rows {
		if d.Before(date) && (best == nil || d.After(best.Date)) {
			best = row
		}
	}
	if best == nil {
		return nil, notFound(date)
	}
	return best.Clone(), nil
}

func (m *MemorySnapshots) Latest(_ context.Context) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Snapshot
	for d, row := range m.rows {
		if best == nil || d.After(best.Date) {
			best = row
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best.Clone(), nil
}

func (m *MemorySnapshots) Recent(_ context.Context, n int) ([]model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Snapshot, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, *row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

// Len returns the number of rows.
func (m *MemorySnapshots) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// MemoryArticles is a mutex-guarded ArticleStore.
type MemoryArticles struct {
	mu     sync.Mutex
	rows   []model.Article
	nextID int64
	now    func() time.Time
}

// NewMemoryArticles returns an empty store.
func NewMemoryArticles() *MemoryArticles {
	return &MemoryArticles{nextID: 1, now: time.Now}
}

func (m *MemoryArticles) Append(_ context.Context, articles ...model.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range articles {
		a.ID = m.nextID
		m.nextID++
		a.URL = strings.TrimSpace(a.URL)
		if a.CreatedAt.IsZero() {
			a.CreatedAt = m.now().UTC()
		}
		a.SentimentScore = cloneInt(a.SentimentScore)
		m.rows = append(m.rows, a)
	}
	return nil
}

func (m *MemoryArticles) ExistsURL(_ context.Context, url string) (bool, error) {
	url = strings.TrimSpace(url)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryArticles) Between(_ context.Context, from, to model.Date) ([]model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Article
	for _, a := range m.rows {
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		a.SentimentScore = cloneInt(a.SentimentScore)
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryArticles) Earliest(_ context.Context) (model.Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest model.Date
	for _, a := range m.rows {
		if oldest.IsZero() || a.Date.Before(oldest) {
			oldest = a.Date
		}
	}
	return oldest, nil
}

// Len returns the number of stored articles.
func (m *MemoryArticles) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
