// Package workflow runs the daily pipeline for one target date:
// RESOLVE, MARKET, NEWS, SENTIMENT, PREDICT and REPORT, in that order.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"dailysignal/internal/lock"
	"dailysignal/internal/model"
	"dailysignal/internal/store"
	"dailysignal/pkg/calendar"
	"dailysignal/pkg/faults"
	"dailysignal/pkg/market"
	"dailysignal/pkg/predict"
	"dailysignal/pkg/sentiment"
)

// NewsSource collects the articles published about one date.
type NewsSource interface {
	Collect(ctx context.Context, kind model.ArticleType, date model.Date) ([]model.Article, error)
}

// Predictor is the prediction gate.
type Predictor interface {
	MaybePredict(ctx context.Context, effective model.Date, history []model.Snapshot) (predict.Result, error)
}

// Journal records finished reports.
type Journal interface {
	Write(date model.Date, rec any) (string, error)
}

// Metrics receives per-run measurements.
type Metrics interface {
	RecordStep(step, status string, d time.Duration)
	RecordArticles(kind string, n int)
	RecordClose(price float64)
	RecordSentiment(component string, value float64)
	RecordRun(succeeded bool)
	Push(ctx context.Context) error
}

// Deps are the collaborators of an Orchestrator. Journal, Metrics and Locker
// are optional.
type Deps struct {
	Resolver  *calendar.Resolver
	Market    market.Provider
	News      NewsSource
	Scorer    sentiment.Scorer
	Gate      Predictor
	Snapshots store.SnapshotStore
	Articles  store.ArticleStore
	Journal   Journal
	Metrics   Metrics
	Locker    lock.Locker
}

// Options tune a run.
type Options struct {
	Symbol         string
	Weights        sentiment.Weights
	HistoryWindow  int
	MarketLookback int
	Indicators     market.IndicatorConfig
	DryRun         bool
	PromptDigest   string
}

// Orchestrator executes the daily state machine. It keeps no state between
// runs; everything durable lives in the stores.
type Orchestrator struct {
	deps  Deps
	opts  Options
	nowFn func() time.Time
}

// New validates deps and fills option defaults.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	var missing []string
	if deps.Resolver == nil {
		missing = append(missing, "resolver")
	}
	if deps.Market == nil {
		missing = append(missing, "market provider")
	}
	if deps.News == nil {
		missing = append(missing, "news source")
	}
	if deps.Scorer == nil {
		missing = append(missing, "scorer")
	}
	if deps.Gate == nil {
		missing = append(missing, "prediction gate")
	}
	if deps.Snapshots == nil {
		missing = append(missing, "snapshot store")
	}
	if deps.Articles == nil {
		missing = append(missing, "article store")
	}
	if len(missing) > 0 {
		return nil, faults.Wrap(faults.KindConfiguration, "workflow: missing %s", strings.Join(missing, ", "))
	}
	if deps.Locker == nil {
		deps.Locker = lock.Nop{}
	}

	if opts.Symbol == "" {
		return nil, faults.Wrap(faults.KindConfiguration, "workflow: symbol is required")
	}
	if opts.Weights == (sentiment.Weights{}) {
		opts.Weights = sentiment.DefaultWeights()
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 250
	}
	if opts.MarketLookback <= 0 {
		opts.MarketLookback = 300
	}
	if opts.Indicators == (market.IndicatorConfig{}) {
		opts.Indicators = market.DefaultIndicators()
	}
	return &Orchestrator{deps: deps, opts: opts, nowFn: time.Now}, nil
}

// Run executes every step for target. Step failures are captured on the
// report; the returned error is non-nil only when the run was aborted by a
// configuration error or a concurrent run holding the date.
func (o *Orchestrator) Run(ctx context.Context, target model.Date) (*RunReport, error) {
	rep := &RunReport{
		Symbol:       o.opts.Symbol,
		Target:       target,
		DryRun:       o.opts.DryRun,
		StartedAt:    o.nowFn(),
		PromptDigest: o.opts.PromptDigest,
	}

	handle, err := o.deps.Locker.Lock(ctx, target)
	if err != nil {
		rep.Aborted = true
		rep.Error = err.Error()
		rep.FinishedAt = o.nowFn()
		logx.WithContext(ctx).Errorf("[workflow] [FAIL] %s: %v", target, err)
		return rep, err
	}
	defer func() {
		if err := handle.Unlock(context.WithoutCancel(ctx)); err != nil {
			logx.WithContext(ctx).Errorf("[workflow] release run lock for %s: %v", target, err)
		}
	}()

	steps := []struct {
		name Step
		fn   stepFunc
	}{
		{StepResolve, o.resolve},
		{StepMarket, o.market},
		{StepNews, o.news},
		{StepSentiment, o.sentiment},
		{StepPredict, o.predict},
	}
	for _, s := range steps {
		if err := o.step(ctx, rep, s.name, s.fn); err != nil {
			rep.Aborted = true
			rep.Error = err.Error()
			o.report(ctx, rep)
			return rep, err
		}
	}
	o.report(ctx, rep)
	return rep, nil
}

type stepFunc func(ctx context.Context, rep *RunReport) (Status, string, error)

// step runs fn and records its entry. It returns an error only when the run
// must stop.
func (o *Orchestrator) step(ctx context.Context, rep *RunReport, name Step, fn stepFunc) error {
	start := o.nowFn()
	status, detail, err := fn(ctx, rep)
	elapsed := o.nowFn().Sub(start)
	if err != nil && status == StatusOK {
		status = StatusFailed
	}

	res := StepResult{Name: name, Status: status, Detail: detail, DurationMS: elapsed.Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	rep.Steps = append(rep.Steps, res)
	logStep(ctx, res, err)

	if err != nil && (faults.Fatal(err) || name == StepResolve) {
		return err
	}
	return nil
}

func logStep(ctx context.Context, res StepResult, err error) {
	logger := logx.WithContext(ctx)
	tag := strings.ToLower(string(res.Name))
	switch {
	case err != nil && res.Status == StatusFailed:
		logger.Errorf("[workflow.%s] [%s] %s: %v, took %dms", tag, res.Status.tag(), res.Detail, err, res.DurationMS)
	case err != nil:
		logger.Infof("[workflow.%s] [%s] %s: %v, took %dms", tag, res.Status.tag(), res.Detail, err, res.DurationMS)
	default:
		logger.Infof("[workflow.%s] [%s] %s, took %dms", tag, res.Status.tag(), res.Detail, res.DurationMS)
	}
}

// statusOf maps an error onto a step status: data gaps degrade, everything
// else fails.
func statusOf(err error) Status {
	if faults.KindOf(err) == faults.KindDataIncomplete {
		return StatusDegraded
	}
	return StatusFailed
}

func (o *Orchestrator) resolve(_ context.Context, rep *RunReport) (Status, string, error) {
	trading, effective, err := o.deps.Resolver.Resolve(rep.Target)
	if err != nil {
		return StatusFailed, "resolve " + rep.Target.String(), err
	}
	rep.IsTradingDay = trading
	rep.Effective = effective
	if trading {
		return StatusOK, fmt.Sprintf("%s is a trading day", rep.Target), nil
	}
	return StatusOK, fmt.Sprintf("%s is not a trading day, effective %s", rep.Target, effective), nil
}

func (o *Orchestrator) market(ctx context.Context, rep *RunReport) (Status, string, error) {
	if !rep.IsTradingDay {
		return StatusSkipped, fmt.Sprintf("no session on %s", rep.Target), nil
	}
	series, err := o.deps.Market.DailyBars(ctx, o.opts.Symbol, o.opts.MarketLookback)
	if err != nil {
		return statusOf(err), "fetch " + o.opts.Symbol, err
	}
	// Bars after the target belong to later runs.
	series = series.Until(rep.Target)
	latest := series.LatestDate()
	if latest.IsZero() {
		return StatusDegraded, "fetch " + o.opts.Symbol,
			faults.Wrap(faults.KindDataIncomplete, "workflow: no bars on or before %s", rep.Target)
	}
	rep.MarketDate = latest

	existing, err := o.deps.Snapshots.Get(ctx, latest)
	switch {
	case err == nil:
		detail := fmt.Sprintf("snapshot for %s exists", latest)
		if err := o.backfill(ctx, existing); err != nil {
			return statusOf(err), detail, err
		}
		return StatusSkipped, detail, nil
	case !errors.Is(err, store.ErrNotFound):
		return StatusFailed, "load snapshot " + latest.String(), err
	}

	rec, recErr := market.BuildRecord(series, o.opts.Indicators)
	if rec == nil {
		return statusOf(recErr), "build record for " + latest.String(), recErr
	}
	snap := rec.Snapshot()
	snap.Symbol = o.opts.Symbol
	inserted, err := o.deps.Snapshots.InsertIfAbsent(ctx, snap)
	if err != nil {
		return StatusFailed, "insert snapshot " + latest.String(), err
	}
	if !inserted {
		return StatusSkipped, fmt.Sprintf("snapshot for %s already written", latest), nil
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordClose(snap.Close)
	}

	detail := fmt.Sprintf("%s close=%.2f volume=%d", latest, snap.Close, snap.Volume)
	if err := o.backfill(ctx, snap); err != nil {
		return statusOf(err), detail, err
	}
	if recErr != nil {
		return StatusDegraded, detail, recErr
	}
	return StatusOK, detail, nil
}

// backfill stores snap's close as the next-day outcome of the snapshot
// before it, once.
func (o *Orchestrator) backfill(ctx context.Context, snap *model.Snapshot) error {
	prev, err := o.deps.Snapshots.Previous(ctx, snap.Date)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if prev.HasNextDay() || prev.Close == 0 {
		return nil
	}
	pct := model.Round2((snap.Close - prev.Close) / prev.Close * 100)
	return o.deps.Snapshots.SetNextDay(ctx, prev.Date, snap.Close, pct, model.MovementOf(prev.Close, snap.Close))
}

func (o *Orchestrator) news(ctx context.Context, rep *RunReport) (Status, string, error) {
	var (
		failed int
		errs   []error
		seen   = make(map[string]struct{})
	)
	for _, kind := range model.ArticleTypes {
		stored, err := o.collect(ctx, rep, kind, seen)
		if err != nil {
			if faults.Fatal(err) {
				return StatusFailed, "collect " + string(kind), err
			}
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
		rep.Articles.add(kind, stored)
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordArticles(string(kind), stored)
		}
	}

	c := rep.Articles
	detail := fmt.Sprintf("company=%d macro=%d duplicates=%d unscored=%d", c.Company, c.Macro, c.Duplicates, c.Unscored)
	err := errors.Join(errs...)
	switch {
	case failed == len(model.ArticleTypes):
		return StatusFailed, detail, err
	case failed > 0:
		return StatusDegraded, detail, err
	case c.Unscored > 0:
		return StatusDegraded, detail, nil
	default:
		return StatusOK, detail, nil
	}
}

// collect fetches, de-duplicates and scores one article type for the target
// date, appending only scored articles so unscored ones are retried later.
func (o *Orchestrator) collect(ctx context.Context, rep *RunReport, kind model.ArticleType, seen map[string]struct{}) (int, error) {
	articles, err := o.deps.News.Collect(ctx, kind, rep.Target)
	if err != nil {
		return 0, err
	}

	keep := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if _, dup := seen[a.URL]; dup {
			rep.Articles.Duplicates++
			continue
		}
		seen[a.URL] = struct{}{}

		exists, err := o.deps.Articles.ExistsURL(ctx, a.URL)
		if err != nil {
			return 0, err
		}
		if exists {
			rep.Articles.Duplicates++
			continue
		}

		score, err := o.deps.Scorer.Score(ctx, a)
		if err != nil {
			if faults.Fatal(err) {
				return 0, err
			}
			rep.Articles.Unscored++
			logx.WithContext(ctx).Errorf("[workflow.news] score %s: %v", a.URL, err)
			continue
		}
		a.SentimentScore = model.Int(score)
		a.Date = rep.Target
		a.Type = kind
		keep = append(keep, a)
	}
	if len(keep) == 0 {
		return 0, nil
	}
	if err := o.deps.Articles.Append(ctx, keep...); err != nil {
		return 0, err
	}
	return len(keep), nil
}

func (o *Orchestrator) sentiment(ctx context.Context, rep *RunReport) (Status, string, error) {
	eff := rep.Effective
	if _, err := o.deps.Snapshots.Get(ctx, eff); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return StatusDegraded, fmt.Sprintf("no snapshot for %s", eff),
				faults.Wrap(faults.KindDataIncomplete, "workflow: no snapshot for effective date %s", eff)
		}
		return StatusFailed, "load snapshot " + eff.String(), err
	}
	latest, err := o.deps.Snapshots.Latest(ctx)
	if err != nil {
		return StatusFailed, "load latest snapshot", err
	}
	if latest.Date.After(eff) {
		return StatusSkipped, fmt.Sprintf("%s frozen by snapshot %s", eff, latest.Date), nil
	}

	span, err := sentiment.Window(o.deps.Resolver, eff, rep.Target)
	if err != nil {
		return StatusFailed, "attribution window", err
	}
	if span, err = o.orphanedSpan(ctx, eff, span); err != nil {
		return StatusFailed, "orphaned articles", err
	}
	articles, err := o.deps.Articles.Between(ctx, span.From, span.To)
	if err != nil {
		return StatusFailed, fmt.Sprintf("load articles %s..%s", span.From, span.To), err
	}
	sent, counts := sentiment.Aggregate(articles, o.opts.Weights)
	if sent.Empty() {
		return StatusSkipped, fmt.Sprintf("no scored articles %s..%s", span.From, span.To), nil
	}
	if err := o.deps.Snapshots.UpdateSentiment(ctx, eff, sent); err != nil {
		return StatusFailed, "update sentiment " + eff.String(), err
	}
	rep.Sentiment = sent
	o.recordSentiment(sent)

	return StatusOK, fmt.Sprintf("%s combined=%s company=%s macro=%s from %d articles %s..%s",
		eff, optional(sent.Combined), optional(sent.Company), optional(sent.Macro),
		counts.Total(), span.From, span.To), nil
}

// orphanedSpan widens span back to the oldest stored article when eff is the
// first snapshot, so articles collected before any snapshot existed still count.
func (o *Orchestrator) orphanedSpan(ctx context.Context, eff model.Date, span sentiment.Span) (sentiment.Span, error) {
	_, err := o.deps.Snapshots.Previous(ctx, eff)
	switch {
	case err == nil:
		return span, nil
	case !errors.Is(err, store.ErrNotFound):
		return span, err
	}
	oldest, err := o.deps.Articles.Earliest(ctx)
	if err != nil {
		return span, err
	}
	if !oldest.IsZero() && oldest.Before(span.From) {
		logx.WithContext(ctx).Infof("[workflow.sentiment] first snapshot %s, folding in articles since %s", eff, oldest)
		span.From = oldest
	}
	return span, nil
}

func (o *Orchestrator) recordSentiment(sent model.Sentiment) {
	if o.deps.Metrics == nil {
		return
	}
	for component, v := range map[string]*float64{
		"company":  sent.Company,
		"macro":    sent.Macro,
		"combined": sent.Combined,
	} {
		if v != nil {
			o.deps.Metrics.RecordSentiment(component, *v)
		}
	}
}

func (o *Orchestrator) predict(ctx context.Context, rep *RunReport) (Status, string, error) {
	history, err := o.deps.Snapshots.Recent(ctx, o.opts.HistoryWindow)
	if err != nil {
		return StatusFailed, "load history", err
	}
	rep.Evaluation = predict.Evaluate(history)

	res, err := o.deps.Gate.MaybePredict(ctx, rep.Effective, history)
	if err != nil {
		return StatusFailed, "predict " + rep.Effective.String(), err
	}
	rep.Prediction = &PredictionSummary{
		Outcome:      res.Outcome,
		Label:        res.Label,
		Confidence:   res.Confidence,
		TrainingRows: res.TrainingRows,
		Importances:  res.Importances,
		Missing:      res.Missing,
	}
	if res.Outcome != predict.OutcomePredicted {
		return StatusSkipped, res.Detail(), nil
	}
	if err := o.deps.Snapshots.SetPrediction(ctx, rep.Effective, res.Label, res.Confidence); err != nil {
		return StatusFailed, res.Detail(), err
	}
	return StatusOK, res.Detail(), nil
}

// report finalises rep. Journal and metrics problems only degrade the
// REPORT entry. A dry run neither pushes metrics nor writes the journal.
func (o *Orchestrator) report(ctx context.Context, rep *RunReport) {
	start := o.nowFn()
	rep.FinishedAt = start
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if m := o.deps.Metrics; m != nil {
		for _, s := range rep.Steps {
			m.RecordStep(string(s.Name), string(s.Status), time.Duration(s.DurationMS)*time.Millisecond)
		}
		m.RecordRun(rep.Succeeded())
		if !rep.DryRun {
			if err := m.Push(ctx); err != nil {
				errs = append(errs, fmt.Errorf("push metrics: %w", err))
			}
		}
	}
	if o.deps.Journal != nil && !rep.DryRun {
		path, err := o.deps.Journal.Write(rep.Target, rep)
		if err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
		rep.JournalPath = path
	}

	res := StepResult{Name: StepReport, Status: StatusOK, DurationMS: o.nowFn().Sub(start).Milliseconds()}
	res.Detail = fmt.Sprintf("%d steps, succeeded=%t", len(rep.Steps), rep.Succeeded())
	err := errors.Join(errs...)
	if err != nil {
		res.Status = StatusDegraded
		res.Error = err.Error()
	}
	rep.Steps = append(rep.Steps, res)
	logStep(ctx, res, err)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
