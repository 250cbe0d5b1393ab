package jobs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
	logx "seojobs/pkg/logx"
)

type RankingConfig struct {
	BatchLimit int           // default 100
	ItemDelay  time.Duration // default 1.5s; negative disables
	// SignificantChange is the |rankChange| logged as significant (default 5).
	SignificantChange int
	// AlertChange is the |rankChange| forwarded to the alert sink (default 10).
	AlertChange int
}

func (c RankingConfig) withDefaults() RankingConfig {
	if c.BatchLimit <= 0 {
		c.BatchLimit = 100
	}
	if c.ItemDelay < 0 {
		c.ItemDelay = 0
	} else if c.ItemDelay == 0 {
		c.ItemDelay = 1500 * time.Millisecond
	}
	if c.SignificantChange <= 0 {
		c.SignificantChange = 5
	}
	if c.AlertChange <= 0 {
		c.AlertChange = 10
	}
	return c
}

// RankingSummary is the details payload of one tracking run.
type RankingSummary struct {
	KeywordsProcessed  int  `json:"keywordsProcessed"`
	Successful         int  `json:"successful"`
	Failed             int  `json:"failed"`
	Improved           int  `json:"improved"`
	Declined           int  `json:"declined"`
	SignificantChanges int  `json:"significantChanges"`
	Alerts             int  `json:"alerts"`
	PriorityOnly       bool `json:"priorityOnly"`

	Results []RankResult `json:"-"`
}

type RankResult struct {
	KeywordID    int64
	Keyword      string
	CompanyName  string
	Location     string
	PreviousRank int
	CurrentRank  int
	RankChange   int
	Status       string
	Error        string
}

// RankingTracker refreshes keyword positions. Execute and ExecuteHighPriority
// have separate guards, so a full run and a priority run may overlap.
type RankingTracker struct {
	store  RankingStore
	ranks  RankChecker
	alerts AlertSink
	cfg    RankingConfig
	log    logx.Logger
	now    func() time.Time

	full     guard
	priority guard
}

// NewRankingTracker builds a tracker. alerts may be nil.
func NewRankingTracker(store RankingStore, ranks RankChecker, alerts AlertSink, cfg RankingConfig, log logx.Logger) *RankingTracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &RankingTracker{
		store:  store,
		ranks:  ranks,
		alerts: alerts,
		cfg:    cfg.withDefaults(),
		log:    log,
		now:    time.Now,
	}
}

func (t *RankingTracker) Run(ctx context.Context) (any, error) {
	return summaryOrNil(t.Execute(ctx))
}

func (t *RankingTracker) RunHighPriority(ctx context.Context) (any, error) {
	return summaryOrNil(t.ExecuteHighPriority(ctx))
}

func summaryOrNil(sum *RankingSummary) (any, error) {
	if sum == nil {
		return nil, nil
	}
	return sum, nil
}

// Execute tracks every eligible keyword.
func (t *RankingTracker) Execute(ctx context.Context) *RankingSummary {
	return t.guarded(ctx, &t.full, false)
}

// ExecuteHighPriority tracks only is_priority keywords.
func (t *RankingTracker) ExecuteHighPriority(ctx context.Context) *RankingSummary {
	return t.guarded(ctx, &t.priority, true)
}

func (t *RankingTracker) guarded(ctx context.Context, g *guard, priorityOnly bool) *RankingSummary {
	name := RankingTrackerJob
	if priorityOnly {
		name = RankingTrackerHourlyJob
	}
	log := t.log.With(logx.String("job", name))
	if !g.tryAcquire() {
		log.Debug("run skipped; already in progress")
		return nil
	}
	defer g.release()

	start := t.now()
	log.Info("ranking run started", logx.Bool("priority_only", priorityOnly))

	sum, err := t.run(ctx, log, priorityOnly)
	end := t.now()
	if err != nil {
		// Swallowed: a failed tracking run is logged and recorded only.
		log.Error("ranking run failed", logx.Err(err), logx.Duration("dur", end.Sub(start)))
		recordExecution(ctx, t.store, log, domain.JobExecution{
			JobName: name, StartTime: start, EndTime: end, Status: statusFailed, Details: err.Error(),
		})
		return sum
	}

	log.Info("ranking run completed",
		logx.Int("processed", sum.KeywordsProcessed),
		logx.Int("successful", sum.Successful),
		logx.Int("failed", sum.Failed),
		logx.Int("improved", sum.Improved),
		logx.Int("declined", sum.Declined),
		logx.Duration("dur", end.Sub(start)),
	)
	recordExecution(ctx, t.store, log, domain.JobExecution{
		JobName: name, StartTime: start, EndTime: end, Status: statusSuccess, Details: sum,
	})
	return sum
}

func (t *RankingTracker) run(ctx context.Context, log logx.Logger, priorityOnly bool) (*RankingSummary, error) {
	keywords, err := t.store.KeywordsForTracking(ctx, priorityOnly, t.cfg.BatchLimit)
	if err != nil {
		return &RankingSummary{PriorityOnly: priorityOnly}, errors.Wrap(err, "fetch keywords for tracking")
	}
	sum := &RankingSummary{
		KeywordsProcessed: len(keywords),
		PriorityOnly:      priorityOnly,
		Results:           make([]RankResult, 0, len(keywords)),
	}
	if len(keywords) == 0 {
		log.Info("no keywords to track")
		return sum, nil
	}

	pace := newPacer(t.cfg.ItemDelay)
	for i, kw := range keywords {
		if err := pace.wait(ctx); err != nil {
			return sum, errors.Wrapf(err, "ranking batch interrupted after %d of %d keywords", i, len(keywords))
		}
		res := t.trackOne(ctx, log, kw)
		switch {
		case res.Status != statusSuccess:
			sum.Failed++
		case res.RankChange < 0:
			sum.Successful++
			sum.Improved++
		case res.RankChange > 0:
			sum.Successful++
			sum.Declined++
		default:
			sum.Successful++
		}
		sum.Results = append(sum.Results, res)
	}

	sum.SignificantChanges, sum.Alerts = t.analyzeChanges(ctx, log, sum.Results)
	return sum, nil
}

func (t *RankingTracker) trackOne(ctx context.Context, log logx.Logger, kw domain.Keyword) RankResult {
	res := RankResult{
		KeywordID:    kw.ID,
		Keyword:      kw.Keyword,
		CompanyName:  kw.CompanyName,
		Location:     kw.Location,
		PreviousRank: kw.CurrentRank,
	}

	rank, err := t.ranks.Rank(ctx, kw)
	if err != nil {
		res.Status = statusFailed
		res.Error = errors.Wrap(err, "rank lookup").Error()
		log.Warn("keyword rank failed", logx.Int64("keyword_id", kw.ID), logx.String("keyword", kw.Keyword), logx.Err(err))
		return res
	}
	res.CurrentRank = rank
	res.RankChange = RankChange(kw.CurrentRank, rank)

	at := t.now()
	if err := t.store.InsertRanking(ctx, domain.Ranking{
		KeywordID:    kw.ID,
		Rank:         rank,
		RankChange:   res.RankChange,
		CheckedAt:    at,
		PreviousRank: kw.CurrentRank,
		Location:     kw.Location,
	}); err != nil {
		res.Status = statusFailed
		res.Error = err.Error()
		log.Warn("ranking save failed", logx.Int64("keyword_id", kw.ID), logx.Err(err))
		return res
	}
	// The cached rank is a convenience; the ranking row above is the record.
	if err := t.store.UpdateKeywordRank(ctx, kw.ID, rank, at); err != nil {
		log.Warn("keyword rank cache update failed", logx.Int64("keyword_id", kw.ID), logx.Err(err))
	}

	res.Status = statusSuccess
	return res
}

// analyzeChanges logs significant moves and forwards the largest to the alert
// sink. It returns (significant, alerted).
func (t *RankingTracker) analyzeChanges(ctx context.Context, log logx.Logger, results []RankResult) (int, int) {
	significant, alerted := 0, 0
	for _, r := range results {
		if r.Status != statusSuccess {
			continue
		}
		magnitude := abs(r.RankChange)
		if magnitude < t.cfg.SignificantChange {
			continue
		}
		significant++
		direction := "declined"
		if r.RankChange < 0 {
			direction = "improved"
		}
		log.Info("significant rank change",
			logx.String("keyword", r.Keyword),
			logx.String("company", r.CompanyName),
			logx.String("direction", direction),
			logx.Int("positions", magnitude),
			logx.Int("from", r.PreviousRank),
			logx.Int("to", r.CurrentRank),
		)
		if magnitude < t.cfg.AlertChange || t.alerts == nil {
			continue
		}
		alert := RankAlert{
			KeywordID:    r.KeywordID,
			Keyword:      r.Keyword,
			CompanyName:  r.CompanyName,
			Location:     r.Location,
			PreviousRank: r.PreviousRank,
			CurrentRank:  r.CurrentRank,
			Change:       r.RankChange,
			At:           t.now(),
		}
		if err := t.alerts.RankAlert(ctx, alert); err != nil {
			log.Warn("rank alert failed", logx.String("keyword", r.Keyword), logx.Err(err))
			continue
		}
		alerted++
	}
	return significant, alerted
}

// Running reports whether the full or the priority run is in progress.
func (t *RankingTracker) Running(priorityOnly bool) bool {
	if priorityOnly {
		return t.priority.Running()
	}
	return t.full.Running()
}

func (t *RankingTracker) Close() error { return t.store.Close() }

// RankChange is current - previous. Negative is an improvement. A keyword with
// no previous rank, or no current rank, reports no change.
func RankChange(previous, current int) int {
	if previous <= 0 || current <= 0 {
		return 0
	}
	return current - previous
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
