package notify

import (
	"context"
	"fmt"

	"seojobs/internal/eventbus"
	"seojobs/internal/task/jobs"
	logx "seojobs/pkg/logx"
)

// FormatAlert renders a one-line alert message.
func FormatAlert(a jobs.RankAlert) string {
	verb, sign := "dropped", "+"
	if a.Improved() {
		verb, sign = "improved", ""
	}
	where := ""
	if a.Location != "" {
		where = " in " + a.Location
	}
	return fmt.Sprintf("Rank alert: %q for %s %s %d positions%s (#%d -> #%d, %s%d)",
		a.Keyword, a.CompanyName, verb, abs(a.Change), where, a.PreviousRank, a.CurrentRank, sign, a.Change)
}

// LogAlerter writes alerts to the log. Used when Slack is unset.
type LogAlerter struct {
	Log logx.Logger
}

func (l LogAlerter) RankAlert(_ context.Context, a jobs.RankAlert) error {
	l.Log.Warn(FormatAlert(a), logx.Int64("keyword_id", a.KeywordID), logx.Int("change", a.Change))
	return nil
}

// BusAlerter publishes alerts as ranking.alert events and never blocks.
type BusAlerter struct {
	Bus eventbus.Bus
}

func (b BusAlerter) RankAlert(_ context.Context, a jobs.RankAlert) error {
	b.Bus.Publish(eventbus.Event{Type: jobs.EventRankAlert, Time: a.At, Data: a})
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
