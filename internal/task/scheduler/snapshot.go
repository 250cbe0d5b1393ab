package scheduler

import (
	"sort"
	"time"
)

// ScheduleInfo is one job as seen by the cron runner.
type ScheduleInfo struct {
	Name     string
	Schedule string
	Enabled  bool
	Next     time.Time // zero when disarmed
	Prev     time.Time // last cron fire; zero if never fired or disarmed
}

// Snapshot is a point-in-time view of the whole scheduler.
type Snapshot struct {
	Timezone    string
	JobTimeout  time.Duration
	HistorySize int
	HistoryLen  int
	Running     int
	Closed      bool
	Schedules   []ScheduleInfo
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := 0
	for _, e := range s.history {
		if e.Status == StatusRunning {
			running++
		}
	}

	items := make([]ScheduleInfo, 0, len(s.jobs))
	for _, rec := range s.jobs {
		it := ScheduleInfo{Name: rec.name, Schedule: rec.schedule, Enabled: rec.enabled}
		if rec.entryID != 0 {
			e := s.c.Entry(rec.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	return Snapshot{
		Timezone:    s.loc.String(),
		JobTimeout:  s.cfg.JobTimeout,
		HistorySize: s.cfg.HistorySize,
		HistoryLen:  len(s.history),
		Running:     running,
		Closed:      s.closed,
		Schedules:   items,
	}
}
