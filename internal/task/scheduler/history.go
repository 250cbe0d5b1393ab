package scheduler

import "sort"

// appendLocked adds e to the ring, dropping the oldest entries beyond capacity.
func (s *Service) appendLocked(e Execution) {
	s.history = append(s.history, e)
	if size := s.cfg.HistorySize; len(s.history) > size {
		// Copy so the backing array does not grow without bound.
		trimmed := make([]Execution, size, size+1)
		copy(trimmed, s.history[len(s.history)-size:])
		s.history = trimmed
	}
}

// finishLocked replaces the running record with the same ID in place.
// It reports false when the record was already evicted.
func (s *Service) finishLocked(e Execution) bool {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ID != e.ID {
			continue
		}
		if s.history[i].Status.Terminal() {
			return true
		}
		s.history[i] = e
		return true
	}
	return false
}

// ExecutionHistory returns up to limit of the most recent ring entries, newest
// StartTime first. limit <= 0 means 20.
func (s *Service) ExecutionHistory(limit int) []Execution {
	if limit <= 0 {
		limit = defaultHistoryRead
	}
	s.mu.Lock()
	n := len(s.history)
	if limit > n {
		limit = n
	}
	out := make([]Execution, limit)
	copy(out, s.history[n-limit:])
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}

// JobStatus returns one job's public fields and its five most recent entries in
// ring order.
func (s *Service) JobStatus(name string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[name]
	if !ok {
		return JobStatus{}, wrapNotFound(name)
	}
	var recent []Execution
	for _, e := range s.history {
		if e.JobName == name {
			recent = append(recent, e)
		}
	}
	if len(recent) > recentPerJob {
		recent = recent[len(recent)-recentPerJob:]
	}
	return JobStatus{
		Name:     rec.name,
		Schedule: rec.schedule,
		Enabled:  rec.enabled,
		Armed:    rec.entryID != 0,
		Next:     s.nextLocked(rec),
		Recent:   recent,
	}, nil
}

// AllJobStatus summarizes every job with its latest execution by StartTime.
func (s *Service) AllJobStatus() []JobSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := make(map[string]Execution, len(s.jobs))
	for _, e := range s.history {
		if cur, ok := last[e.JobName]; !ok || e.StartTime.After(cur.StartTime) {
			last[e.JobName] = e
		}
	}

	out := make([]JobSummary, 0, len(s.jobs))
	for _, rec := range s.jobs {
		sum := JobSummary{
			Name:     rec.name,
			Schedule: rec.schedule,
			Enabled:  rec.enabled,
			Armed:    rec.entryID != 0,
			Next:     s.nextLocked(rec),
		}
		if e, ok := last[rec.name]; ok {
			e := e
			sum.LastExecution = &e
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
