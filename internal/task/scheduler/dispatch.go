package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"seojobs/internal/eventbus"
	logx "seojobs/pkg/logx"
)

// dispatch is the bookkeeping wrapper around every handler invocation.
func (s *Service) dispatch(parent context.Context, name string, h Handler, trig TriggerKind) Execution {
	s.mu.Lock()
	timeout := s.cfg.JobTimeout
	exec := Execution{
		ID:        uuid.NewString(),
		JobName:   name,
		Trigger:   trig,
		StartTime: s.now(),
		Status:    StatusRunning,
	}
	s.appendLocked(exec)
	s.mu.Unlock()

	s.log.Debug("job.started", logx.String("job", name), logx.String("id", exec.ID), logx.String("trigger", string(trig)))
	s.publish(EventJobStarted, exec)

	ctx, cancel := parent, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	}
	details, err := s.invoke(ctx, name, h)
	if err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// The handler swallowed its own timeout; the run still counts as failed.
		err = errors.Wrapf(ctx.Err(), "job %q exceeded %s", name, timeout)
	}
	cancel()

	exec.EndTime = s.now()
	if err != nil {
		exec.Status = StatusFailed
		exec.Error = err.Error()
	} else {
		exec.Status = StatusSuccess
		exec.Details = details
	}

	s.mu.Lock()
	found := s.finishLocked(exec)
	s.mu.Unlock()

	dur := exec.Duration()
	fields := []logx.Field{logx.String("job", name), logx.String("id", exec.ID), logx.Duration("dur", dur)}
	if err != nil {
		s.log.Warn("job.failed", append(fields, logx.Err(err))...)
	} else {
		level := logx.LevelDebug
		if dur >= 750*time.Millisecond {
			level = logx.LevelInfo
		}
		s.log.Log(level, "job.completed", append(fields, logx.Any("details", details))...)
	}
	if !found {
		s.log.Debug("execution evicted before completion", logx.String("job", name), logx.String("id", exec.ID))
	}
	s.publish(EventJobFinished, exec)
	return exec
}

// invoke runs h, converting a panic into an error.
func (s *Service) invoke(ctx context.Context, name string, h Handler) (details any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic: %v", r)
			details = nil
			s.log.Error("job.panic", logx.String("job", name), logx.String("panic", fmt.Sprint(r)), logx.Stack(logx.StackTrace(3, 24)))
		}
	}()
	return h(ctx)
}

func (s *Service) publish(typ string, exec Execution) {
	if s.bus == nil {
		return
	}
	at := exec.StartTime
	if !exec.EndTime.IsZero() {
		at = exec.EndTime
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: at, Data: exec})
}
