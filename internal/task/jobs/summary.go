package jobs

import (
	"context"
	"time"

	"seojobs/internal/domain"
	logx "seojobs/pkg/logx"
)

const summaryWriteTimeout = 5 * time.Second

// recordExecution writes the job_executions row. It outlives a cancelled run
// context and never returns an error; failures are logged.
func recordExecution(ctx context.Context, rec ExecutionRecorder, log logx.Logger, e domain.JobExecution) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryWriteTimeout)
	defer cancel()
	if err := rec.InsertJobExecution(wctx, e); err != nil {
		log.Warn("job execution log failed", logx.String("job", e.JobName), logx.String("status", e.Status), logx.Err(err))
	}
}
