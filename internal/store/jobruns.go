package store

import (
	"context"
	"time"
)

// StartJobRun records a job invocation as running, giving the caller the
// correlation id to log alongside every line it emits (§4.8).
func (s *Store) StartJobRun(ctx context.Context, run JobRun) error {
	run.Status = JobRunning
	return s.DB.WithContext(ctx).Create(&run).Error
}

// CompleteJobRun transitions a run to success, recording how many records
// it processed.
func (s *Store) CompleteJobRun(ctx context.Context, id string, completedAt time.Time, recordsProcessed int) error {
	return s.DB.WithContext(ctx).Model(&JobRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":            JobSuccess,
		"completed_at":      completedAt,
		"records_processed": recordsProcessed,
	}).Error
}

// FailJobRun transitions a run to failed, recording a truncated error
// message (§7: errors are logged with context, never leaked in raw form).
func (s *Store) FailJobRun(ctx context.Context, id string, completedAt time.Time, errMsg string) error {
	return s.DB.WithContext(ctx).Model(&JobRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        JobFailed,
		"completed_at":  completedAt,
		"error_message": errMsg,
	}).Error
}

// LatestJobRuns returns the most recent run per job_id.
func (s *Store) LatestJobRuns(ctx context.Context, jobIDs []string) (map[string]JobRun, error) {
	if len(jobIDs) == 0 {
		return map[string]JobRun{}, nil
	}
	var rows []JobRun
	err := s.DB.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (job_id) *
		FROM job_runs
		WHERE job_id IN ?
		ORDER BY job_id, started_at DESC
	`, jobIDs).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]JobRun, len(rows))
	for _, r := range rows {
		out[r.JobID] = r
	}
	return out, nil
}
