package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"AquaPos/app/models"
)

// queueMaxAttempts bounds delivery attempts per queued job so a dead
// printer cannot grow the queue work forever
const queueMaxAttempts = 5

// RetryQueue persists receipts that no transport could deliver. Jobs
// survive restarts and are replayed when a printer becomes reachable.
type RetryQueue struct {
	db          *gorm.DB
	maxAttempts int
	logger      *LoggerService
	now         func() time.Time

	// OnAbandoned is invoked once when a job exhausts its attempts, so
	// the UI can tell the operator to print the receipt manually
	OnAbandoned func(job *models.PrintJob)
}

func NewRetryQueue(db *gorm.DB, logger *LoggerService) *RetryQueue {
	return &RetryQueue{
		db:          db,
		maxAttempts: queueMaxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// Enqueue stores an undeliverable payload for later replay
func (q *RetryQueue) Enqueue(p *Payload) (*models.PrintJob, error) {
	job := &models.PrintJob{
		JobID:      uuid.NewString(),
		OrderID:    p.OrderID,
		Payload:    p.Data,
		PlainText:  p.PlainText,
		Status:     models.PrintJobPending,
		EnqueuedAt: q.now(),
	}
	if err := q.db.Create(job).Error; err != nil {
		return nil, fmt.Errorf("could not enqueue print job: %w", err)
	}
	if q.logger != nil {
		q.logger.LogInfo("Print job queued for retry", job.JobID)
	}
	return job, nil
}

// Pending returns undelivered jobs oldest first
func (q *RetryQueue) Pending() ([]models.PrintJob, error) {
	var jobs []models.PrintJob
	err := q.db.
		Where("status = ?", models.PrintJobPending).
		Order("enqueued_at asc").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("could not load pending print jobs: %w", err)
	}
	return jobs, nil
}

// PendingCount returns how many jobs are waiting for delivery
func (q *RetryQueue) PendingCount() (int64, error) {
	var count int64
	err := q.db.Model(&models.PrintJob{}).
		Where("status = ?", models.PrintJobPending).
		Count(&count).Error
	return count, err
}

// Get looks a job up by its public identifier
func (q *RetryQueue) Get(jobID string) (*models.PrintJob, error) {
	var job models.PrintJob
	err := q.db.Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkDelivered records a successful replay
func (q *RetryQueue) MarkDelivered(job *models.PrintJob) error {
	now := q.now()
	job.Status = models.PrintJobDelivered
	job.DeliveredAt = &now
	job.LastError = ""
	return q.db.Save(job).Error
}

// RecordFailure bumps the attempt counter; once the cap is hit the job
// is marked abandoned and ErrJobAbandoned is returned
func (q *RetryQueue) RecordFailure(job *models.PrintJob, cause error) error {
	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempts >= q.maxAttempts {
		job.Status = models.PrintJobAbandoned
		if err := q.db.Save(job).Error; err != nil {
			return err
		}
		if q.logger != nil {
			q.logger.LogWarning("Print job abandoned", fmt.Sprintf("%s after %d attempts", job.JobID, job.Attempts))
		}
		if q.OnAbandoned != nil {
			q.OnAbandoned(job)
		}
		return ErrJobAbandoned
	}
	return q.db.Save(job).Error
}

// Remove deletes a job regardless of state
func (q *RetryQueue) Remove(jobID string) error {
	result := q.db.Where("job_id = ?", jobID).Delete(&models.PrintJob{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}
