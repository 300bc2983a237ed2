package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job tracks one frame-rate conversion of an uploaded video.
type Job struct {
	ID                 uuid.UUID
	UserID             string
	VideoKey           string
	OutputKey          string
	Status             JobStatus
	Multiplier         int
	Divisor            int
	SourceFrames       int
	OutputFrames       int
	InterpolatedFrames int
	SkippedFrames      int
	FileSize           int64
	Attempt            int
	MaxAttempts        int
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

func NewJob(userID, videoKey string, fileSize int64, multiplier, divisor, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Multiplier:  multiplier,
		Divisor:     divisor,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

// JobResult carries the per-frame counts gathered while producing the
// converted stream.
type JobResult struct {
	OutputKey          string
	SourceFrames       int
	OutputFrames       int
	InterpolatedFrames int
	SkippedFrames      int
}

func (j *Job) MarkCompleted(res JobResult) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.OutputKey = res.OutputKey
	j.SourceFrames = res.SourceFrames
	j.OutputFrames = res.OutputFrames
	j.InterpolatedFrames = res.InterpolatedFrames
	j.SkippedFrames = res.SkippedFrames
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
