package entity

import "github.com/google/uuid"

// InterpolationRequestMessage is the inbound message from the
// video.interpolate queue. Multiplier and Divisor are optional; zero means
// "use the service defaults".
type InterpolationRequestMessage struct {
	JobID      uuid.UUID `json:"job_id"`
	UserID     string    `json:"user_id"`
	VideoKey   string    `json:"video_key"`
	FileSize   int64     `json:"file_size"`
	UserEmail  string    `json:"user_email"`
	Multiplier int       `json:"multiplier,omitempty"`
	Divisor    int       `json:"divisor,omitempty"`
}

// InterpolationStatusMessage is the outbound message published to the
// video.status queue.
type InterpolationStatusMessage struct {
	JobID              uuid.UUID `json:"job_id"`
	UserID             string    `json:"user_id"`
	Status             JobStatus `json:"status"`
	VideoKey           string    `json:"video_key"`
	OutputKey          string    `json:"output_key,omitempty"`
	Multiplier         int       `json:"multiplier"`
	Divisor            int       `json:"divisor"`
	SourceFrames       int       `json:"source_frames,omitempty"`
	OutputFrames       int       `json:"output_frames,omitempty"`
	InterpolatedFrames int       `json:"interpolated_frames,omitempty"`
	SkippedFrames      int       `json:"skipped_frames,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	Attempt            int       `json:"attempt"`
	MaxAttempts        int       `json:"max_attempts"`
}
