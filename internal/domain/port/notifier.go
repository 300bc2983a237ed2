package port

import "context"

// FailureNotifier tells the uploader that their job permanently failed.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail string, jobID string, videoKey string, errorMsg string) error
}
