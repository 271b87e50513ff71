package service

import "time"

const (
	// maxCompletionRetries bounds transient failure retries within one tick.
	maxCompletionRetries = 3
	completionRetryDelay = 500 * time.Millisecond
)
