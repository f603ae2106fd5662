package queue

import "errors"

var (
	// ErrQueueClosed is returned when enqueueing or dequeueing on a
	// closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrItemNotFound is returned when a dead letter item id does not
	// exist
	ErrItemNotFound = errors.New("item not found")

	// ErrMaxRetriesExceeded is returned once a batch has exhausted its
	// delivery retries and moved to the dead letter queue
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
