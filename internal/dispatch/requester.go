// Package dispatch defers snapshot captures through Kafka: the requester
// publishes capture requests, the worker consumes them, reloads the
// subject, and runs the capture. captureNow semantics stay available via
// Serializer.CaptureAndCommit; this package is the asynchronous path.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CaptureRequest asks the worker to snapshot one subject.
type CaptureRequest struct {
	SubjectType string    `json:"subject_type"`
	SubjectID   string    `json:"subject_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// publisher is the producer side of the capture topic.
type publisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// Requester publishes capture requests keyed by subject, so requests for
// one subject are consumed in order.
type Requester struct {
	producer publisher
}

func NewRequester(producer publisher) *Requester {
	return &Requester{producer: producer}
}

// RequestCapture enqueues a deferred capture of the subject. Delivery is
// at-least-once; capturing the same subject twice just appends two
// snapshots.
func (r *Requester) RequestCapture(ctx context.Context, subjectType, subjectID, requestedBy string) error {
	req := CaptureRequest{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}

	key := subjectType + "/" + subjectID
	if err := r.producer.Publish(ctx, key, req); err != nil {
		return fmt.Errorf("publish capture request %s: %w", key, err)
	}

	log.Printf("[Dispatch] Requested capture of %s", key)
	return nil
}
