package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/memento/internal/infrastructure/store"
	"github.com/example/memento/internal/metrics"
)

// CaptureFunc runs one deferred capture for a subject and returns the
// appended snapshot. Returning (nil, nil) means the subject no longer
// exists. Implementations own whatever synchronization their live
// subject requires.
type CaptureFunc func(ctx context.Context, subjectID, requestedBy string) (*store.Snapshot, error)

// Worker consumes capture requests and runs the registered capture.
// Failures are logged and the request dropped; retry policy belongs to
// whatever scheduler feeds the topic.
type Worker struct {
	captures map[string]CaptureFunc
}

func NewWorker() *Worker {
	return &Worker{
		captures: make(map[string]CaptureFunc),
	}
}

// RegisterCapture binds a subject type to its capture handler. Register
// every handler before consuming starts; the map is read without locking.
func (w *Worker) RegisterCapture(subjectType string, fn CaptureFunc) {
	w.captures[subjectType] = fn
}

// HandleRequest is the kafka consumer handler for the capture topic.
func (w *Worker) HandleRequest(ctx context.Context, key, value []byte) error {
	var req CaptureRequest
	if err := json.Unmarshal(value, &req); err != nil {
		metrics.CaptureRequestsTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("unmarshal capture request: %w", err)
	}

	log.Printf("[Worker] Received capture request: %s/%s", req.SubjectType, req.SubjectID)

	fn, ok := w.captures[req.SubjectType]
	if !ok {
		metrics.CaptureRequestsTotal.WithLabelValues("unknown_subject").Inc()
		return fmt.Errorf("no capture handler for subject type %s", req.SubjectType)
	}

	snap, err := fn(ctx, req.SubjectID, req.RequestedBy)
	if err != nil {
		metrics.CaptureRequestsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("capture %s/%s: %w", req.SubjectType, req.SubjectID, err)
	}
	if snap == nil {
		metrics.CaptureRequestsTotal.WithLabelValues("not_found").Inc()
		return fmt.Errorf("subject %s/%s not found", req.SubjectType, req.SubjectID)
	}

	metrics.CaptureRequestsTotal.WithLabelValues("ok").Inc()
	log.Printf("[Worker] Captured %s/%s as snapshot %s", req.SubjectType, req.SubjectID, snap.ID)
	return nil
}
