package workerproc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"construction-monitor/internal/obras"
	"construction-monitor/internal/queue"
	"construction-monitor/internal/reports"
	"construction-monitor/internal/virag"
)

type fakeProcessor struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeProcessor) RetrieveByAnalysisID(ctx context.Context, analysisID string) (reports.Retrieval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, analysisID)
	if f.err != nil {
		return reports.Retrieval{}, f.err
	}
	return reports.Retrieval{Generated: true}, nil
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func enqueue(t *testing.T, q *queue.MemoryQueue, analysisID string) {
	t.Helper()
	if err := q.Send(context.Background(), queue.Message{AnalysisID: analysisID, RequestID: "req-" + analysisID, Version: queue.MessageVersion}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func receiveOne(t *testing.T, q *queue.MemoryQueue) queue.Delivery {
	t.Helper()
	got, err := q.Receive(context.Background(), 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("receive: %v (%d)", err, len(got))
	}
	return got[0]
}

func TestParseMessageErrors(t *testing.T) {
	if _, _, err := ParseMessage("  "); !errors.As(err, new(ErrEmptyBody)) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	if _, meta, err := ParseMessage("{bad-json"); !errors.As(err, new(ErrDecode)) || meta.BodySHA == "" {
		t.Fatalf("expected ErrDecode with hash, got %v", err)
	}
	if _, _, err := ParseMessage(`{"requestId":"r1"}`); !errors.As(err, new(ErrMissingAnalysisID)) {
		t.Fatalf("expected ErrMissingAnalysisID, got %v", err)
	}
	msg, _, err := ParseMessage(`{"analysisId":"abc123","version":1}`)
	if err != nil || msg.AnalysisID != "abc123" {
		t.Fatalf("unexpected parse %+v err=%v", msg, err)
	}
}

func TestUnrecoverable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrDecode{}, true},
		{ErrProcess{Err: fmt.Errorf("load obra 9: %w", obras.ErrNotFound)}, true},
		{ErrProcess{Err: &virag.UpstreamError{Status: 404}}, true},
		{ErrProcess{Err: &virag.UpstreamError{Status: 503}}, false},
		{ErrProcess{Err: virag.ErrUpstreamTimeout}, false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := Unrecoverable(tc.err); got != tc.want {
			t.Fatalf("Unrecoverable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	q := queue.NewMemoryQueue()
	proc := &fakeProcessor{}
	w := &Worker{Consumer: q, Processor: proc}
	enqueue(t, q, "abc123")

	d := receiveOne(t, q)
	w.HandleDelivery(context.Background(), d)

	if !q.Acked(d.ReceiptHandle) {
		t.Fatalf("expected delete")
	}
	if proc.count() != 1 || proc.calls[0] != "abc123" {
		t.Fatalf("unexpected calls %v", proc.calls)
	}
}

func TestWorkerKeepsMessageOnTransientFailure(t *testing.T) {
	q := queue.NewMemoryQueue()
	w := &Worker{Consumer: q, Processor: &fakeProcessor{err: virag.ErrUpstreamTimeout}}
	enqueue(t, q, "abc123")

	d := receiveOne(t, q)
	w.HandleDelivery(context.Background(), d)

	if q.Acked(d.ReceiptHandle) {
		t.Fatalf("expected no delete")
	}
}

func TestWorkerDropsInvalidJSON(t *testing.T) {
	q := queue.NewMemoryQueue()
	proc := &fakeProcessor{}
	w := &Worker{Consumer: q, Processor: proc}

	d := queue.Delivery{ID: "m3", ReceiptHandle: "r3", Body: "{bad-json"}
	w.HandleDelivery(context.Background(), d)

	if !q.Acked("r3") {
		t.Fatalf("expected delete")
	}
	if proc.count() != 0 {
		t.Fatalf("processor must not run for invalid payloads")
	}
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	q := queue.NewMemoryQueue()
	proc := &fakeProcessor{}
	for _, id := range []string{"a", "b", "c"} {
		enqueue(t, q, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := &Worker{Consumer: q, Processor: proc, Concurrency: 2}
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for proc.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("worker did not stop")
	}
	if proc.count() != 3 || q.Len() != 0 {
		t.Fatalf("expected 3 processed, got %d (pending %d)", proc.count(), q.Len())
	}
}

func TestWorkerRunRequiresDeps(t *testing.T) {
	if err := (&Worker{}).Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
