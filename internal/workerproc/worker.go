package workerproc

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"construction-monitor/internal/queue"
	"construction-monitor/internal/shared/metrics"
	"construction-monitor/internal/shared/telemetry"
)

const (
	defaultConcurrency = 2
	receiveBatch       = 10
	receiveBackoff     = time.Second
)

// Worker drains the prefetch queue and generates reports ahead of user requests.
type Worker struct {
	Consumer    queue.Consumer
	Processor   Processor
	Concurrency int
}

// Run polls until ctx is canceled. In-flight jobs finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if w.Consumer == nil || w.Processor == nil {
		return errors.New("worker not configured")
	}
	limit := w.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)

	telemetry.Info("worker.started", map[string]any{"concurrency": limit})
	for ctx.Err() == nil {
		deliveries, err := w.Consumer.Receive(ctx, receiveBatch)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"error": err})
			sleep(ctx, receiveBackoff)
			continue
		}
		if len(deliveries) == 0 {
			sleep(ctx, receiveBackoff)
			continue
		}
		for _, d := range deliveries {
			d := d
			// Jobs get a context that survives shutdown so a started render completes.
			jobCtx := context.WithoutCancel(ctx)
			g.Go(func() error {
				w.HandleDelivery(jobCtx, d)
				return nil
			})
		}
	}

	telemetry.Info("worker.draining", nil)
	return g.Wait()
}

// HandleDelivery processes one delivery and acknowledges it when done or hopeless.
func (w *Worker) HandleDelivery(ctx context.Context, d queue.Delivery) {
	meta := ComputeMeta(d.Body)
	res, err := HandleMessage(ctx, w.Processor, d.Body)
	fields := map[string]any{
		"message_id":  d.ID,
		"analysis_id": res.AnalysisID,
		"body_len":    meta.BodyLen,
	}
	if res.RequestID != "" {
		fields["request_id"] = res.RequestID
	}

	if err != nil {
		fields["error"] = err.Error()
		if !Unrecoverable(err) {
			telemetry.Error("worker.prefetch.failed", fields)
			metrics.IncPrefetchJob("failed")
			return
		}
		fields["body_sha256"] = meta.BodySHA
		telemetry.Error("worker.prefetch.dropped", fields)
		if w.ack(ctx, d, fields) {
			metrics.IncPrefetchJob("dropped")
		}
		return
	}

	fields["generated"] = res.Generated
	if w.ack(ctx, d, fields) {
		telemetry.Info("worker.prefetch.completed", fields)
		metrics.IncPrefetchJob("completed")
	}
}

func (w *Worker) ack(ctx context.Context, d queue.Delivery, fields map[string]any) bool {
	if d.ReceiptHandle == "" {
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.prefetch.delete_failed", fields)
		return false
	}
	if err := w.Consumer.Delete(ctx, d.ReceiptHandle); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.prefetch.delete_failed", fields)
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
