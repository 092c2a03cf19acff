package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/erp-billing/internal/billing"
	"github.com/noah-isme/erp-billing/internal/obs"
)

// Enqueuer is the subset of *asynq.Client the publisher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher enqueues bill notifications.
type Publisher struct {
	Client    Enqueuer
	Enabled   bool
	MaxRetry  int
	UniqueFor time.Duration
	Metrics   *obs.BillingMetrics
}

// Publish enqueues a notification of the given kind for bill. Duplicate
// tasks inside the uniqueness window are dropped silently.
func (p Publisher) Publish(ctx context.Context, kind string, bill billing.PricedBill) error {
	if !p.Enabled || p.Client == nil {
		return nil
	}
	switch kind {
	case TypeBillCreated, TypeBillUpdated, TypeBillPaid:
	default:
		return fmt.Errorf("notify: unknown notification %q", kind)
	}
	body, err := json.Marshal(PayloadFor(bill))
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	maxRetry := p.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	unique := p.UniqueFor
	if unique <= 0 {
		unique = time.Minute
	}
	task := asynq.NewTask(kind, body)
	_, err = p.Client.EnqueueContext(ctx, task,
		asynq.Queue(QueueName),
		asynq.MaxRetry(maxRetry),
		asynq.Unique(unique),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("notify: enqueue %s: %w", kind, err)
	}
	p.Metrics.ObserveNotification(kind+"_enqueue", err)
	return err
}
