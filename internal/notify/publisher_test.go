package notify_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-billing/internal/notify"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func TestPublishEnqueuesPayload(t *testing.T) {
	enq := &stubEnqueuer{}
	p := notify.Publisher{Client: enq, Enabled: true}

	require.NoError(t, p.Publish(context.Background(), notify.TypeBillCreated, paidBill()))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, notify.TypeBillCreated, enq.tasks[0].Type())

	var payload notify.BillPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "b7", payload.BillID)
	require.Equal(t, 2360.0, payload.TotalAmount)
	require.EqualValues(t, 15, payload.TotalQuantity)
	require.Equal(t, 2, payload.LineCount)
}

func TestPublishDuplicateIsNotAnError(t *testing.T) {
	p := notify.Publisher{Client: &stubEnqueuer{err: asynq.ErrDuplicateTask}, Enabled: true}
	require.NoError(t, p.Publish(context.Background(), notify.TypeBillUpdated, paidBill()))
}

func TestPublishDisabledOrUnknown(t *testing.T) {
	enq := &stubEnqueuer{}
	require.NoError(t, notify.Publisher{Client: enq}.Publish(context.Background(), notify.TypeBillCreated, paidBill()))
	require.Empty(t, enq.tasks)

	err := notify.Publisher{Client: enq, Enabled: true}.Publish(context.Background(), "bill_archived", paidBill())
	require.Error(t, err)
}
