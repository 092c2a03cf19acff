package notify_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-billing/internal/notify"
)

func TestAsynqLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := notify.AsynqLogger{Logger: zerolog.New(&buf)}

	l.Warn("queue ", "notifications", " paused")
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"message":"queue notifications paused"`)
}

func TestErrorHandlerLogsTaskType(t *testing.T) {
	var buf bytes.Buffer
	h := notify.ErrorHandler(zerolog.New(&buf))

	h.HandleError(context.Background(), asynq.NewTask(notify.TypeBillPaid, nil), errors.New("smtp down"))
	require.Contains(t, buf.String(), `"task_type":"bill_paid"`)
	require.Contains(t, buf.String(), "smtp down")
}
