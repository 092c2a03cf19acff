package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-billing/internal/common"
)

func TestResendSenderPostsEmail(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/emails", r.URL.Path)
		require.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	sender := NewResendSender("re_test", "Billing <billing@example.com>", zerolog.Nop())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	sender.Client.BaseURL = base

	err = sender.Send(context.Background(), common.Email{
		To:      "ap@acme.test",
		Subject: "hello",
		HTML:    "<p>hi</p>",
		Tags:    map[string]string{"notification": "bill_created", "category": "billing"},
	})
	require.NoError(t, err)
	require.Equal(t, "Billing <billing@example.com>", got["from"])
	require.Equal(t, []any{"ap@acme.test"}, got["to"])
	require.Len(t, got["tags"], 2)
}

func TestResendSenderRequiresRecipient(t *testing.T) {
	sender := NewResendSender("re_test", "billing@example.com", zerolog.Nop())
	require.Error(t, sender.Send(context.Background(), common.Email{Subject: "x"}))
}

func TestToResendTagsSorted(t *testing.T) {
	tags := toResendTags(map[string]string{"b": "2", "a": "1"})
	require.Equal(t, "a", tags[0].Name)
	require.Equal(t, "b", tags[1].Name)
	require.Nil(t, toResendTags(nil))
}
