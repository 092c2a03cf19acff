package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func TestWriteErrorAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Validation([]string{"vendorId is required"}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, CodeValidation, body.Error.Code)
	require.Equal(t, []any{"vendorId is required"}, body.Error.Details)
}

func TestWriteErrorWrapped(t *testing.T) {
	rec := httptest.NewRecorder()
	err := errors.Join(errors.New("context"), NotFound("bill", nil))
	WriteError(rec, err)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteErrorOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("db password leaked here"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")
}

func TestWriteErrorSyntaxOffset(t *testing.T) {
	var v map[string]any
	decodeErr := json.Unmarshal([]byte(`{"a":`), &v)
	require.Error(t, decodeErr)

	var syntaxErr *json.SyntaxError
	require.ErrorAs(t, decodeErr, &syntaxErr)
	rec := httptest.NewRecorder()
	WriteError(rec, BadRequest("invalid JSON", decodeErr))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "offset")
}

func TestParsePageQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/bills?page=2&size=500", nil)
	q := ParsePageQuery(req, 20, 100)
	require.Equal(t, PageQuery{Page: 2, Size: 100}, q)

	req = httptest.NewRequest(http.MethodGet, "/bills?page=-1&size=abc", nil)
	require.Equal(t, PageQuery{Page: 0, Size: 20}, ParsePageQuery(req, 20, 100))
}
