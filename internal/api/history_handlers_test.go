package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/history"
)

func TestHistoryHandlerListInvocations(t *testing.T) {
	t.Parallel()

	store := &mockHistoryStore{
		invocations: []history.Invocation{
			{
				ID:         "inv-2",
				Identifier: "1234567",
				Result:     history.ResultSuccess,
				Method:     "direct-http",
				Outcome:    "success",
				Attempts:   1,
				Duration:   1200 * time.Millisecond,
				At:         time.Unix(1700000100, 0).UTC(),
			},
			{
				ID:         "inv-1",
				Identifier: "7654321",
				Result:     history.ResultFailure,
				Outcome:    "challenge-timeout",
				Attempts:   5,
				Duration:   41 * time.Second,
				Note:       "all validated proxies failed",
				At:         time.Unix(1700000000, 0).UTC(),
			},
		},
	}
	handler := NewHistoryHandler(store, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/history?result=success&limit=10", nil)
	rec := httptest.NewRecorder()

	handler.ListInvocations(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Invocations []invocationDTO `json:"invocations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Invocations, 2)
	require.Equal(t, "inv-2", body.Invocations[0].ID)
	require.Equal(t, int64(1200), body.Invocations[0].DurationMS)
	require.Equal(t, "all validated proxies failed", body.Invocations[1].Note)

	require.Equal(t, history.ListFilter{
		Result: history.ResultSuccess,
		Limit:  10,
	}, store.gotFilter)
}

func TestHistoryHandlerMapsResultAliases(t *testing.T) {
	t.Parallel()

	store := &mockHistoryStore{}
	handler := NewHistoryHandler(store, zap.NewNop())

	for _, alias := range []string{"failure", "failed", "error"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/history?result="+alias, nil)
		rec := httptest.NewRecorder()

		handler.ListInvocations(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, history.ResultFailure, store.gotFilter.Result)
	}
}

func TestHistoryHandlerInvalidFilters(t *testing.T) {
	t.Parallel()

	handler := NewHistoryHandler(&mockHistoryStore{}, zap.NewNop())

	cases := map[string]string{
		"/v1/history?limit=0":      "invalid limit",
		"/v1/history?limit=nope":   "invalid limit",
		"/v1/history?offset=-5":    "invalid offset",
		"/v1/history?result=bogus": "invalid result",
	}
	for target, want := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()

		handler.ListInvocations(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.Contains(t, rec.Body.String(), want, target)
	}
}

func TestHistoryHandlerCapsLimit(t *testing.T) {
	t.Parallel()

	store := &mockHistoryStore{}
	handler := NewHistoryHandler(store, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/history?limit=9999", nil)
	rec := httptest.NewRecorder()

	handler.ListInvocations(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, maxHistoryLimit, store.gotFilter.Limit)
}

func TestHistoryHandlerNilStore(t *testing.T) {
	t.Parallel()

	handler := NewHistoryHandler(nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	rec := httptest.NewRecorder()

	handler.ListInvocations(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "history store unavailable")
}

func TestHistoryHandlerStoreError(t *testing.T) {
	t.Parallel()

	handler := NewHistoryHandler(&mockHistoryStore{err: errors.New("boom")}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	rec := httptest.NewRecorder()

	handler.ListInvocations(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "failed to list invocations")
}

// --- helpers/fakes ---

type mockHistoryStore struct {
	invocations []history.Invocation
	err         error
	gotFilter   history.ListFilter
}

func (m *mockHistoryStore) RecordInvocation(context.Context, history.Invocation) error {
	return nil
}

func (m *mockHistoryStore) ListInvocations(_ context.Context, filter history.ListFilter) ([]history.Invocation, error) {
	m.gotFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.invocations, nil
}

func (m *mockHistoryStore) Close() {}
