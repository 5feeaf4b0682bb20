package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/history"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	historyTimeout      = 3 * time.Second
)

// HistoryHandler exposes read-only invocation history endpoints.
type HistoryHandler struct {
	store   history.Store
	timeout time.Duration
	logger  *zap.Logger
}

// NewHistoryHandler wires the store and logger.
func NewHistoryHandler(store history.Store, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{
		store:   store,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// ListInvocations handles GET /v1/history?result=&limit=&offset=. It returns a
// JSON object {"invocations": [...]} on success, 400 for invalid filters, 503
// when the store is unavailable, or 500 if the store call fails.
func (h *HistoryHandler) ListInvocations(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, offset, err := parseLimitOffset(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := parseResult(strings.TrimSpace(r.URL.Query().Get("result")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	invocations, err := h.store.ListInvocations(ctx, history.ListFilter{
		Result: result,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("list invocations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list invocations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"invocations": toInvocationDTOs(invocations),
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseResult(input string) (string, error) {
	switch strings.ToLower(input) {
	case "":
		return "", nil
	case "success":
		return history.ResultSuccess, nil
	case "failure", "failed", "error":
		return history.ResultFailure, nil
	default:
		return "", errors.New("invalid result")
	}
}

func toInvocationDTOs(in []history.Invocation) []invocationDTO {
	out := make([]invocationDTO, 0, len(in))
	for _, inv := range in {
		out = append(out, invocationDTO{
			ID:         inv.ID,
			Identifier: inv.Identifier,
			Result:     inv.Result,
			Method:     inv.Method,
			Outcome:    inv.Outcome,
			Attempts:   inv.Attempts,
			DurationMS: inv.Duration.Milliseconds(),
			Note:       inv.Note,
			At:         inv.At,
		})
	}
	return out
}

type invocationDTO struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Result     string    `json:"result"`
	Method     string    `json:"method,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Attempts   int       `json:"attempts"`
	DurationMS int64     `json:"duration_ms"`
	Note       string    `json:"note,omitempty"`
	At         time.Time `json:"at"`
}
