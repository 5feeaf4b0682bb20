package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/challenge"
	"github.com/ovsienko/statusgate/internal/status"
)

const statusBody = `{"StatusInfo":[` +
	`{"StatusName":"Submitted","StatusDateUF":"1700000000000"},` +
	`{"StatusName":"Passport issued","StatusDateUF":"1700086400000"}]}`

const challengePage = `<!DOCTYPE html>
<html><head><title>Just a moment...</title></head>
<body><div id="cf-browser-verification"></div></body></html>`

func newTestFetcher(t *testing.T, baseURL string, waitAttempts int) *Fetcher {
	t.Helper()
	f, err := New(Config{
		TargetBaseURL:         baseURL,
		Headless:              true,
		MaxParallel:           1,
		NavigationTimeout:     10 * time.Second,
		ChallengeWaitAttempts: waitAttempts,
		ChallengePollInterval: 100 * time.Millisecond,
	}, challenge.New(), zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, challenge.New(), zap.NewNop())
	require.Error(t, err)

	_, err = New(Config{TargetBaseURL: "no-scheme"}, challenge.New(), zap.NewNop())
	require.Error(t, err)

	f, err := New(Config{TargetBaseURL: "https://example.test/status"}, challenge.New(), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, f.cfg.NavigationTimeout)
	require.Equal(t, time.Second, f.cfg.ChallengePollInterval)
	require.Equal(t, 1, cap(f.limiter))
}

func TestResponseMetaCapturesDocumentOnly(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()

	meta.captureEvent(&network.EventResponseReceived{
		RequestID: "sub",
		Type:      network.ResourceTypeXHR,
		Response:  &network.Response{Status: 500, URL: "https://example.test/xhr"},
	})
	code, url, id := meta.snapshot()
	require.Zero(t, code)
	require.Empty(t, url)
	require.Empty(t, id)

	meta.captureEvent(&network.EventResponseReceived{
		RequestID: "doc",
		Type:      network.ResourceTypeDocument,
		Response:  &network.Response{Status: 403, URL: "https://example.test/"},
	})
	code, url, id = meta.snapshot()
	require.Equal(t, 403, code)
	require.Equal(t, "https://example.test/", url)
	require.Equal(t, network.RequestID("doc"), id)
}

func TestWaitForClearanceZeroBudget(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, "https://example.test/status", 0)
	require.False(t, f.waitForClearance(context.Background(), "https://example.test/status"))
}

func TestPauseHonorsContext(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, "https://example.test/status", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, f.pause(ctx, time.Minute))
	require.True(t, f.pause(context.Background(), time.Millisecond))
}

func TestAcquireBlocksAtCapacity(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, "https://example.test/status", 0)
	require.NoError(t, f.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.acquire(ctx)
	require.ErrorContains(t, err, "slot wait canceled")

	f.release()
	require.NoError(t, f.acquire(context.Background()))
	f.release()
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	h := toNetworkHeaders(map[string]string{"Accept": "application/json", "Pragma": "no-cache"})
	require.Equal(t, "application/json", h["Accept"])
	require.Equal(t, "no-cache", h["Pragma"])
	require.Len(t, h, 2)
}

func TestFetchRendersCleanTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, statusBody)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/Home/CurrentSessionStatus", 2)
	res := f.Fetch(context.Background(), "1006655", "")
	if res.Kind != status.KindSuccess {
		t.Skipf("chromedp unavailable: %v", res.Err)
	}

	require.Len(t, res.Statuses, 2)
	require.Equal(t, "Submitted", res.Statuses[0].Name)
	require.Equal(t, "Passport issued", res.Statuses[1].Name)
}

func TestFetchClearsChallengeViaCookie(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.SetCookie(w, &http.Cookie{Name: challenge.ClearanceCookie, Value: "ok", Path: "/"})
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, challengePage)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, statusBody)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/Home/CurrentSessionStatus", 5)
	res := f.Fetch(context.Background(), "1006655", "")
	if res.Kind != status.KindSuccess {
		t.Skipf("chromedp unavailable: %v", res.Err)
	}

	require.Len(t, res.Statuses, 2)
	require.GreaterOrEqual(t, hits.Load(), int64(2))
}

func TestFetchChallengeTimeoutCarriesCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, challengePage)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL+"/Home/CurrentSessionStatus", 2)
	res := f.Fetch(context.Background(), "1006655", "")
	if res.Kind != status.KindRetryable || res.Outcome == status.OutcomeNetworkError {
		t.Skipf("chromedp unavailable: %v", res.Err)
	}

	require.Equal(t, status.OutcomeChallengeTimeout, res.Outcome)
	require.ErrorContains(t, res.Err, "challenge")
	if res.Capture != nil {
		require.NotEmpty(t, res.Capture.Screenshot)
		require.Contains(t, res.Capture.PageTitle, "moment")
	}
}
