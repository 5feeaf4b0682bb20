package challenge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const challengeHTML = `<!DOCTYPE html>
<html>
<head><title>Just a moment...</title></head>
<body>
<div id="cf-browser-verification" class="cf-im-under-attack">
<noscript>Please turn JavaScript on and reload the page.</noscript>
</div>
</body>
</html>`

const turnstileHTML = `<!DOCTYPE html>
<html>
<head><title>passport service</title></head>
<body><div id="turnstile-wrapper"><iframe src="about:blank"></iframe></div></body>
</html>`

const cleanHTML = `<!DOCTYPE html>
<html>
<head><title>Session status</title></head>
<body>{"StatusInfo":[{"StatusName":"Submitted","StatusDateUF":"1700000000000"}]}</body>
</html>`

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		snap Snapshot
		want Verdict
	}{
		{
			name: "clean json page",
			snap: Snapshot{
				URL:        "https://passport.example.test/Home/CurrentSessionStatus?sessionId=1",
				Title:      "Session status",
				HTML:       cleanHTML,
				StatusCode: 200,
			},
			want: VerdictClean,
		},
		{
			name: "redirected to challenge host",
			snap: Snapshot{
				URL:        "https://challenges.cloudflare.com/cdn-cgi/challenge-platform/h/b/orchestrate",
				Title:      "",
				StatusCode: 200,
			},
			want: VerdictChallenge,
		},
		{
			name: "interstitial title",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "Just a moment...",
				StatusCode: 503,
			},
			want: VerdictChallenge,
		},
		{
			name: "title case insensitive",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "CHECKING YOUR BROWSER BEFORE ACCESSING",
				StatusCode: 200,
			},
			want: VerdictChallenge,
		},
		{
			name: "verification container with blocked status",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "passport service",
				HTML:       challengeHTML,
				StatusCode: 403,
			},
			want: VerdictChallenge,
		},
		{
			name: "turnstile wrapper",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "passport service",
				HTML:       turnstileHTML,
				StatusCode: 200,
			},
			want: VerdictChallenge,
		},
		{
			name: "chl fragment in markup",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "passport service",
				HTML:       `<html><body><script src="/cdn-cgi/challenge-platform/h/b/cf-chl-widget-abc.js"></script></body></html>`,
				StatusCode: 200,
			},
			want: VerdictChallenge,
		},
		{
			name: "bare forbidden",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "403 Forbidden",
				HTML:       "<html><body>Forbidden</body></html>",
				StatusCode: 403,
			},
			want: VerdictBlocked,
		},
		{
			name: "bare rate limited",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "",
				StatusCode: 429,
			},
			want: VerdictBlocked,
		},
		{
			name: "bare unavailable",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "",
				StatusCode: 503,
			},
			want: VerdictBlocked,
		},
		{
			name: "not found is clean",
			snap: Snapshot{
				URL:        "https://passport.example.test/",
				Title:      "404",
				StatusCode: 404,
			},
			want: VerdictClean,
		},
	}

	det := New()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, det.Classify(tt.snap))
		})
	}
}

func TestIsChallengeHost(t *testing.T) {
	t.Parallel()

	require.True(t, IsChallengeHost("https://challenges.cloudflare.com/turnstile/v0/api.js"))
	require.False(t, IsChallengeHost("https://passport.example.test/Home/CurrentSessionStatus"))
	require.False(t, IsChallengeHost(""))
}

func TestVerdictString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "clean", VerdictClean.String())
	require.Equal(t, "challenge", VerdictChallenge.String())
	require.Equal(t, "blocked", VerdictBlocked.String())
	require.Equal(t, "unknown", Verdict(42).String())
}
