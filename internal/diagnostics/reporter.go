package diagnostics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/metrics"
	"github.com/ovsienko/statusgate/internal/status"
)

// Artifact kinds delivered to the operator channel.
const (
	KindScreenshot = "screenshot"
	KindMessage    = "message"
)

// Config selects the ntfy server and topic for operator notifications. An
// empty topic leaves delivery disabled.
type Config struct {
	BaseURL string
	Topic   string
	Timeout time.Duration
}

// Reporter delivers failure evidence to the operator channel. The pipeline
// calls it at most once per invocation; delivery is best effort and never
// feeds an error back into the fetch path.
type Reporter struct {
	client *NtfyClient
	topic  string
	ids    status.IDGenerator
	logger *zap.Logger
}

// NewReporter creates a Reporter. A missing base URL or topic is tolerated
// here and reported as a configuration failure at delivery time.
func NewReporter(cfg Config, ids status.IDGenerator, logger *zap.Logger) *Reporter {
	metrics.Init()
	return &Reporter{
		client: NewNtfyClient(cfg.BaseURL, cfg.Timeout),
		topic:  cfg.Topic,
		ids:    ids,
		logger: logger,
	}
}

// Report sends one notification describing a failed invocation and returns
// a reference to the delivered artifact, or nil when nothing was delivered.
func (r *Reporter) Report(ctx context.Context, identifier string, capture *status.Capture) *status.ArtifactRef {
	if r.topic == "" || r.client == nil || r.client.baseURL == "" {
		r.logger.Warn("diagnostics channel is not configured, dropping report",
			zap.String("identifier", identifier))
		metrics.ObserveDiagnosticsDelivery("unconfigured")
		return nil
	}

	kind := KindMessage
	n := Notification{
		Title:    fmt.Sprintf("statusgate: fetch failed for %s", identifier),
		Message:  fmt.Sprintf("Status fetch failed for %s", identifier),
		Priority: "urgent",
	}
	if capture != nil {
		n.Message = fmt.Sprintf("%s\nURL: %s\nTitle: %s", n.Message, capture.PageURL, capture.PageTitle)
		if len(capture.Screenshot) > 0 {
			n.Filename = "screenshot.png"
			n.Attachment = capture.Screenshot
			kind = KindScreenshot
		}
	}

	if err := r.client.Push(ctx, r.topic, n); err != nil {
		r.logger.Warn("diagnostics delivery failed",
			zap.String("identifier", identifier),
			zap.Error(err))
		metrics.ObserveDiagnosticsDelivery("failed")
		return nil
	}
	metrics.ObserveDiagnosticsDelivery("delivered")

	id, err := r.ids.NewID()
	if err != nil {
		r.logger.Warn("diagnostics artifact id generation failed", zap.Error(err))
	}
	r.logger.Info("diagnostics delivered",
		zap.String("identifier", identifier),
		zap.String("artifact_id", id),
		zap.String("kind", kind))
	return &status.ArtifactRef{ID: id, Kind: kind}
}
