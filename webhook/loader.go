package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/settlement-quoter/metrics"
)

// maxConfigBody bounds how much of the config response is read.
const maxConfigBody = 64 << 10

// ConfigResponse is the body of GET /api/config.
type ConfigResponse struct {
	WebhookURL string `json:"webhookUrl"`
}

// ConfigLoader fetches the webhook URL from the config endpoint once at startup.
type ConfigLoader struct {
	Endpoint string
	Client   *http.Client
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// NewConfigLoader creates a loader with a client bounded by timeout.
func NewConfigLoader(endpoint string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *ConfigLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigLoader{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
		Logger:   logger,
		Metrics:  m,
	}
}

// Load issues one GET and returns the advertised URL. Any failure wraps
// ErrConfigUnavailable.
func (l *ConfigLoader) Load(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: HTTP %d", ErrConfigUnavailable, resp.StatusCode)
	}

	var body ConfigResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxConfigBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: malformed body: %v", ErrConfigUnavailable, err)
	}
	if body.WebhookURL == "" {
		return "", fmt.Errorf("%w: empty webhookUrl", ErrConfigUnavailable)
	}
	return body.WebhookURL, nil
}

// Start loads the URL in the background and stores it in target on success.
// Failures are logged and leave target untouched, so startup never waits on the
// config endpoint. The returned channel closes when the fetch has finished.
func (l *ConfigLoader) Start(ctx context.Context, target *Target) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		url, err := l.Load(ctx)
		if err != nil {
			l.Metrics.ConfigFetch(metrics.OutcomeFallback)
			l.Logger.Warn("webhook config unavailable, using fallback",
				zap.String("op", "webhook.config"),
				zap.String("endpoint", l.Endpoint),
				zap.String("fallback", target.URL()),
				zap.Error(err),
			)
			return
		}

		target.Set(url)
		l.Metrics.ConfigFetch(metrics.OutcomeSuccess)
		l.Logger.Info("webhook target configured",
			zap.String("op", "webhook.config"),
			zap.String("endpoint", l.Endpoint),
		)
	}()
	return done
}

func (l *ConfigLoader) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return http.DefaultClient
}
