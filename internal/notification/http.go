package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"herald/internal/config"
	"herald/internal/constants"
)

type welcomeRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Template    string `json:"template"`
}

// HTTPNotifier posts welcome requests to a notification webhook.
type HTTPNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPNotifier(cfg config.NotifierConfig) *HTTPNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &HTTPNotifier{
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

func (n *HTTPNotifier) Name() string {
	return constants.NotifierHTTP
}

func (n *HTTPNotifier) Notify(ctx context.Context, email, displayName string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "notification rate limit")
	}

	body, err := json.Marshal(welcomeRequest{
		Email:       email,
		DisplayName: displayName,
		Template:    "welcome",
	})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.Errorf("notification endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	return nil
}
