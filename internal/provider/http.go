package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vietddude/atelier/internal/core/domain"
)

// HTTPProvider adapts a JSON REST image-generation API. The wire shape is
// the lowest common denominator the interchangeable backends share: POST a
// prompt, get back an image URL.
type HTTPProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client

	monitor *Monitor
}

// NewHTTPProvider creates an HTTP-based generation provider.
func NewHTTPProvider(name, endpoint, apiKey, model string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		monitor: NewMonitor(),
	}
}

// Name returns the provider's name.
func (p *HTTPProvider) Name() string {
	return p.name
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type generateResponse struct {
	ImageURL string `json:"image_url"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateImage renders the prompt. Failures are normalized into the
// generation error taxonomy at this boundary; no raw transport error
// escapes to the routing layers.
func (p *HTTPProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	url, err := p.generate(ctx, prompt)
	if err != nil {
		p.monitor.RecordFailure()
		return "", err
	}

	p.monitor.RecordSuccess(time.Since(start))
	return url, nil
}

func (p *HTTPProvider) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, Model: p.model})
	if err != nil {
		return "", domain.NewInvalidRequest(fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewInvalidRequest(fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", domain.NewTimeout(fmt.Sprintf("%s: %v", p.name, err))
		}
		return "", domain.NewServiceUnavailable(fmt.Sprintf("%s: %v", p.name, err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(p.name, resp); err != nil {
		return "", err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewServiceUnavailable(fmt.Sprintf("%s: read response: %v", p.name, err))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", domain.NewUnknown(fmt.Sprintf("%s: parse response: %v", p.name, err))
	}
	if out.Error != nil {
		return "", domain.Classify(fmt.Errorf("%s: %s", p.name, out.Error.Message))
	}
	if out.ImageURL == "" {
		return "", domain.NewUnknown(fmt.Sprintf("%s: response carried no image url", p.name))
	}

	return out.ImageURL, nil
}

func classifyStatus(name string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewRateLimited(
			fmt.Sprintf("%s: rate limited (429)", name),
			parseRetryAfter(resp.Header.Get("Retry-After")),
		)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewAuthenticationError(fmt.Sprintf("%s: rejected credentials (%d)", name, resp.StatusCode))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return domain.NewInvalidRequest(fmt.Sprintf("%s: rejected request (%d)", name, resp.StatusCode))
	case resp.StatusCode >= 500:
		return domain.NewServiceUnavailable(fmt.Sprintf("%s: server error (%d)", name, resp.StatusCode))
	default:
		return domain.NewUnknown(fmt.Sprintf("%s: unexpected status %d", name, resp.StatusCode))
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Status returns the monitor's current snapshot.
func (p *HTTPProvider) Status(ctx context.Context) Status {
	return p.monitor.Snapshot()
}
