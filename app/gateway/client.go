package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultAPITimeout = 10 * time.Second

// apiClient is the thin HTTP wrapper every gateway uses for its REST calls.
// The timeout is explicit and set at construction; gateway API latency must
// never hold a checkout request open indefinitely.
type apiClient struct {
	client *http.Client
}

func newAPIClient(timeout time.Duration) *apiClient {
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	return &apiClient{client: &http.Client{Timeout: timeout}}
}

func (c *apiClient) postJSON(ctx context.Context, rawURL string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, rawURL, headers, "application/json", bytes.NewReader(body))
}

func (c *apiClient) postForm(ctx context.Context, rawURL string, headers map[string]string, values url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, headers, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

func (c *apiClient) getJSON(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, headers, "", nil)
}

func (c *apiClient) do(ctx context.Context, method, rawURL string, headers map[string]string, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway request failed: url=%s status=%d body=%s", rawURL, resp.StatusCode, truncateBody(respBody))
	}

	return respBody, nil
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max])
}

func basicAuth(user, password string) string {
	req, _ := http.NewRequest(http.MethodGet, "http://localhost", nil)
	req.SetBasicAuth(user, password)
	return req.Header.Get("Authorization")
}

// minorUnits converts a decimal amount to the smallest currency unit.
// Every gateway in this repo settles in exponent-2 currencies.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(units int64) decimal.Decimal {
	return decimal.NewFromInt(units).Div(decimal.NewFromInt(100))
}
