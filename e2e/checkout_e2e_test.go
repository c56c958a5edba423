//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-gateways/app/types"
)

const defaultGatewaysHTTPBase = "http://localhost:48080"

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func (c *httpClient) doForm(t *testing.T, path string, form url.Values) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-form-%d", time.Now().UnixNano()))

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func TestCheckoutE2E(t *testing.T) {
	httpBase := os.Getenv("GATEWAYS_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultGatewaysHTTPBase
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	client := newHTTPClient(httpBase)

	t.Run("HTTPListGateways", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/gateways", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		var payload types.ListGatewaysResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal gateways failed: %v body=%s", err, string(body))
		}
		if len(payload.Gateways) == 0 {
			t.Fatal("expected at least one registered gateway")
		}
	})

	t.Run("HTTPValidationStartPayment", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/checkout/invoice/form", map[string]any{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid start payment, got %d body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("HTTPUnknownGateway", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/checkout/worldpay/form", map[string]any{
			"cart_number":  "e2e-cart",
			"amount":       "10.00",
			"currency":     "DKK",
			"continue_url": "https://shop.example/continue",
			"cancel_url":   "https://shop.example/cancel",
			"callback_url": "https://shop.example/callback",
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown gateway, got %d body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("HTTPOrdersMissingRequestID", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, httpBase+"/orders", nil)
		if err != nil {
			t.Fatalf("new request failed: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for missing x-request-id, got %d", resp.StatusCode)
		}
	})

	t.Run("HTTPListOrders", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/orders?limit=10&offset=0", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		var payload types.ListOrdersResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal list orders failed: %v body=%s", err, string(body))
		}
	})

	t.Run("HTTPGetOrderNotFound", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/orders/e2e-missing-cart", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("HTTPCaptureNotFound", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/orders/e2e-missing-cart/capture", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("HTTPInvoiceCheckoutFlow", func(t *testing.T) {
		cart := fmt.Sprintf("e2e-cart-%d", time.Now().UnixNano())

		resp, body := client.doJSON(t, http.MethodPost, "/checkout/invoice/form", map[string]any{
			"cart_number":  cart,
			"amount":       "120.50",
			"currency":     "DKK",
			"continue_url": "https://shop.example/continue",
			"cancel_url":   "https://shop.example/cancel",
			"callback_url": "https://shop.example/callback",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		var form types.PaymentFormResponse
		if err := json.Unmarshal(body, &form); err != nil {
			t.Fatalf("unmarshal form failed: %v body=%s", err, string(body))
		}
		if form.Order == nil || form.Order.CartNumber != cart {
			t.Fatalf("unexpected order in form response: %+v", form.Order)
		}

		resp, body = client.doForm(t, "/callbacks/invoice/"+cart, url.Values{"cart_number": {cart}})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for invoice callback, got %d body=%s", resp.StatusCode, string(body))
		}

		resp, body = client.doJSON(t, http.MethodGet, "/orders/"+cart, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		var envelope types.OrderEnvelopeResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Fatalf("unmarshal order failed: %v body=%s", err, string(body))
		}
		if envelope.Order.PaymentState != "authorized" {
			t.Fatalf("expected authorized order after invoice callback, got %s", envelope.Order.PaymentState)
		}
	})
}
