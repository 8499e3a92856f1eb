// Package oauth2 verifies tokens issued to mobile clients by Facebook and
// Google and turns them into auth.ProviderIdentity values.
//
// The server never runs the authorization code flow itself: clients sign in
// with the provider SDK and hand over the resulting token, which is checked
// here against the provider and the configured application ids.
package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	auth "github.com/prkng/auth"
)

// DefaultTimeout bounds every call made to a provider
const DefaultTimeout = 5 * time.Second

// maxBodySize caps how much of a provider response is read
const maxBodySize = 1 << 20

// NewHTTPClient returns the client verifiers use when none is injected
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON issues a GET to rawURL with params and decodes a successful
// response into out. Non-2xx responses become provider errors carrying the
// upstream status and body; transport failures become 502, timeouts 504.
// The raw body is returned so callers can keep a snapshot of it.
func getJSON(ctx context.Context, client *http.Client, rawURL string, params url.Values, out any) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider url %q: %w", rawURL, err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, auth.NewProviderError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return nil, auth.NewProviderError(http.StatusBadGateway, body)
	}
	return body, nil
}

func transportError(err error) error {
	status := http.StatusBadGateway
	if isTimeout(err) {
		status = http.StatusGatewayTimeout
	}
	pe := auth.NewProviderError(status, nil)
	pe.Message = err.Error()
	return pe
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// snapshot decodes a provider payload into the opaque profile map stored on
// the auth method
func snapshot(body []byte) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil
	}
	return out
}
