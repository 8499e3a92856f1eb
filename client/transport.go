package client

import (
	"net/http"
)

// APIKeyHeader is the request header the server reads the apikey from
const APIKeyHeader = "X-API-KEY"

// AuthTransport wraps an http.RoundTripper to add a fixed apikey
type AuthTransport struct {
	Base   http.RoundTripper
	APIKey string
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return roundTrip(t.Base, req, t.APIKey)
}

// NewAuthTransport creates an AuthTransport with the given apikey
func NewAuthTransport(apikey string) *AuthTransport {
	return &AuthTransport{
		Base:   http.DefaultTransport,
		APIKey: apikey,
	}
}

// NewAuthTransportWithBase creates an AuthTransport with a custom base transport
func NewAuthTransportWithBase(base http.RoundTripper, apikey string) *AuthTransport {
	return &AuthTransport{
		Base:   base,
		APIKey: apikey,
	}
}

// storeTransport reads the apikey from the client's store on every request,
// so a sign-in is picked up without rebuilding the http.Client.
type storeTransport struct {
	client *AuthClient
	base   http.RoundTripper
}

func (t *storeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	apikey := ""
	if req.Header.Get(APIKeyHeader) == "" {
		cred, err := t.client.GetCredential()
		if err != nil {
			return nil, err
		}
		if cred != nil {
			apikey = cred.APIKey
		}
	}
	return roundTrip(t.base, req, apikey)
}

func roundTrip(base http.RoundTripper, req *http.Request, apikey string) (*http.Response, error) {
	if apikey != "" {
		// Clone the request to avoid mutating the original
		req = req.Clone(req.Context())
		req.Header.Set(APIKeyHeader, apikey)
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
