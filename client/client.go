package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	auth "github.com/prkng/auth"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prkng auth: HTTP %d: %s", e.Status, e.Message)
}

// AuthClient talks to the auth endpoints and remembers the issued apikey
type AuthClient struct {
	mu            sync.Mutex
	serverURL     string
	store         CredentialStore
	httpClient    *http.Client
	baseTransport http.RoundTripper
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with apikey handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client != nil && client.Transport != nil {
			c.baseTransport = client.Transport
		}
		if client != nil {
			c.httpClient.Timeout = client.Timeout
			c.httpClient.CheckRedirect = client.CheckRedirect
			c.httpClient.Jar = client.Jar
		}
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// NewAuthClient creates a client for serverURL. A nil store keeps
// credentials in memory.
func NewAuthClient(serverURL string, store CredentialStore, opts ...ClientOption) *AuthClient {
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	if store == nil {
		store = NewMemoryCredentialStore()
	}

	c := &AuthClient{
		serverURL:     serverURL,
		store:         store,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseTransport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.Transport = &storeTransport{client: c, base: c.baseTransport}
	return c
}

// HTTPClient returns an http.Client that sends the stored apikey, for
// calling other prkng endpoints
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerURL returns the server URL this client is configured for
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// GetCredential returns the stored credential for this server
func (c *AuthClient) GetCredential() (*ServerCredential, error) {
	return c.store.GetCredential(c.serverURL)
}

// IsLoggedIn returns true if an apikey is stored for this server
func (c *AuthClient) IsLoggedIn() bool {
	cred, err := c.GetCredential()
	return err == nil && cred != nil && cred.APIKey != ""
}

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Email     string
	Password  string
	Name      string
	Gender    string
	Birthyear string
	ImageURL  string
}

// Register creates an account and stores its apikey
func (c *AuthClient) Register(ctx context.Context, req RegisterRequest) (*auth.UserView, error) {
	form := url.Values{
		"email":    {req.Email},
		"password": {req.Password},
	}
	setIf(form, "name", req.Name)
	setIf(form, "gender", req.Gender)
	setIf(form, "birthyear", req.Birthyear)
	setIf(form, "image_url", req.ImageURL)
	return c.signIn(ctx, "/register", form)
}

// SignInEmail signs in with email and password
func (c *AuthClient) SignInEmail(ctx context.Context, email, password string) (*auth.UserView, error) {
	return c.signIn(ctx, "/login/email", url.Values{"email": {email}, "password": {password}})
}

// SignInFacebook signs in with a Facebook access token from the mobile SDK
func (c *AuthClient) SignInFacebook(ctx context.Context, accessToken string) (*auth.UserView, error) {
	return c.signIn(ctx, "/login/facebook", url.Values{"access_token": {accessToken}})
}

// SignInGoogle signs in with a Google ID token or access token
func (c *AuthClient) SignInGoogle(ctx context.Context, token string) (*auth.UserView, error) {
	return c.signIn(ctx, "/login/google", url.Values{"access_token": {token}})
}

// Profile returns the signed in user
func (c *AuthClient) Profile(ctx context.Context) (*auth.UserView, error) {
	var view auth.UserView
	if err := c.do(ctx, http.MethodGet, "/user/profile", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateProfile changes the given fields. Keys are the form names used by
// the server: email, password, name, gender, birthyear, image_url.
func (c *AuthClient) UpdateProfile(ctx context.Context, fields map[string]string) (*auth.UserView, error) {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	var view auth.UserView
	if err := c.do(ctx, http.MethodPut, "/user/profile", form, &view); err != nil {
		return nil, err
	}
	if err := c.remember(&view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Logout ends the server session and forgets the local credential
func (c *AuthClient) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/logout", nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.RemoveCredential(c.serverURL); err != nil {
		return err
	}
	return c.store.Save()
}

func (c *AuthClient) signIn(ctx context.Context, path string, form url.Values) (*auth.UserView, error) {
	var view auth.UserView
	if err := c.do(ctx, http.MethodPost, path, form, &view); err != nil {
		return nil, err
	}
	if err := c.remember(&view); err != nil {
		return nil, err
	}
	return &view, nil
}

// remember stores the apikey carried by view
func (c *AuthClient) remember(view *auth.UserView) error {
	if view.APIKey == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cred := &ServerCredential{
		APIKey:    view.APIKey,
		UserID:    view.ID,
		UserEmail: view.Email,
		AuthID:    view.AuthID,
		CreatedAt: time.Now(),
	}
	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	if err := c.store.Save(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (c *AuthClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response from server: %w", err)
	}
	return nil
}

// newAPIError decodes the server's JSON string message. Provider errors are
// forwarded as raw JSON objects and are kept as is.
func newAPIError(status int, body []byte) *APIError {
	var msg string
	if err := json.Unmarshal(body, &msg); err != nil {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

func setIf(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}
