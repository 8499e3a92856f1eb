package oauth2

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"

	auth "github.com/prkng/auth"
	"golang.org/x/oauth2"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// DefaultGoogleTokenInfoURL validates signed ID tokens
	DefaultGoogleTokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"

	// idTokenPrefix is how every base64url encoded JWT header starts
	idTokenPrefix = "eyJh"
)

// IsIDToken reports whether token looks like a signed ID token rather than
// a legacy opaque access token.
func IsIDToken(token string) bool {
	return strings.HasPrefix(token, idTokenPrefix)
}

// GoogleVerifier dispatches on the shape of the token. Recent clients send
// ID tokens; older ones still send OAuth access tokens.
type GoogleVerifier struct {
	Modern *ModernTokenVerifier
	Legacy *LegacyTokenVerifier
}

// NewGoogleVerifier builds both variants from cfg. Missing ids fall back to
// the environment.
func NewGoogleVerifier(cfg *auth.Config, client *http.Client) *GoogleVerifier {
	if cfg == nil {
		cfg = &auth.Config{}
	}
	if client == nil {
		client = NewHTTPClient(cfg.ProviderTimeout)
	}
	audiences := cfg.GoogleIDTokenAudiences()
	if len(audiences) == 0 {
		for _, key := range []string{"GOOGLE_IOS_CLIENT_ID", "GOOGLE_ANDROID_CLIENT_ID"} {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				audiences = append(audiences, v)
			}
		}
	}
	clientID := cfg.GoogleClientID
	if clientID == "" {
		clientID = strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	}
	return &GoogleVerifier{
		Modern: &ModernTokenVerifier{
			Audiences:    audiences,
			TokenInfoURL: DefaultGoogleTokenInfoURL,
			HTTPClient:   client,
		},
		Legacy: &LegacyTokenVerifier{
			ClientID:   clientID,
			HTTPClient: client,
		},
	}
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*auth.ProviderIdentity, error) {
	if IsIDToken(token) {
		return g.Modern.Verify(ctx, token)
	}
	return g.Legacy.Verify(ctx, token)
}

// ModernTokenVerifier validates ID tokens issued by Google Sign-In. The
// token's audience must be one of the mobile client ids.
type ModernTokenVerifier struct {
	Audiences []string

	// TokenInfoURL can be overridden for testing
	TokenInfoURL string
	HTTPClient   *http.Client
}

type idTokenClaims struct {
	Sub        string `json:"sub"`
	Aud        string `json:"aud"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func (m *ModernTokenVerifier) Verify(ctx context.Context, idToken string) (*auth.ProviderIdentity, error) {
	var claims idTokenClaims
	body, err := getJSON(ctx, m.HTTPClient, m.TokenInfoURL, url.Values{"id_token": {idToken}}, &claims)
	if err != nil {
		return nil, err
	}
	if claims.Aud == "" || !slices.Contains(m.Audiences, claims.Aud) {
		return nil, auth.ErrTokenRejected
	}
	if claims.Email == "" {
		return nil, auth.ErrEmailRequired
	}
	if claims.Sub == "" {
		return nil, auth.NewProviderError(http.StatusBadGateway, body)
	}

	return &auth.ProviderIdentity{
		Provider:       auth.AuthTypeGoogle,
		ProviderUserID: claims.Sub,
		Email:          claims.Email,
		Name:           claims.Name,
		FirstName:      claims.GivenName,
		LastName:       claims.FamilyName,
		PictureURL:     claims.Picture,
		Profile:        snapshot(body),
		Token:          &oauth2.Token{AccessToken: idToken},
	}, nil
}

// LegacyTokenVerifier validates OAuth access tokens from older clients: the
// token must have been issued to ClientID, then the profile is fetched with
// it.
type LegacyTokenVerifier struct {
	ClientID string

	// Endpoint overrides the API base path for testing
	Endpoint   string
	HTTPClient *http.Client
}

func (l *LegacyTokenVerifier) service(ctx context.Context, client *http.Client) (*goauth2.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if l.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(l.Endpoint))
	}
	return goauth2.NewService(ctx, opts...)
}

func (l *LegacyTokenVerifier) Verify(ctx context.Context, accessToken string) (*auth.ProviderIdentity, error) {
	base := l.HTTPClient
	if base == nil {
		base = NewHTTPClient(DefaultTimeout)
	}

	svc, err := l.service(ctx, base)
	if err != nil {
		return nil, err
	}
	info, err := svc.Tokeninfo().AccessToken(accessToken).Context(ctx).Do()
	if err != nil {
		return nil, googleError(err)
	}
	if info.Audience == "" || info.Audience != l.ClientID {
		return nil, auth.ErrTokenRejected
	}

	// userinfo needs the token as a bearer credential
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	authed := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), oauth2.StaticTokenSource(tok))
	authed.Timeout = base.Timeout
	svc, err = l.service(ctx, authed)
	if err != nil {
		return nil, err
	}
	me, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, googleError(err)
	}
	if me.Email == "" {
		return nil, auth.ErrEmailRequired
	}
	if me.Id == "" {
		body, _ := me.MarshalJSON()
		return nil, auth.NewProviderError(http.StatusBadGateway, body)
	}

	profile := map[string]any{
		"id":          me.Id,
		"email":       me.Email,
		"name":        me.Name,
		"given_name":  me.GivenName,
		"family_name": me.FamilyName,
		"picture":     me.Picture,
		"gender":      me.Gender,
		"locale":      me.Locale,
	}
	return &auth.ProviderIdentity{
		Provider:       auth.AuthTypeGoogle,
		ProviderUserID: me.Id,
		Email:          me.Email,
		Name:           me.Name,
		FirstName:      me.GivenName,
		LastName:       me.FamilyName,
		Gender:         me.Gender,
		PictureURL:     me.Picture,
		Profile:        profile,
		Token:          tok,
	}, nil
}

// googleError converts client library failures into provider errors
func googleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := []byte(gerr.Body)
		return auth.NewProviderError(gerr.Code, body)
	}
	return transportError(err)
}
