package oauth2

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	auth "github.com/prkng/auth"
	"golang.org/x/oauth2"
)

// DefaultGraphURL is the Facebook Graph API root
const DefaultGraphURL = "https://graph.facebook.com"

const facebookProfileFields = "id,email,name,first_name,last_name,gender,picture"

// FacebookVerifier checks a Facebook access token in two steps: the token
// must belong to our app, then the profile it grants access to is fetched.
type FacebookVerifier struct {
	AppID string

	// GraphURL can be overridden for testing
	GraphURL   string
	HTTPClient *http.Client
}

func NewFacebookVerifier(appID string, client *http.Client) *FacebookVerifier {
	if appID == "" {
		appID = strings.TrimSpace(os.Getenv("FACEBOOK_APP_ID"))
	}
	if client == nil {
		client = NewHTTPClient(DefaultTimeout)
	}
	return &FacebookVerifier{
		AppID:      appID,
		GraphURL:   DefaultGraphURL,
		HTTPClient: client,
	}
}

type facebookApp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type facebookProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	Picture   *struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func (p *facebookProfile) pictureURL() string {
	if p.Picture == nil {
		return ""
	}
	return p.Picture.Data.URL
}

func (f *FacebookVerifier) Verify(ctx context.Context, accessToken string) (*auth.ProviderIdentity, error) {
	graph := strings.TrimSuffix(f.GraphURL, "/")
	params := url.Values{"access_token": {accessToken}}

	// tokens minted for another application are refused
	var app facebookApp
	if _, err := getJSON(ctx, f.HTTPClient, graph+"/app/", params, &app); err != nil {
		return nil, err
	}
	if app.ID == "" || app.ID != f.AppID {
		return nil, auth.ErrTokenRejected
	}

	params.Set("fields", facebookProfileFields)
	var me facebookProfile
	body, err := getJSON(ctx, f.HTTPClient, graph+"/me", params, &me)
	if err != nil {
		return nil, err
	}
	if me.Email == "" {
		return nil, auth.ErrEmailRequired
	}
	if me.ID == "" {
		return nil, auth.NewProviderError(http.StatusBadGateway, body)
	}

	return &auth.ProviderIdentity{
		Provider:       auth.AuthTypeFacebook,
		ProviderUserID: me.ID,
		Email:          me.Email,
		Name:           me.Name,
		FirstName:      me.FirstName,
		LastName:       me.LastName,
		Gender:         me.Gender,
		PictureURL:     me.pictureURL(),
		Profile:        snapshot(body),
		Token:          &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"},
	}, nil
}
