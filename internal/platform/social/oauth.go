package social

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"

	types "github.com/clipforge/clipforge-backend/internal/domain"
)

const twitterTokenURL = "https://api.twitter.com/2/oauth2/token"
const linkedinTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"

func oauthConfig(platform types.Platform) (*oauth2.Config, error) {
	switch platform {
	case types.PlatformTwitter:
		return &oauth2.Config{
			ClientID:     os.Getenv("TWITTER_CLIENT_ID"),
			ClientSecret: os.Getenv("TWITTER_CLIENT_SECRET"),
			Endpoint:     oauth2.Endpoint{TokenURL: twitterTokenURL},
		}, nil
	case types.PlatformLinkedIn:
		return &oauth2.Config{
			ClientID:     os.Getenv("LINKEDIN_CLIENT_ID"),
			ClientSecret: os.Getenv("LINKEDIN_CLIENT_SECRET"),
			Endpoint:     oauth2.Endpoint{TokenURL: linkedinTokenURL},
		}, nil
	default:
		return nil, fmt.Errorf("oauth refresh not supported for platform %q", platform)
	}
}

// RefreshedToken holds the persisted fields of a refreshed credential.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// RefreshToken exchanges a refresh token for a fresh access token. The
// provider may rotate the refresh token; callers must persist both before
// using the new access token.
func RefreshToken(ctx context.Context, platform types.Platform, refreshToken string) (*RefreshedToken, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("missing refresh token for platform %q", platform)
	}
	cfg, err := oauthConfig(platform)
	if err != nil {
		return nil, err
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("missing oauth client credentials for platform %q", platform)
	}

	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh %s token: %w", platform, err)
	}

	out := &RefreshedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if out.RefreshToken == "" {
		// provider did not rotate; keep the old one
		out.RefreshToken = refreshToken
	}
	if !tok.Expiry.IsZero() {
		e := tok.Expiry
		out.ExpiresAt = &e
	}
	return out, nil
}
