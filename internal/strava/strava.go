// Package strava fetches completed activities from the Strava API. The
// OAuth handshake happens elsewhere; this package only needs a stored
// token to build an authenticated client.
package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/nbouchiba/allure/internal/cache"
	"github.com/nbouchiba/allure/internal/client"
)

var (
	BaseURL     = "https://www.strava.com/api/v3"
	OauthConfig = &oauth2.Config{
		ClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://www.strava.com/oauth/authorize",
			TokenURL: "https://www.strava.com/oauth/token",
		},
		RedirectURL: os.Getenv("STRAVA_REDIRECT_URI"),
		Scopes:      []string{"activity:read_all"},
	}
)

// TokenCacheKey is where the oauth2 token lives in the cache.
const TokenCacheKey = "strava_token"

// Activity holds only the fields we want from a Strava activity.
// Distance is in meters, MovingTime in seconds, as sent by the API.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	AverageHeartrate   float64   `json:"average_heartrate"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	Calories           float64   `json:"calories"`
}

// persistingTokenSource writes refreshed tokens back to the cache so the
// next run doesn't redo the refresh.
type persistingTokenSource struct {
	ctx   context.Context
	src   oauth2.TokenSource
	store cache.Cache
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	if err := p.store.SetJSON(p.ctx, TokenCacheKey, token); err != nil {
		return nil, fmt.Errorf("persisting refreshed token: %w", err)
	}
	return token, nil
}

// NewAuthedClient builds a REST client authenticated with the token held
// in the cache.
func NewAuthedClient(ctx context.Context, store cache.Cache) (*client.Client, error) {
	var token oauth2.Token
	if err := store.GetJSON(ctx, TokenCacheKey, &token); err != nil {
		return nil, fmt.Errorf("loading strava token: %w", err)
	}

	ts := &persistingTokenSource{
		ctx:   ctx,
		src:   OauthConfig.TokenSource(ctx, &token),
		store: store,
	}
	httpClient := oauth2.NewClient(ctx, ts)

	u, err := url.Parse(BaseURL)
	if err != nil {
		return nil, err
	}
	return client.New(u, httpClient), nil
}

// GetActivities fetches one page of the athlete's activities, newest first.
// after limits the result to activities started after the given epoch
// second; pass 0 for no lower bound.
func GetActivities(ctx context.Context, c *client.Client, after int64, perPage int) ([]Activity, error) {
	if perPage <= 0 {
		perPage = 30
	}
	path := fmt.Sprintf("/api/v3/athlete/activities?per_page=%d", perPage)
	if after > 0 {
		path += fmt.Sprintf("&after=%d", after)
	}

	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating activities request: %w", err)
	}

	var activities []Activity
	if _, err := c.Do(req, &activities); err != nil {
		return nil, fmt.Errorf("fetching activities: %w", err)
	}

	return activities, nil
}
