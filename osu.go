package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const osuAPIBase = "https://osu.ppy.sh/api"

// OsuUser is the slice of the osu! v1 get_user payload the bot cares about.
// The API returns every field as a string.
type OsuUser struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Country  string `json:"country"`
	PPRank   string `json:"pp_rank"`
	PPRaw    string `json:"pp_raw"`
}

func (u OsuUser) AvatarURL() string {
	return "https://a.ppy.sh/" + u.UserID
}

// ExternalLookupError means the osu! API did not confirm the account: a
// transport failure, a non-200 status, or an id that does not exist.
// Registration is blocked when one is returned, never silently skipped.
type ExternalLookupError struct {
	OsuID  string
	Reason string
	Err    error
}

func (e *ExternalLookupError) Error() string {
	return fmt.Sprintf("osu! lookup for %s failed: %s", e.OsuID, e.Reason)
}
func (e *ExternalLookupError) Unwrap() error { return e.Err }

type osuClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newOsuClient(apiKey string) *osuClient {
	return &osuClient{
		baseURL: osuAPIBase,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// User confirms an osu! account exists and returns its profile summary.
func (c *osuClient) User(ctx context.Context, osuID string) (*OsuUser, error) {
	query := url.Values{}
	query.Set("k", c.apiKey)
	query.Set("u", osuID)
	query.Set("type", "id")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_user?"+query.Encode(), nil)
	if err != nil {
		return nil, &ExternalLookupError{OsuID: osuID, Reason: "bad request", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ExternalLookupError{OsuID: osuID, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ExternalLookupError{OsuID: osuID, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var users []OsuUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, &ExternalLookupError{OsuID: osuID, Reason: "malformed response", Err: err}
	}
	if len(users) == 0 {
		return nil, &ExternalLookupError{OsuID: osuID, Reason: "no such user"}
	}
	return &users[0], nil
}
