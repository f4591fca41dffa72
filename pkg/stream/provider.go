// Package stream polls a streaming platform for the live status of a
// set of usernames and publishes transitions (stream started, stream
// ended) on the event bus. The host streamer gets its own event pair so
// the bot can mute announcements while the host is live.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/twitch"
)

// Status is one polled streamer's state at a point in time.
type Status struct {
	Username string
	// Live is true while the platform reports an active broadcast.
	Live bool
	// Title is the stream title, empty when offline.
	Title string
	// URL is the public watch page for the streamer.
	URL string
}

// Provider answers live-status queries for a batch of usernames.
// Implementations must return a Status for every requested username,
// including unknown ones (reported as offline).
type Provider interface {
	// StreamStatuses fetches the current status of all given usernames
	// in one call.
	StreamStatuses(ctx context.Context, usernames []string) (map[string]Status, error)

	// Reconnect drops any cached session state so the next query
	// authenticates from scratch.
	Reconnect()
}

// ---------------------------------------------------------------------------
// Twitch Helix provider
// ---------------------------------------------------------------------------

const (
	helixStreamsURL = "https://api.twitch.tv/helix/streams"
	helixTimeout    = 10 * time.Second
)

// TwitchProvider queries the Twitch Helix API using an app access token
// obtained through the client-credentials flow.
type TwitchProvider struct {
	clientID string
	conf     *clientcredentials.Config
	client   *http.Client
}

var _ Provider = (*TwitchProvider)(nil)

// NewTwitchProvider creates a provider for the given application
// credentials. No network traffic happens until the first query.
func NewTwitchProvider(clientID, clientSecret string) *TwitchProvider {
	p := &TwitchProvider{
		clientID: clientID,
		conf: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     twitch.Endpoint.TokenURL,
		},
	}
	p.Reconnect()
	return p
}

// Reconnect discards the cached OAuth token source.
func (p *TwitchProvider) Reconnect() {
	p.client = p.conf.Client(context.Background())
	p.client.Timeout = helixTimeout
}

type helixStreamsResponse struct {
	Data []struct {
		UserLogin string `json:"user_login"`
		Title     string `json:"title"`
		Type      string `json:"type"`
	} `json:"data"`
}

// StreamStatuses queries Helix for all usernames in one request. Names
// the API does not return are reported offline.
func (p *TwitchProvider) StreamStatuses(ctx context.Context, usernames []string) (map[string]Status, error) {
	statuses := make(map[string]Status, len(usernames))
	for _, name := range usernames {
		name = strings.ToLower(name)
		statuses[name] = Status{Username: name, URL: WatchURL(name)}
	}
	if len(statuses) == 0 {
		return statuses, nil
	}

	q := url.Values{}
	for name := range statuses {
		q.Add("user_login", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, helixStreamsURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build helix request: %w", err)
	}
	req.Header.Set("Client-Id", p.clientID)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query helix streams: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("helix streams returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed helixStreamsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode helix response: %w", err)
	}

	for _, s := range parsed.Data {
		name := strings.ToLower(s.UserLogin)
		if s.Type != "live" {
			continue
		}
		statuses[name] = Status{
			Username: name,
			Live:     true,
			Title:    s.Title,
			URL:      WatchURL(name),
		}
	}
	return statuses, nil
}

// WatchURL returns the public watch page for a Twitch username.
func WatchURL(username string) string {
	return "https://twitch.tv/" + strings.ToLower(username)
}
