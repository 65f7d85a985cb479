// Package catalog integrates the Spotify Web API as the playlist catalog.
// Search runs over client credentials; creating real, shareable playlists
// additionally needs a user session obtained through the OAuth endpoints.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"moodtunes/internal/mood"
	"moodtunes/internal/platform/config"
)

var (
	// ErrMissingCredentials is returned when SPOTIFY_CLIENT_ID or
	// SPOTIFY_CLIENT_SECRET is not set.
	ErrMissingCredentials = errors.New("missing SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET environment variable")

	// ErrNotAuthenticated is returned when playlist creation is requested but
	// no user has completed the OAuth flow.
	ErrNotAuthenticated = errors.New("no authenticated spotify user session")
)

// playlistPrefix names every playlist this service creates, so cleanup can
// find them again.
const playlistPrefix = "moodtunes"

// moodQueries maps each label to catalog search terms.
var moodQueries = map[mood.Label]string{
	mood.Happy:    "happy upbeat pop dance energetic",
	mood.Sad:      "sad melancholic acoustic emotional heartbreak",
	mood.Angry:    "angry rock metal aggressive",
	mood.Fear:     "ambient dark atmospheric calm soothing",
	mood.Surprise: "electronic experimental pop energetic dance",
	mood.Disgust:  "rock alternative metal",
	mood.Neutral:  "pop indie chill relaxed",
}

// Config holds Spotify API configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Market       string
}

// LoadConfig reads Spotify configuration from environment variables.
// Returns ErrMissingCredentials if the client ID or secret is not set.
func LoadConfig() (Config, error) {
	id := config.GetEnv("SPOTIFY_CLIENT_ID", "")
	secret := config.GetEnv("SPOTIFY_CLIENT_SECRET", "")
	if id == "" || secret == "" {
		return Config{}, ErrMissingCredentials
	}
	return Config{
		ClientID:     id,
		ClientSecret: secret,
		RedirectURL:  config.GetEnv("SPOTIFY_REDIRECT_URI", "http://127.0.0.1:8080/callback"),
		Market:       config.GetEnv("SPOTIFY_MARKET", "US"),
	}, nil
}

// Client wraps the Spotify Web API for mood-based search and playlist
// creation. The search client (client credentials) is always available once
// construction succeeds; the user client is nil until the OAuth flow
// completes.
type Client struct {
	search *spotify.Client
	auth   *spotifyauth.Authenticator
	market string
	log    *slog.Logger

	mu   sync.RWMutex
	user *spotify.Client
}

// New returns a Client using cfg. The context is used for token refresh on
// the underlying client-credentials transport, so it should outlive the
// Client (typically context.Background()).
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopeUserReadPrivate,
		),
	)

	return &Client{
		search: spotify.New(creds.Client(ctx), spotify.WithRetry(true)),
		auth:   auth,
		market: cfg.Market,
		log:    log,
	}, nil
}

// SearchTracks implements mood.Catalog. The query is the label's search-term
// table plus any seed track names; duplicate track IDs are filtered out.
func (c *Client) SearchTracks(ctx context.Context, label mood.Label, seeds []string, limit int) ([]mood.Track, error) {
	query, ok := moodQueries[label]
	if !ok {
		query = "pop music"
	}
	if len(seeds) > 0 {
		query = query + " " + strings.Join(seeds, " ")
	}

	// Search beyond limit to leave room for duplicate filtering.
	searchLimit := limit * 2
	if searchLimit > 50 {
		searchLimit = 50
	}

	results, err := c.search.Search(ctx, query, spotify.SearchTypeTrack,
		spotify.Limit(searchLimit), spotify.Market(c.market))
	if err != nil {
		return nil, fmt.Errorf("searching tracks for %q: %w", label, err)
	}
	if results.Tracks == nil {
		return nil, nil
	}

	tracks := make([]mood.Track, 0, limit)
	seen := make(map[spotify.ID]bool)
	for _, ft := range results.Tracks.Tracks {
		if seen[ft.ID] {
			continue
		}
		seen[ft.ID] = true
		tracks = append(tracks, convertTrack(ft))
		if len(tracks) >= limit {
			break
		}
	}

	c.log.Debug("catalog search",
		slog.String("mood", string(label)),
		slog.Int("tracks", len(tracks)))
	return tracks, nil
}

// convertTrack maps a Spotify track onto the domain track type.
func convertTrack(ft spotify.FullTrack) mood.Track {
	artist := "Unknown Artist"
	if len(ft.Artists) > 0 {
		names := make([]string, len(ft.Artists))
		for i, a := range ft.Artists {
			names[i] = a.Name
		}
		artist = strings.Join(names, ", ")
	}

	imageURL := ""
	if n := len(ft.Album.Images); n > 1 {
		imageURL = ft.Album.Images[1].URL
	} else if n == 1 {
		imageURL = ft.Album.Images[0].URL
	}

	return mood.Track{
		ID:         ft.ID.String(),
		Name:       ft.Name,
		Artist:     artist,
		Album:      ft.Album.Name,
		ImageURL:   imageURL,
		PreviewURL: ft.PreviewURL,
		SpotifyURL: ft.ExternalURLs["spotify"],
		DurationMs: int(ft.Duration),
		Popularity: int(ft.Popularity),
	}
}

const maxTracksPerRequest = 100

// EnsurePlaylist implements mood.Catalog: it creates a public playlist for
// the current user holding tracks and returns its shareable URL. Returns
// ErrNotAuthenticated when no user session exists.
func (c *Client) EnsurePlaylist(ctx context.Context, label mood.Label, tracks []mood.Track) (string, error) {
	user := c.userClient()
	if user == nil {
		return "", ErrNotAuthenticated
	}

	me, err := user.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("getting current user: %w", err)
	}

	name := fmt.Sprintf("%s %s mood", playlistPrefix, label)
	description := fmt.Sprintf("curated %s playlist generated by live mood detection", label)
	playlist, err := user.CreatePlaylistForUser(ctx, me.ID, name, description, true, false)
	if err != nil {
		return "", fmt.Errorf("creating playlist: %w", err)
	}

	ids := make([]spotify.ID, 0, len(tracks))
	seen := make(map[string]bool)
	for _, t := range tracks {
		if t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		ids = append(ids, spotify.ID(t.ID))
	}

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		if _, err := user.AddTracksToPlaylist(ctx, playlist.ID, ids[i:end]...); err != nil {
			return "", fmt.Errorf("adding tracks (batch %d-%d): %w", i+1, end, err)
		}
	}

	url := playlist.ExternalURLs["spotify"]
	if url == "" {
		url = fmt.Sprintf("https://open.spotify.com/playlist/%s", playlist.ID)
	}

	c.log.Info("playlist created",
		slog.String("mood", string(label)),
		slog.String("url", url),
		slog.Int("tracks", len(ids)))
	return url, nil
}

// Authenticated implements mood.Catalog.
func (c *Client) Authenticated() bool {
	return c.userClient() != nil
}

// AuthURL returns the Spotify authorization URL for the given state.
func (c *Client) AuthURL(state string) string {
	return c.auth.AuthURL(state)
}

// Exchange swaps an authorization code for a token and installs the user
// session.
func (c *Client) Exchange(ctx context.Context, code string) error {
	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	return c.setSession(ctx, token)
}

func (c *Client) setSession(ctx context.Context, token *oauth2.Token) error {
	user := spotify.New(c.auth.Client(ctx, token), spotify.WithRetry(true))

	me, err := user.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("verifying user session: %w", err)
	}

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()

	c.log.Info("spotify user session established",
		slog.String("user_id", me.ID),
		slog.String("display_name", me.DisplayName))
	return nil
}

// UserDisplayName returns the authenticated user's id and display name, or
// ErrNotAuthenticated.
func (c *Client) UserDisplayName(ctx context.Context) (id, name string, err error) {
	user := c.userClient()
	if user == nil {
		return "", "", ErrNotAuthenticated
	}
	me, err := user.CurrentUser(ctx)
	if err != nil {
		return "", "", err
	}
	return me.ID, me.DisplayName, nil
}

// DeletedPlaylist describes one playlist removed by Cleanup.
type DeletedPlaylist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

// Cleanup unfollows every playlist this service created for the current
// user (identified by the playlist name prefix).
func (c *Client) Cleanup(ctx context.Context) ([]DeletedPlaylist, error) {
	user := c.userClient()
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	page, err := user.CurrentUsersPlaylists(ctx, spotify.Limit(50))
	if err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}

	var mine []spotify.SimplePlaylist
	for {
		for _, pl := range page.Playlists {
			if strings.HasPrefix(strings.ToLower(pl.Name), playlistPrefix) {
				mine = append(mine, pl)
			}
		}
		err = user.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing playlists: %w", err)
		}
	}

	deleted := make([]DeletedPlaylist, 0, len(mine))
	for _, pl := range mine {
		if err := user.UnfollowPlaylist(ctx, pl.ID); err != nil {
			c.log.Warn("failed to delete playlist",
				slog.String("name", pl.Name),
				slog.String("error", err.Error()))
			continue
		}
		deleted = append(deleted, DeletedPlaylist{
			Name: pl.Name,
			ID:   pl.ID.String(),
			URL:  pl.ExternalURLs["spotify"],
		})
	}

	c.log.Info("cleanup complete", slog.Int("deleted", len(deleted)))
	return deleted, nil
}

func (c *Client) userClient() *spotify.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}
