package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Together/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	SpotifyServiceID        = "spotify"
	DefaultSpotifyAPIURL    = "https://api.spotify.com/v1"
	DefaultSpotifyTokenURL  = "https://accounts.spotify.com/api/token"
	_spotifyMarket          = "ES"
	_spotifyTokenSkew       = 30 * time.Second
	_spotifyKindTrack       = "track"
	_spotifyKindEpisode     = "episode"
	_spotifyCollectionLimit = 50
)

var (
	spotifyIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

	ErrSpotifyCredentials = errors.New("spotify client credentials are not configured")
)

// Spotify resolves tracks and podcast episodes. Ids have the form "track:<id>" or
// "episode:<id>". Tokens expire, so resolved metadata is never cached.
type Spotify struct {
	clientID     string
	clientSecret string
	apiURL       string
	tokenURL     string
	client       *http.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
	refresh singleflight.Group
}

type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	APIURL       string
	TokenURL     string
}

func NewSpotify(opts SpotifyOptions, client *http.Client) *Spotify {
	if opts.APIURL == "" {
		opts.APIURL = DefaultSpotifyAPIURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultSpotifyTokenURL
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &Spotify{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		apiURL:       strings.TrimRight(opts.APIURL, "/"),
		tokenURL:     opts.TokenURL,
		client:       client,
		now:          time.Now,
	}
}

func (s *Spotify) ServiceID() string { return SpotifyServiceID }

func (s *Spotify) IsCacheSafe() bool { return false }

func (s *Spotify) CanHandleURL(rawURL string) bool {
	u, ok := parseURL(rawURL)
	if !ok {
		return false
	}
	return u.Scheme == "spotify" || hostIs(u, "open.spotify.com")
}

// spotifyPath returns the resource kind and id, for both
// https://open.spotify.com/track/<id> and spotify:track:<id>.
func spotifyPath(rawURL string) (kind, id string) {
	u, ok := parseURL(rawURL)
	if !ok {
		return "", ""
	}
	var parts []string
	if u.Scheme == "spotify" {
		parts = strings.Split(u.Opaque, ":")
	} else {
		parts = strings.Split(strings.Trim(u.Path, "/"), "/")
		// localized links look like /intl-de/track/<id>
		if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
	}
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func (s *Spotify) IsCollectionURL(rawURL string) bool {
	kind, _ := spotifyPath(rawURL)
	switch kind {
	case "playlist", "album", "show":
		return true
	}
	return false
}

func (s *Spotify) GetVideoID(rawURL string) (string, error) {
	kind, id := spotifyPath(rawURL)
	if kind != _spotifyKindTrack && kind != _spotifyKindEpisode {
		return "", &domain.InvalidIdentifierError{Service: SpotifyServiceID, ID: rawURL, Reason: "expected a track or episode link"}
	}
	full := kind + ":" + id
	if _, _, err := splitSpotifyID(full); err != nil {
		return "", err
	}
	return full, nil
}

func splitSpotifyID(full string) (kind, id string, err error) {
	kind, id, ok := strings.Cut(full, ":")
	if !ok || (kind != _spotifyKindTrack && kind != _spotifyKindEpisode) {
		return "", "", &domain.InvalidIdentifierError{Service: SpotifyServiceID, ID: full, Reason: "expected track:<id> or episode:<id>"}
	}
	if !spotifyIDPattern.MatchString(id) {
		return "", "", &domain.InvalidIdentifierError{Service: SpotifyServiceID, ID: full, Reason: "expected 22 base62 characters"}
	}
	return kind, id, nil
}

type spotifyToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate obtains a fresh access token with the client-credentials flow.
func (s *Spotify) Authenticate(ctx context.Context) error {
	if s.clientID == "" || s.clientSecret == "" {
		return ErrSpotifyCredentials
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequest(http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok spotifyToken
	if err := doJSON(ctx, s.client, req, &tok); err != nil {
		return fmt.Errorf("spotify auth: %w", err)
	}
	if tok.AccessToken == "" {
		return errors.New("spotify auth: empty access token")
	}

	s.mu.Lock()
	s.token = tok.AccessToken
	s.expires = s.now().Add(time.Duration(tok.ExpiresIn)*time.Second - _spotifyTokenSkew)
	s.mu.Unlock()
	return nil
}

func (s *Spotify) validToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expires) {
		return s.token, true
	}
	return "", false
}

// accessToken returns the held token, refreshing it once for all concurrent
// callers when it is missing or expired.
func (s *Spotify) accessToken(ctx context.Context) (string, error) {
	if tok, ok := s.validToken(); ok {
		return tok, nil
	}
	v, err, _ := s.refresh.Do("token", func() (any, error) {
		if tok, ok := s.validToken(); ok {
			return tok, nil
		}
		if err := s.Authenticate(context.WithoutCancel(ctx)); err != nil {
			return "", err
		}
		tok, _ := s.validToken()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Spotify) invalidate(tok string) {
	s.mu.Lock()
	if s.token == tok {
		s.token = ""
	}
	s.mu.Unlock()
}

// get performs an authenticated GET, re-authenticating once on 401.
func (s *Spotify) get(ctx context.Context, rawURL string, out any) error {
	for attempt := 0; ; attempt++ {
		tok, err := s.accessToken(ctx)
		if err != nil {
			return err
		}
		h := http.Header{}
		h.Set("Authorization", "Bearer "+tok)
		err = getJSON(ctx, s.client, rawURL, h, out)
		var se *StatusError
		if attempt == 0 && errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			s.invalidate(tok)
			continue
		}
		return err
	}
}

type spotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type spotifyNamed struct {
	Name string `json:"name"`
}

type spotifyItem struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	DurationMS int64          `json:"duration_ms"`
	Images     []spotifyImage `json:"images"`
	Album      *struct {
		Images []spotifyImage `json:"images"`
	} `json:"album"`
	Artists []spotifyNamed `json:"artists"`
	Show    *spotifyNamed  `json:"show"`
}

func (s *Spotify) FetchVideoInfo(ctx context.Context, id string) (domain.QueueItem, error) {
	kind, rawID, err := splitSpotifyID(id)
	if err != nil {
		return domain.QueueItem{}, err
	}
	var it spotifyItem
	endpoint := fmt.Sprintf("%s/%ss/%s?market=%s", s.apiURL, kind, rawID, _spotifyMarket)
	if err := s.get(ctx, endpoint, &it); err != nil {
		return domain.QueueItem{}, err
	}
	return spotifyQueueItem(id, kind, it), nil
}

func spotifyQueueItem(id, kind string, it spotifyItem) domain.QueueItem {
	images := it.Images
	if it.Album != nil && len(it.Album.Images) > 0 {
		images = it.Album.Images
	}
	return domain.QueueItem{
		Service:     SpotifyServiceID,
		ID:          id,
		Title:       spotifyTitle(it),
		Description: fmt.Sprintf("%s %s %s", kind, it.Name, formatDuration(it.DurationMS)),
		Thumbnail:   smallestImage(images),
		Length:      float64(it.DurationMS) / 1000,
	}
}

func spotifyTitle(it spotifyItem) string {
	switch {
	case len(it.Artists) > 0:
		names := make([]string, 0, len(it.Artists))
		for _, a := range it.Artists {
			names = append(names, a.Name)
		}
		return strings.Join(names, ", ") + " - " + it.Name
	case it.Show != nil && it.Show.Name != "":
		return it.Show.Name + " - " + it.Name
	}
	return it.Name
}

func smallestImage(images []spotifyImage) string {
	best := -1
	for i, img := range images {
		if best < 0 || img.Width*img.Height < images[best].Width*images[best].Height {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return images[best].URL
}

func formatDuration(ms int64) string {
	sec := ms / 1000
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

type spotifyPage struct {
	Next  string `json:"next"`
	Items []struct {
		spotifyItem
		Track *spotifyItem `json:"track"`
	} `json:"items"`
}

// ResolveCollection follows "next" links of a playlist, album or show until limit ids.
func (s *Spotify) ResolveCollection(ctx context.Context, rawURL string, limit int) ([]string, error) {
	kind, id := spotifyPath(rawURL)
	if !spotifyIDPattern.MatchString(id) {
		return nil, &domain.InvalidIdentifierError{Service: SpotifyServiceID, ID: id, Reason: "expected 22 base62 characters"}
	}
	var endpoint string
	switch kind {
	case "playlist":
		endpoint = fmt.Sprintf("%s/playlists/%s/tracks", s.apiURL, id)
	case "album":
		endpoint = fmt.Sprintf("%s/albums/%s/tracks", s.apiURL, id)
	case "show":
		endpoint = fmt.Sprintf("%s/shows/%s/episodes", s.apiURL, id)
	default:
		return nil, &domain.InvalidIdentifierError{Service: SpotifyServiceID, ID: rawURL, Reason: "not a collection"}
	}
	endpoint += fmt.Sprintf("?market=%s&limit=%d", _spotifyMarket, min(limit, _spotifyCollectionLimit))

	ids := make([]string, 0, min(limit, _spotifyCollectionLimit))
	for endpoint != "" && len(ids) < limit {
		var page spotifyPage
		if err := s.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		for _, entry := range page.Items {
			if len(ids) == limit {
				break
			}
			it := entry.spotifyItem
			if entry.Track != nil {
				it = *entry.Track
			}
			if it.ID == "" || (it.Type != _spotifyKindTrack && it.Type != _spotifyKindEpisode) {
				continue
			}
			ids = append(ids, it.Type+":"+it.ID)
		}
		endpoint = page.Next
	}
	return ids, nil
}
