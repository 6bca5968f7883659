package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/dkeye/Together/internal/domain"
)

const (
	YouTubeServiceID     = "youtube"
	DefaultYouTubeAPIURL = "https://www.googleapis.com/youtube/v3"
	_youtubePageSize     = 50
)

var (
	youtubeIDPattern       = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	youtubeDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)
)

// YouTube resolves videos and playlists through the Data API v3.
type YouTube struct {
	apiKey string
	apiURL string
	client *http.Client
}

func NewYouTube(apiKey, apiURL string, client *http.Client) *YouTube {
	if apiURL == "" {
		apiURL = DefaultYouTubeAPIURL
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &YouTube{apiKey: apiKey, apiURL: strings.TrimRight(apiURL, "/"), client: client}
}

func (y *YouTube) ServiceID() string { return YouTubeServiceID }

func (y *YouTube) IsCacheSafe() bool { return true }

func (y *YouTube) CanHandleURL(rawURL string) bool {
	u, ok := parseURL(rawURL)
	if !ok {
		return false
	}
	return hostIs(u, "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be")
}

func (y *YouTube) IsCollectionURL(rawURL string) bool {
	u, ok := parseURL(rawURL)
	if !ok || hostIs(u, "youtu.be") {
		return false
	}
	return u.Path == "/playlist" && u.Query().Get("list") != ""
}

func (y *YouTube) GetVideoID(rawURL string) (string, error) {
	u, ok := parseURL(rawURL)
	if !ok {
		return "", &domain.InvalidIdentifierError{Service: YouTubeServiceID, ID: rawURL, Reason: "unparsable url"}
	}
	var id string
	switch {
	case hostIs(u, "youtu.be"):
		id = strings.Trim(u.Path, "/")
	case u.Path == "/watch":
		id = u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/live/"):
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		id = parts[len(parts)-1]
	}
	if err := validateYouTubeID(id); err != nil {
		return "", err
	}
	return id, nil
}

func validateYouTubeID(id string) error {
	if !youtubeIDPattern.MatchString(id) {
		return &domain.InvalidIdentifierError{Service: YouTubeServiceID, ID: id, Reason: "expected 11 url-safe characters"}
	}
	return nil
}

type youtubePlaylistPage struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// ResolveCollection pages through playlistItems until limit ids are collected.
func (y *YouTube) ResolveCollection(ctx context.Context, rawURL string, limit int) ([]string, error) {
	u, ok := parseURL(rawURL)
	if !ok {
		return nil, &domain.InvalidIdentifierError{Service: YouTubeServiceID, ID: rawURL, Reason: "unparsable url"}
	}
	listID := u.Query().Get("list")
	if listID == "" {
		return nil, &domain.InvalidIdentifierError{Service: YouTubeServiceID, ID: rawURL, Reason: "missing playlist id"}
	}

	ids := make([]string, 0, min(limit, _youtubePageSize))
	pageToken := ""
	for len(ids) < limit {
		q := url.Values{}
		q.Set("part", "contentDetails")
		q.Set("maxResults", strconv.Itoa(_youtubePageSize))
		q.Set("playlistId", listID)
		q.Set("key", y.apiKey)
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page youtubePlaylistPage
		if err := getJSON(ctx, y.client, y.apiURL+"/playlistItems?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, it := range page.Items {
			if len(ids) == limit {
				break
			}
			if it.ContentDetails.VideoID != "" {
				ids = append(ids, it.ContentDetails.VideoID)
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return ids, nil
}

type youtubeThumb struct {
	URL string `json:"url"`
}

type youtubeVideos struct {
	Items []struct {
		Snippet struct {
			Title       string                  `json:"title"`
			Description string                  `json:"description"`
			Thumbnails  map[string]youtubeThumb `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (y *YouTube) FetchVideoInfo(ctx context.Context, id string) (domain.QueueItem, error) {
	if err := validateYouTubeID(id); err != nil {
		return domain.QueueItem{}, err
	}
	q := url.Values{}
	q.Set("part", "snippet,contentDetails")
	q.Set("id", id)
	q.Set("key", y.apiKey)

	var resp youtubeVideos
	if err := getJSON(ctx, y.client, y.apiURL+"/videos?"+q.Encode(), nil, &resp); err != nil {
		return domain.QueueItem{}, err
	}
	if len(resp.Items) == 0 {
		return domain.QueueItem{}, fmt.Errorf("video %s not found", id)
	}
	v := resp.Items[0]
	length, err := ParseISODuration(v.ContentDetails.Duration)
	if err != nil {
		return domain.QueueItem{}, err
	}
	thumb := ""
	for _, size := range []string{"medium", "high", "default"} {
		if t, ok := v.Snippet.Thumbnails[size]; ok && t.URL != "" {
			thumb = t.URL
			break
		}
	}
	return domain.QueueItem{
		Service:     YouTubeServiceID,
		ID:          id,
		Title:       v.Snippet.Title,
		Description: v.Snippet.Description,
		Thumbnail:   thumb,
		Length:      length,
	}, nil
}

// ParseISODuration converts an ISO-8601 duration such as PT1H2M3S into seconds.
func ParseISODuration(s string) (float64, error) {
	m := youtubeDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	var total float64
	for i, unit := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed duration %q: %w", s, err)
		}
		total += n * unit
	}
	return total, nil
}
