package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/dkeye/Together/internal/domain"
)

const (
	VimeoServiceID        = "vimeo"
	DefaultVimeoOEmbedURL = "https://vimeo.com/api/oembed.json"
)

// Vimeo resolves single videos through the public oEmbed endpoint.
// Showcases and channels need an authenticated API, so collections are not expanded.
type Vimeo struct {
	oembedURL string
	client    *http.Client
}

func NewVimeo(oembedURL string, client *http.Client) *Vimeo {
	if oembedURL == "" {
		oembedURL = DefaultVimeoOEmbedURL
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &Vimeo{oembedURL: oembedURL, client: client}
}

func (v *Vimeo) ServiceID() string { return VimeoServiceID }

func (v *Vimeo) IsCacheSafe() bool { return true }

func (v *Vimeo) CanHandleURL(rawURL string) bool {
	u, ok := parseURL(rawURL)
	if !ok {
		return false
	}
	h := strings.ToLower(u.Hostname())
	return h == "vimeo.com" || strings.HasSuffix(h, ".vimeo.com")
}

func (v *Vimeo) IsCollectionURL(string) bool { return false }

func (v *Vimeo) GetVideoID(rawURL string) (string, error) {
	u, ok := parseURL(rawURL)
	if !ok {
		return "", &domain.InvalidIdentifierError{Service: VimeoServiceID, ID: rawURL, Reason: "unparsable url"}
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	id := parts[len(parts)-1]
	if err := validateVimeoID(id); err != nil {
		return "", err
	}
	return id, nil
}

func validateVimeoID(id string) error {
	if id == "" {
		return &domain.InvalidIdentifierError{Service: VimeoServiceID, ID: id, Reason: "empty id"}
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return &domain.InvalidIdentifierError{Service: VimeoServiceID, ID: id, Reason: "id must be numeric"}
		}
	}
	return nil
}

func (v *Vimeo) ResolveCollection(context.Context, string, int) ([]string, error) {
	return nil, &domain.InvalidIdentifierError{Service: VimeoServiceID, Reason: "collections are not supported"}
}

type vimeoOEmbed struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Duration     float64 `json:"duration"`
}

func (v *Vimeo) FetchVideoInfo(ctx context.Context, id string) (domain.QueueItem, error) {
	if err := validateVimeoID(id); err != nil {
		return domain.QueueItem{}, err
	}
	q := url.Values{}
	q.Set("url", "https://vimeo.com/"+id)

	var resp vimeoOEmbed
	if err := getJSON(ctx, v.client, v.oembedURL+"?"+q.Encode(), nil, &resp); err != nil {
		return domain.QueueItem{}, err
	}
	return domain.QueueItem{
		Service:     VimeoServiceID,
		ID:          id,
		Title:       resp.Title,
		Description: resp.Description,
		Thumbnail:   resp.ThumbnailURL,
		Length:      resp.Duration,
	}, nil
}
