package providers

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/dkeye/Together/internal/domain"
)

const DirectServiceID = "direct"

// Direct plays files served over plain http(s). The id is the file URL.
type Direct struct {
	client *http.Client
}

func NewDirect(client *http.Client) *Direct {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Direct{client: client}
}

func (d *Direct) ServiceID() string { return DirectServiceID }

func (d *Direct) IsCacheSafe() bool { return true }

func (d *Direct) CanHandleURL(rawURL string) bool {
	u, ok := parseURL(rawURL)
	if !ok || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	_, ok = MimeTypeForExtension(extension(u.Path))
	return ok
}

func (d *Direct) IsCollectionURL(string) bool { return false }

func (d *Direct) GetVideoID(rawURL string) (string, error) {
	u, ok := parseURL(rawURL)
	if !ok || u.Host == "" {
		return "", &domain.InvalidIdentifierError{Service: DirectServiceID, ID: rawURL, Reason: "unparsable url"}
	}
	mimeType, ok := MimeTypeForExtension(extension(u.Path))
	if !ok {
		return "", &domain.InvalidIdentifierError{Service: DirectServiceID, ID: rawURL, Reason: "unknown file extension"}
	}
	if !IsSupportedMimeType(mimeType) {
		return "", &domain.InvalidIdentifierError{Service: DirectServiceID, ID: rawURL, Reason: "unsupported mime type " + mimeType}
	}
	return u.String(), nil
}

func (d *Direct) ResolveCollection(context.Context, string, int) ([]string, error) {
	return nil, &domain.InvalidIdentifierError{Service: DirectServiceID, Reason: "collections are not supported"}
}

// FetchVideoInfo checks the file is reachable and playable. Length is left 0:
// the duration of an arbitrary file is only known once a client loads it.
func (d *Direct) FetchVideoInfo(ctx context.Context, id string) (domain.QueueItem, error) {
	if _, err := d.GetVideoID(id); err != nil {
		return domain.QueueItem{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, id, nil)
	if err != nil {
		return domain.QueueItem{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", _userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return domain.QueueItem{}, fmt.Errorf("network error: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.QueueItem{}, &StatusError{Code: resp.StatusCode, URL: req.URL.Redacted()}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !IsSupportedMimeType(ct) {
		return domain.QueueItem{}, &domain.InvalidIdentifierError{Service: DirectServiceID, ID: id, Reason: "unsupported content type " + ct}
	}

	u, _ := parseURL(id)
	return domain.QueueItem{
		Service:     DirectServiceID,
		ID:          id,
		Title:       path.Base(u.Path),
		Description: "Direct file",
	}, nil
}

func extension(p string) string {
	return strings.TrimPrefix(path.Ext(p), ".")
}
