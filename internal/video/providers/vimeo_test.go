package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Together/internal/domain"
)

func TestVimeo_GetVideoID(t *testing.T) {
	v := NewVimeo("", nil)
	if !v.CanHandleURL("https://player.vimeo.com/video/76979871") {
		t.Error("player subdomain should be handled")
	}
	id, err := v.GetVideoID("https://vimeo.com/76979871")
	if err != nil || id != "76979871" {
		t.Fatalf("got %q, %v", id, err)
	}
	_, err = v.GetVideoID("https://vimeo.com/channels/staffpicks")
	var invalid *domain.InvalidIdentifierError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidIdentifierError, got %v", err)
	}
	if v.IsCollectionURL("https://vimeo.com/showcase/123") {
		t.Error("collections are not supported")
	}
}

func TestVimeo_FetchVideoInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") != "https://vimeo.com/76979871" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"title":"The New Vimeo Player","description":"d","thumbnail_url":"t.jpg","duration":62}`)
	}))
	defer srv.Close()

	v := NewVimeo(srv.URL, srv.Client())
	item, err := v.FetchVideoInfo(context.Background(), "76979871")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.QueueItem{Service: VimeoServiceID, ID: "76979871", Title: "The New Vimeo Player", Description: "d", Thumbnail: "t.jpg", Length: 62}
	if item != want {
		t.Errorf("got %+v, want %+v", item, want)
	}
}
