package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dkeye/Together/internal/domain"
)

const testTrackID = "4uLU6hMCjMI75M1A2tKUQC"

func TestSpotify_GetVideoID(t *testing.T) {
	s := NewSpotify(SpotifyOptions{}, nil)
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://open.spotify.com/track/" + testTrackID, "track:" + testTrackID, false},
		{"https://open.spotify.com/intl-de/track/" + testTrackID, "track:" + testTrackID, false},
		{"spotify:episode:" + testTrackID, "episode:" + testTrackID, false},
		{"https://open.spotify.com/track/short", "", true},
		{"https://open.spotify.com/artist/" + testTrackID, "", true},
	}
	for _, tt := range tests {
		got, err := s.GetVideoID(tt.url)
		if tt.wantErr {
			var invalid *domain.InvalidIdentifierError
			if !errors.As(err, &invalid) {
				t.Errorf("%s: expected InvalidIdentifierError, got %v", tt.url, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: got %q, %v", tt.url, got, err)
		}
	}
	if !s.IsCollectionURL("https://open.spotify.com/playlist/" + testTrackID) {
		t.Error("playlist should be a collection")
	}
	if s.IsCacheSafe() {
		t.Error("spotify metadata must not be cached")
	}
}

func spotifyServer(t *testing.T, rejectFirst bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var auths atomic.Int32
	var rejected atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "id" || secret != "secret" || r.FormValue("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := auths.Add(1)
		fmt.Fprintf(w, `{"access_token":"tok%d","token_type":"Bearer","expires_in":3600}`, n)
	})
	mux.HandleFunc("/tracks/"+testTrackID, func(w http.ResponseWriter, r *http.Request) {
		if rejectFirst && !rejected.Swap(true) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("market") != "ES" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"id":"`+testTrackID+`","type":"track","name":"Song","duration_ms":185000,
			"artists":[{"name":"A"},{"name":"B"}],
			"album":{"images":[{"url":"big","width":640,"height":640},{"url":"small","width":64,"height":64}]}}`)
	})
	mux.HandleFunc("/playlists/"+testTrackID+"/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"items":[{"track":{"id":"cccccccccccccccccccccc","type":"track"}}]}`)
			return
		}
		fmt.Fprintf(w, `{"next":"http://%s/playlists/%s/tracks?page=2","items":[
			{"track":{"id":"aaaaaaaaaaaaaaaaaaaaaa","type":"track"}},
			{"track":{"id":"bbbbbbbbbbbbbbbbbbbbbb","type":"episode"}}]}`, r.Host, testTrackID)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &auths
}

func TestSpotify_FetchVideoInfo(t *testing.T) {
	srv, auths := spotifyServer(t, false)
	s := NewSpotify(SpotifyOptions{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL, TokenURL: srv.URL + "/token"}, srv.Client())

	item, err := s.FetchVideoInfo(context.Background(), "track:"+testTrackID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Title != "A, B - Song" || item.Thumbnail != "small" || item.Length != 185 || item.Description != "track Song 3:05" {
		t.Errorf("unexpected item: %+v", item)
	}
	if _, err := s.FetchVideoInfo(context.Background(), "track:"+testTrackID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := auths.Load(); got != 1 {
		t.Errorf("token should be reused, got %d authentications", got)
	}
}

func TestSpotify_ReauthenticatesOnceOn401(t *testing.T) {
	srv, auths := spotifyServer(t, true)
	s := NewSpotify(SpotifyOptions{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL, TokenURL: srv.URL + "/token"}, srv.Client())

	if _, err := s.FetchVideoInfo(context.Background(), "track:"+testTrackID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := auths.Load(); got != 2 {
		t.Errorf("expected 2 authentications, got %d", got)
	}
}

func TestSpotify_ConcurrentFetchesShareOneToken(t *testing.T) {
	srv, auths := spotifyServer(t, false)
	s := NewSpotify(SpotifyOptions{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL, TokenURL: srv.URL + "/token"}, srv.Client())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.FetchVideoInfo(context.Background(), "track:"+testTrackID); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := auths.Load(); got != 1 {
		t.Errorf("expected a single token request, got %d", got)
	}
}

func TestSpotify_MissingCredentials(t *testing.T) {
	s := NewSpotify(SpotifyOptions{}, nil)
	_, err := s.FetchVideoInfo(context.Background(), "track:"+testTrackID)
	if !errors.Is(err, ErrSpotifyCredentials) {
		t.Fatalf("expected ErrSpotifyCredentials, got %v", err)
	}
}

func TestSpotify_ResolveCollection(t *testing.T) {
	srv, _ := spotifyServer(t, false)
	s := NewSpotify(SpotifyOptions{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL, TokenURL: srv.URL + "/token"}, srv.Client())

	ids, err := s.ResolveCollection(context.Background(), "https://open.spotify.com/playlist/"+testTrackID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"track:aaaaaaaaaaaaaaaaaaaaaa", "episode:bbbbbbbbbbbbbbbbbbbbbb", "track:cccccccccccccccccccccc"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", ids, want)
	}
}
