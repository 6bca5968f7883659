package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dkeye/Together/internal/client"
	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
)

func TestRun_RejectsMalformedCommands(t *testing.T) {
	cases := [][]string{
		{"seek"},
		{"seek", "soon"},
		{"add"},
		{"rm", "youtube"},
		{"mv", "youtube", "x", "first"},
		{"name"},
		{"dance"},
	}
	for _, args := range cases {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			// Malformed input fails before anything is sent, so no connection is needed.
			if err := run(context.Background(), &bytes.Buffer{}, &client.Client{}, args); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestPrintState(t *testing.T) {
	r := client.NewReplica()
	cur := domain.QueueItem{Service: "vimeo", ID: "1", Title: "one", Length: 30}
	r.ApplyFullSync(core.Snapshot{
		Name:             "lobby",
		Version:          3,
		State:            core.StatusPaused,
		CurrentSource:    &cur,
		PlaybackPosition: 12,
		Queue:            []domain.QueueItem{{Service: "youtube", ID: "aaaaaaaaaaa", Title: "a"}},
		Users:            []core.MemberDTO{{ID: "x", Username: "alice"}, {ID: "y", Username: "bob"}},
	})

	var buf bytes.Buffer
	printState(&buf, r)
	out := buf.String()
	for _, want := range []string{"[lobby v3] paused", `vimeo/1 "one" 12.0/30.0s`, `0. youtube/aaaaaaaaaaa "a"`, "users: alice, bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
