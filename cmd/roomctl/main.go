// Command roomctl joins a room, prints its state as it changes and sends
// playback commands read from stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/Together/internal/client"
	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
)

const usage = `commands:
  play | pause | skip | sync | state
  seek <seconds>
  add <url>
  rm <service> <id>
  mv <service> <id> <index>
  name <new name>
  quit`

func main() {
	server := pflag.StringP("server", "s", "http://localhost:8080", "server base URL")
	room := pflag.StringP("room", "r", "lobby", "room to join")
	name := pflag.StringP("name", "n", "", "display name")
	token := pflag.String("token", "", "session token to resume an identity")
	verbose := pflag.BoolP("verbose", "v", false, "log every message")
	pflag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := client.Dial(ctx, *server, client.Options{Token: *token})
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer c.Close()

	if err := c.Join(ctx, domain.RoomName(*room), *name); err != nil {
		log.Fatal().Err(err).Msg("join")
	}

	go printUpdates(os.Stdout, c)
	go func() {
		readCommands(ctx, os.Stdin, os.Stdout, c)
		cancel()
	}()

	select {
	case <-ctx.Done():
	case <-c.Done():
		if err := c.Err(); err != nil {
			log.Error().Err(err).Msg("connection lost")
		}
	}
}

func printUpdates(w io.Writer, c *client.Client) {
	for msg := range c.Updates() {
		switch msg.Type {
		case core.MsgFullSync, core.MsgDelta:
			log.Debug().Str("type", msg.Type).Msg("update")
			printState(w, c.Replica())
		case core.MsgError:
			fmt.Fprintf(w, "error: %v\n", msg.Err())
		case "whoami":
			fmt.Fprintf(w, "you are %s (%s)\n", msg.Username, msg.ID)
		}
	}
}

func printState(w io.Writer, r *client.Replica) {
	snap := r.Snapshot()
	fmt.Fprintf(w, "[%s v%d] %s", snap.Name, snap.Version, snap.State)
	if cur := snap.CurrentSource; cur != nil {
		fmt.Fprintf(w, " %s/%s %q %.1f/%.1fs", cur.Service, cur.ID, cur.Title, r.Position(), cur.Length)
	}
	fmt.Fprintln(w)
	for i, it := range snap.Queue {
		fmt.Fprintf(w, "  %2d. %s/%s %q\n", i, it.Service, it.ID, it.Title)
	}
	names := make([]string, 0, len(snap.Users))
	for _, u := range snap.Users {
		names = append(names, u.Username)
	}
	fmt.Fprintf(w, "  users: %s\n", strings.Join(names, ", "))
}

func readCommands(ctx context.Context, in io.Reader, out io.Writer, c *client.Client) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := run(ctx, out, c, fields); err != nil {
			fmt.Fprintf(out, "%v\n", err)
		}
	}
}

func run(ctx context.Context, out io.Writer, c *client.Client, args []string) error {
	switch args[0] {
	case "play":
		return c.Play(ctx)
	case "pause":
		return c.Pause(ctx)
	case "skip":
		return c.Skip(ctx)
	case "sync":
		return c.Sync(ctx)
	case "state":
		printState(out, c.Replica())
		return nil
	case "seek":
		if len(args) != 2 {
			return fmt.Errorf("usage: seek <seconds>")
		}
		p, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("seek: %w", err)
		}
		return c.Seek(ctx, p)
	case "add":
		if len(args) != 2 {
			return fmt.Errorf("usage: add <url>")
		}
		return c.QueueAdd(ctx, args[1])
	case "rm":
		if len(args) != 3 {
			return fmt.Errorf("usage: rm <service> <id>")
		}
		return c.QueueRemove(ctx, domain.VideoKey{Service: args[1], ID: args[2]})
	case "mv":
		if len(args) != 4 {
			return fmt.Errorf("usage: mv <service> <id> <index>")
		}
		idx, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("mv: %w", err)
		}
		return c.Reorder(ctx, domain.VideoKey{Service: args[1], ID: args[2]}, idx)
	case "name":
		if len(args) < 2 {
			return fmt.Errorf("usage: name <new name>")
		}
		return c.Rename(ctx, strings.Join(args[1:], " "))
	}
	return fmt.Errorf("unknown command %q\n%s", args[0], usage)
}
