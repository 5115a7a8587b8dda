// Package client is an interactive shell standing in for the host: it feeds
// position samples, flips connectivity and fires sync events by hand.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"github.com/wurt83ow/locsync-client/pkg/bgsync"
	"github.com/wurt83ow/locsync-client/pkg/models"
	"github.com/wurt83ow/locsync-client/pkg/services"
)

type Engine interface {
	Submit(ctx context.Context, ownerID string, lat, lng float64) services.Outcome
	LatestLocations(ctx context.Context) ([]models.LatestLocation, error)
	Status(ctx context.Context) (models.SyncStatus, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, tag string) error
}

type Shell struct {
	rl        *readline.Instance
	out       io.Writer
	engine    Engine
	trigger   Dispatcher
	setOnline func(online bool)
	owner     string
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("submit"),
	readline.PcItem("drain"),
	readline.PcItem("latest"),
	readline.PcItem("status"),
	readline.PcItem("online"),
	readline.PcItem("offline"),
	readline.PcItem("user"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

func NewShell(engine Engine, trigger Dispatcher, setOnline func(bool), owner string) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, err
	}
	s := newShell(engine, trigger, setOnline, owner, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(engine Engine, trigger Dispatcher, setOnline func(bool), owner string, out io.Writer) *Shell {
	if out == nil {
		out = os.Stdout
	}
	return &Shell{
		out:       out,
		engine:    engine,
		trigger:   trigger,
		setOnline: setOnline,
		owner:     owner,
	}
}

func (s *Shell) Close() {
	if s.rl != nil {
		s.rl.Close()
	}
}

// Start reads commands until quit, EOF or ctx is done.
func (s *Shell) Start(ctx context.Context) {
	s.help()
	for ctx.Err() == nil {
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			return
		}
		if !s.Handle(ctx, line) {
			return
		}
	}
}

// Handle runs one command line. It returns false when the shell should exit.
func (s *Shell) Handle(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return true
	}

	switch args[0] {
	case "submit":
		s.submit(ctx, args[1:])
	case "drain":
		if err := s.trigger.Dispatch(ctx, bgsync.TagLocationSync); err != nil {
			fmt.Fprintf(s.out, "Sync failed: %v\n", err)
			return true
		}
		s.status(ctx)
	case "latest":
		s.latest(ctx)
	case "status":
		s.status(ctx)
	case "online", "offline":
		s.setOnline(args[0] == "online")
		fmt.Fprintf(s.out, "Connectivity: %s\n", args[0])
	case "user":
		if len(args) != 2 {
			fmt.Fprintln(s.out, "Usage: user <id>")
			return true
		}
		s.owner = args[1]
		fmt.Fprintf(s.out, "Recording samples for %s\n", s.owner)
	case "help":
		s.help()
	case "quit", "exit":
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command %q, type help\n", args[0])
	}
	return true
}

func (s *Shell) help() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  submit <lat> <lng>  record a position sample")
	fmt.Fprintln(s.out, "  drain               fire the location sync event")
	fmt.Fprintln(s.out, "  latest              show the latest location of every user")
	fmt.Fprintln(s.out, "  status              show queue and watermark")
	fmt.Fprintln(s.out, "  online | offline    report connectivity")
	fmt.Fprintln(s.out, "  user <id>           change the recording user")
	fmt.Fprintln(s.out, "  quit")
}

func (s *Shell) submit(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: submit <lat> <lng>")
		return
	}
	if s.owner == "" {
		fmt.Fprintln(s.out, "No user set, use: user <id>")
		return
	}

	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintln(s.out, "Latitude must be a number!")
		return
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintln(s.out, "Longitude must be a number!")
		return
	}

	out := s.engine.Submit(ctx, s.owner, lat, lng)
	fmt.Fprintf(s.out, "Sample %s\n", out)
}

func (s *Shell) status(ctx context.Context) {
	st, err := s.engine.Status(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Status unavailable: %v\n", err)
		return
	}

	last := "never"
	if st.LastWrittenAtMillis > 0 {
		last = time.UnixMilli(st.LastWrittenAtMillis).Format(time.RFC3339)
	}
	fmt.Fprintf(s.out, "Online: %t, queued: %d, last write: %s\n", st.Online, st.Queued, last)
}

func (s *Shell) latest(ctx context.Context) {
	rows, err := s.engine.LatestLocations(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Failed to fetch locations: %v\n", err)
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(s.out, "No locations yet")
		return
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tNAME\tLAT\tLNG\tAT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%.6f\t%s\n", r.UserID, r.Username, r.Latitude, r.Longitude, r.Timestamp.Format(time.RFC3339))
	}
	w.Flush()
}
