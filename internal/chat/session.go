package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"azchat/internal/ai"
	"azchat/internal/ui"

	"github.com/fatih/color"
)

// Spinner is the waiting indicator shown while a buffered request is in
// flight. Satisfied by ui.Spinner; a nil factory disables it.
type Spinner interface {
	Start()
	Stop()
}

// Session drives the interactive loop: read a prompt, send the full
// conversation, render the reply, commit it, repeat. One turn runs at a
// time; the only state carried across turns is Conv.
type Session struct {
	Client *ai.Client
	Conv   *Conversation

	// Out receives assistant text; ErrOut receives status and errors.
	Out    io.Writer
	ErrOut io.Writer

	// ReadLine supplies the next user input line. An error ends the
	// session (EOF, aborted prompt).
	ReadLine func() (string, error)

	// Stream selects the incremental path; otherwise one buffered
	// request is made per turn.
	Stream bool

	// Prefix is written before the first fragment of each reply.
	Prefix string

	// NewSpinner, when non-nil, builds the waiting indicator for
	// buffered turns.
	NewSpinner func() Spinner

	stats sessionStats
}

type sessionStats struct {
	started time.Time
	turns   int
	failed  int
}

// Run executes the turn loop until the user quits or input ends.
// Ctrl+C during a turn cancels only that turn's request.
func (s *Session) Run(ctx context.Context) error {
	s.stats.started = time.Now()
	dim := color.New(color.FgHiBlack)
	red := color.New(color.FgRed)

	for {
		line, err := s.ReadLine()
		if err != nil {
			fmt.Fprintln(s.ErrOut)
			s.printSummary(dim)
			return nil
		}

		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit":
			dim.Fprintln(s.ErrOut, "Goodbye!")
			s.printSummary(dim)
			return nil
		case "clear":
			s.Conv.Reset()
			dim.Fprintln(s.ErrOut, "Conversation cleared.")
			continue
		}

		// The interrupt handler lives only for the turn, so Ctrl+C
		// aborts the in-flight request instead of the process.
		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err = s.runTurn(turnCtx, input)
		stop()

		s.stats.turns++
		if err != nil {
			s.stats.failed++
			if errors.Is(err, context.Canceled) {
				dim.Fprintln(s.ErrOut, "\n[interrupted]")
			} else {
				red.Fprintf(s.ErrOut, "Error: %v\n", err)
			}
		}
		fmt.Fprintln(s.ErrOut)
	}
}

// runTurn appends the user message, performs the exchange and commits the
// assistant reply. On any failure the user message is rolled back so the
// history only ever holds completed turns.
func (s *Session) runTurn(ctx context.Context, input string) error {
	s.Conv.AddUser(input)
	reply, err := s.exchange(ctx)
	if err != nil {
		s.Conv.DropLast()
		return err
	}
	s.Conv.AddAssistant(reply)
	return nil
}

func (s *Session) exchange(ctx context.Context) (string, error) {
	if !s.Stream {
		var sp Spinner
		if s.NewSpinner != nil {
			sp = s.NewSpinner()
			sp.Start()
		}
		reply, err := s.Client.Send(ctx, s.Conv.Messages())
		if sp != nil {
			sp.Stop()
		}
		if err != nil {
			return "", err
		}
		fmt.Fprint(s.Out, s.Prefix)
		fmt.Fprintln(s.Out, reply)
		return reply, nil
	}

	ch := s.Client.Stream(ctx, s.Conv.Messages())
	reply, err := ui.RenderStream(s.Out, ch, s.Prefix)
	if err != nil {
		return "", err
	}
	// A cancelled stream can end without a terminal marker; the partial
	// reply stays on screen but is never committed.
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return reply, nil
}

func (s *Session) printSummary(dim *color.Color) {
	if s.stats.turns == 0 {
		return
	}
	dim.Fprintf(s.ErrOut, "%d turns (%d failed) in %s\n",
		s.stats.turns, s.stats.failed, time.Since(s.stats.started).Round(time.Second))
}
