package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/quizhost/internal/session"
	"github.com/MrWong99/quizhost/internal/transcript"
	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
)

// errGameOver ends the run after the player finished the game.
var errGameOver = errors.New("game over")

// game is the subset of [session.Orchestrator] the console drives.
type game interface {
	SetVolume(level float64) (float64, error)
	Status() session.Status
	EndGame(ctx context.Context) (session.Summary, error)
}

// console reads player commands and prints game events. Output methods are
// safe for concurrent use.
type console struct {
	mu   sync.Mutex
	out  io.Writer
	game game
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// run reads commands from in until the game ends, in is exhausted, or ctx
// is cancelled. End of input ends the game like "end".
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return c.end(ctx)
			}
			if err := c.handle(ctx, line); err != nil {
				return err
			}
		}
	}
}

// handle executes one command line.
func (c *console) handle(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch strings.ToLower(fields[0]) {
	case "volume", "vol":
		if len(fields) != 2 {
			c.printf("usage: volume <0-4>\n")
			return nil
		}
		level, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			c.printf("invalid volume %q\n", fields[1])
			return nil
		}
		applied, err := c.game.SetVolume(level)
		if err != nil {
			c.printf("volume: %v\n", err)
			return nil
		}
		c.printf("volume set to %.1f\n", applied)
	case "status":
		st := c.game.Status()
		tally := st.Transcript.Tally
		c.printf("[%s] host=%s score=%d/%d volume=%.1f playing=%d\n",
			st.State, st.Host, tally.Score, tally.Questions, st.Gain, st.Playing)
		if st.Checking {
			c.printf("  fact check in progress\n")
		}
	case "end", "quit", "exit":
		return c.end(ctx)
	case "help":
		c.printf("commands: volume <0-4>, status, end, help\n")
	default:
		c.printf("unknown command %q (try help)\n", fields[0])
	}
	return nil
}

// end finishes the game, prints the summary, and returns [errGameOver].
func (c *console) end(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	sum, err := c.game.EndGame(sctx)
	if err != nil {
		return fmt.Errorf("end game: %w", err)
	}
	c.printSummary(sum)
	return errGameOver
}

func (c *console) printSummary(sum session.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, "── Game over ──")
	fmt.Fprintf(c.out, "Host: %s  Duration: %s\n", sum.Host, sum.Duration.Round(time.Second))
	fmt.Fprintf(c.out, "Score: %d correct out of %d questions\n", sum.Tally.Score, sum.Tally.Questions)
	for _, e := range sum.Transcript {
		if e.Text == "" {
			continue
		}
		fmt.Fprintf(c.out, "  %-4s %s\n", e.Role+":", e.Text)
	}
}

// printTurn reports a completed turn.
func (c *console) printTurn(res transcript.TurnResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res.User.Text != "" {
		fmt.Fprintf(c.out, "you:  %s\n", res.User.Text)
	}
	if res.Host.Text != "" {
		fmt.Fprintf(c.out, "host: %s\n", res.Host.Text)
	}
	if res.Scored || res.Asked {
		fmt.Fprintf(c.out, "      score %d/%d\n", res.Tally.Score, res.Tally.Questions)
	}
}

// printFactCheck reports a fact-check result.
func (c *console) printFactCheck(res factcheck.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "fact: %s\n", res.Fact)
	for _, s := range res.Sources {
		fmt.Fprintf(c.out, "      - %s <%s>\n", s.Title, s.URI)
	}
}
