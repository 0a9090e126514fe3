package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randomtoy/pairs-go/internal/adapters/catalog"
	"github.com/randomtoy/pairs-go/internal/adapters/clock"
	"github.com/randomtoy/pairs-go/internal/adapters/storage/file"
	"github.com/randomtoy/pairs-go/internal/adapters/storage/memory"
	"github.com/randomtoy/pairs-go/internal/adapters/terminal"
	"github.com/randomtoy/pairs-go/internal/app"
	"github.com/randomtoy/pairs-go/internal/config"
	"github.com/randomtoy/pairs-go/internal/domain"
	"github.com/randomtoy/pairs-go/internal/ports"
)

// stdRNG delegates to math/rand/v2 (auto-seeded).
type stdRNG struct{}

func (stdRNG) Intn(n int) int { return rand.IntN(n) }

type rootFlags struct {
	data     string
	logLevel string
	engine   app.EngineConfig
}

type playFlags struct {
	difficulty string
	style      string
	ephemeral  bool
}

func main() {
	root := newRootCmd(os.Stdin, os.Stdout, os.Stderr, stdRNG{})
	if err := root.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer, rng domain.RNG) *cobra.Command {
	// Flag defaults come from the environment and .env, like the server.
	cfg, cfgErr := config.Load()
	flags := rootFlags{engine: app.DefaultEngineConfig()}
	if cfgErr == nil {
		flags.engine.MatchDelay = cfg.MatchDelay
		flags.engine.MismatchDelay = cfg.MismatchDelay
	}
	// The terminal stays quiet unless a level is configured.
	defaultLevel := "warn"
	if _, ok := os.LookupEnv("LOG_LEVEL"); ok {
		defaultLevel = cfg.LogLevel.String()
	}

	root := &cobra.Command{
		Use:          "memory",
		Short:        "Play the memory card game in a terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return cfgErr
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.data, "data", cfg.DurablePath, "Durable store file holding the total move counter")
	pf.StringVar(&flags.logLevel, "log-level", defaultLevel, "Log level: debug, info, warn or error")

	var play playFlags
	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Start an interactive game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(errOut, flags.logLevel)
			if err != nil {
				return err
			}
			return runPlay(cmd.Context(), in, out, logger, rng, flags, play)
		},
	}
	f := playCmd.Flags()
	f.StringVar(&play.difficulty, "difficulty", domain.DefaultDifficulty, "Board size: easy, medium or hard")
	f.StringVar(&play.style, "style", domain.DefaultStyle, "Card theme")
	f.BoolVar(&play.ephemeral, "ephemeral", false, "Keep the move counter in memory instead of --data")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the total number of moves across all games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), out, flags)
		},
	}

	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "List difficulties and themes",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runOptions(out)
		},
	}

	root.AddCommand(playCmd, statsCmd, optionsCmd)
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	l, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func runPlay(ctx context.Context, in io.Reader, out io.Writer, logger *slog.Logger, rng domain.RNG, flags rootFlags, play playFlags) error {
	cat, err := catalog.NewEmbedded()
	if err != nil {
		return err
	}

	var durable ports.DurableStore
	if play.ephemeral {
		store := memory.NewDurableStore()
		defer store.Close()
		durable = store
	} else {
		store, err := file.Open(flags.data, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		durable = store
	}

	view := terminal.NewView()
	engine := app.NewEngine(app.Deps{
		Session:   memory.NewSessionStore(),
		Durable:   durable,
		View:      view,
		Scheduler: clock.Real{},
		Catalog:   cat,
		RNG:       rng,
		Logger:    logger,
	}, flags.engine)
	defer engine.Close()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	if err := engine.NewGame(ctx, play.difficulty, play.style); err != nil {
		return err
	}

	fmt.Fprintln(out, helpText)
	if err := view.Render(out); err != nil {
		return err
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			_ = view.Render(out)
			continue
		}

		switch cmd := fields[0]; cmd {
		case "q", "quit":
			return nil
		case "h", "help", "?":
			fmt.Fprintln(out, helpText)
			continue
		case "n", "new":
			g := engine.Snapshot()
			difficulty := g.DifficultyKey
			if len(fields) > 1 {
				difficulty = fields[1]
			}
			if err := engine.NewGame(ctx, difficulty, g.StyleKey); err != nil {
				return err
			}
		case "s", "style":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: style <name>")
				continue
			}
			if err := engine.SetStyle(ctx, fields[1]); err != nil {
				return err
			}
		default:
			index, err := strconv.Atoi(cmd)
			if err != nil {
				fmt.Fprintf(out, "unknown command %q\n", cmd)
				continue
			}
			if err := engine.Select(ctx, index); err != nil {
				if !errors.Is(err, domain.ErrSelectionRejected) {
					return err
				}
				fmt.Fprintf(out, "ignored: %v\n", err)
				continue
			}
			// Render once the two face-up cards have been settled.
			select {
			case <-engine.Settled():
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := view.Render(out); err != nil {
			return err
		}
		if g := engine.Snapshot(); g.GameOver && view.Disabled() {
			fmt.Fprintf(out, "Finished in %d moves, %s. Type n for a new game or q to quit.\n", g.Moves, domain.FormatClock(g.Seconds))
		}
	}
	return sc.Err()
}

const helpText = `Commands: <index> flip a card, n [difficulty] new game, s <style> change theme, q quit`

func runStats(ctx context.Context, out io.Writer, flags rootFlags) error {
	store, err := file.Open(flags.data, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := app.TotalMoves(ctx, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Total moves: %d\n", total)
	return nil
}

func runOptions(out io.Writer) error {
	cat, err := catalog.NewEmbedded()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Difficulties:")
	for _, d := range cat.Difficulties() {
		fmt.Fprintf(out, "  %-8s %s\n", d.Key, d.Label)
	}
	fmt.Fprintln(out, "Themes:")
	for _, t := range cat.Themes() {
		fmt.Fprintf(out, "  %-8s %s\n", t.Key, t.Label)
	}
	return nil
}
