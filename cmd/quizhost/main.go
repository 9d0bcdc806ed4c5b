// Command quizhost runs a spoken trivia game against a live speech model:
// the microphone is streamed to the host personality, its replies are
// played back, and the transcript, score and fact checks are printed to the
// terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/quizhost/internal/config"
	"github.com/MrWong99/quizhost/internal/health"
	"github.com/MrWong99/quizhost/internal/host"
	"github.com/MrWong99/quizhost/internal/observe"
	"github.com/MrWong99/quizhost/internal/resilience"
	"github.com/MrWong99/quizhost/internal/session"
	"github.com/MrWong99/quizhost/pkg/audio/capture"
	"github.com/MrWong99/quizhost/pkg/audio/device"
	"github.com/MrWong99/quizhost/pkg/provider/factcheck"
	fcgemini "github.com/MrWong99/quizhost/pkg/provider/factcheck/gemini"
	"github.com/MrWong99/quizhost/pkg/provider/s2s"
	geminilive "github.com/MrWong99/quizhost/pkg/provider/s2s/gemini"
	"github.com/MrWong99/quizhost/pkg/provider/tts"
	ttsgemini "github.com/MrWong99/quizhost/pkg/provider/tts/gemini"
)

var version = "dev"

// summaryTimeout bounds synthesis and playback of the closing narration.
const summaryTimeout = 60 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "quizhost.yaml", "path to the YAML configuration file (optional)")
	envPath := flag.String("env", ".env", "path to a .env file with the API key (optional)")
	hostID := flag.String("host", "", "host personality to play against (overrides game.host)")
	listHosts := flag.Bool("list-hosts", false, "print the available host personalities and exit")
	flag.Parse()

	if *listHosts {
		for _, p := range host.All() {
			fmt.Printf("%-10s %s %s (%s): %s\n", p.ID, p.Avatar, p.Name, p.Voice, p.Description)
		}
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "quizhost: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quizhost: %v\n", err)
		return 1
	}
	if *hostID != "" {
		cfg.Game.Host = *hostID
		if err := config.Validate(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "quizhost: %v\n", err)
			return 1
		}
	}
	config.ApplyEnv(cfg, os.Getenv)
	if err := config.RequireCredentials(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "quizhost: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("quizhost starting",
		"version", version,
		"config", *configPath,
		"host", cfg.Game.Host,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "quizhost",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	personality, err := host.Lookup(cfg.Game.Host)
	if err != nil {
		slog.Error("invalid host", "err", err)
		return 1
	}
	if err := host.Validate(providers.S2S.Capabilities().Voices); err != nil {
		slog.Warn("host catalogue uses voices the live provider does not list", "err", err)
	}

	printStartupSummary(cfg, personality)

	// ── Game ──────────────────────────────────────────────────────────────────
	con := newConsole(os.Stdout)
	speaker := &device.Speaker{BufferMS: cfg.Audio.SpeakerBufferMS}
	sess, err := session.New(session.Config{
		Host: personality,
		S2S:  providers.S2S,
		Microphone: func() (capture.Source, error) {
			return device.NewMicrophone(), nil
		},
		Speaker:           speaker,
		TTS:               providers.TTS,
		FactChecker:       providers.FactCheck,
		OutputSampleRate:  cfg.Audio.OutputSampleRate,
		InitialGain:       cfg.Audio.InitialGain,
		SummaryGain:       cfg.Audio.SummaryGain,
		FactCheckMinChars: cfg.Game.FactCheckMinChars,
		FactCheckTimeout:  cfg.Game.FactCheckTimeout,
		OnTurn:            con.printTurn,
		OnFactCheck:       con.printFactCheck,
	})
	if err != nil {
		slog.Error("failed to create session", "err", err)
		return 1
	}
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			fmt.Fprintln(os.Stderr, "quizhost: microphone access is required to play")
		}
		slog.Error("failed to start game", "err", err)
		return 1
	}
	con.game = sess

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.MetricsAddr != "" {
		mux := observe.NewDebugMux(observe.DefaultMetrics(), statusHandler(sess))
		health.New(readinessProbes(sess, providers)...).Register(mux)
		srv := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("debug server listening", "addr", cfg.Server.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		return con.run(gctx, os.Stdin)
	})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, errGameOver):
	case errors.Is(err, context.Canceled):
		slog.Info("shutdown signal received, stopping")
	default:
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtProviders holds the instantiated external services. TTS and FactCheck
// may be nil when not configured; when set they are guarded by the matching
// breaker.
type builtProviders struct {
	S2S       s2s.Provider
	TTS       tts.Provider
	FactCheck factcheck.Checker

	TTSBreaker       *resilience.Breaker
	FactCheckBreaker *resilience.Breaker
}

// registerBuiltinProviders wires the Gemini implementations into reg.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	reg.RegisterS2S("gemini-live", func(entry config.ProviderEntry) (s2s.Provider, error) {
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})

	reg.RegisterTTS("gemini", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsgemini.Option
		if entry.Model != "" {
			opts = append(opts, ttsgemini.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, ttsgemini.WithVoice(entry.Voice))
		}
		return ttsgemini.New(ctx, entry.APIKey, opts...)
	})

	reg.RegisterFactCheck("gemini", func(entry config.ProviderEntry) (factcheck.Checker, error) {
		var opts []fcgemini.Option
		if entry.Model != "" {
			opts = append(opts, fcgemini.WithModel(entry.Model))
		}
		return fcgemini.New(ctx, entry.APIKey, opts...)
	})
}

// buildProviders instantiates every configured provider.
func buildProviders(cfg *config.Config, reg *config.Registry) (*builtProviders, error) {
	p := &builtProviders{}
	var err error

	if p.S2S, err = reg.CreateS2S(cfg.Providers.S2S); err != nil {
		return nil, fmt.Errorf("s2s: %w", err)
	}
	if cfg.Providers.TTS.Name != "" {
		inner, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("tts: %w", err)
		}
		p.TTSBreaker = resilience.NewBreaker(resilience.Config{Name: "tts"})
		p.TTS = resilience.GuardTTS(inner, p.TTSBreaker)
	}
	if cfg.Providers.FactCheck.Name != "" {
		inner, err := reg.CreateFactCheck(cfg.Providers.FactCheck)
		if err != nil {
			return nil, fmt.Errorf("factcheck: %w", err)
		}
		p.FactCheckBreaker = resilience.NewBreaker(resilience.Config{Name: "factcheck"})
		p.FactCheck = resilience.GuardChecker(inner, p.FactCheckBreaker)
	}
	return p, nil
}

// readinessProbes reports ready while the game runs and no provider circuit
// is open.
func readinessProbes(sess *session.Orchestrator, p *builtProviders) []health.Probe {
	probes := []health.Probe{{
		Name: "game",
		Check: func(context.Context) error {
			if st := sess.State(); st != session.Ready {
				return fmt.Errorf("game is %s", st)
			}
			return nil
		},
	}}
	if p.TTSBreaker != nil {
		probes = append(probes, health.BreakerProbe("tts", p.TTSBreaker))
	}
	if p.FactCheckBreaker != nil {
		probes = append(probes, health.BreakerProbe("factcheck", p.FactCheckBreaker))
	}
	return probes
}

// statusHandler serves the game status as JSON.
func statusHandler(sess *session.Orchestrator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sess.Status()); err != nil {
			slog.Warn("status encode failed", "err", err)
		}
	})
}

// ── Startup output ────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, p host.Personality) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       quizhost startup summary        ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Host            : %-18s ║\n", p.Name)
	fmt.Printf("║  Voice           : %-18s ║\n", p.Voice)
	printProvider("Live", cfg.Providers.S2S.Name, cfg.Providers.S2S.Model)
	printProvider("Summary TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Fact check", cfg.Providers.FactCheck.Name, cfg.Providers.FactCheck.Model)
	if cfg.Server.MetricsAddr != "" {
		fmt.Printf("║  Debug server    : %-18s ║\n", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println("Commands: volume <0-4>, status, end, help")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-16s: %-18s ║\n", kind, value)
}

// newLogger creates a text slog.Logger writing to stderr at the given level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
