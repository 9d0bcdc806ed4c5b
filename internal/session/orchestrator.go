// Package session runs one trivia game from microphone acquisition to the
// spoken end-of-game summary.
//
// An [Orchestrator] owns every resource of a game: the capture pipeline, the
// live channel, the playback scheduler and the fact-check board. Inbound
// channel events are handled by a single dispatch goroutine, so transcript
// updates and playback scheduling never interleave. Teardown runs each
// release step exactly once, whichever path triggers it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/quizhost/internal/factcheck"
	"github.com/MrWong99/quizhost/internal/host"
	"github.com/MrWong99/quizhost/internal/observe"
	"github.com/MrWong99/quizhost/internal/transcript"
	"github.com/MrWong99/quizhost/pkg/audio"
	"github.com/MrWong99/quizhost/pkg/audio/capture"
	"github.com/MrWong99/quizhost/pkg/audio/playback"
	pfactcheck "github.com/MrWong99/quizhost/pkg/provider/factcheck"
	"github.com/MrWong99/quizhost/pkg/provider/s2s"
	"github.com/MrWong99/quizhost/pkg/provider/tts"
)

// Gain limits and defaults for the live and summary output.
const (
	MaxGain            = 4.0
	DefaultInitialGain = 2.5
	DefaultSummaryGain = 2.0
)

// ErrNotReady is returned by operations that need a running game.
var ErrNotReady = errors.New("session: not ready")

// ErrAlreadyStarted is returned by Start on an orchestrator that has left
// [Idle].
var ErrAlreadyStarted = errors.New("session: already started")

// State is the lifecycle state of an [Orchestrator].
type State int

const (
	// Idle: created, nothing acquired.
	Idle State = iota
	// Starting: acquiring the microphone and opening the live channel.
	Starting
	// Ready: the game is running.
	Ready
	// Ended: the game was ended or closed. Terminal.
	Ended
	// Failed: setup failed and everything acquired was released. Terminal.
	Failed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Ended:
		return "ended"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config configures an [Orchestrator].
type Config struct {
	// Host is the personality that runs the game. Required.
	Host host.Personality

	// S2S opens the live channel. Required.
	S2S s2s.Provider

	// Microphone opens the capture device. Required.
	Microphone func() (capture.Source, error)

	// Speaker renders playback contexts. Required.
	Speaker playback.Sink

	// TTS speaks the end-of-game summary. Optional.
	TTS tts.Provider

	// FactChecker checks long host statements. Optional.
	FactChecker pfactcheck.Checker

	// OutputSampleRate is the rate of the model's speech. Defaults to
	// [audio.OutputSampleRate].
	OutputSampleRate int

	// InitialGain is the live volume at start. Defaults to
	// [DefaultInitialGain]; clamped to [0, MaxGain].
	InitialGain float64

	// SummaryGain is the volume of the summary narration. Defaults to
	// [DefaultSummaryGain].
	SummaryGain float64

	// FactCheckMinChars overrides the fact-check length threshold when
	// positive.
	FactCheckMinChars int

	// FactCheckTimeout bounds each fact check. Zero uses the board default.
	FactCheckTimeout time.Duration

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// OnTurn, if set, is called from the dispatch goroutine after every
	// completed turn.
	OnTurn func(transcript.TurnResult)

	// OnFactCheck, if set, is called with every accepted fact-check result.
	OnFactCheck func(pfactcheck.Result)
}

// Summary is the outcome of a finished game.
type Summary struct {
	SessionID  string
	Host       string
	Tally      transcript.Tally
	Transcript []transcript.Entry
	Duration   time.Duration

	// Spoken reports whether the narration was synthesised and played.
	Spoken bool
}

// Status is a point-in-time view of a game.
type Status struct {
	SessionID  string              `json:"session_id"`
	State      string              `json:"state"`
	Host       string              `json:"host"`
	Gain       float64             `json:"gain"`
	Playing    int                 `json:"playing"`
	Transcript transcript.Snapshot `json:"transcript"`
	FactCheck  *pfactcheck.Result  `json:"fact_check,omitempty"`
	Checking   bool                `json:"checking"`
}

// closer is one named release step.
type closer struct {
	name string
	fn   func() error
}

// Orchestrator drives one game. All exported methods are safe for
// concurrent use.
type Orchestrator struct {
	cfg     Config
	id      string
	metrics *observe.Metrics
	machine *transcript.Machine

	mu        sync.Mutex
	state     State
	started   time.Time
	handle    s2s.SessionHandle
	scheduler *playback.Scheduler
	board     *factcheck.Board
	closers   []closer
	tornDown  bool
	active    bool

	teardownOnce sync.Once
	dispatchWG   sync.WaitGroup
}

// New validates cfg and returns an [Orchestrator] in [Idle].
func New(cfg Config) (*Orchestrator, error) {
	var errs []error
	if cfg.S2S == nil {
		errs = append(errs, errors.New("session: S2S provider is required"))
	}
	if cfg.Microphone == nil {
		errs = append(errs, errors.New("session: Microphone is required"))
	}
	if cfg.Speaker == nil {
		errs = append(errs, errors.New("session: Speaker is required"))
	}
	if cfg.Host.ID == "" {
		errs = append(errs, errors.New("session: Host is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.OutputSampleRate <= 0 {
		cfg.OutputSampleRate = audio.OutputSampleRate
	}
	if cfg.InitialGain == 0 {
		cfg.InitialGain = DefaultInitialGain
	}
	cfg.InitialGain = clampGain(cfg.InitialGain)
	if cfg.SummaryGain == 0 {
		cfg.SummaryGain = DefaultSummaryGain
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	return &Orchestrator{
		cfg:     cfg,
		id:      uuid.NewString(),
		metrics: cfg.Metrics,
	}, nil
}

// ID returns the session identifier used in logs.
func (o *Orchestrator) ID() string { return o.id }

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start acquires the microphone, opens playback, connects the live channel
// with the host's instruction and voice, and starts capture. On success the
// game is [Ready] and the dispatch goroutine is running. On failure
// everything acquired so far is released, the state is [Failed] and the
// error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != Idle {
		st := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, st)
	}
	o.state = Starting
	o.mu.Unlock()

	log := slog.With("session_id", o.id, "host", o.cfg.Host.ID)
	log.Info("session: starting")

	if err := o.setup(ctx, log); err != nil {
		o.teardown()
		o.mu.Lock()
		if o.state == Starting {
			o.state = Failed
		}
		o.mu.Unlock()
		log.Error("session: start failed", "err", err)
		return err
	}

	o.mu.Lock()
	if o.state != Starting {
		// Closed while connecting.
		o.mu.Unlock()
		o.teardown()
		return ErrNotReady
	}
	o.state = Ready
	o.started = time.Now()
	o.active = true
	o.mu.Unlock()

	o.metrics.ActiveSessions.Add(ctx, 1)
	log.Info("session: ready")
	return nil
}

func (o *Orchestrator) setup(ctx context.Context, log *slog.Logger) error {
	src, err := o.cfg.Microphone()
	if err != nil {
		return fmt.Errorf("session: open microphone: %w: %w", capture.ErrDeviceUnavailable, err)
	}

	// Frames arriving before the channel is stored are rejected by send.
	pipeline := capture.New(src, capture.SinkFunc(o.send),
		capture.WithFrameHook(func(_ int, err error) {
			o.metrics.RecordFrameSent(context.Background(), err == nil)
		}),
	)
	o.addCloser("microphone", pipeline.Close)

	if o.cfg.FactChecker != nil {
		board := factcheck.NewBoard(factcheck.Config{
			Checker:  o.cfg.FactChecker,
			Timeout:  o.cfg.FactCheckTimeout,
			Metrics:  o.metrics,
			OnResult: o.cfg.OnFactCheck,
		})
		o.mu.Lock()
		o.board = board
		o.mu.Unlock()
		o.addCloser("factcheck", board.Close)
	}

	pctx := playback.NewContext(o.cfg.OutputSampleRate, o.cfg.InitialGain)
	sched := playback.NewScheduler(pctx,
		playback.WithOnSchedule(func(playback.Scheduled) {
			o.metrics.PlaybackFragments.Add(context.Background(), 1)
		}),
		playback.WithOnInterrupt(func(stopped int) {
			o.metrics.PlaybackInterruptions.Add(context.Background(), 1)
			log.Debug("session: playback interrupted", "stopped", stopped)
		}),
	)
	o.addCloser("playback context", pctx.Close)
	o.addCloser("scheduler", sched.Close)

	out, err := o.cfg.Speaker.Open(pctx)
	if err != nil {
		return fmt.Errorf("session: open speaker: %w", err)
	}
	o.addCloser("speaker", out.Close)

	opts := []transcript.Option{transcript.WithInterrupter(sched)}
	if o.board != nil {
		opts = append(opts, transcript.WithFactCheck(o.board.Trigger))
	}
	if o.cfg.FactCheckMinChars > 0 {
		opts = append(opts, transcript.WithFactCheckMinChars(o.cfg.FactCheckMinChars))
	}
	machine := transcript.New(opts...)

	o.mu.Lock()
	o.scheduler = sched
	o.machine = machine
	o.mu.Unlock()

	connectStart := time.Now()
	handle, err := o.cfg.S2S.Connect(ctx, s2s.SessionConfig{
		Voice:               o.cfg.Host.Voice,
		Instructions:        o.cfg.Host.SystemInstruction(),
		InputTranscription:  true,
		OutputTranscription: true,
	})
	if err != nil {
		o.metrics.RecordProviderError(ctx, "s2s", "connect")
		return fmt.Errorf("session: connect live channel: %w", err)
	}
	o.metrics.ConnectDuration.Record(ctx, time.Since(connectStart).Seconds())
	o.addCloser("live channel", handle.Close)

	handle.OnError(func(err error) {
		o.metrics.RecordProviderError(context.Background(), "s2s", "server")
		log.Warn("session: live channel error", "err", err)
	})

	o.mu.Lock()
	if o.tornDown {
		o.mu.Unlock()
		return ErrNotReady
	}
	o.handle = handle
	o.dispatchWG.Add(1)
	o.mu.Unlock()
	go o.dispatch(handle, log)

	// Stop capture before the channel on teardown. Pipeline.Close is
	// idempotent, so the earlier registration becomes a no-op.
	o.addCloser("capture", pipeline.Close)
	if err := pipeline.Start(); err != nil {
		return fmt.Errorf("session: start capture: %w", err)
	}
	return nil
}

// send forwards a captured chunk to the live channel.
func (o *Orchestrator) send(chunk audio.Chunk) error {
	o.mu.Lock()
	h := o.handle
	o.mu.Unlock()
	if h == nil {
		return ErrNotReady
	}
	return h.SendAudio(chunk)
}

// dispatch is the single consumer of channel events. It returns when the
// channel closes.
func (o *Orchestrator) dispatch(h s2s.SessionHandle, log *slog.Logger) {
	defer o.dispatchWG.Done()
	for ev := range h.Events() {
		o.handleEvent(ev, log)
	}
	if err := h.Err(); err != nil {
		log.Error("session: live channel closed", "err", err)
		return
	}
	log.Debug("session: live channel closed")
}

// handleEvent applies one server message: host text, user text, turn end, audio,
// interruption.
func (o *Orchestrator) handleEvent(ev s2s.Event, log *slog.Logger) {
	if ev.OutputTranscription != nil {
		o.machine.OnPartialHostText(ev.OutputTranscription.Text)
	}
	if ev.InputTranscription != nil {
		o.machine.OnPartialUserText(ev.InputTranscription.Text)
	}
	if ev.TurnComplete {
		res := o.machine.OnTurnComplete()
		o.metrics.RecordTurn(context.Background(), res.Scored, res.Asked)
		log.Debug("session: turn complete",
			"score", res.Tally.Score,
			"questions", res.Tally.Questions,
			"fact_check", res.FactCheck,
		)
		if o.cfg.OnTurn != nil {
			o.cfg.OnTurn(res)
		}
	}
	if ev.Audio != nil {
		if _, err := o.scheduler.EnqueueBase64(ev.Audio.Data); err != nil {
			if errors.Is(err, playback.ErrClosed) {
				log.Debug("session: dropping audio after teardown")
			} else {
				log.Warn("session: undecodable audio fragment", "err", err)
			}
		}
	}
	if ev.Interrupted {
		o.machine.OnInterrupted()
	}
}

// SetVolume sets the live playback gain, clamped to [0, MaxGain], and
// returns the applied level. The change is smoothed by the scheduler.
func (o *Orchestrator) SetVolume(level float64) (float64, error) {
	o.mu.Lock()
	st, sched := o.state, o.scheduler
	o.mu.Unlock()
	if st != Ready {
		return 0, ErrNotReady
	}
	level = clampGain(level)
	sched.SetGain(level)
	return level, nil
}

// Status returns a point-in-time view of the game.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	st := Status{
		SessionID: o.id,
		State:     o.state.String(),
		Host:      o.cfg.Host.Name,
	}
	machine, sched, board := o.machine, o.scheduler, o.board
	o.mu.Unlock()

	if machine != nil {
		st.Transcript = machine.Snapshot()
	}
	if sched != nil {
		st.Gain = sched.Gain()
		st.Playing = sched.Active()
	}
	if board != nil {
		if res, ok := board.Latest(); ok {
			st.FactCheck = &res
		}
		st.Checking = board.Checking()
	}
	return st
}

// EndGame ends a running game. It tears everything down, then asks the TTS
// provider to narrate the result and plays it once at the summary gain. A
// narration failure is logged and does not fail EndGame.
func (o *Orchestrator) EndGame(ctx context.Context) (Summary, error) {
	o.mu.Lock()
	if o.state != Ready {
		o.mu.Unlock()
		return Summary{}, ErrNotReady
	}
	o.state = Ended
	started := o.started
	o.mu.Unlock()

	o.teardown()

	snap := o.machine.Snapshot()
	sum := Summary{
		SessionID:  o.id,
		Host:       o.cfg.Host.Name,
		Tally:      snap.Tally,
		Transcript: snap.Entries,
		Duration:   time.Since(started),
	}
	slog.Info("session: game ended",
		"session_id", o.id,
		"score", sum.Tally.Score,
		"questions", sum.Tally.Questions,
		"duration", sum.Duration,
	)

	if o.cfg.TTS == nil {
		return sum, nil
	}
	if err := o.speakSummary(ctx, sum); err != nil {
		observe.Logger(ctx).Warn("session: summary narration failed", "session_id", o.id, "err", err)
		return sum, nil
	}
	sum.Spoken = true
	return sum, nil
}

func (o *Orchestrator) speakSummary(ctx context.Context, sum Summary) (err error) {
	ctx, span := observe.StartSpan(ctx, "session.summary")
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	speech, err := o.cfg.TTS.Synthesize(ctx, tts.SummaryRequest{
		Score:     sum.Tally.Score,
		Questions: sum.Tally.Questions,
		HostName:  sum.Host,
	})
	o.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, "tts", "summary", "error")
		o.metrics.RecordProviderError(ctx, "tts", "summary")
		return fmt.Errorf("session: synthesize summary: %w", err)
	}
	o.metrics.RecordProviderRequest(ctx, "tts", "summary", "ok")

	if err := playback.PlayOnce(ctx, o.cfg.Speaker, speech.PCM, speech.SampleRate, o.cfg.SummaryGain); err != nil {
		return fmt.Errorf("session: play summary: %w", err)
	}
	return nil
}

// Close ends the game without a summary and releases every resource. It is
// safe to call at any time and more than once.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	switch o.state {
	case Idle, Starting, Ready:
		o.state = Ended
	}
	o.mu.Unlock()
	o.teardown()
	return nil
}

// addCloser registers a release step. After teardown has run, fn is called
// immediately instead.
func (o *Orchestrator) addCloser(name string, fn func() error) {
	o.mu.Lock()
	if !o.tornDown {
		o.closers = append(o.closers, closer{name: name, fn: fn})
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	if err := fn(); err != nil {
		slog.Warn("session: release failed", "session_id", o.id, "resource", name, "err", err)
	}
}

// teardown runs the registered closers once, newest first, and waits for the
// dispatch goroutine.
func (o *Orchestrator) teardown() {
	o.teardownOnce.Do(func() {
		o.mu.Lock()
		closers := o.closers
		o.closers = nil
		o.tornDown = true
		active := o.active
		o.active = false
		o.mu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(); err != nil {
				slog.Warn("session: release failed",
					"session_id", o.id,
					"resource", closers[i].name,
					"err", err,
				)
			}
		}
		o.dispatchWG.Wait()

		if active {
			o.metrics.ActiveSessions.Add(context.Background(), -1)
		}
		slog.Debug("session: resources released", "session_id", o.id, "count", len(closers))
	})
}

func clampGain(level float64) float64 {
	return max(0, min(level, MaxGain))
}
