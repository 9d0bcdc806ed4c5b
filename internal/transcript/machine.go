// Package transcript tracks the conversation between the player and the quiz
// host: it accumulates streamed transcription deltas for both sides, closes
// them into transcript entries when the model signals the end of a turn, and
// derives the game tally from the finalized host text.
//
// The [Machine] has two states. It sits in [AwaitingTurn] until the first
// delta of a turn arrives, moves to [AccumulatingTurn], and returns to
// [AwaitingTurn] on every turn completion.
package transcript

import (
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultFactCheckMinChars is the host text length that must be exceeded
// before a finalized host turn is sent for fact checking.
const DefaultFactCheckMinChars = 50

// State is the turn state of a [Machine].
type State int

const (
	// AwaitingTurn means both accumulators are empty and no delta has arrived
	// since the last turn completion.
	AwaitingTurn State = iota

	// AccumulatingTurn means at least one delta arrived for the current turn.
	AccumulatingTurn
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case AwaitingTurn:
		return "awaiting_turn"
	case AccumulatingTurn:
		return "accumulating_turn"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Role identifies the speaker of an [Entry].
type Role string

const (
	RoleUser Role = "user"
	RoleHost Role = "host"
)

// Entry is one finalized utterance.
type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Tally is the running game score.
type Tally struct {
	// Score counts host turns containing an affirmative keyword.
	Score int `json:"score"`

	// Questions counts host turns containing a question mark.
	Questions int `json:"questions"`
}

// TurnResult describes what a turn completion changed.
type TurnResult struct {
	// User and Host are the two entries appended, in that order.
	User, Host Entry

	// Scored is true when the host turn incremented Score.
	Scored bool

	// Asked is true when the host turn incremented Questions.
	Asked bool

	// FactCheck is true when the host text was handed to the fact-check
	// trigger.
	FactCheck bool

	// Tally is the tally after the update.
	Tally Tally
}

// Snapshot is a consistent copy of the machine's observable state.
type Snapshot struct {
	Entries     []Entry `json:"entries"`
	HostPartial string  `json:"host_partial"`
	UserPartial string  `json:"user_partial"`
	Tally       Tally   `json:"tally"`
	State       State   `json:"state"`
}

// Interrupter stops in-flight host speech. The playback scheduler satisfies
// it.
type Interrupter interface {
	Interrupt() int
}

// Option is a functional option for configuring a [Machine].
type Option func(*Machine)

// WithFactCheck registers fn to receive finalized host text longer than the
// fact-check threshold. fn is called after the machine's lock is released and
// must not block.
func WithFactCheck(fn func(query string)) Option {
	return func(m *Machine) { m.factCheck = fn }
}

// WithFactCheckMinChars overrides [DefaultFactCheckMinChars].
func WithFactCheckMinChars(n int) Option {
	return func(m *Machine) { m.minChars = n }
}

// WithInterrupter sets the target of [Machine.OnInterrupted].
func WithInterrupter(i Interrupter) Option {
	return func(m *Machine) { m.interrupter = i }
}

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the turn/transcript state machine. It is safe for concurrent
// use, although updates are expected from a single dispatch goroutine.
type Machine struct {
	factCheck   func(string)
	interrupter Interrupter
	minChars    int
	now         func() time.Time

	mu      sync.Mutex
	state   State
	host    strings.Builder
	user    strings.Builder
	entries []Entry
	tally   Tally
}

// New creates a Machine in [AwaitingTurn].
func New(opts ...Option) *Machine {
	m := &Machine{
		minChars: DefaultFactCheckMinChars,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// OnPartialHostText appends a host transcription delta. A delta that repeats
// the whole accumulated host text and continues it at a word or punctuation
// boundary, such as "Welcome" followed by "Welcome to the show", replaces the
// accumulated text instead.
func (m *Machine) OnPartialHostText(delta string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merge(&m.host, delta)
	m.state = AccumulatingTurn
}

// OnPartialUserText appends a user transcription delta, merging cumulative
// partials like [Machine.OnPartialHostText].
func (m *Machine) OnPartialUserText(delta string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merge(&m.user, delta)
	m.state = AccumulatingTurn
}

// merge appends delta to b. A delta that is strictly longer than the buffer
// and starts with all of it, followed by whitespace or punctuation, is a
// cumulative partial and replaces the buffer instead.
func merge(b *strings.Builder, delta string) {
	if cur := b.String(); cur != "" && len(delta) > len(cur) && strings.HasPrefix(delta, cur) {
		next, _ := utf8.DecodeRuneInString(delta[len(cur):])
		if unicode.IsSpace(next) || unicode.IsPunct(next) {
			b.Reset()
		}
	}
	b.WriteString(delta)
}

// OnTurnComplete closes the current turn. It appends the user entry and then
// the host entry, both even when empty, updates the tally from the host
// text, hands long host text to the fact-check trigger, clears both
// accumulators, and returns to [AwaitingTurn].
func (m *Machine) OnTurnComplete() TurnResult {
	m.mu.Lock()
	at := m.now()
	hostText := m.host.String()
	res := TurnResult{
		User: Entry{Role: RoleUser, Text: m.user.String(), At: at},
		Host: Entry{Role: RoleHost, Text: hostText, At: at},
	}
	m.entries = append(m.entries, res.User, res.Host)

	if IsAffirmative(hostText) {
		m.tally.Score++
		res.Scored = true
	}
	if IsQuestion(hostText) {
		m.tally.Questions++
		res.Asked = true
	}
	res.FactCheck = utf8.RuneCountInString(hostText) > m.minChars && m.factCheck != nil
	res.Tally = m.tally

	m.host.Reset()
	m.user.Reset()
	m.state = AwaitingTurn
	fc := m.factCheck
	m.mu.Unlock()

	if res.FactCheck {
		fc(hostText)
	}
	return res
}

// OnInterrupted forwards to the interrupter. Text accumulators are left
// untouched.
func (m *Machine) OnInterrupted() {
	if m.interrupter != nil {
		m.interrupter.Interrupt()
	}
}

// State returns the current turn state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tally returns the current tally.
func (m *Machine) Tally() Tally {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tally
}

// Snapshot returns a copy of the machine's state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Entries:     append([]Entry(nil), m.entries...),
		HostPartial: m.host.String(),
		UserPartial: m.user.String(),
		Tally:       m.tally,
		State:       m.state,
	}
}

// IsAffirmative reports whether host text contains "correct" or "right",
// case-insensitively. Substrings count, so "incorrect" scores too.
func IsAffirmative(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "correct") || strings.Contains(lower, "right")
}

// IsQuestion reports whether text contains a question mark.
func IsQuestion(text string) bool {
	return strings.Contains(text, "?")
}
