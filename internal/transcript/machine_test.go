package transcript_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/quizhost/internal/transcript"
)

type factCheckRecorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *factCheckRecorder) trigger(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *factCheckRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

type countingInterrupter struct{ n int }

func (c *countingInterrupter) Interrupt() int {
	c.n++
	return 0
}

func TestOnTurnComplete_CorrectAndQuestionInOneTurn(t *testing.T) {
	t.Parallel()

	m := transcript.New()
	m.OnPartialHostText("That's correct! Next question: what is the capital of France?")
	res := m.OnTurnComplete()

	if !res.Scored || !res.Asked {
		t.Errorf("Scored=%v Asked=%v, want both true", res.Scored, res.Asked)
	}
	if res.Tally != (transcript.Tally{Score: 1, Questions: 1}) {
		t.Errorf("Tally = %+v, want {1 1}", res.Tally)
	}
	if m.Tally() != res.Tally {
		t.Errorf("Tally() = %+v, want %+v", m.Tally(), res.Tally)
	}
}

func TestOnTurnComplete_TallyRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		host   string
		scored bool
		asked  bool
	}{
		{name: "plain", host: "Let's begin.", scored: false, asked: false},
		{name: "right uppercase", host: "RIGHT you are.", scored: true, asked: false},
		{name: "correct mixed case", host: "CoRrEcT", scored: true, asked: false},
		{name: "question only", host: "Ready?", scored: false, asked: true},
		{name: "incorrect still matches", host: "That is incorrect.", scored: true, asked: false},
		{name: "empty", host: "", scored: false, asked: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := transcript.New()
			m.OnPartialHostText(tt.host)
			res := m.OnTurnComplete()
			if res.Scored != tt.scored || res.Asked != tt.asked {
				t.Errorf("Scored=%v Asked=%v, want %v %v", res.Scored, res.Asked, tt.scored, tt.asked)
			}
		})
	}
}

func TestOnTurnComplete_FactCheckThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		len  int
		want bool
	}{
		{name: "empty", len: 0, want: false},
		{name: "50 chars", len: 50, want: false},
		{name: "51 chars", len: 51, want: true},
		{name: "200 chars", len: 200, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &factCheckRecorder{}
			m := transcript.New(transcript.WithFactCheck(rec.trigger))
			text := strings.Repeat("a", tt.len)
			m.OnPartialHostText(text)
			res := m.OnTurnComplete()

			if res.FactCheck != tt.want {
				t.Errorf("FactCheck = %v, want %v", res.FactCheck, tt.want)
			}
			got := rec.get()
			if tt.want && (len(got) != 1 || got[0] != text) {
				t.Errorf("fact-check queries = %q, want [%q]", got, text)
			}
			if !tt.want && len(got) != 0 {
				t.Errorf("unexpected fact-check queries %q", got)
			}
		})
	}
}

func TestOnTurnComplete_FactCheckCountsRunes(t *testing.T) {
	t.Parallel()
	rec := &factCheckRecorder{}
	m := transcript.New(transcript.WithFactCheck(rec.trigger))

	// 50 runes, more than 50 bytes.
	m.OnPartialHostText(strings.Repeat("é", 50))
	if res := m.OnTurnComplete(); res.FactCheck {
		t.Error("50 multi-byte runes should not trigger a fact check")
	}
}

func TestOnTurnComplete_CustomThreshold(t *testing.T) {
	t.Parallel()
	rec := &factCheckRecorder{}
	m := transcript.New(transcript.WithFactCheck(rec.trigger), transcript.WithFactCheckMinChars(5))
	m.OnPartialHostText("123456")
	if res := m.OnTurnComplete(); !res.FactCheck {
		t.Error("expected fact check above custom threshold")
	}
}

func TestOnTurnComplete_AppendsUserThenHostEvenWhenEmpty(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := transcript.New(transcript.WithClock(func() time.Time { return fixed }))

	m.OnTurnComplete()
	m.OnPartialUserText("Paris")
	m.OnTurnComplete()

	snap := m.Snapshot()
	want := []transcript.Entry{
		{Role: transcript.RoleUser, Text: "", At: fixed},
		{Role: transcript.RoleHost, Text: "", At: fixed},
		{Role: transcript.RoleUser, Text: "Paris", At: fixed},
		{Role: transcript.RoleHost, Text: "", At: fixed},
	}
	if len(snap.Entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(snap.Entries), len(want), snap.Entries)
	}
	for i := range want {
		if snap.Entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, snap.Entries[i], want[i])
		}
	}
}

func TestWelcomeScenario(t *testing.T) {
	t.Parallel()

	m := transcript.New()
	m.OnPartialHostText("Welcome")
	m.OnPartialHostText("Welcome to the show")
	res := m.OnTurnComplete()

	snap := m.Snapshot()
	if len(snap.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(snap.Entries))
	}
	if snap.Entries[0].Role != transcript.RoleUser || snap.Entries[0].Text != "" {
		t.Errorf("user entry = %+v, want empty user entry", snap.Entries[0])
	}
	if snap.Entries[1].Role != transcript.RoleHost || snap.Entries[1].Text != "Welcome to the show" {
		t.Errorf("host entry = %+v, want \"Welcome to the show\"", snap.Entries[1])
	}
	if res.Tally != (transcript.Tally{}) {
		t.Errorf("Tally = %+v, want zero", res.Tally)
	}
}

func TestPartials_AppendDeltas(t *testing.T) {
	t.Parallel()

	m := transcript.New()
	m.OnPartialHostText("What is")
	m.OnPartialHostText(" the capital")
	m.OnPartialHostText(" of Peru?")
	m.OnPartialUserText("Li")
	m.OnPartialUserText("ma")

	snap := m.Snapshot()
	if snap.HostPartial != "What is the capital of Peru?" {
		t.Errorf("HostPartial = %q", snap.HostPartial)
	}
	if snap.UserPartial != "Lima" {
		t.Errorf("UserPartial = %q", snap.UserPartial)
	}
	if snap.State != transcript.AccumulatingTurn {
		t.Errorf("State = %v, want accumulating_turn", snap.State)
	}

	res := m.OnTurnComplete()
	if res.Host.Text != "What is the capital of Peru?" || res.User.Text != "Lima" {
		t.Errorf("result = %+v", res)
	}
	snap = m.Snapshot()
	if snap.HostPartial != "" || snap.UserPartial != "" || snap.State != transcript.AwaitingTurn {
		t.Errorf("after turn: %+v", snap)
	}
}

func TestPartials_RepeatedDeltaAppends(t *testing.T) {
	t.Parallel()
	m := transcript.New()
	m.OnPartialUserText("no")
	m.OnPartialUserText("no")
	if got := m.Snapshot().UserPartial; got != "nono" {
		t.Errorf("UserPartial = %q, want %q", got, "nono")
	}
}

func TestPartials_CumulativeMerge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		deltas []string
		want   string
	}{
		{name: "word boundary replaces", deltas: []string{"Welcome", "Welcome to the show"}, want: "Welcome to the show"},
		{name: "punctuation boundary replaces", deltas: []string{"No", "No, no!"}, want: "No, no!"},
		{name: "mid-word continuation appends", deltas: []string{"Li", "Lima"}, want: "LiLima"},
		{name: "equal length appends", deltas: []string{"Yes", "Yes"}, want: "YesYes"},
		{name: "unrelated delta appends", deltas: []string{"Paris", " is it"}, want: "Paris is it"},
		{name: "multi-byte boundary", deltas: []string{"Très", "Très bien"}, want: "Très bien"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := transcript.New()
			for _, d := range tt.deltas {
				m.OnPartialHostText(d)
				m.OnPartialUserText(d)
			}
			snap := m.Snapshot()
			if snap.HostPartial != tt.want || snap.UserPartial != tt.want {
				t.Errorf("host=%q user=%q, want %q", snap.HostPartial, snap.UserPartial, tt.want)
			}
		})
	}
}

func TestOnInterrupted_ForwardsAndKeepsText(t *testing.T) {
	t.Parallel()

	intr := &countingInterrupter{}
	m := transcript.New(transcript.WithInterrupter(intr))
	m.OnPartialHostText("Half a sent")
	m.OnInterrupted()

	if intr.n != 1 {
		t.Errorf("interrupter called %d times, want 1", intr.n)
	}
	if got := m.Snapshot().HostPartial; got != "Half a sent" {
		t.Errorf("HostPartial = %q, want text kept", got)
	}
}

func TestOnInterrupted_NoInterrupter(t *testing.T) {
	t.Parallel()
	m := transcript.New()
	m.OnInterrupted()
	if m.State() != transcript.AwaitingTurn {
		t.Errorf("State = %v", m.State())
	}
}

func TestTally_Monotonic(t *testing.T) {
	t.Parallel()

	m := transcript.New()
	hosts := []string{"Correct!", "Next?", "", "Right! Another?", "Hmm."}
	var prev transcript.Tally
	for _, h := range hosts {
		m.OnPartialHostText(h)
		res := m.OnTurnComplete()
		if res.Tally.Score < prev.Score || res.Tally.Questions < prev.Questions {
			t.Fatalf("tally decreased: %+v -> %+v", prev, res.Tally)
		}
		prev = res.Tally
	}
	if prev != (transcript.Tally{Score: 2, Questions: 2}) {
		t.Errorf("final tally = %+v, want {2 2}", prev)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	if transcript.AwaitingTurn.String() != "awaiting_turn" || transcript.State(9).String() != "unknown" {
		t.Error("unexpected State.String output")
	}
}
