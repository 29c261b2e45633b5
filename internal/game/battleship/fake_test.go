package battleship

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fake platform
// ============================================================================

type fakePrompt struct {
	Prompt
	stopped bool
}

func (fp *fakePrompt) hasControl(id string) bool {
	return slices.ContainsFunc(fp.Controls, func(c Control) bool { return c.ID == id })
}

type fakeListener struct {
	p  *fakePlatform
	fp *fakePrompt
}

func (l fakeListener) Stop() {
	l.p.mu.Lock()
	defer l.p.mu.Unlock()
	l.fp.stopped = true
}

type sentMessage struct {
	Dest ChannelID
	Msg  Message
}

// fakePlatform records everything the manager asks of it. Channels are
// named "game:<session>:<user>" and direct channels "dm:<user>".
type fakePlatform struct {
	mu          sync.Mutex
	prompts     []*fakePrompt
	sent        []sentMessage
	readOnly    map[ChannelID]bool
	unreachable map[UserID]bool
	failCreate  int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		readOnly:    make(map[ChannelID]bool),
		unreachable: make(map[UserID]bool),
	}
}

var errUnreachable = errors.New("user unreachable")

func (p *fakePlatform) DirectChannel(_ context.Context, user UserID) (ChannelID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unreachable[user] {
		return "", errUnreachable
	}
	return ChannelID("dm:" + user), nil
}

func (p *fakePlatform) CreatePrivateChannelPair(_ context.Context, sessionID int, a, b Player) (ChannelID, ChannelID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate > 0 {
		p.failCreate--
		return "", "", errors.New("missing permissions")
	}
	return ChannelID(fmt.Sprintf("game:%d:%s", sessionID, a.ID)),
		ChannelID(fmt.Sprintf("game:%d:%s", sessionID, b.ID)), nil
}

func (p *fakePlatform) MakeReadOnly(_ context.Context, channels ...ChannelID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range channels {
		p.readOnly[ch] = true
	}
	return nil
}

func (p *fakePlatform) Send(_ context.Context, dest ChannelID, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readOnly[dest] {
		return ErrReadOnly
	}
	p.sent = append(p.sent, sentMessage{Dest: dest, Msg: msg})
	return nil
}

func (p *fakePlatform) Present(_ context.Context, pr Prompt) (Listener, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readOnly[pr.Channel] {
		return nil, ErrReadOnly
	}
	fp := &fakePrompt{Prompt: pr}
	p.prompts = append(p.prompts, fp)
	return fakeListener{p: p, fp: fp}, nil
}

// livePrompt returns the newest unstopped prompt for user carrying control.
func (p *fakePlatform) livePrompt(user UserID, control string) (Prompt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.prompts) - 1; i >= 0; i-- {
		fp := p.prompts[i]
		if !fp.stopped && fp.User == user && fp.hasControl(control) {
			return fp.Prompt, true
		}
	}
	return Prompt{}, false
}

// lastPrompt returns the newest prompt shown on a channel, live or not.
func (p *fakePlatform) lastPrompt(ch ChannelID) (Prompt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.prompts) - 1; i >= 0; i-- {
		if p.prompts[i].Channel == ch {
			return p.prompts[i].Prompt, true
		}
	}
	return Prompt{}, false
}

func (p *fakePlatform) livePrompts(user UserID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, fp := range p.prompts {
		if !fp.stopped && fp.User == user {
			n++
		}
	}
	return n
}

// press selects control on the user's newest live prompt carrying it.
func (p *fakePlatform) press(t testing.TB, user UserID, control, value string) {
	t.Helper()
	pr, ok := p.livePrompt(user, control)
	require.Truef(t, ok, "no live prompt with control %q for %s", control, user)
	pr.OnSelect(context.Background(), Selection{User: user, Control: control, Value: value})
}

func (p *fakePlatform) messages(dest ChannelID) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, s := range p.sent {
		if s.Dest == dest {
			out = append(out, s.Msg)
		}
	}
	return out
}

func (p *fakePlatform) isReadOnly(ch ChannelID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readOnly[ch]
}

// ============================================================================
// Fake scheduler
// ============================================================================

type fakeTimer struct {
	s       *fakeScheduler
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	live := !t.stopped && !t.fired
	t.stopped = true
	return live
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fire runs every live timer of duration d in scheduling order and returns
// how many fired. A timer stopped by an earlier callback is skipped.
func (s *fakeScheduler) fire(d time.Duration) int {
	s.mu.Lock()
	pending := slices.Clone(s.timers)
	s.mu.Unlock()

	n := 0
	for _, t := range pending {
		s.mu.Lock()
		if t.d != d || t.stopped || t.fired {
			s.mu.Unlock()
			continue
		}
		t.fired = true
		s.mu.Unlock()
		t.f()
		n++
	}
	return n
}

// fireStale runs the callbacks of timers that were already stopped, as a
// timer racing its Stop call would.
func (s *fakeScheduler) fireStale(d time.Duration) int {
	s.mu.Lock()
	var stale []*fakeTimer
	for _, t := range s.timers {
		if t.d == d && t.stopped && !t.fired {
			stale = append(stale, t)
		}
	}
	s.mu.Unlock()

	for _, t := range stale {
		t.f()
	}
	return len(stale)
}

func (s *fakeScheduler) live(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if t.d == d && !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ============================================================================
// Fake recorder
// ============================================================================

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *fakeRecorder) RecordOutcome(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *fakeRecorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.outcomes)
}

// ============================================================================
// Harness
// ============================================================================

var (
	alice = Player{ID: "alice", Name: "Alice"}
	bob   = Player{ID: "bob", Name: "Bob"}
	carol = Player{ID: "carol", Name: "Carol"}
)

// tinyConfig is a 3x3 board with a single one-cell ship.
func tinyConfig() Config {
	return Config{
		BoardHeight:   3,
		BoardWidth:    3,
		IdleTimeout:   5 * time.Minute,
		InviteTimeout: time.Minute,
		Roster:        []Ship{{ID: 1, Name: "Dinghy", Length: 1, Emoji: "🛶", Glyph: "D"}},
	}
}

type harness struct {
	m        *Manager
	platform *fakePlatform
	sched    *fakeScheduler
	recorder *fakeRecorder
}

func newHarness(t testing.TB, cfg Config, first PlayerKey) *harness {
	t.Helper()
	h := &harness{
		platform: newFakePlatform(),
		sched:    &fakeScheduler{},
		recorder: &fakeRecorder{},
	}
	m, err := NewManager(cfg, NewStore(), h.platform,
		WithScheduler(h.sched),
		WithRecorder(h.recorder),
		WithCoinFlip(func() PlayerKey { return first }),
	)
	require.NoError(t, err)
	h.m = m
	return h
}

// accepted invites bob on behalf of alice and accepts it.
func (h *harness) accepted(t testing.TB) *Session {
	t.Helper()
	s, err := h.m.Invite(context.Background(), alice, bob)
	require.NoError(t, err)
	h.platform.press(t, bob.ID, ctrlAccept, "")
	require.Equal(t, StatusBoardSetup, s.Status())
	return s
}

// place drives the placing interface from the main interface.
func (h *harness) place(t testing.TB, user UserID, ship ShipID, o Orientation, at Coord) {
	t.Helper()
	h.platform.press(t, user, ctrlPlace, "")
	h.platform.press(t, user, ctrlShip, fmt.Sprint(int(ship)))
	h.platform.press(t, user, ctrlOrientation, o.String())
	h.platform.press(t, user, ctrlRow, RowLabel(at.Row))
	h.platform.press(t, user, ctrlColumn, fmt.Sprint(at.Col+1))
	h.platform.press(t, user, ctrlConfirmPlace, "")
}

// guess drives the move interface of the attacker.
func (h *harness) guess(t testing.TB, user UserID, at Coord) {
	t.Helper()
	h.platform.press(t, user, ctrlRow, RowLabel(at.Row))
	h.platform.press(t, user, ctrlColumn, fmt.Sprint(at.Col+1))
	h.platform.press(t, user, ctrlConfirmGuess, "")
}

// inCombat runs a tiny-config session into combat with alice's dinghy at
// aliceAt and bob's at bobAt.
func (h *harness) inCombat(t testing.TB, aliceAt, bobAt Coord) *Session {
	t.Helper()
	s := h.accepted(t)
	h.place(t, alice.ID, 1, Horizontal, aliceAt)
	h.platform.press(t, alice.ID, ctrlFinish, "")
	h.place(t, bob.ID, 1, Horizontal, bobAt)
	h.platform.press(t, bob.ID, ctrlFinish, "")
	require.Equal(t, StatusGamePhase, s.Status())
	return s
}
