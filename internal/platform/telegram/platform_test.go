package telegram

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"battleship-bot/internal/game/battleship"
)

type sentMessage struct {
	chat int64
	text string
	opts []interface{}
	msg  *tele.Message
}

type fakeSender struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	stripped []int
	deleted  []int
	failChat int64
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	chat, err := strconv.ParseInt(to.Recipient(), 10, 64)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if chat == f.failChat {
		return nil, tele.ErrBlockedByUser
	}
	f.nextID++
	msg := &tele.Message{ID: f.nextID, Chat: &tele.Chat{ID: chat}}
	f.sent = append(f.sent, sentMessage{chat: chat, text: what.(string), opts: opts, msg: msg})
	return msg, nil
}

func (f *fakeSender) EditReplyMarkup(msg tele.Editable, _ *tele.ReplyMarkup) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := msg.MessageSig()
	n, _ := strconv.Atoi(id)
	f.stripped = append(f.stripped, n)
	return nil, nil
}

func (f *fakeSender) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := msg.MessageSig()
	n, _ := strconv.Atoi(id)
	f.deleted = append(f.deleted, n)
	return nil
}

func (f *fakeSender) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// buttonData returns the callback data of every inline button, as telegram
// would deliver it back.
func buttonData(m *tele.ReplyMarkup) []string {
	var out []string
	for _, row := range m.InlineKeyboard {
		for _, b := range row {
			out = append(out, "\f"+b.Unique+"|"+b.Data)
		}
	}
	return out
}

var coordControls = []battleship.Control{
	{ID: "row", Label: "Row", Options: []battleship.Option{{Label: "A", Value: "0"}, {Label: "B", Value: "1"}}},
	{ID: "confirm", Label: "Confirm"},
}

func presentTo(t *testing.T, p *Platform, user string, onSelect func(context.Context, battleship.Selection)) battleship.Listener {
	t.Helper()
	l, err := p.Present(context.Background(), battleship.Prompt{
		Channel:  GameChannel(42, 7),
		User:     battleship.UserID(user),
		Message:  battleship.Message{Title: "Your board"},
		Controls: coordControls,
		OnSelect: onSelect,
	})
	require.NoError(t, err)
	return l
}

func TestCallbackDataRoundTripProperty(t *testing.T) {
	token := rapid.StringMatching(`[a-z0-9_]{1,12}`)
	rapid.Check(t, func(t *rapid.T) {
		lid := token.Draw(t, "lid")
		control := token.Draw(t, "control")
		value := rapid.OneOf(rapid.Just(""), token).Draw(t, "value")

		gotLid, gotControl, gotValue, ok := ParseCallbackData(CallbackData(lid, control, value))
		if !ok || gotLid != lid || gotControl != control || gotValue != value {
			t.Fatalf("round trip of (%q, %q, %q) gave (%q, %q, %q, %v)",
				lid, control, value, gotLid, gotControl, gotValue, ok)
		}
	})
}

func TestParseCallbackDataRejectsForeignButtons(t *testing.T) {
	for _, data := range []string{"", "\fshop|buy|1", "bs", "\fbs|", "\fbs|1|", "\fbs||row"} {
		_, _, _, ok := ParseCallbackData(data)
		assert.False(t, ok, "data %q", data)
	}
	assert.True(t, IsGameCallback("\fbs|1|row|0"))
	assert.False(t, IsGameCallback("\fshop|buy"))
}

func TestKeyboardLayout(t *testing.T) {
	cols := make([]battleship.Option, 10)
	for i := range cols {
		cols[i] = battleship.Option{Label: strconv.Itoa(i + 1), Value: strconv.Itoa(i)}
	}
	controls := []battleship.Control{
		{ID: "column", Label: "Column", Options: cols},
		{ID: "ship", Label: "Ship", Options: []battleship.Option{
			{Label: "Carrier", Value: "1"}, {Label: "Cruiser", Value: "2"}, {Label: "Submarine", Value: "3"},
		}},
		{ID: "back", Label: "Back"},
		{ID: "confirm", Label: "Confirm"},
	}

	m := Keyboard("k", controls)
	require.NotNil(t, m)
	rows := m.InlineKeyboard
	require.Len(t, rows, 5)
	assert.Len(t, rows[0], 8)
	assert.Len(t, rows[1], 2)
	assert.Len(t, rows[2], 2)
	assert.Len(t, rows[3], 1)
	assert.Equal(t, "Back", rows[4][0].Text)
	assert.Equal(t, "Confirm", rows[4][1].Text)
	assert.Equal(t, Unique, rows[0][0].Unique)
	assert.Equal(t, "k|column|0", rows[0][0].Data)
	assert.Equal(t, "k|back", rows[4][0].Data)

	assert.Nil(t, Keyboard("k", nil))
}

func TestFormatMessageEscapesHTML(t *testing.T) {
	got := FormatMessage(battleship.Message{
		Title: "Alice <3",
		Text:  "Hit & sunk",
		Grid:  []string{"    1  2", " A  ·  ·"},
	})
	assert.Equal(t, "<b>Alice &lt;3</b>\n\nHit &amp; sunk\n\n<pre>    1  2\n A  ·  ·</pre>", got)
	assert.Equal(t, "only text", FormatMessage(battleship.Message{Text: "only text"}))
}

func TestDispatchDeliversSelection(t *testing.T) {
	s := &fakeSender{}
	p := New(s)

	var got []battleship.Selection
	presentTo(t, p, "100", func(_ context.Context, sel battleship.Selection) { got = append(got, sel) })

	sent := s.last()
	assert.Equal(t, int64(42), sent.chat)
	opts := sent.opts[0].(*tele.SendOptions)
	assert.Equal(t, tele.ModeHTML, opts.ParseMode)
	data := buttonData(opts.ReplyMarkup)
	require.Len(t, data, 3)

	ctx := context.Background()
	assert.Equal(t, "", p.Dispatch(ctx, 100, data[1]))
	assert.Equal(t, "", p.Dispatch(ctx, 100, data[2]))
	assert.Equal(t, []battleship.Selection{
		{User: "100", Control: "row", Value: "1"},
		{User: "100", Control: "confirm"},
	}, got)
}

func TestDispatchRejectsOtherUsersAndForgedData(t *testing.T) {
	s := &fakeSender{}
	p := New(s)

	calls := 0
	presentTo(t, p, "100", func(context.Context, battleship.Selection) { calls++ })
	lid, _, _, _ := ParseCallbackData(buttonData(s.last().opts[0].(*tele.SendOptions).ReplyMarkup)[0])

	ctx := context.Background()
	assert.Equal(t, "This menu is not for you!", p.Dispatch(ctx, 200, CallbackData(lid, "row", "0")))
	assert.Equal(t, "", p.Dispatch(ctx, 100, CallbackData(lid, "row", "9")))
	assert.Equal(t, "", p.Dispatch(ctx, 100, CallbackData(lid, "column", "0")))
	assert.Equal(t, "", p.Dispatch(ctx, 100, CallbackData(lid, "confirm", "x")))
	assert.Equal(t, "This menu has expired.", p.Dispatch(ctx, 100, CallbackData("zz", "row", "0")))
	assert.Zero(t, calls)
}

func TestStopRetiresPrompt(t *testing.T) {
	s := &fakeSender{}
	p := New(s)

	calls := 0
	l := presentTo(t, p, "100", func(context.Context, battleship.Selection) { calls++ })
	data := buttonData(s.last().opts[0].(*tele.SendOptions).ReplyMarkup)
	msgID := s.last().msg.ID

	l.Stop()
	l.Stop()
	assert.Equal(t, []int{msgID}, s.stripped)
	assert.Equal(t, "This menu has expired.", p.Dispatch(context.Background(), 100, data[0]))
	assert.Zero(t, calls)

	transient, err := p.Present(context.Background(), battleship.Prompt{
		Channel:   GameChannel(42, 7),
		User:      "100",
		Message:   battleship.Message{Text: "Confirm placement?"},
		Controls:  coordControls[1:],
		Transient: true,
		OnSelect:  func(context.Context, battleship.Selection) {},
	})
	require.NoError(t, err)
	transient.Stop()
	assert.Equal(t, []int{s.last().msg.ID}, s.deleted)
}

// TestPromptTimeoutRacesStop lets prompt timers fire while the same
// prompts are stopped by hand; run with -race.
func TestPromptTimeoutRacesStop(t *testing.T) {
	s := &fakeSender{}
	p := New(s)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := p.Present(context.Background(), battleship.Prompt{
				Channel:  GameChannel(42, 7),
				User:     "100",
				Controls: coordControls,
				Timeout:  time.Nanosecond,
				OnSelect: func(context.Context, battleship.Selection) {},
			})
			if assert.NoError(t, err) {
				l.Stop()
			}
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.stripped) == 20
	}, time.Second, 5*time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Empty(t, p.listeners)
}

func TestMakeReadOnly(t *testing.T) {
	s := &fakeSender{}
	p := New(s)
	ctx := context.Background()
	ch := GameChannel(42, 7)

	presentTo(t, p, "100", func(context.Context, battleship.Selection) {})
	require.NoError(t, p.Send(ctx, ch, battleship.Message{Text: "Game over"}))

	require.NoError(t, p.MakeReadOnly(ctx, ch))
	assert.Len(t, s.stripped, 1)

	assert.ErrorIs(t, p.Send(ctx, ch, battleship.Message{Text: "late"}), battleship.ErrReadOnly)
	_, err := p.Present(ctx, battleship.Prompt{Channel: ch, User: "100"})
	assert.ErrorIs(t, err, battleship.ErrReadOnly)

	// The private chat itself and other sessions stay writable.
	assert.NoError(t, p.Send(ctx, "42", battleship.Message{Text: "hello"}))
	assert.NoError(t, p.Send(ctx, GameChannel(42, 8), battleship.Message{Text: "hello"}))
}

func TestCreatePrivateChannelPair(t *testing.T) {
	s := &fakeSender{}
	p := New(s)
	ctx := context.Background()
	alice := battleship.Player{ID: "100", Name: "Alice"}
	bob := battleship.Player{ID: "200", Name: "Bob"}

	a, b, err := p.CreatePrivateChannelPair(ctx, 3, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, battleship.ChannelID("100:3"), a)
	assert.Equal(t, battleship.ChannelID("200:3"), b)
	require.Len(t, s.sent, 2)
	assert.Contains(t, s.sent[0].text, "against Bob")
	assert.Contains(t, s.sent[1].text, "against Alice")

	s.failChat = 200
	_, _, err = p.CreatePrivateChannelPair(ctx, 4, alice, bob)
	assert.ErrorIs(t, err, tele.ErrBlockedByUser)
}

func TestDirectChannel(t *testing.T) {
	p := New(&fakeSender{})
	ch, err := p.DirectChannel(context.Background(), UserID(100))
	require.NoError(t, err)
	assert.Equal(t, battleship.ChannelID("100"), ch)

	_, err = p.DirectChannel(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestPlayerOf(t *testing.T) {
	assert.Equal(t, battleship.Player{ID: "1", Name: "@ally"}, PlayerOf(&tele.User{ID: 1, FirstName: "Alice", Username: "ally"}))
	assert.Equal(t, battleship.Player{ID: "2", Name: "Bob Stone"}, PlayerOf(&tele.User{ID: 2, FirstName: "Bob", LastName: "Stone"}))
}
