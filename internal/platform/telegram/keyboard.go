package telegram

import (
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v3"

	"battleship-bot/internal/game/battleship"
)

const (
	maxShortPerRow = 8 // row letters, column numbers
	maxLongPerRow  = 2 // ship names, orientations
)

// Keyboard builds the inline keyboard of a prompt: one block of rows per
// menu, then all plain buttons on a final row. It returns nil when the
// prompt has no controls.
func Keyboard(listenerID string, controls []battleship.Control) *tele.ReplyMarkup {
	if len(controls) == 0 {
		return nil
	}
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	var buttons []tele.Btn
	for _, c := range controls {
		if !c.IsMenu() {
			buttons = append(buttons, markup.Data(c.Label, Unique, listenerID, c.ID))
			continue
		}
		opts := make([]tele.Btn, len(c.Options))
		perRow := maxShortPerRow
		for i, o := range c.Options {
			opts[i] = markup.Data(o.Label, Unique, listenerID, c.ID, o.Value)
			if utf8.RuneCountInString(o.Label) > 3 {
				perRow = maxLongPerRow
			}
		}
		rows = append(rows, markup.Split(perRow, opts)...)
	}
	if len(buttons) > 0 {
		rows = append(rows, markup.Row(buttons...))
	}

	markup.Inline(rows...)
	return markup
}

// CallbackData returns the data telebot attaches to a game button.
func CallbackData(listenerID, control, value string) string {
	data := []string{Unique, listenerID, control}
	if value != "" {
		data = append(data, value)
	}
	return "\f" + strings.Join(data, "|")
}

// ParseCallbackData splits game button data into listener id, control and
// value. It reports false for data of other buttons.
func ParseCallbackData(data string) (listenerID, control, value string, ok bool) {
	data = strings.TrimPrefix(data, "\f")
	parts := strings.SplitN(data, "|", 4)
	if len(parts) < 3 || parts[0] != Unique || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	if len(parts) == 4 {
		value = parts[3]
	}
	return parts[1], parts[2], value, true
}

// IsGameCallback reports whether callback data belongs to a game button.
func IsGameCallback(data string) bool {
	return strings.HasPrefix(strings.TrimPrefix(data, "\f"), Unique+"|")
}
