package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"battleship-bot/internal/game/battleship"
)

// Discord limits a message to five action rows of five buttons, and a
// select menu to 25 options.
const (
	maxRows        = 5
	maxButtons     = 5
	maxMenuOptions = 25
	customIDPrefix = "bs"
)

// CustomID returns the component id of a control.
func CustomID(listenerID, control string) string {
	return customIDPrefix + ":" + listenerID + ":" + control
}

// ParseCustomID splits a component id into listener id and control.
func ParseCustomID(id string) (listenerID, control string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != customIDPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// buttonStyle picks a style from the control's role.
func buttonStyle(id string) discordgo.ButtonStyle {
	switch {
	case strings.HasPrefix(id, "confirm"), id == "accept", id == "finish":
		return discordgo.SuccessButton
	case id == "deny":
		return discordgo.DangerButton
	case id == "back":
		return discordgo.SecondaryButton
	}
	return discordgo.PrimaryButton
}

// Components lays out a prompt's controls: one select menu row per menu,
// then the buttons in rows of five. Controls past Discord's row limit are
// dropped.
func Components(listenerID string, controls []battleship.Control) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var buttons []discordgo.MessageComponent

	for _, c := range controls {
		if !c.IsMenu() {
			buttons = append(buttons, discordgo.Button{
				Label:    c.Label,
				Style:    buttonStyle(c.ID),
				CustomID: CustomID(listenerID, c.ID),
			})
			continue
		}
		opts := make([]discordgo.SelectMenuOption, 0, min(len(c.Options), maxMenuOptions))
		for _, o := range c.Options[:min(len(c.Options), maxMenuOptions)] {
			opts = append(opts, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value})
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    CustomID(listenerID, c.ID),
				Placeholder: c.Label,
				Options:     opts,
			},
		}})
	}
	for len(buttons) > 0 {
		n := min(len(buttons), maxButtons)
		rows = append(rows, discordgo.ActionsRow{Components: buttons[:n]})
		buttons = buttons[n:]
	}

	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return rows
}
