package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type stubGame struct {
	name, command, description string
	active                     int
}

func (g stubGame) Name() string        { return g.name }
func (g stubGame) Command() string     { return g.command }
func (g stubGame) Description() string { return g.description }

type stubSessionGame struct{ stubGame }

func (g stubSessionGame) ActiveSessions() int { return g.active }

func TestRegistryRejectsInvalidGames(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(stubGame{name: "Nameless"}))
	assert.Equal(t, 0, r.Count())
}

func TestRegistryHelp(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubSessionGame{stubGame{"Battleship", "battleship", "Sink ships", 2}}))
	require.NoError(t, r.Register(stubGame{name: "Dice", command: "dice", description: "Roll"}))

	assert.Equal(t, "/battleship - Battleship: Sink ships (2 active)\n/dice - Dice: Roll", r.Help())

	g, ok := r.Get("dice")
	require.True(t, ok)
	assert.Equal(t, "Dice", g.Name())
	_, ok = r.Get("chess")
	assert.False(t, ok)
}

// TestRegistryReplaceProperty registers games under random commands.
// *For any* sequence of registrations, the registry holds one game per
// distinct command, the last one registered, listed in command order.
func TestRegistryReplaceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		commands := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,6}`)).Draw(t, "commands")
		last := map[string]string{}
		for i, cmd := range commands {
			name := cmd + string(rune('A'+i%26))
			if err := r.Register(stubGame{name: name, command: cmd}); err != nil {
				t.Fatalf("register %q: %v", cmd, err)
			}
			last[cmd] = name
		}

		if r.Count() != len(last) {
			t.Fatalf("expected %d games, got %d", len(last), r.Count())
		}
		list := r.List()
		for i, g := range list {
			if g.Name() != last[g.Command()] {
				t.Fatalf("command %q holds %q, expected %q", g.Command(), g.Name(), last[g.Command()])
			}
			if i > 0 && list[i-1].Command() >= g.Command() {
				t.Fatalf("list not ordered: %q before %q", list[i-1].Command(), g.Command())
			}
		}
	})
}
