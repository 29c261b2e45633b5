package game

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages game registration and lookup.
// It provides a thread-safe way to register and retrieve games by their command.
type Registry struct {
	games map[string]Game
	mu    sync.RWMutex
}

// NewRegistry creates a new game registry.
func NewRegistry() *Registry {
	return &Registry{
		games: make(map[string]Game),
	}
}

// Register adds a game to the registry.
// If a game with the same command already exists, it will be replaced.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	if g.Command() == "" {
		return fmt.Errorf("game command cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.Command()] = g
	return nil
}

// Get retrieves a game by its command.
// Returns the game and true if found, nil and false otherwise.
func (r *Registry) Get(command string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[command]
	return g, ok
}

// List returns all registered games ordered by command.
// The returned slice is a copy, so modifications won't affect the registry.
func (r *Registry) List() []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Command() < games[j].Command() })
	return games
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Help renders one line per game: command, name, description and, for
// session games, how many sessions are running.
func (r *Registry) Help() string {
	var sb strings.Builder
	for _, g := range r.List() {
		fmt.Fprintf(&sb, "/%s - %s: %s", g.Command(), g.Name(), g.Description())
		if sg, ok := g.(SessionGame); ok {
			fmt.Fprintf(&sb, " (%d active)", sg.ActiveSessions())
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
