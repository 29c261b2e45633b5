package battleship

import (
	"fmt"
	"sync/atomic"
	"time"
)

// PlayerKey names a side of a session. P1 is the inviter, P2 the invitee.
type PlayerKey int

// Player keys.
const (
	P1 PlayerKey = iota + 1
	P2
)

func (k PlayerKey) String() string {
	if k == P1 {
		return "p1"
	}
	return "p2"
}

// Opponent returns the other side.
func (k PlayerKey) Opponent() PlayerKey {
	if k == P1 {
		return P2
	}
	return P1
}

// Pick is an in-progress row/column choice.
type Pick struct {
	Row    int
	Col    int
	HasRow bool
	HasCol bool
}

// Complete reports whether both row and column were chosen.
func (p Pick) Complete() bool { return p.HasRow && p.HasCol }

// Coord returns the chosen cell. Only meaningful when Complete.
func (p Pick) Coord() Coord { return Coord{Row: p.Row, Col: p.Col} }

// SetupInterface is the screen a player is on during board setup.
type SetupInterface int

// Setup interfaces.
const (
	InterfaceMain SetupInterface = iota
	InterfacePlacing
	InterfaceRemoving
)

func (i SetupInterface) String() string {
	switch i {
	case InterfacePlacing:
		return "placing"
	case InterfaceRemoving:
		return "removing"
	default:
		return "main"
	}
}

// SetupState is one of SetupNotStarted, *SettingUp or SetupDone.
type SetupState interface {
	isSetupState()
}

// SetupNotStarted is the setup state before the invite is accepted.
type SetupNotStarted struct{}

// SetupDone is the setup state once the player finished placing ships.
type SetupDone struct{}

// SettingUp holds a player's board setup progress.
type SettingUp struct {
	Interface           SetupInterface
	Ships               []RosterShip
	SelectedShip        ShipID
	SelectedOrientation Orientation
	Selected            Pick
	SelectedRemoveShip  ShipID
}

func (SetupNotStarted) isSetupState() {}
func (SetupDone) isSetupState()       {}
func (*SettingUp) isSetupState()      {}

// clearSelection drops every transient pick.
func (st *SettingUp) clearSelection() {
	st.SelectedShip = Sea
	st.SelectedOrientation = 0
	st.Selected = Pick{}
	st.SelectedRemoveShip = Sea
}

func (st *SettingUp) find(id ShipID) *RosterShip {
	for i := range st.Ships {
		if st.Ships[i].ID == id {
			return &st.Ships[i]
		}
	}
	return nil
}

func (st *SettingUp) allPlaced() bool {
	for _, s := range st.Ships {
		if !s.Placed {
			return false
		}
	}
	return true
}

func (st *SettingUp) anyPlaced() bool {
	for _, s := range st.Ships {
		if s.Placed {
			return true
		}
	}
	return false
}

// CollectorTag names the purpose of a live prompt.
type CollectorTag string

// Collector tags.
const (
	TagCurrentInterface  CollectorTag = "current_interface"
	TagPlacementFeedback CollectorTag = "placement_feedback"
	TagRemovalFeedback   CollectorTag = "removal_feedback"
	TagMoveInterface     CollectorTag = "move_interface"
	TagMoveFeedback      CollectorTag = "move_feedback"
	tagInvite            CollectorTag = "invite"
)

// collector is the registry entry of one live prompt.
type collector struct {
	tag      CollectorTag
	listener Listener
}

func (c *collector) stop() {
	if c != nil && c.listener != nil {
		c.listener.Stop()
	}
}

// collectors maps a purpose tag to the only live prompt for it.
type collectors map[CollectorTag]*collector

// supersede cancels the prompt registered under the tag and installs c.
func (cs collectors) supersede(tag CollectorTag, c *collector) {
	if old, ok := cs[tag]; ok {
		old.stop()
	}
	c.tag = tag
	cs[tag] = c
}

func (cs collectors) stop(tag CollectorTag) {
	if old, ok := cs[tag]; ok {
		old.stop()
		delete(cs, tag)
	}
}

func (cs collectors) stopAll() {
	for tag, c := range cs {
		c.stop()
		delete(cs, tag)
	}
}

// live reports whether c is still the registered prompt for its tag.
func (cs collectors) live(c *collector) bool {
	return c != nil && cs[c.tag] == c
}

// MoveResult is the outcome of one attack.
type MoveResult int

// Move results.
const (
	ResultMiss MoveResult = iota
	ResultHit
	ResultSunk
)

func (r MoveResult) String() string {
	switch r {
	case ResultHit:
		return "hit"
	case ResultSunk:
		return "sunk"
	default:
		return "miss"
	}
}

// Move is one attack, appended to the attacker's move list.
type Move struct {
	TurnNumber     int    // 1-based, per attacker
	Position       string // row letter + 1-based column
	Coord          Coord
	Result         MoveResult
	ShipHit        ShipID // Sea on a miss
	ShipSunk       ShipID // Sea unless this move sank a ship
	Timestamp      time.Time
	RemainingShips int // defender ships still afloat after the move
}

// PlayerState is one side of a session.
type PlayerState struct {
	Player
	Board   Board
	Guesses Guesses
	Moves   []Move
	Channel ChannelID
	Setup   SetupState

	idle       Timer
	idleGen    uint64
	collectors collectors
}

func newPlayerState(p Player) *PlayerState {
	return &PlayerState{
		Player:     p,
		Setup:      SetupNotStarted{},
		collectors: make(collectors),
	}
}

// HasFinishedSetup reports whether the player signalled setup-complete.
func (p *PlayerState) HasFinishedSetup() bool {
	_, ok := p.Setup.(SetupDone)
	return ok
}

// LiveCollectors returns the number of live prompts owned by the player.
func (p *PlayerState) LiveCollectors() int { return len(p.collectors) }

// HasIdleTimer reports whether an idle timeout is scheduled for the player.
func (p *PlayerState) HasIdleTimer() bool { return p.idle != nil }

// GamePhase is the combat state.
type GamePhase struct {
	Turn     PlayerKey
	Selected Pick
}

// Session is one game from invite to terminal outcome.
type Session struct {
	ID     int
	P1     *PlayerState
	P2     *PlayerState
	Game   *GamePhase
	status atomic.Int32

	InvitedAt     time.Time
	AcceptedAt    time.Time
	DeniedAt      time.Time
	ExpiredAt     time.Time
	CancelledAt   time.Time
	GameStartedAt time.Time
	EndedAt       time.Time

	inviteChannel ChannelID
	invite        *collector
	inviteTimer   Timer
}

func newSession(id int, inviter, invitee Player, now time.Time) *Session {
	s := &Session{
		ID:        id,
		P1:        newPlayerState(inviter),
		P2:        newPlayerState(invitee),
		InvitedAt: now,
	}
	s.status.Store(int32(StatusInvitePending))
	return s
}

// Status returns the current status. Safe for concurrent use.
func (s *Session) Status() Status {
	return Status(s.status.Load())
}

// Player returns the state of one side.
func (s *Session) Player(k PlayerKey) *PlayerState {
	if k == P1 {
		return s.P1
	}
	return s.P2
}

// KeyOf returns the side a user plays on.
func (s *Session) KeyOf(u UserID) (PlayerKey, bool) {
	switch u {
	case s.P1.ID:
		return P1, true
	case s.P2.ID:
		return P2, true
	}
	return 0, false
}

// transition moves the session along the state table and stamps the
// timestamp belonging to the new status.
func (s *Session) transition(to Status, at time.Time) error {
	from := s.Status()
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	switch to {
	case StatusInviteDenied:
		s.DeniedAt = at
	case StatusInviteExpired:
		s.ExpiredAt = at
	case StatusInviteCancelled:
		s.CancelledAt = at
	case StatusBoardSetup:
		s.AcceptedAt = at
	case StatusGamePhase:
		s.GameStartedAt = at
	default:
		s.EndedAt = at
	}
	s.status.Store(int32(to))
	return nil
}
