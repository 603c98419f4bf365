package game

import "fmt"

// BallGroup represents a player's assigned ball group.
type BallGroup string

const (
	GroupNone    BallGroup = "" // not yet assigned
	GroupSolids  BallGroup = "solids"
	GroupStripes BallGroup = "stripes"
)

// Complement returns the other group.
func (g BallGroup) Complement() BallGroup {
	switch g {
	case GroupSolids:
		return GroupStripes
	case GroupStripes:
		return GroupSolids
	}
	return GroupNone
}

// ballGroup returns the group for a ball ID.
func ballGroup(id int) BallGroup {
	if id >= 1 && id <= 7 {
		return GroupSolids
	}
	if id >= 9 && id <= 15 {
		return GroupStripes
	}
	return GroupNone // 0 = cue, 8 = eight
}

// TurnPhase is the state of the turn machine.
type TurnPhase string

const (
	PhaseAwaitingShot     TurnPhase = "awaiting_shot"
	PhaseBallsInMotion    TurnPhase = "balls_in_motion"
	PhaseCueBallScratched TurnPhase = "cue_ball_scratched"
	PhaseGameOver         TurnPhase = "game_over"
)

// WinType explains how a game ended.
type WinType string

const (
	WinPocket8  WinType = "pocket_8"
	WinIllegal8 WinType = "illegal_8ball"
	WinForfeit  WinType = "forfeit"
)

// PlayerState is one side's group and pocketed balls.
type PlayerState struct {
	Group    BallGroup `json:"group"`
	Pocketed []int     `json:"pocketed"`
}

// Match is the 8-ball turn state machine. It never touches ball positions; it only
// consumes pocket events and rest signals and decides whose turn it is.
type Match struct {
	Phase           TurnPhase      `json:"phase"`
	CurrentPlayer   int            `json:"current_player"` // 1 or 2
	Players         [2]PlayerState `json:"players"`
	PocketedOwnBall bool           `json:"pocketed_own_ball"`
	Scratched       bool           `json:"scratched"`
	FirstPocketed   int            `json:"first_pocketed,omitempty"` // first object ball of an open-table shot
	GameOver        bool           `json:"game_over"`
	Winner          int            `json:"winner,omitempty"`
	WinType         WinType        `json:"win_type,omitempty"`
	Message         string         `json:"message"`
	TurnRemaining   int            `json:"turn_remaining"`
	TurnLimit       int            `json:"turn_limit"`
	Timed           bool           `json:"timed"`
	BotSide         int            `json:"bot_side,omitempty"`
	ShotNumber      int            `json:"shot_number"`
}

// NoticeType names a turn-level event surfaced to clients.
type NoticeType string

const (
	NoticeReset          NoticeType = "reset"
	NoticeShot           NoticeType = "shot"
	NoticeGroupsAssigned NoticeType = "groups_assigned"
	NoticeScratch        NoticeType = "scratch"
	NoticeCueBallPlaced  NoticeType = "cue_ball_placed"
	NoticePlayAgain      NoticeType = "play_again"
	NoticeTurnChanged    NoticeType = "turn_changed"
	NoticeTurnWarning    NoticeType = "turn_warning"
	NoticeTurnTimeout    NoticeType = "turn_timeout"
	NoticeBotThinking    NoticeType = "bot_thinking"
	NoticeGameOver       NoticeType = "game_over"
)

// Notice is a discrete turn transition.
type Notice struct {
	TableID string     `json:"table_id,omitempty"`
	Type    NoticeType `json:"type"`
	Player  int        `json:"player,omitempty"`
	Winner  int        `json:"winner,omitempty"`
	Message string     `json:"message,omitempty"`
}

// NewMatch creates the state for a fresh rack. Player 1 breaks. A turnLimit of
// zero uses TurnSeconds.
func NewMatch(timed bool, botSide, turnLimit int) *Match {
	if turnLimit <= 0 {
		turnLimit = TurnSeconds
	}
	m := &Match{
		Phase:         PhaseAwaitingShot,
		CurrentPlayer: 1,
		TurnRemaining: turnLimit,
		TurnLimit:     turnLimit,
		Timed:         timed,
		BotSide:       botSide,
	}
	for i := range m.Players {
		m.Players[i].Pocketed = []int{}
	}
	m.Message = m.turnMessage(1)
	return m
}

// Player returns the state of side 1 or 2.
func (m *Match) Player(side int) *PlayerState {
	return &m.Players[side-1]
}

// BeginShot moves the match into motion for the given side. It returns false when
// the side may not shoot now.
func (m *Match) BeginShot(side int) bool {
	if m.GameOver || m.Phase != PhaseAwaitingShot || side != m.CurrentPlayer {
		return false
	}
	m.Phase = PhaseBallsInMotion
	m.PocketedOwnBall = false
	m.Scratched = false
	m.FirstPocketed = 0
	m.ShotNumber++
	m.Message = ""
	return true
}

// OnPocket applies the rules for one pocketed ball during the current motion cycle.
// balls is the ball set after the capture.
func (m *Match) OnPocket(ballID int, balls []Ball) []Notice {
	if m.GameOver || m.Phase != PhaseBallsInMotion {
		return nil
	}
	shooter := m.CurrentPlayer
	opponent := other(shooter)

	switch ballID {
	case CueBallID:
		m.Scratched = true
		m.PocketedOwnBall = false
		m.Message = "Scratch! Place the cue ball"
		return []Notice{{Type: NoticeScratch, Player: shooter, Message: m.Message}}

	case EightBallID:
		if m.groupCleared(shooter, balls) {
			return m.finish(shooter, WinPocket8)
		}
		return m.finish(opponent, WinIllegal8)
	}

	p := m.Player(shooter)

	// On an open table the groups are fixed once the balls stop, so a scratch
	// anywhere in the shot keeps the table open. That ball earns no extra turn.
	if p.Group == GroupNone {
		if m.FirstPocketed == 0 {
			m.FirstPocketed = ballID
		}
		p.Pocketed = append(p.Pocketed, ballID)
		return nil
	}

	// Opponent-group balls are credited to the shooter too; there is no foul.
	p.Pocketed = append(p.Pocketed, ballID)
	if p.Group == ballGroup(ballID) {
		m.PocketedOwnBall = true
	}
	return nil
}

// assignGroups fixes the groups from the first object ball of a clean shot.
func (m *Match) assignGroups(shooter int) []Notice {
	if m.Scratched || m.FirstPocketed == 0 || m.Player(shooter).Group != GroupNone {
		return nil
	}
	g := ballGroup(m.FirstPocketed)
	m.Player(shooter).Group = g
	m.Player(other(shooter)).Group = g.Complement()
	return []Notice{{
		Type:    NoticeGroupsAssigned,
		Player:  shooter,
		Message: fmt.Sprintf("%s takes %s", m.sideName(shooter), g),
	}}
}

// OnBallsAtRest finalizes the motion cycle and picks the next shooter.
func (m *Match) OnBallsAtRest() []Notice {
	if m.GameOver || m.Phase != PhaseBallsInMotion {
		return nil
	}
	shooter := m.CurrentPlayer
	m.TurnRemaining = m.TurnLimit
	notices := m.assignGroups(shooter)

	var n Notice
	switch {
	case m.Scratched:
		m.switchPlayer()
		m.Phase = PhaseCueBallScratched
		m.Message = fmt.Sprintf("Scratch! %s places the cue ball", m.sideName(m.CurrentPlayer))
		n = Notice{Type: NoticeTurnChanged, Player: m.CurrentPlayer, Message: m.Message}
	case m.PocketedOwnBall:
		m.Phase = PhaseAwaitingShot
		if shooter == m.BotSide {
			m.Message = "Bot plays again!"
		} else {
			m.Message = "You play again!"
		}
		n = Notice{Type: NoticePlayAgain, Player: shooter, Message: m.Message}
	default:
		m.switchPlayer()
		m.Phase = PhaseAwaitingShot
		m.Message = m.turnMessage(m.CurrentPlayer)
		n = Notice{Type: NoticeTurnChanged, Player: m.CurrentPlayer, Message: m.Message}
	}

	m.PocketedOwnBall = false
	m.Scratched = false
	m.FirstPocketed = 0
	return append(notices, n)
}

// PlaceCueBall ends ball-in-hand for side.
func (m *Match) PlaceCueBall(side int) bool {
	if m.GameOver || m.Phase != PhaseCueBallScratched || side != m.CurrentPlayer {
		return false
	}
	m.Phase = PhaseAwaitingShot
	m.Message = m.turnMessage(side)
	return true
}

// CountdownRunning reports whether the per-turn timer should be ticking.
func (m *Match) CountdownRunning() bool {
	if !m.Timed || m.GameOver {
		return false
	}
	return m.Phase == PhaseAwaitingShot || m.Phase == PhaseCueBallScratched
}

// TickSecond advances the turn countdown by one second. At expiry the turn passes
// unconditionally and the countdown restarts.
func (m *Match) TickSecond() []Notice {
	if !m.CountdownRunning() {
		return nil
	}
	if m.TurnRemaining <= 1 {
		m.switchPlayer()
		m.TurnRemaining = m.TurnLimit
		m.Message = "Time's up! Turn switched."
		return []Notice{{Type: NoticeTurnTimeout, Player: m.CurrentPlayer, Message: m.Message}}
	}
	var notices []Notice
	if m.TurnRemaining == TurnWarningSeconds {
		notices = append(notices, Notice{
			Type:    NoticeTurnWarning,
			Player:  m.CurrentPlayer,
			Message: fmt.Sprintf("%d seconds left", TurnWarningSeconds),
		})
	}
	m.TurnRemaining--
	return notices
}

// Forfeit ends the game in favour of the side that did not quit.
func (m *Match) Forfeit(side int) []Notice {
	if m.GameOver {
		return nil
	}
	return m.finish(other(side), WinForfeit)
}

func (m *Match) finish(winner int, how WinType) []Notice {
	m.GameOver = true
	m.Phase = PhaseGameOver
	m.Winner = winner
	m.WinType = how
	m.PocketedOwnBall = false
	switch {
	case winner == m.BotSide:
		m.Message = "Bot Wins!"
	case m.BotSide != 0:
		m.Message = "You Win!"
	default:
		m.Message = fmt.Sprintf("Player %d Wins!", winner)
	}
	if how == WinIllegal8 {
		m.Message += " (Early 8-ball)"
	}
	return []Notice{{Type: NoticeGameOver, Winner: winner, Message: m.Message}}
}

// groupCleared reports whether all seven balls of side's group are off the table.
// A ball counts if it is in the side's pocketed list or flagged pocketed in balls.
func (m *Match) groupCleared(side int, balls []Ball) bool {
	p := m.Player(side)
	if p.Group == GroupNone {
		return false
	}
	gone := make(map[int]bool, GroupSize)
	for _, id := range p.Pocketed {
		if ballGroup(id) == p.Group {
			gone[id] = true
		}
	}
	for i := range balls {
		if balls[i].Pocketed && ballGroup(balls[i].ID) == p.Group {
			gone[balls[i].ID] = true
		}
	}
	return len(gone) == GroupSize
}

func (m *Match) switchPlayer() {
	m.CurrentPlayer = other(m.CurrentPlayer)
}

func (m *Match) sideName(side int) string {
	if side == m.BotSide {
		return "Bot"
	}
	return fmt.Sprintf("Player %d", side)
}

func (m *Match) turnMessage(side int) string {
	if m.BotSide != 0 {
		if side == m.BotSide {
			return "Bot's turn"
		}
		return "Your Turn!"
	}
	return fmt.Sprintf("Player %d's turn", side)
}

// clone returns a deep copy safe to hand outside the session lock.
func (m *Match) clone() Match {
	c := *m
	for i := range c.Players {
		c.Players[i].Pocketed = append([]int{}, m.Players[i].Pocketed...)
	}
	return c
}

func other(side int) int {
	if side == 1 {
		return 2
	}
	return 1
}
