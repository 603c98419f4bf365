package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"
)

// Mode selects who controls side 2.
type Mode string

const (
	ModeTraining    Mode = "training"    // untimed practice against the bot
	ModeBot         Mode = "bot"         // timed match against the bot
	ModeMultiplayer Mode = "multiplayer" // two remote humans
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTraining, ModeBot, ModeMultiplayer:
		return Mode(s), nil
	case "":
		return ModeTraining, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// HasBot reports whether side 2 is played by the bot.
func (m Mode) HasBot() bool { return m == ModeTraining || m == ModeBot }

// Timed reports whether turns are limited by the countdown.
func (m Mode) Timed() bool { return m != ModeTraining }

var (
	ErrSessionClosed  = errors.New("table closed")
	ErrInvalidSide    = errors.New("side must be 1 or 2")
	ErrSnapshotBroken = errors.New("snapshot has no balls")
)

// SessionHooks are invoked outside the session lock.
type SessionHooks struct {
	OnShot     func(tableID string, side int, shot Shot, shotNumber int)
	OnGameOver func(snap Snapshot)
	OnActivity func(tableID string)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	ID            string
	Mode          Mode
	TurnSeconds   int
	FrameInterval time.Duration
	Clock         Clock
	Rand          *rand.Rand
	Bot           BotConfig
	Hooks         SessionHooks
}

// Snapshot is the complete observable state of a table at a frame boundary.
type Snapshot struct {
	TableID string           `json:"table_id"`
	Mode    Mode             `json:"mode"`
	Frame   uint64           `json:"frame"`
	Moving  bool             `json:"moving"`
	Balls   []Ball           `json:"balls"`
	Match   Match            `json:"match"`
	Events  []CollisionEvent `json:"events,omitempty"`
	SavedAt time.Time        `json:"saved_at"`
}

// Session owns one table: the ball set, the turn machine and every timer that can
// mutate them. All state changes happen under mu, and every scheduled callback
// carries the epoch it was armed in so callbacks from a superseded turn are no-ops.
type Session struct {
	mu sync.Mutex

	id            string
	mode          Mode
	table         *Table
	engine        *PhysicsEngine
	match         *Match
	bot           *Bot
	clock         Clock
	rng           *rand.Rand
	frameInterval time.Duration
	turnSeconds   int
	hooks         SessionHooks

	epoch         uint64
	turnTimer     Timer
	botThinkTimer Timer
	botShootTimer Timer

	lastEvents []CollisionEvent
	updatedAt  time.Time
	closed     bool
	done       chan struct{}

	subMu     sync.Mutex
	subs      map[int]chan Notice
	nextSubID int
}

// NewSession creates a table with a fresh rack.
func NewSession(cfg SessionConfig) *Session {
	s := newSession(cfg)
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	return s
}

// RestoreSession rebuilds a table from a snapshot and re-arms its timers.
func RestoreSession(cfg SessionConfig, snap Snapshot) (*Session, error) {
	if len(snap.Balls) == 0 {
		return nil, ErrSnapshotBroken
	}
	if cfg.ID == "" {
		cfg.ID = snap.TableID
	}
	if snap.Mode != "" {
		cfg.Mode = snap.Mode
	}
	s := newSession(cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	balls := append([]Ball{}, snap.Balls...)
	s.engine = NewPhysicsEngine(balls, s.table)
	s.engine.Frame = snap.Frame
	m := snap.Match.clone()
	if m.TurnLimit <= 0 {
		m.TurnLimit = cfg.TurnSeconds
		if m.TurnLimit <= 0 {
			m.TurnLimit = TurnSeconds
		}
	}
	if m.TurnRemaining <= 0 || m.TurnRemaining > m.TurnLimit {
		m.TurnRemaining = m.TurnLimit
	}
	s.match = &m
	// A snapshot taken mid-motion resumes with the balls stopped where they were.
	if s.match.Phase == PhaseBallsInMotion {
		for i := range s.engine.Balls {
			s.engine.Balls[i].Velocity = Vec2{}
		}
		s.match.OnBallsAtRest()
	}
	s.armLocked()
	return s, nil
}

func newSession(cfg SessionConfig) *Session {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / FrameRate
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeTraining
	}
	if cfg.Bot == (BotConfig{}) {
		cfg.Bot = DefaultBotConfig()
	}
	s := &Session{
		id:            cfg.ID,
		mode:          cfg.Mode,
		table:         NewStandardTable(),
		clock:         cfg.Clock,
		rng:           cfg.Rand,
		frameInterval: cfg.FrameInterval,
		turnSeconds:   cfg.TurnSeconds,
		hooks:         cfg.Hooks,
		done:          make(chan struct{}),
		subs:          make(map[int]chan Notice),
	}
	if cfg.Mode.HasBot() {
		s.bot = NewBot(cfg.Bot, cfg.Rand)
	}
	return s
}

// ID returns the table id.
func (s *Session) ID() string { return s.id }

// Mode returns the table's game mode.
func (s *Session) Mode() Mode { return s.mode }

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// UpdatedAt is the time of the last accepted input.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Reset re-racks the table. All pending timers are cancelled first.
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.resetLocked()
	s.touchLocked()
	msg := s.match.Message
	s.mu.Unlock()

	s.publish([]Notice{{Type: NoticeReset, Player: 1, Message: msg}})
	s.activity()
	return nil
}

func (s *Session) resetLocked() {
	s.cancelTimersLocked()
	s.engine = NewPhysicsEngine(s.table.Standard8BallRack(s.rng), s.table)
	botSide := 0
	if s.mode.HasBot() {
		botSide = 2
	}
	s.match = NewMatch(s.mode.Timed(), botSide, s.turnSeconds)
	s.lastEvents = nil
	s.armLocked()
}

// ApplyShot sets the cue ball velocity for side. It returns false when the shot is
// rejected: balls moving, game over, wrong side, cue ball off the table or no power.
func (s *Session) ApplyShot(side int, angle, power float64) bool {
	shot := Shot{Angle: angle, Power: power}
	s.mu.Lock()
	number, ok := s.applyShotLocked(side, shot)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.afterShot(side, shot.Clamped(), number)
	return true
}

func (s *Session) applyShotLocked(side int, shot Shot) (int, bool) {
	if s.closed || shot.Power <= 0 {
		return 0, false
	}
	cue := s.engine.Ball(CueBallID)
	if cue == nil || cue.Pocketed || !s.engine.AllStopped() {
		return 0, false
	}
	if !s.match.BeginShot(side) {
		return 0, false
	}
	s.cancelTimersLocked()
	cue.Velocity = shot.Clamped().Velocity()
	s.touchLocked()
	return s.match.ShotNumber, true
}

func (s *Session) afterShot(side int, shot Shot, number int) {
	s.publish([]Notice{{Type: NoticeShot, Player: side}})
	if s.hooks.OnShot != nil {
		s.hooks.OnShot(s.id, side, shot, number)
	}
	s.activity()
}

// PlaceCueBall puts the cue ball back in play for side after a scratch. The
// position is clamped into the kitchen. Placements on top of another ball are
// rejected.
func (s *Session) PlaceCueBall(side int, x, y float64) bool {
	s.mu.Lock()
	if s.closed || s.match.Phase != PhaseCueBallScratched || s.match.CurrentPlayer != side {
		s.mu.Unlock()
		return false
	}
	pos := s.table.ClampToKitchen(NewVec2(x, y))
	if overlapsAny(s.table, s.engine.Balls, pos) {
		s.mu.Unlock()
		return false
	}
	notices := s.placeCueBallLocked(side, pos)
	s.touchLocked()
	s.mu.Unlock()

	s.publish(notices)
	s.activity()
	return true
}

func (s *Session) placeCueBallLocked(side int, pos Vec2) []Notice {
	cue := s.engine.Ball(CueBallID)
	if cue == nil || !s.match.PlaceCueBall(side) {
		return nil
	}
	cue.Position = pos
	cue.Velocity = Vec2{}
	cue.Pocketed = false
	s.armLocked()
	return []Notice{{Type: NoticeCueBallPlaced, Player: side, Message: s.match.Message}}
}

// Tick advances the simulation by one frame. It is a no-op while nothing moves
// and no shot is waiting to be resolved.
func (s *Session) Tick() StepResult {
	s.mu.Lock()
	if s.closed || (s.engine.AllStopped() && s.match.Phase != PhaseBallsInMotion) {
		balls := s.engine.Balls
		s.mu.Unlock()
		return StepResult{Balls: balls, AtRest: true}
	}

	res := s.engine.Step()
	s.lastEvents = res.Events
	wasOver := s.match.GameOver

	var notices []Notice
	for _, ev := range res.Events {
		if ev.Type == EventPocket {
			notices = append(notices, s.match.OnPocket(ev.BallID, s.engine.Balls)...)
		}
	}
	if res.AtRest {
		notices = append(notices, s.match.OnBallsAtRest()...)
		s.armLocked()
	}
	var final *Snapshot
	if s.match.GameOver && !wasOver {
		s.cancelTimersLocked()
		snap := s.snapshotLocked()
		final = &snap
	}
	s.mu.Unlock()

	s.publish(notices)
	if final != nil && s.hooks.OnGameOver != nil {
		s.hooks.OnGameOver(*final)
	}
	return res
}

// Run drives Tick at the frame interval until ctx is cancelled or the session is
// closed.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Forfeit ends the game against side.
func (s *Session) Forfeit(side int) error {
	if side != 1 && side != 2 {
		return ErrInvalidSide
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	notices := s.match.Forfeit(side)
	var final *Snapshot
	if len(notices) > 0 {
		s.cancelTimersLocked()
		snap := s.snapshotLocked()
		final = &snap
	}
	s.mu.Unlock()

	s.publish(notices)
	if final != nil && s.hooks.OnGameOver != nil {
		s.hooks.OnGameOver(*final)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		TableID: s.id,
		Mode:    s.mode,
		Frame:   s.engine.Frame,
		Moving:  !s.engine.AllStopped(),
		Balls:   append([]Ball{}, s.engine.Balls...),
		Match:   s.match.clone(),
		Events:  append([]CollisionEvent(nil), s.lastEvents...),
		SavedAt: s.clock.Now(),
	}
}

// Aim computes the advisory aim preview for the current cue ball position.
func (s *Session) Aim(angle float64) AimPreview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AimAssist(s.engine.Balls, angle)
}

// Close stops all timers and subscriber channels. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancelTimersLocked()
	close(s.done)
	s.mu.Unlock()

	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
}

// Subscribe returns a channel of turn notices and a function to stop receiving.
// Slow subscribers lose notices rather than block the table.
func (s *Session) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 32)
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
		s.subMu.Unlock()
	}
}

func (s *Session) publish(notices []Notice) {
	if len(notices) == 0 {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, n := range notices {
		n.TableID = s.id
		for id, ch := range s.subs {
			select {
			case ch <- n:
			default:
				log.Printf("[TABLE] notice buffer full for table %s subscriber %d, dropping %s", s.id, id, n.Type)
			}
		}
	}
}

func (s *Session) activity() {
	if s.hooks.OnActivity != nil {
		s.hooks.OnActivity(s.id)
	}
}

func (s *Session) touchLocked() {
	s.updatedAt = s.clock.Now()
}

// cancelTimersLocked stops every pending callback and invalidates any that
// already started running.
func (s *Session) cancelTimersLocked() {
	s.epoch++
	for _, t := range []Timer{s.turnTimer, s.botThinkTimer, s.botShootTimer} {
		if t != nil {
			t.Stop()
		}
	}
	s.turnTimer, s.botThinkTimer, s.botShootTimer = nil, nil, nil
}

// armLocked replaces the timers with the ones the current phase needs.
func (s *Session) armLocked() {
	s.cancelTimersLocked()
	if s.closed || s.match.GameOver || s.match.Phase == PhaseBallsInMotion {
		return
	}
	epoch := s.epoch
	if s.match.CountdownRunning() {
		s.turnTimer = s.clock.AfterFunc(time.Second, func() { s.onTurnTick(epoch) })
	}
	if s.bot != nil && s.match.CurrentPlayer == s.match.BotSide {
		s.botThinkTimer = s.clock.AfterFunc(s.bot.ThinkDelay(), func() { s.onBotThink(epoch) })
	}
}

func (s *Session) onTurnTick(epoch uint64) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	before := s.match.CurrentPlayer
	notices := s.match.TickSecond()
	if s.match.CurrentPlayer != before {
		s.armLocked()
	} else if s.match.CountdownRunning() {
		s.turnTimer = s.clock.AfterFunc(time.Second, func() { s.onTurnTick(epoch) })
	}
	s.mu.Unlock()

	s.publish(notices)
}

func (s *Session) onBotThink(epoch uint64) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch || s.match.CurrentPlayer != s.match.BotSide {
		s.mu.Unlock()
		return
	}
	var notices []Notice
	if s.match.Phase == PhaseCueBallScratched {
		spot := s.bot.CueBallSpot(s.table, s.engine.Balls)
		notices = append(notices, s.placeCueBallLocked(s.match.BotSide, spot)...)
		// Placing re-arms the timers; carry on under the new epoch.
		epoch = s.epoch
		if s.botThinkTimer != nil {
			s.botThinkTimer.Stop()
			s.botThinkTimer = nil
		}
	}
	s.match.Message = "Bot is thinking..."
	notices = append(notices, Notice{Type: NoticeBotThinking, Player: s.match.BotSide, Message: s.match.Message})
	s.botShootTimer = s.clock.AfterFunc(s.bot.ShootDelay(), func() { s.onBotShoot(epoch) })
	s.mu.Unlock()

	s.publish(notices)
}

func (s *Session) onBotShoot(epoch uint64) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	side := s.match.BotSide
	shot, ok := s.bot.PlanShot(s.engine.Balls, s.match.Player(side).Group)
	var number int
	if ok {
		number, ok = s.applyShotLocked(side, shot)
	}
	s.mu.Unlock()

	if ok {
		s.afterShot(side, shot.Clamped(), number)
	}
}
