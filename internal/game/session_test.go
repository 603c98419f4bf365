package game

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"
)

type shotRecord struct {
	side   int
	number int
}

func newTestSession(t *testing.T, mode Mode, clk *manualClock) (*Session, *[]shotRecord) {
	t.Helper()
	shots := &[]shotRecord{}
	s := NewSession(SessionConfig{
		ID:    "tbl_test",
		Mode:  mode,
		Clock: clk,
		Rand:  rand.New(rand.NewSource(42)),
		Hooks: SessionHooks{
			OnShot: func(_ string, side int, _ Shot, n int) {
				*shots = append(*shots, shotRecord{side, n})
			},
		},
	})
	t.Cleanup(s.Close)
	return s, shots
}

// settle ticks until the current shot is resolved.
func settle(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < 5000; i++ {
		s.Tick()
		if s.Snapshot().Match.Phase != PhaseBallsInMotion {
			return
		}
	}
	t.Fatal("balls never came to rest")
}

func drain(ch <-chan Notice) []Notice {
	var out []Notice
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, n)
		default:
			return out
		}
	}
}

func hasNotice(notices []Notice, typ NoticeType) bool {
	for _, n := range notices {
		if n.Type == typ {
			return true
		}
	}
	return false
}

func TestTurnTimesOutAfterThirtySeconds(t *testing.T) {
	clk := newManualClock()
	s, _ := newTestSession(t, ModeMultiplayer, clk)
	notices, stop := s.Subscribe()
	defer stop()

	clk.Advance(29 * time.Second)
	m := s.Snapshot().Match
	if m.CurrentPlayer != 1 || m.TurnRemaining != 1 {
		t.Fatalf("after 29s: player=%d remaining=%d", m.CurrentPlayer, m.TurnRemaining)
	}

	clk.Advance(time.Second)
	m = s.Snapshot().Match
	if m.CurrentPlayer != 2 || m.TurnRemaining != TurnSeconds {
		t.Fatalf("after 30s: player=%d remaining=%d, want player 2 with %d", m.CurrentPlayer, m.TurnRemaining, TurnSeconds)
	}
	got := drain(notices)
	if !hasNotice(got, NoticeTurnWarning) || !hasNotice(got, NoticeTurnTimeout) {
		t.Errorf("notices = %+v, want a warning and a timeout", got)
	}

	clk.Advance(time.Second)
	if r := s.Snapshot().Match.TurnRemaining; r != TurnSeconds-1 {
		t.Errorf("player 2 countdown = %d, want %d", r, TurnSeconds-1)
	}
}

func TestTrainingTableIsUntimed(t *testing.T) {
	clk := newManualClock()
	s, _ := newTestSession(t, ModeTraining, clk)

	clk.Advance(2 * time.Minute)
	m := s.Snapshot().Match
	if m.CurrentPlayer != 1 || m.TurnRemaining != TurnSeconds {
		t.Errorf("training table counted down: player=%d remaining=%d", m.CurrentPlayer, m.TurnRemaining)
	}
}

// passTurnToBot plays a soft shot away from the rack so the turn goes to the bot.
func passTurnToBot(t *testing.T, s *Session) {
	t.Helper()
	if !s.ApplyShot(1, math.Pi, 2) {
		t.Fatal("opening shot rejected")
	}
	settle(t, s)
	if p := s.Snapshot().Match.CurrentPlayer; p != 2 {
		t.Fatalf("turn did not pass to the bot: player %d", p)
	}
}

func TestBotShootsAfterThinkAndShootDelay(t *testing.T) {
	clk := newManualClock()
	s, shots := newTestSession(t, ModeTraining, clk)
	notices, stop := s.Subscribe()
	defer stop()
	passTurnToBot(t, s)

	clk.Advance(1199 * time.Millisecond)
	if m := s.Snapshot().Match; m.Message == "Bot is thinking..." {
		t.Fatal("bot started thinking before 1.2s")
	}
	clk.Advance(time.Millisecond)
	if m := s.Snapshot().Match; m.Message != "Bot is thinking..." {
		t.Fatalf("message = %q after 1.2s", m.Message)
	}
	if !hasNotice(drain(notices), NoticeBotThinking) {
		t.Error("no bot_thinking notice")
	}

	clk.Advance(3 * time.Second)
	snap := s.Snapshot()
	if snap.Match.Phase != PhaseBallsInMotion || snap.Match.ShotNumber != 2 {
		t.Fatalf("bot did not shoot: phase=%s shots=%d", snap.Match.Phase, snap.Match.ShotNumber)
	}
	if len(*shots) != 2 || (*shots)[1] != (shotRecord{side: 2, number: 2}) {
		t.Errorf("recorded shots = %+v", *shots)
	}
}

func TestResetCancelsPendingBotShot(t *testing.T) {
	clk := newManualClock()
	s, shots := newTestSession(t, ModeTraining, clk)
	passTurnToBot(t, s)

	clk.Advance(1200 * time.Millisecond)
	if clk.pending() != 1 {
		t.Fatalf("pending timers = %d, want the bot shot", clk.pending())
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if clk.pending() != 0 {
		t.Errorf("pending timers after reset = %d, want 0", clk.pending())
	}

	clk.Advance(5 * time.Second)
	m := s.Snapshot().Match
	if m.ShotNumber != 0 || m.Phase != PhaseAwaitingShot || m.CurrentPlayer != 1 {
		t.Errorf("after reset: shots=%d phase=%s player=%d", m.ShotNumber, m.Phase, m.CurrentPlayer)
	}
	if len(*shots) != 1 {
		t.Errorf("shots recorded = %d, want only the opening shot", len(*shots))
	}
}

func TestStaleBotCallbackIsIgnored(t *testing.T) {
	clk := newManualClock()
	s, _ := newTestSession(t, ModeTraining, clk)
	passTurnToBot(t, s)
	clk.Advance(1200 * time.Millisecond)

	// The shot callback is already in flight when the table resets.
	clk.leaky = true
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	clk.Advance(5 * time.Second)

	snap := s.Snapshot()
	if snap.Match.ShotNumber != 0 || snap.Moving {
		t.Errorf("stale bot shot applied: shots=%d moving=%v", snap.Match.ShotNumber, snap.Moving)
	}
}

func TestBotPlacesCueBallAfterScratch(t *testing.T) {
	clk := newManualClock()
	base, _ := newTestSession(t, ModeTraining, clk)
	snap := base.Snapshot()
	snap.Match.Phase = PhaseCueBallScratched
	snap.Match.CurrentPlayer = 2
	snap.Balls[0].Pocketed = true
	base.Close()

	s, err := RestoreSession(SessionConfig{Clock: clk, Rand: rand.New(rand.NewSource(5))}, snap)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	clk.Advance(1200 * time.Millisecond)
	after := s.Snapshot()
	cue := findBall(after.Balls, CueBallID)
	if cue.Pocketed || cue.Position != s.table.BreakSpot() {
		t.Fatalf("cue ball = %+v, want placed at the break spot", cue)
	}
	if after.Match.Phase != PhaseAwaitingShot {
		t.Errorf("phase = %s after placement", after.Match.Phase)
	}

	clk.Advance(3 * time.Second)
	if m := s.Snapshot().Match; m.Phase != PhaseBallsInMotion {
		t.Errorf("bot did not shoot after placing: phase=%s", m.Phase)
	}
}

func TestApplyShotRejections(t *testing.T) {
	clk := newManualClock()
	s, shots := newTestSession(t, ModeMultiplayer, clk)

	if s.ApplyShot(2, 0, 10) {
		t.Error("side 2 shot on player 1's turn")
	}
	if s.ApplyShot(1, 0, 0) {
		t.Error("zero power shot accepted")
	}
	if !s.ApplyShot(1, 0, 50) {
		t.Fatal("valid shot rejected")
	}
	if v := findBall(s.Snapshot().Balls, CueBallID).Velocity.Magnitude(); math.Abs(v-MaxPower) > 1e-9 {
		t.Errorf("cue speed = %.3f, want clamped to %.1f", v, MaxPower)
	}
	if s.ApplyShot(1, 0, 10) {
		t.Error("shot accepted while balls are moving")
	}
	if len(*shots) != 1 {
		t.Errorf("shots recorded = %d, want 1", len(*shots))
	}
}

func TestBreakShotResolves(t *testing.T) {
	clk := newManualClock()
	s, _ := newTestSession(t, ModeMultiplayer, clk)
	if !s.ApplyShot(1, 0, 20) {
		t.Fatal("break rejected")
	}

	hit := false
	for i := 0; i < 200 && !hit; i++ {
		for _, ev := range s.Tick().Events {
			if ev.Type == EventCollision && ev.BallID == CueBallID {
				hit = true
			}
		}
	}
	if !hit {
		t.Fatal("no cue ball collision within 200 frames")
	}
	settle(t, s)

	snap := s.Snapshot()
	if snap.Moving {
		t.Error("snapshot reports motion after settling")
	}
	if snap.Match.TurnRemaining != TurnSeconds {
		t.Errorf("countdown not reset after the shot: %d", snap.Match.TurnRemaining)
	}
	for _, b := range snap.Balls {
		if b.Velocity != (Vec2{}) {
			t.Errorf("ball %d at rest with velocity %+v", b.ID, b.Velocity)
		}
	}
}

func TestPlaceCueBall(t *testing.T) {
	clk := newManualClock()
	base, _ := newTestSession(t, ModeMultiplayer, clk)
	snap := base.Snapshot()
	snap.Match.Phase = PhaseCueBallScratched
	snap.Match.CurrentPlayer = 1
	snap.Balls[0].Pocketed = true
	findBall(snap.Balls, 4).Position = NewVec2(150, 250)

	s, err := RestoreSession(SessionConfig{Clock: clk}, snap)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.PlaceCueBall(2, 100, 100) {
		t.Error("wrong side placed the cue ball")
	}
	if s.PlaceCueBall(1, 150, 250) {
		t.Error("cue ball placed on top of ball 4")
	}
	if !s.PlaceCueBall(1, 600, 300) {
		t.Fatal("valid placement rejected")
	}
	cue := findBall(s.Snapshot().Balls, CueBallID)
	if cue.Pocketed || cue.Position != NewVec2(s.table.Width*0.25, 300) {
		t.Errorf("cue ball = %+v, want clamped into the kitchen at (225, 300)", cue)
	}
	if s.PlaceCueBall(1, 100, 100) {
		t.Error("second placement accepted")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	clk := newManualClock()
	s, _ := newTestSession(t, ModeBot, clk)
	clk.Advance(4 * time.Second)
	snap := s.Snapshot()

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	r, err := RestoreSession(SessionConfig{Clock: clk}, decoded)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got := r.Snapshot()
	if got.TableID != snap.TableID || got.Mode != ModeBot || got.Frame != snap.Frame {
		t.Errorf("restored header = %s/%s/%d, want %s/%s/%d", got.TableID, got.Mode, got.Frame, snap.TableID, snap.Mode, snap.Frame)
	}
	if !reflect.DeepEqual(got.Balls, snap.Balls) {
		t.Error("restored balls differ")
	}
	if !reflect.DeepEqual(got.Match, snap.Match) {
		t.Errorf("restored match = %+v, want %+v", got.Match, snap.Match)
	}

	// The countdown carries on from where it was saved.
	clk.Advance(time.Second)
	if rem := r.Snapshot().Match.TurnRemaining; rem != snap.Match.TurnRemaining-1 {
		t.Errorf("restored countdown = %d, want %d", rem, snap.Match.TurnRemaining-1)
	}
}

func TestRestoreMidMotionSettlesBalls(t *testing.T) {
	clk := newManualClock()
	s, _ := newTestSession(t, ModeMultiplayer, clk)
	s.ApplyShot(1, 0, 20)
	for i := 0; i < 30; i++ {
		s.Tick()
	}
	snap := s.Snapshot()
	if !snap.Moving {
		t.Fatal("expected a snapshot in motion")
	}

	r, err := RestoreSession(SessionConfig{Clock: clk}, snap)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got := r.Snapshot()
	if got.Moving || got.Match.Phase == PhaseBallsInMotion {
		t.Errorf("restored table still moving: phase=%s", got.Match.Phase)
	}
	for i, b := range got.Balls {
		if b.Position != snap.Balls[i].Position {
			t.Errorf("ball %d moved on restore", b.ID)
		}
	}

	if _, err := RestoreSession(SessionConfig{}, Snapshot{}); !errors.Is(err, ErrSnapshotBroken) {
		t.Errorf("empty snapshot err = %v, want ErrSnapshotBroken", err)
	}
}

func TestForfeitAndClose(t *testing.T) {
	clk := newManualClock()
	var final *Snapshot
	s := NewSession(SessionConfig{
		ID:    "tbl_forfeit",
		Mode:  ModeMultiplayer,
		Clock: clk,
		Hooks: SessionHooks{OnGameOver: func(snap Snapshot) { final = &snap }},
	})
	notices, stop := s.Subscribe()

	if err := s.Forfeit(3); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("Forfeit(3) err = %v", err)
	}
	if err := s.Forfeit(1); err != nil {
		t.Fatal(err)
	}
	if final == nil || final.Match.Winner != 2 || final.Match.WinType != WinForfeit {
		t.Fatalf("game over hook snapshot = %+v", final)
	}
	if !hasNotice(drain(notices), NoticeGameOver) {
		t.Error("no game_over notice")
	}
	if clk.pending() != 0 {
		t.Errorf("timers still pending after game over: %d", clk.pending())
	}

	s.Close()
	s.Close()
	select {
	case <-s.Done():
	default:
		t.Error("Done not closed")
	}
	if _, ok := <-notices; ok {
		t.Error("subscriber channel still open after Close")
	}
	stop()
	if err := s.Reset(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Reset after close err = %v", err)
	}
	if s.ApplyShot(1, 0, 10) {
		t.Error("shot accepted on a closed table")
	}
}
