package game

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/breakshot/backend/internal/config"
)

func newTestManager(t *testing.T, cfg *config.Config) *TableManager {
	t.Helper()
	tm := NewTableManager(nil, nil, cfg)
	tm.clock = newManualClock()
	ctx, cancel := context.WithCancel(context.Background())
	tm.Start(ctx)
	t.Cleanup(func() {
		tm.Shutdown(context.Background())
		cancel()
	})
	return tm
}

func TestCreateTable(t *testing.T) {
	tm := newTestManager(t, &config.Config{TurnSeconds: 45})
	ctx := context.Background()

	s, err := tm.CreateTable(ctx, CreateOptions{Mode: ModeBot, PlayerID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(s.ID(), "tbl_") {
		t.Errorf("table id = %q", s.ID())
	}
	info, err := tm.Info(s.ID())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode != ModeBot || info.Status != StatusInProgress || info.BotName == "" {
		t.Errorf("info = %+v", info)
	}
	if info.Players[0] != "alice" || tm.PlayerAt(s.ID(), 1) != "alice" {
		t.Errorf("players = %v", info.Players)
	}
	if m := s.Snapshot().Match; m.TurnLimit != 45 || m.BotSide != 2 {
		t.Errorf("match turn limit = %d bot side = %d", m.TurnLimit, m.BotSide)
	}

	tm.clock.(*manualClock).Advance(time.Second)
	mp, err := tm.CreateTable(ctx, CreateOptions{Mode: ModeMultiplayer, PlayerID: "bob", OpponentID: "carol"})
	if err != nil {
		t.Fatal(err)
	}
	if info, _ := tm.Info(mp.ID()); info.BotName != "" {
		t.Errorf("multiplayer table has a bot: %q", info.BotName)
	}
	if tm.Count() != 2 || len(tm.List()) != 2 {
		t.Errorf("count = %d list = %d, want 2", tm.Count(), len(tm.List()))
	}
	if list := tm.List(); list[0].ID != s.ID() {
		t.Errorf("list not ordered by creation: %+v", list)
	}
}

func TestCreateTableLimit(t *testing.T) {
	tm := newTestManager(t, &config.Config{MaxTables: 1})
	ctx := context.Background()

	if _, err := tm.CreateTable(ctx, CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := tm.CreateTable(ctx, CreateOptions{}); !errors.Is(err, ErrTooManyTables) {
		t.Errorf("err = %v, want ErrTooManyTables", err)
	}
}

func TestSuspendAndResume(t *testing.T) {
	tm := newTestManager(t, &config.Config{})
	ctx := context.Background()

	s, err := tm.CreateTable(ctx, CreateOptions{Mode: ModeMultiplayer, PlayerID: "p1", OpponentID: "p2"})
	if err != nil {
		t.Fatal(err)
	}
	id := s.ID()
	s.ApplyShot(1, 0, 20)
	for i := 0; i < 3000 && s.Snapshot().Moving; i++ {
		s.Tick()
	}
	before := s.Snapshot()

	if err := tm.Suspend(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := tm.Get(id); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Get after suspend err = %v", err)
	}
	select {
	case <-s.Done():
	default:
		t.Error("suspended session not closed")
	}

	r, err := tm.Resume(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	after := r.Snapshot()
	if after.Match.ShotNumber != before.Match.ShotNumber || after.Match.CurrentPlayer != before.Match.CurrentPlayer {
		t.Errorf("resumed match = %+v, want %+v", after.Match, before.Match)
	}
	if info, _ := tm.Info(id); info.Players != [2]string{"p1", "p2"} {
		t.Errorf("players lost on resume: %v", info.Players)
	}

	again, err := tm.Resume(ctx, id)
	if err != nil || again != r {
		t.Errorf("resume of a live table = %v, %v; want the live session", again, err)
	}
	if _, err := tm.Resume(ctx, "tbl_missing"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("resume missing err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestQuitForfeitsAndCloses(t *testing.T) {
	tm := newTestManager(t, &config.Config{})
	ctx := context.Background()

	s, err := tm.CreateTable(ctx, CreateOptions{Mode: ModeMultiplayer, PlayerID: "p1", OpponentID: "p2"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tm.Quit(ctx, s.ID(), 2, ""); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if !snap.Match.GameOver || snap.Match.Winner != 1 || snap.Match.WinType != WinForfeit {
		t.Errorf("after quit: %+v", snap.Match)
	}
	if _, err := tm.Get(s.ID()); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("table still live after quit: %v", err)
	}
	if err := tm.Quit(ctx, s.ID(), 1, ""); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("second quit err = %v", err)
	}
	// Game over keeps the final rack for review.
	if _, err := tm.loadSnapshot(ctx, s.ID()); err != nil {
		t.Errorf("final snapshot not saved: %v", err)
	}
}

func TestCloseRemovesTable(t *testing.T) {
	tm := newTestManager(t, &config.Config{})
	ctx := context.Background()

	s, err := tm.CreateTable(ctx, CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := tm.Close(ctx, s.ID()); err != nil {
		t.Fatal(err)
	}
	if tm.Count() != 0 {
		t.Errorf("count = %d after close", tm.Count())
	}
	if err := tm.Close(ctx, s.ID()); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("second close err = %v", err)
	}
	if results, err := tm.RecentResults(10); err != nil || len(results) != 0 {
		t.Errorf("results without a database = %v, %v", results, err)
	}
}
