package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	mrand "math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var (
	ErrTableNotFound    = errors.New("table not found")
	ErrPenalised        = errors.New("player is serving a quit penalty")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrTooManyTables    = errors.New("table limit reached")
)

const (
	idleSetKey     = "table_idle"
	tableEventsKey = "table_events"
)

// TableManager owns every live table on this instance
type TableManager struct {
	tables    map[string]*tableEntry // keyed by table ID
	suspended map[string]storedTable // used only when Redis is not configured
	rdb       *redis.Client          // snapshots, penalties, idle index
	db        *sqlx.DB               // shot and result records
	config    *config.Config
	clock     Clock
	baseCtx   context.Context
	mu        sync.RWMutex
}

type tableEntry struct {
	session   *Session
	cancel    context.CancelFunc
	players   [2]string
	botName   string
	createdAt time.Time
}

// CreateOptions describes a new table.
type CreateOptions struct {
	Mode       Mode
	PlayerID   string // side 1
	OpponentID string // side 2 in multiplayer
}

// TableInfo summarises a live table.
type TableInfo struct {
	ID            string      `json:"id"`
	Mode          Mode        `json:"mode"`
	Status        TableStatus `json:"status"`
	Players       [2]string   `json:"players"`
	BotName       string      `json:"bot_name,omitempty"`
	Phase         TurnPhase   `json:"phase"`
	CurrentPlayer int         `json:"current_player"`
	Winner        int         `json:"winner,omitempty"`
	ShotNumber    int         `json:"shot_number"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewTableManager creates a table manager. db and rdb may be nil, in which case
// records are skipped and snapshots are kept in memory.
func NewTableManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *TableManager {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &TableManager{
		tables:    make(map[string]*tableEntry),
		suspended: make(map[string]storedTable),
		rdb:       rdb,
		db:        db,
		config:    cfg,
		clock:     RealClock(),
		baseCtx:   context.Background(),
	}
}

// Start sets the context that bounds every table's frame loop.
func (tm *TableManager) Start(ctx context.Context) {
	tm.mu.Lock()
	tm.baseCtx = ctx
	tm.mu.Unlock()
}

// generateToken generates a secure random token
func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// generateTableID generates a unique table ID
func generateTableID() string {
	return "tbl_" + generateToken(8)
}

// CreateTable racks a new table and starts its frame loop.
func (tm *TableManager) CreateTable(ctx context.Context, opts CreateOptions) (*Session, error) {
	if opts.Mode == "" {
		opts.Mode = ModeTraining
	}
	for _, p := range []string{opts.PlayerID, opts.OpponentID} {
		if p == "" {
			continue
		}
		remaining, err := tm.PenaltyRemaining(ctx, p)
		if err != nil {
			log.Printf("[TABLE] Penalty lookup failed for %s: %v", p, err)
			continue
		}
		if remaining > 0 {
			return nil, fmt.Errorf("%w: %s for %s", ErrPenalised, remaining.Round(time.Second), p)
		}
	}

	tm.mu.Lock()
	if tm.config.MaxTables > 0 && len(tm.tables) >= tm.config.MaxTables {
		tm.mu.Unlock()
		return nil, ErrTooManyTables
	}
	id := generateTableID()
	entry := &tableEntry{
		players:   [2]string{opts.PlayerID, opts.OpponentID},
		createdAt: tm.clock.Now(),
	}
	rng := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	if opts.Mode.HasBot() {
		entry.botName = BotName(rng, opts.PlayerID)
	}
	entry.session = NewSession(tm.sessionConfig(id, opts.Mode, rng))
	tm.startLocked(id, entry)
	tm.mu.Unlock()

	tm.touchIdle(id)
	log.Printf("[TABLE] Table created: %s (mode=%s players=%v)", id, opts.Mode, entry.players)
	return entry.session, nil
}

func (tm *TableManager) sessionConfig(id string, mode Mode, rng *mrand.Rand) SessionConfig {
	cfg := SessionConfig{
		ID:          id,
		Mode:        mode,
		TurnSeconds: tm.config.TurnSeconds,
		Clock:       tm.clock,
		Rand:        rng,
		Hooks: SessionHooks{
			OnShot:     tm.recordShot,
			OnGameOver: tm.recordResult,
			OnActivity: tm.touchIdle,
		},
	}
	if tm.config.FrameRate > 0 {
		cfg.FrameInterval = time.Second / time.Duration(tm.config.FrameRate)
	}
	return cfg
}

func (tm *TableManager) startLocked(id string, entry *tableEntry) {
	ctx, cancel := context.WithCancel(tm.baseCtx)
	entry.cancel = cancel
	tm.tables[id] = entry
	go entry.session.Run(ctx)
}

// Get returns the live session for a table.
func (tm *TableManager) Get(id string) (*Session, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	entry, ok := tm.tables[id]
	if !ok {
		return nil, ErrTableNotFound
	}
	return entry.session, nil
}

// Info returns the summary of a live table.
func (tm *TableManager) Info(id string) (TableInfo, error) {
	tm.mu.RLock()
	entry, ok := tm.tables[id]
	tm.mu.RUnlock()
	if !ok {
		return TableInfo{}, ErrTableNotFound
	}
	return infoOf(id, entry), nil
}

func infoOf(id string, entry *tableEntry) TableInfo {
	snap := entry.session.Snapshot()
	return TableInfo{
		ID:            id,
		Mode:          snap.Mode,
		Status:        statusOf(snap),
		Players:       entry.players,
		BotName:       entry.botName,
		Phase:         snap.Match.Phase,
		CurrentPlayer: snap.Match.CurrentPlayer,
		Winner:        snap.Match.Winner,
		ShotNumber:    snap.Match.ShotNumber,
		CreatedAt:     entry.createdAt,
		UpdatedAt:     entry.session.UpdatedAt(),
	}
}

// List returns every live table, oldest first.
func (tm *TableManager) List() []TableInfo {
	tm.mu.RLock()
	infos := make([]TableInfo, 0, len(tm.tables))
	for id, entry := range tm.tables {
		infos = append(infos, infoOf(id, entry))
	}
	tm.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// Count returns the number of live tables.
func (tm *TableManager) Count() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tables)
}

// PlayerAt returns the player id seated on side, if one was given at creation.
func (tm *TableManager) PlayerAt(id string, side int) string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	entry, ok := tm.tables[id]
	if !ok || side < 1 || side > 2 {
		return ""
	}
	return entry.players[side-1]
}

// Suspend snapshots a table and removes it from memory.
func (tm *TableManager) Suspend(ctx context.Context, id string) error {
	entry, err := tm.detach(id)
	if err != nil {
		return err
	}
	snap := entry.session.Snapshot()
	entry.session.Close()
	entry.cancel()

	stored := storedTable{Snapshot: snap, Players: entry.players, BotName: entry.botName, CreatedAt: entry.createdAt}
	if err := tm.saveSnapshot(ctx, stored); err != nil {
		return fmt.Errorf("suspend %s: %w", id, err)
	}
	if tm.rdb != nil {
		tm.rdb.ZRem(ctx, idleSetKey, id)
	}
	log.Printf("[TABLE] Table suspended: %s (frame=%d phase=%s)", id, snap.Frame, snap.Match.Phase)
	return nil
}

// Resume restores a suspended table. A table that is still live is returned as is.
func (tm *TableManager) Resume(ctx context.Context, id string) (*Session, error) {
	if s, err := tm.Get(id); err == nil {
		return s, nil
	}
	stored, err := tm.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := stored.Snapshot

	rng := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	session, err := RestoreSession(tm.sessionConfig(id, snap.Mode, rng), snap)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", id, err)
	}

	tm.mu.Lock()
	if existing, ok := tm.tables[id]; ok {
		tm.mu.Unlock()
		session.Close()
		return existing.session, nil
	}
	entry := &tableEntry{
		session:   session,
		players:   stored.Players,
		botName:   stored.BotName,
		createdAt: stored.CreatedAt,
	}
	tm.startLocked(id, entry)
	tm.mu.Unlock()

	tm.deleteSnapshot(ctx, id)
	tm.touchIdle(id)
	log.Printf("[TABLE] Table resumed: %s (frame=%d)", id, snap.Frame)
	return session, nil
}

// Quit forfeits the table for side, applies the quit penalty to playerID and
// closes the table.
func (tm *TableManager) Quit(ctx context.Context, id string, side int, playerID string) error {
	session, err := tm.Get(id)
	if err != nil {
		return err
	}
	if err := session.Forfeit(side); err != nil {
		return err
	}
	if playerID == "" {
		playerID = tm.PlayerAt(id, side)
	}
	if playerID != "" {
		if err := tm.ApplyQuitPenalty(ctx, playerID); err != nil {
			log.Printf("[TABLE] Failed to apply quit penalty for %s: %v", playerID, err)
		}
	}
	return tm.Close(ctx, id)
}

// Close stops a table without saving a snapshot.
func (tm *TableManager) Close(ctx context.Context, id string) error {
	entry, err := tm.detach(id)
	if err != nil {
		return err
	}
	entry.session.Close()
	entry.cancel()
	if tm.rdb != nil {
		tm.rdb.ZRem(ctx, idleSetKey, id)
		tm.rdb.Del(ctx, "last_active:"+id)
	}
	log.Printf("[TABLE] Table closed: %s", id)
	return nil
}

// Shutdown suspends every live table so it can be resumed after a restart.
func (tm *TableManager) Shutdown(ctx context.Context) {
	tm.mu.RLock()
	ids := make([]string, 0, len(tm.tables))
	for id := range tm.tables {
		ids = append(ids, id)
	}
	tm.mu.RUnlock()

	for _, id := range ids {
		if err := tm.Suspend(ctx, id); err != nil {
			log.Printf("[TABLE] Shutdown suspend failed for %s: %v", id, err)
		}
	}
}

func (tm *TableManager) detach(id string) (*tableEntry, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	entry, ok := tm.tables[id]
	if !ok {
		return nil, ErrTableNotFound
	}
	delete(tm.tables, id)
	return entry, nil
}

// storedTable is what a suspended table leaves behind.
type storedTable struct {
	Snapshot  Snapshot  `json:"snapshot"`
	Players   [2]string `json:"players"`
	BotName   string    `json:"bot_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func snapshotKey(id string) string { return "table:" + id + ":snapshot" }

func (tm *TableManager) snapshotTTL() time.Duration {
	if tm.config.SnapshotTTLMinutes > 0 {
		return time.Duration(tm.config.SnapshotTTLMinutes) * time.Minute
	}
	return time.Hour
}

// saveSnapshot saves table state to Redis.
func (tm *TableManager) saveSnapshot(ctx context.Context, stored storedTable) error {
	id := stored.Snapshot.TableID
	if tm.rdb == nil {
		tm.mu.Lock()
		tm.suspended[id] = stored
		tm.mu.Unlock()
		return nil
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return tm.rdb.SetEx(ctx, snapshotKey(id), data, tm.snapshotTTL()).Err()
}

// loadSnapshot restores table state from Redis.
func (tm *TableManager) loadSnapshot(ctx context.Context, id string) (storedTable, error) {
	if tm.rdb == nil {
		tm.mu.RLock()
		stored, ok := tm.suspended[id]
		tm.mu.RUnlock()
		if !ok {
			return storedTable{}, ErrSnapshotNotFound
		}
		return stored, nil
	}

	data, err := tm.rdb.Get(ctx, snapshotKey(id)).Result()
	if err == redis.Nil {
		return storedTable{}, ErrSnapshotNotFound
	}
	if err != nil {
		return storedTable{}, err
	}
	var stored storedTable
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return storedTable{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return stored, nil
}

func (tm *TableManager) deleteSnapshot(ctx context.Context, id string) {
	if tm.rdb == nil {
		tm.mu.Lock()
		delete(tm.suspended, id)
		tm.mu.Unlock()
		return
	}
	if err := tm.rdb.Del(ctx, snapshotKey(id)).Err(); err != nil {
		log.Printf("[TABLE] Failed to delete snapshot for %s: %v", id, err)
	}
}

func penaltyKey(playerID string) string { return "penalty:" + playerID }

// ApplyQuitPenalty blocks playerID from creating tables for the quit penalty period.
func (tm *TableManager) ApplyQuitPenalty(ctx context.Context, playerID string) error {
	if tm.rdb == nil {
		return nil
	}
	seconds := tm.config.QuitPenaltySeconds
	if seconds <= 0 {
		seconds = 60
	}
	d := time.Duration(seconds) * time.Second
	until := tm.clock.Now().Add(d).Unix()
	if err := tm.rdb.SetEx(ctx, penaltyKey(playerID), strconv.FormatInt(until, 10), d).Err(); err != nil {
		return err
	}
	log.Printf("[TABLE] Quit penalty applied to %s for %s", playerID, d)
	return nil
}

// PenaltyRemaining returns how long playerID is still blocked.
func (tm *TableManager) PenaltyRemaining(ctx context.Context, playerID string) (time.Duration, error) {
	if tm.rdb == nil || playerID == "" {
		return 0, nil
	}
	ttl, err := tm.rdb.TTL(ctx, penaltyKey(playerID)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// touchIdle pushes the table's idle deadline forward.
func (tm *TableManager) touchIdle(id string) {
	if tm.rdb == nil {
		return
	}
	idle := tm.config.IdleTableSeconds
	if idle <= 0 {
		return
	}
	ctx := context.Background()
	now := tm.clock.Now().Unix()
	pipe := tm.rdb.TxPipeline()
	pipe.Set(ctx, "last_active:"+id, now, time.Duration(idle*2)*time.Second)
	pipe.ZAdd(ctx, idleSetKey, redis.Z{Score: float64(now + int64(idle)), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[IDLE] Failed to schedule idle check for %s: %v", id, err)
	}
}

// recordShot records an accepted shot.
func (tm *TableManager) recordShot(tableID string, side int, shot Shot, shotNumber int) {
	if tm.db == nil {
		return
	}
	_, err := tm.db.Exec(
		`INSERT INTO table_shots (table_id, shot_number, side, angle, power, created_at) VALUES ($1,$2,$3,$4,$5,NOW())`,
		tableID, shotNumber, side, shot.Angle, shot.Power,
	)
	if err != nil {
		log.Printf("[DB] Failed to record shot %d for table %s: %v", shotNumber, tableID, err)
	}
}

// recordResult stores the final state of a finished rack.
func (tm *TableManager) recordResult(snap Snapshot) {
	log.Printf("[TABLE] Game over on %s: winner=%d (%s)", snap.TableID, snap.Match.Winner, snap.Match.WinType)
	stored := storedTable{
		Snapshot: snap,
		Players:  [2]string{tm.PlayerAt(snap.TableID, 1), tm.PlayerAt(snap.TableID, 2)},
	}
	if err := tm.saveSnapshot(context.Background(), stored); err != nil {
		log.Printf("[TABLE] Failed to save final snapshot for %s: %v", snap.TableID, err)
	}
	if tm.db == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[DB] Failed to marshal final state for table %s: %v", snap.TableID, err)
		return
	}

	_, err = tm.db.Exec(`
		INSERT INTO table_results (table_id, mode, winner_side, win_type, shots, player1_group, player2_group, final_state, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, NOW())
	`, snap.TableID, string(snap.Mode), snap.Match.Winner, string(snap.Match.WinType), snap.Match.ShotNumber,
		string(snap.Match.Players[0].Group), string(snap.Match.Players[1].Group), string(data))
	if err != nil {
		log.Printf("[DB] Failed to insert table_results for table %s: %v", snap.TableID, err)
	}
}

// RecentResults returns the latest finished racks without their final state.
func (tm *TableManager) RecentResults(limit int) ([]models.TableResult, error) {
	if tm.db == nil {
		return []models.TableResult{}, nil
	}
	var rows []models.TableResult
	err := tm.db.Select(&rows, `
		SELECT id, table_id, mode, winner_side, win_type, shots, player1_group, player2_group, finished_at
		FROM table_results
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	return rows, err
}
