package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/breakshot/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// idleStore is the part of the Redis client the idle reaper uses.
type idleStore interface {
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// StartIdleWorker starts a background worker that suspends tables nobody has
// touched for IdleTableSeconds, using the table_idle sorted set.
func StartIdleWorker(ctx context.Context, rdb *redis.Client, cfg *config.Config, tm *TableManager) {
	if rdb == nil || cfg == nil || tm == nil {
		log.Println("[IDLE] Redis or config missing; idle worker not started")
		return
	}
	interval := time.Duration(cfg.IdleWorkerPollInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	log.Println("[IDLE] Idle worker started")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[IDLE] Idle worker stopping")
				return
			case <-ticker.C:
				reapIdleTables(ctx, rdb, cfg, tm, time.Now())
			}
		}
	}()
}

// reapIdleTables suspends every table whose idle deadline has passed. Returns the
// ids that were suspended.
func reapIdleTables(ctx context.Context, rdb idleStore, cfg *config.Config, tm *TableManager, now time.Time) []string {
	members, err := rdb.ZRangeByScore(ctx, idleSetKey, &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%d", now.Unix())}).Result()
	if err != nil {
		log.Printf("[IDLE] Failed to fetch idle tables: %v", err)
		return nil
	}

	var suspended []string
	for _, id := range members {
		// Attempt to remove (race-safe)
		if removed, _ := rdb.ZRem(ctx, idleSetKey, id).Result(); removed == 0 {
			continue
		}
		last, _ := rdb.Get(ctx, "last_active:"+id).Result()
		lastTs, _ := strconv.ParseInt(last, 10, 64)
		if lastTs > 0 && now.Unix()-lastTs < int64(cfg.IdleTableSeconds) {
			// touched since it was scheduled; put it back at its real deadline
			rdb.ZAdd(ctx, idleSetKey, redis.Z{Score: float64(lastTs + int64(cfg.IdleTableSeconds)), Member: id})
			continue
		}
		s, err := tm.Get(id)
		if err != nil {
			continue // lives on another instance or already gone
		}
		if s.Snapshot().Moving {
			rdb.ZAdd(ctx, idleSetKey, redis.Z{Score: float64(now.Unix() + int64(cfg.IdleTableSeconds)), Member: id})
			continue
		}

		if err := tm.Suspend(ctx, id); err != nil {
			log.Printf("[IDLE] Failed to suspend table %s: %v", id, err)
			continue
		}
		suspended = append(suspended, id)

		payload := map[string]interface{}{"type": "table_suspended", "table_id": id, "idle_seconds": now.Unix() - lastTs, "message": "Table suspended after inactivity"}
		b, _ := json.Marshal(payload)
		if n, err := rdb.Publish(ctx, tableEventsKey, b).Result(); err != nil {
			log.Printf("[IDLE] publish suspend failed: table=%s err=%v", id, err)
		} else {
			log.Printf("[IDLE] published suspend: table=%s subscribers=%d", id, n)
		}
	}
	return suspended
}
