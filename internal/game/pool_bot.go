package game

import (
	"math/rand"
	"time"
)

// BotConfig tunes the bot's pacing and imprecision.
type BotConfig struct {
	ThinkDelay    time.Duration
	ShootDelayMin time.Duration
	ShootDelayMax time.Duration
	AngleJitter   float64 // total width of the uniform angle error, radians
	PowerMin      float64
	PowerMax      float64
}

// DefaultBotConfig returns the pacing used by training and bot tables.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		ThinkDelay:    1200 * time.Millisecond,
		ShootDelayMin: 2 * time.Second,
		ShootDelayMax: 3 * time.Second,
		AngleJitter:   0.15,
		PowerMin:      10,
		PowerMax:      18,
	}
}

// Bot picks a target and fires straight at it with some noise. It never reasons
// about obstructions or banks.
type Bot struct {
	cfg BotConfig
	rng *rand.Rand
}

// NewBot creates a bot. rng must not be shared across goroutines.
func NewBot(cfg BotConfig, rng *rand.Rand) *Bot {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bot{cfg: cfg, rng: rng}
}

// ThinkDelay is how long the bot waits after its turn starts.
func (b *Bot) ThinkDelay() time.Duration {
	return b.cfg.ThinkDelay
}

// ShootDelay returns a random pre-shot pause in [ShootDelayMin, ShootDelayMax).
func (b *Bot) ShootDelay() time.Duration {
	spread := b.cfg.ShootDelayMax - b.cfg.ShootDelayMin
	if spread <= 0 {
		return b.cfg.ShootDelayMin
	}
	return b.cfg.ShootDelayMin + time.Duration(b.rng.Int63n(int64(spread)))
}

// ChooseTarget returns the first ball on the table in the bot's group, in ball-set
// order. An unassigned group accepts any object ball except the 8. With no such
// ball left it targets the 8, then anything still on the table.
func ChooseTarget(balls []Ball, group BallGroup) *Ball {
	for i := range balls {
		b := &balls[i]
		if b.Pocketed || b.ID == CueBallID || b.ID == EightBallID {
			continue
		}
		if group == GroupNone || ballGroup(b.ID) == group {
			return b
		}
	}
	if eight := findBall(balls, EightBallID); eight != nil && !eight.Pocketed {
		return eight
	}
	for i := range balls {
		if !balls[i].Pocketed && balls[i].ID != CueBallID {
			return &balls[i]
		}
	}
	return nil
}

// PlanShot aims from the cue ball at the chosen target. ok is false when the cue
// ball is off the table or nothing is left to hit.
func (b *Bot) PlanShot(balls []Ball, group BallGroup) (Shot, bool) {
	cue := findBall(balls, CueBallID)
	if cue == nil || cue.Pocketed {
		return Shot{}, false
	}
	target := ChooseTarget(balls, group)
	if target == nil {
		return Shot{}, false
	}
	d := target.Position.Minus(cue.Position)
	angle := findBearing(d.X, d.Y) + (b.rng.Float64()-0.5)*b.cfg.AngleJitter
	power := b.cfg.PowerMin + b.rng.Float64()*(b.cfg.PowerMax-b.cfg.PowerMin)
	return Shot{Angle: angle, Power: power}, true
}

// CueBallSpot picks where the bot puts the cue ball with ball in hand: the break
// spot, or the nearest free kitchen spot scanning outward along the vertical.
func (b *Bot) CueBallSpot(t *Table, balls []Ball) Vec2 {
	return FreeKitchenSpot(t, balls, t.BreakSpot())
}

// FreeKitchenSpot returns want clamped into the kitchen, moved vertically until it
// no longer overlaps another ball. It gives up and returns the clamped point if
// every candidate is blocked.
func FreeKitchenSpot(t *Table, balls []Ball, want Vec2) Vec2 {
	p := t.ClampToKitchen(want)
	step := 2 * t.BallRadius
	for i := 0; i < 40; i++ {
		offset := float64((i+1)/2) * step
		if i%2 == 1 {
			offset = -offset
		}
		c := t.ClampToKitchen(NewVec2(p.X, p.Y+offset))
		if !overlapsAny(t, balls, c) {
			return c
		}
	}
	return p
}

func overlapsAny(t *Table, balls []Ball, p Vec2) bool {
	for i := range balls {
		b := &balls[i]
		if b.ID == CueBallID || b.Pocketed {
			continue
		}
		if b.Position.DistanceTo(p) < 2*t.BallRadius {
			return true
		}
	}
	return false
}

var botNames = []string{
	"Shadow", "Kingmaker", "Frontier", "Vello", "Haneul", "Mike",
	"Johnny Bravo", "Loxous", "pickypicky", "Bayuzii", "kata", "rai",
}

// BotName picks a display name for a bot opponent, avoiding exclude when possible.
func BotName(rng *rand.Rand, exclude string) string {
	for range botNames {
		name := botNames[rng.Intn(len(botNames))]
		if name != exclude {
			return name
		}
	}
	return botNames[0]
}
