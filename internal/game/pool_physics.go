package game

import "math"

// Ball represents a single pool ball's physics state.
type Ball struct {
	ID       int     `json:"id"`
	Position Vec2    `json:"position"`
	Velocity Vec2    `json:"velocity"`
	Pocketed bool    `json:"pocketed"`
	Spin     float64 `json:"spin"` // cosmetic rotation, no effect on motion
}

// Moving reports whether the ball is on the table with speed above the rest threshold.
func (b *Ball) Moving() bool {
	if b.Pocketed {
		return false
	}
	return math.Abs(b.Velocity.X) > RestThreshold || math.Abs(b.Velocity.Y) > RestThreshold
}

// EventType names a discrete physics event.
type EventType string

const (
	EventPocket    EventType = "ball_pocketed"
	EventCushion   EventType = "cushion_hit"
	EventCollision EventType = "ball_collision"
)

// CollisionEvent records a collision for rule checking and sound playback.
type CollisionEvent struct {
	Type     EventType `json:"type"`
	BallID   int       `json:"ball_id"`
	TargetID int       `json:"target_id"`      // other ball ID or pocket ID
	Side     Side      `json:"side,omitempty"` // cushion events only
	Speed    float64   `json:"speed"`          // impact speed (for sound volume)
}

// StepResult is the output of one physics step.
type StepResult struct {
	Balls  []Ball           `json:"balls"`
	Events []CollisionEvent `json:"events"`
	AtRest bool             `json:"at_rest"`
}

// Step advances balls by dt frames and returns the new ball set with the events of
// the step. The input slice is not modified.
//
// Per ball: integrate and decay, then pocket capture, then cushions (a captured ball
// never bounces). Ball pairs are resolved afterwards in slice order.
func Step(t *Table, balls []Ball, dt float64) StepResult {
	next := make([]Ball, len(balls))
	copy(next, balls)

	var events []CollisionEvent
	decay := math.Pow(t.Friction, dt)

	for i := range next {
		b := &next[i]
		if b.Pocketed {
			continue
		}
		if !b.Moving() {
			b.Velocity = Vec2{}
			continue
		}

		b.Position = b.Position.Plus(b.Velocity.Times(dt))
		b.Velocity = b.Velocity.Times(decay)
		b.Spin += b.Velocity.Magnitude() * SpinFactor * dt

		if pocket, ok := t.pocketAt(b.Position); ok {
			events = append(events, CollisionEvent{
				Type:     EventPocket,
				BallID:   b.ID,
				TargetID: pocket.ID,
				Speed:    b.Velocity.Magnitude(),
			})
			b.Pocketed = true
			b.Velocity = Vec2{}
			continue
		}

		events = append(events, t.reflectCushions(b)...)
	}

	events = append(events, resolveBallCollisions(t, next)...)

	// A ball that drops under the rest threshold this frame stops dead, so a
	// settled table never carries leftover velocity.
	for i := range next {
		if !next[i].Pocketed && !next[i].Moving() {
			next[i].Velocity = Vec2{}
		}
	}

	return StepResult{Balls: next, Events: events, AtRest: AllAtRest(next)}
}

// AllAtRest reports whether no ball on the table is moving.
func AllAtRest(balls []Ball) bool {
	for i := range balls {
		if balls[i].Moving() {
			return false
		}
	}
	return true
}

func (t *Table) pocketAt(p Vec2) (Pocket, bool) {
	for _, pocket := range t.Pockets {
		if p.DistanceTo(pocket.Position) < pocket.CaptureRadius() {
			return pocket, true
		}
	}
	return Pocket{}, false
}

// reflectCushions clamps the ball inside the playable area and reverses and damps the
// velocity component perpendicular to each cushion it crossed.
func (t *Table) reflectCushions(b *Ball) []CollisionEvent {
	var events []CollisionEvent
	hit := func(side Side, speed float64) {
		events = append(events, CollisionEvent{Type: EventCushion, BallID: b.ID, TargetID: -1, Side: side, Speed: speed})
	}

	if b.Position.X < t.MinX() {
		b.Position.X = t.MinX()
		hit(SideLeft, math.Abs(b.Velocity.X))
		b.Velocity.X = -b.Velocity.X * t.CushionRestitution
	}
	if b.Position.X > t.MaxX() {
		b.Position.X = t.MaxX()
		hit(SideRight, math.Abs(b.Velocity.X))
		b.Velocity.X = -b.Velocity.X * t.CushionRestitution
	}
	if b.Position.Y < t.MinY() {
		b.Position.Y = t.MinY()
		hit(SideTop, math.Abs(b.Velocity.Y))
		b.Velocity.Y = -b.Velocity.Y * t.CushionRestitution
	}
	if b.Position.Y > t.MaxY() {
		b.Position.Y = t.MaxY()
		hit(SideBottom, math.Abs(b.Velocity.Y))
		b.Velocity.Y = -b.Velocity.Y * t.CushionRestitution
	}
	return events
}

// resolveBallCollisions exchanges CollisionTransfer of the closing speed along the line
// of centres for every approaching overlapping pair, then separates the pair.
// Coincident centres have no normal and are left alone for this frame.
func resolveBallCollisions(t *Table, balls []Ball) []CollisionEvent {
	var events []CollisionEvent
	minDist := 2 * t.BallRadius

	for i := 0; i < len(balls); i++ {
		for j := i + 1; j < len(balls); j++ {
			a, b := &balls[i], &balls[j]
			if a.Pocketed || b.Pocketed {
				continue
			}
			dist := a.Position.DistanceTo(b.Position)
			if dist >= minDist {
				continue
			}
			dvn, n, ok := closingSpeed(a.Position, b.Position, a.Velocity, b.Velocity)
			if !ok {
				continue
			}

			if dvn > 0 {
				impulse := n.Times(dvn * CollisionTransfer)
				a.Velocity = a.Velocity.Minus(impulse)
				b.Velocity = b.Velocity.Plus(impulse)
				events = append(events, CollisionEvent{
					Type:     EventCollision,
					BallID:   a.ID,
					TargetID: b.ID,
					Speed:    dvn,
				})
			}

			overlap := minDist - dist
			a.Position = a.Position.Minus(n.Times(overlap / 2))
			b.Position = b.Position.Plus(n.Times(overlap / 2))
		}
	}
	return events
}

// PhysicsEngine runs the billiard simulation over an owned ball set, one fixed
// frame at a time.
type PhysicsEngine struct {
	Table *Table
	Balls []Ball
	Frame uint64
}

// NewPhysicsEngine creates a physics engine from ball states and table geometry.
func NewPhysicsEngine(balls []Ball, table *Table) *PhysicsEngine {
	return &PhysicsEngine{
		Balls: balls,
		Table: table,
	}
}

// Step advances the simulation by one frame.
func (pe *PhysicsEngine) Step() StepResult {
	res := Step(pe.Table, pe.Balls, 1)
	pe.Balls = res.Balls
	pe.Frame++
	return res
}

// AllStopped returns true if no ball on the table is moving.
func (pe *PhysicsEngine) AllStopped() bool {
	return AllAtRest(pe.Balls)
}

// Ball returns the ball with the given id, or nil.
func (pe *PhysicsEngine) Ball(id int) *Ball {
	return findBall(pe.Balls, id)
}

func findBall(balls []Ball, id int) *Ball {
	for i := range balls {
		if balls[i].ID == id {
			return &balls[i]
		}
	}
	return nil
}
