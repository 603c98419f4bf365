package game

import (
	"math"
	"math/rand"
)

// Pocket represents one of the 6 pockets on the table.
type Pocket struct {
	ID       int  `json:"id"`
	Position Vec2 `json:"position"`
	Corner   bool `json:"corner"`
}

// CaptureRadius is the distance from the pocket centre inside which a ball drops.
// Corner pockets are more forgiving than side pockets.
func (p Pocket) CaptureRadius() float64 {
	if p.Corner {
		return PocketDetection + CornerPocketBonus
	}
	return PocketDetection
}

// Side identifies one of the four cushions.
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideTop    Side = "top"
	SideBottom Side = "bottom"
)

// Table holds the complete table geometry and physical coefficients.
// It is never mutated after construction.
type Table struct {
	Width              float64  `json:"width"`
	Height             float64  `json:"height"`
	CushionMargin      float64  `json:"cushion_margin"`
	BallRadius         float64  `json:"ball_radius"`
	Friction           float64  `json:"friction"`
	CushionRestitution float64  `json:"cushion_restitution"`
	MaxPower           float64  `json:"max_power"`
	PocketRadius       float64  `json:"pocket_radius"`
	Pockets            []Pocket `json:"pockets"`
}

// NewStandardTable creates the 900x500 table used by every game mode.
func NewStandardTable() *Table {
	w, h := TableWidth, TableHeight
	return &Table{
		Width:              w,
		Height:             h,
		CushionMargin:      CushionMargin,
		BallRadius:         BallRadius,
		Friction:           Friction,
		CushionRestitution: CushionRestitution,
		MaxPower:           MaxPower,
		PocketRadius:       PocketRadius,
		Pockets: []Pocket{
			{ID: 0, Position: NewVec2(28, 28), Corner: true},
			{ID: 1, Position: NewVec2(w/2, 22), Corner: false},
			{ID: 2, Position: NewVec2(w-28, 28), Corner: true},
			{ID: 3, Position: NewVec2(28, h-28), Corner: true},
			{ID: 4, Position: NewVec2(w/2, h-22), Corner: false},
			{ID: 5, Position: NewVec2(w-28, h-28), Corner: true},
		},
	}
}

// Playable bounds for a ball centre.
func (t *Table) MinX() float64 { return t.CushionMargin + t.BallRadius }
func (t *Table) MaxX() float64 { return t.Width - t.CushionMargin - t.BallRadius }
func (t *Table) MinY() float64 { return t.CushionMargin + t.BallRadius }
func (t *Table) MaxY() float64 { return t.Height - t.CushionMargin - t.BallRadius }

// BreakSpot is where the cue ball sits at rack time.
func (t *Table) BreakSpot() Vec2 {
	return NewVec2(t.Width*0.25, t.Height/2)
}

// RackApex is the position of the front ball of the triangle.
func (t *Table) RackApex() Vec2 {
	return NewVec2(t.Width*0.7, t.Height/2)
}

// ClampToKitchen clamps a cue ball placement into the left quarter of the table.
func (t *Table) ClampToKitchen(p Vec2) Vec2 {
	return NewVec2(
		clamp(p.X, t.MinX(), t.Width*0.25),
		clamp(p.Y, t.MinY(), t.MaxY()),
	)
}

// RackOrder is the fill order of the triangle, row by row from the apex.
var RackOrder = [NumBalls - 1]int{1, 9, 2, 10, 8, 3, 11, 4, 12, 5, 13, 6, 14, 7, 15}

// Standard8BallRack returns all 16 balls at rest: the cue ball first, then the
// triangle in RackOrder. The slice order is also the collision pair order.
// rng only seeds the cosmetic spin and may be nil.
func (t *Table) Standard8BallRack(rng *rand.Rand) []Ball {
	balls := make([]Ball, 0, NumBalls)
	balls = append(balls, Ball{ID: CueBallID, Position: t.BreakSpot()})

	apex := t.RackApex()
	spacing := t.BallRadius * 2.1
	idx := 0
	for row := 0; row < 5; row++ {
		for col := 0; col <= row; col++ {
			var spin float64
			if rng != nil {
				spin = rng.Float64() * 2 * math.Pi
			}
			balls = append(balls, Ball{
				ID: RackOrder[idx],
				Position: NewVec2(
					apex.X+float64(row)*spacing*0.866,
					apex.Y+(float64(col)-float64(row)/2)*spacing,
				),
				Spin: spin,
			})
			idx++
		}
	}
	return balls
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
