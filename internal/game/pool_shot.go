package game

import "math"

// Shot is an angle (radians) and a power in pixels per frame.
type Shot struct {
	Angle float64 `json:"angle"`
	Power float64 `json:"power"`
}

// Velocity returns the initial cue ball velocity for the shot.
func (s Shot) Velocity() Vec2 {
	return FromAngle(s.Angle, s.Power)
}

// Clamped returns the shot with power limited to [0, MaxPower].
func (s Shot) Clamped() Shot {
	s.Power = clamp(s.Power, 0, MaxPower)
	return s
}

// ShotFromDrag converts a drag gesture into a shot. The cue is pulled back, so the
// ball travels from end toward start. ok is false for a zero-length drag.
func ShotFromDrag(start, end Vec2) (Shot, bool) {
	d := start.Minus(end)
	dist := d.Magnitude()
	if dist <= 0 {
		return Shot{}, false
	}
	return Shot{
		Angle: findBearing(d.X, d.Y),
		Power: math.Min(dist*DragPowerScale, MaxPower),
	}, true
}

// DragController tracks one pointer gesture on the cue ball.
type DragController struct {
	dragging bool
	start    Vec2
	end      Vec2
}

// Press starts a drag when the pointer lands on the cue ball.
func (dc *DragController) Press(cue Vec2, p Vec2) bool {
	if p.DistanceTo(cue) > BallRadius {
		return false
	}
	dc.dragging = true
	dc.start = p
	dc.end = p
	return true
}

// Move updates the current pointer position of an active drag.
func (dc *DragController) Move(p Vec2) {
	if dc.dragging {
		dc.end = p
	}
}

// Current returns the shot the drag would produce if released now.
func (dc *DragController) Current() (Shot, bool) {
	if !dc.dragging {
		return Shot{}, false
	}
	return ShotFromDrag(dc.start, dc.end)
}

// Release ends the drag and returns the resulting shot.
func (dc *DragController) Release() (Shot, bool) {
	shot, ok := dc.Current()
	dc.dragging = false
	return shot, ok
}

const (
	aimLineLength       = 400.0
	targetLineLength    = 180.0
	deflectionScale     = 120.0
	minDeflectionToShow = 20.0
)

// AimPreview is the advisory geometry drawn while aiming. It never feeds back
// into the simulation.
type AimPreview struct {
	AimEnd          Vec2    `json:"aim_end"`
	HasTarget       bool    `json:"has_target"`
	TargetID        int     `json:"target_id,omitempty"`
	Ghost           Vec2    `json:"ghost"`
	TargetAngle     float64 `json:"target_angle"`
	TargetEnd       Vec2    `json:"target_end"`
	ShowDeflection  bool    `json:"show_deflection"`
	DeflectionEnd   Vec2    `json:"deflection_end"`
	DeflectionAngle float64 `json:"deflection_angle"`
}

// AimAssist finds the first ball along the aim ray whose centre is within two radii
// of the ray and predicts the target and cue ball directions after contact.
func AimAssist(balls []Ball, angle float64) AimPreview {
	cue := findBall(balls, CueBallID)
	if cue == nil || cue.Pocketed {
		return AimPreview{}
	}
	dir := FromAngle(angle, 1)
	preview := AimPreview{AimEnd: cue.Position.Plus(dir.Times(aimLineLength))}

	var (
		target  *Ball
		contact rayContact
		nearest = math.Inf(1)
	)
	for i := range balls {
		b := &balls[i]
		if b.ID == CueBallID || b.Pocketed {
			continue
		}
		c, ok := rayCircleContact(cue.Position, dir, b.Position, 2*BallRadius)
		if !ok || c.along >= nearest {
			continue
		}
		nearest = c.along
		target = b
		contact = c
	}
	if target == nil {
		return preview
	}

	ghost := cue.Position.Plus(dir.Times(contact.distance))
	targetAngle := target.Position.Minus(ghost).Angle()

	preview.HasTarget = true
	preview.TargetID = target.ID
	preview.Ghost = ghost
	preview.TargetAngle = targetAngle
	preview.TargetEnd = target.Position.Plus(FromAngle(targetAngle, targetLineLength))

	cut := math.Sin(angle - targetAngle)
	length := math.Abs(cut) * deflectionScale
	if length > minDeflectionToShow {
		deflect := targetAngle + math.Pi/2
		if cut < 0 {
			deflect += math.Pi
		}
		preview.ShowDeflection = true
		preview.DeflectionAngle = deflect
		preview.DeflectionEnd = ghost.Plus(FromAngle(deflect, length))
	}
	return preview
}
