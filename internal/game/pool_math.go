package game

import "math"

// rayContact describes where a ball travelling along a ray first touches a circle.
type rayContact struct {
	along    float64 // distance along the ray to the circle centre's projection
	perp     float64 // perpendicular distance from the circle centre to the ray
	distance float64 // distance along the ray to the contact point
}

// rayCircleContact tests a ray (unit dir) against a circle of the given radius.
// Circles behind the origin or wider than radius from the ray never hit.
func rayCircleContact(origin, dir, center Vec2, radius float64) (rayContact, bool) {
	to := center.Minus(origin)
	along := to.Dot(dir)
	if along <= 0 {
		return rayContact{}, false
	}
	perp := math.Abs(dir.Cross(to))
	if perp >= radius {
		return rayContact{}, false
	}
	back := math.Sqrt(radius*radius - perp*perp)
	return rayContact{along: along, perp: perp, distance: along - back}, true
}

// closingSpeed returns the speed at which a approaches b along the line of centres,
// with the unit normal from a to b. ok is false for coincident centres.
func closingSpeed(posA, posB, velA, velB Vec2) (speed float64, normal Vec2, ok bool) {
	d := posB.Minus(posA)
	dist := d.Magnitude()
	if dist == 0 {
		return 0, Vec2{}, false
	}
	normal = d.Times(1 / dist)
	return velA.Minus(velB).Dot(normal), normal, true
}

// findBearing returns the angle in radians from dx, dy.
func findBearing(dx, dy float64) float64 {
	return math.Atan2(dy, dx)
}
