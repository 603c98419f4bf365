package game

// Physics and table constants for 8-ball pool.
// Units are table pixels and frames; velocities are pixels per frame at 60 fps.

const (
	TableWidth        = 900.0
	TableHeight       = 500.0
	BallRadius        = 12.0
	PocketRadius      = 24.0 // drawn radius only
	PocketDetection   = 38.0
	CornerPocketBonus = 8.0
	CushionMargin     = 40.0

	Friction           = 0.985
	CushionRestitution = 0.75
	CollisionTransfer  = 0.95
	RestThreshold      = 0.01
	SpinFactor         = 0.1
	MaxPower           = 22.0

	// Drag distance (pixels) to shot power.
	DragPowerScale = 0.2

	NumBalls    = 16 // 0=cue, 1-7=solids, 8=eight, 9-15=stripes
	CueBallID   = 0
	EightBallID = 8
	GroupSize   = 7

	FrameRate = 60

	TurnSeconds        = 30
	TurnWarningSeconds = 10
)
