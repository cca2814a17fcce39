// Package aipool implements the sandboxed AI execution pool: a fixed
// set of isolated executors that compile and run untrusted participant
// source on demand, each call bounded by a hard wall-clock timeout.
package aipool

import "math"

// Point is a 2D coordinate in the AI input contract (spec.md §6).
type Point struct {
	X float64 `expr:"x"`
	Y float64 `expr:"y"`
}

// You is the calling snake's own view of itself.
type You struct {
	ID       string  `expr:"id"`
	X        float64 `expr:"x"`
	Y        float64 `expr:"y"`
	Angle    float64 `expr:"angle"`
	Speed    float64 `expr:"speed"`
	Segments []Point `expr:"segments"`
	Length   int     `expr:"length"`
}

// Arena describes the playfield.
type Arena struct {
	Radius float64 `expr:"radius"`
}

// SnakeView is one entry of the "snakes" array, including the caller.
type SnakeView struct {
	ID       string  `expr:"id"`
	Name     string  `expr:"name"`
	X        float64 `expr:"x"`
	Y        float64 `expr:"y"`
	Angle    float64 `expr:"angle"`
	Segments []Point `expr:"segments"`
	Length   int     `expr:"length"`
	Alive    bool    `expr:"alive"`
}

// FoodView is one entry of the "food" array.
type FoodView struct {
	X     float64 `expr:"x"`
	Y     float64 `expr:"y"`
	Value int     `expr:"value"`
}

// State is exactly the object passed to the untrusted program — the
// deep-copied per-tick input named in spec.md §6's AI input contract.
// Mutations the program makes to values it reads out of State never
// reach the authoritative snapshot it was built from: the caller
// constructs a fresh State per dispatch from copied data, never from
// pointers into engine state.
type State struct {
	You    You         `expr:"you"`
	Arena  Arena       `expr:"arena"`
	Snakes []SnakeView `expr:"snakes"`
	Food   []FoodView  `expr:"food"`
	Tick   int64       `expr:"tick"`
}

// Result is the pool's output contract: either a steering angle or an
// error string, never both meaningfully set (spec.md §4.2).
type Result struct {
	TargetAngle *float64
	Error       string
	Steered     bool
}

// helperEnv builds the angleTo/distTo/distFromCenter helpers prepended
// to every compiled program's environment (spec.md §4.2).
func helperEnv(arenaRadius float64) map[string]interface{} {
	return map[string]interface{}{
		"angleTo": func(x1, y1, x2, y2 float64) float64 {
			return math.Atan2(y2-y1, x2-x1)
		},
		"distTo": func(x1, y1, x2, y2 float64) float64 {
			dx, dy := x2-x1, y2-y1
			return math.Sqrt(dx*dx + dy*dy)
		},
		"distFromCenter": func(x, y float64) float64 {
			return math.Sqrt(x*x + y*y)
		},
	}
}

// coerceReturn implements the pool's return-value coercion rule:
// a finite number is an angle, an {x,y}-shaped map is a target point
// converted via atan2 relative to the caller's head, anything else is
// an "Invalid return" error.
func coerceReturn(v interface{}, headX, headY float64) Result {
	switch t := v.(type) {
	case float64:
		return finiteAngleResult(t)
	case int:
		return finiteAngleResult(float64(t))
	case map[string]interface{}:
		x, xok := toFloat(t["x"])
		y, yok := toFloat(t["y"])
		if !xok || !yok {
			return Result{Error: "Invalid return"}
		}
		angle := math.Atan2(y-headY, x-headX)
		return finiteAngleResult(angle)
	default:
		return Result{Error: "Invalid return"}
	}
}

func finiteAngleResult(angle float64) Result {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return Result{Error: "Invalid return"}
	}
	return Result{TargetAngle: &angle, Steered: true}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
