package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0, normalizeAngle(0), 1e-9)
	assert.InDelta(t, math.Pi, normalizeAngle(-math.Pi), 1e-9)
	assert.InDelta(t, math.Pi/2, normalizeAngle(2*math.Pi+math.Pi/2), 1e-9)
	assert.InDelta(t, 3*math.Pi/2, normalizeAngle(-math.Pi/2), 1e-9)
}

func TestAngleDiff(t *testing.T) {
	assert.InDelta(t, 0, angleDiff(0, 0), 1e-9)
	assert.InDelta(t, math.Pi/2, angleDiff(0, math.Pi/2), 1e-9)
	assert.InDelta(t, -math.Pi/2, angleDiff(0, -math.Pi/2), 1e-9)
	// wrap-around: going from just-under-2π to just-over-0 is a small
	// positive step, not nearly a full turn.
	assert.InDelta(t, 0.2, angleDiff(2*math.Pi-0.1, 0.1), 1e-9)
}

func TestTurnToward_ClampsToMaxRate(t *testing.T) {
	const maxRate = 0.1
	result := turnToward(0, math.Pi, maxRate)
	assert.InDelta(t, maxRate, angleDiff(0, result), 1e-9)
}

func TestTurnToward_ReachesTargetWhenWithinRate(t *testing.T) {
	target := 0.05
	result := turnToward(0, target, 0.1)
	assert.InDelta(t, normalizeAngle(target), result, 1e-9)
}

func TestTurnToward_NegativeDirection(t *testing.T) {
	const maxRate = 0.1
	result := turnToward(0, -math.Pi/2, maxRate)
	assert.InDelta(t, -maxRate, angleDiff(0, result), 1e-9)
}

func TestIsInBounds(t *testing.T) {
	assert.True(t, isInBounds(0, 0, 100))
	assert.True(t, isInBounds(99, 0, 100))
	assert.False(t, isInBounds(101, 0, 100))
	assert.False(t, isInBounds(100, 0, 100))
}

func TestSegmentPositions_SpacingIsRespected(t *testing.T) {
	// A straight trail heading in +x, dense enough to sample from.
	trail := make([]Vec2, 0, 200)
	for i := 0; i < 200; i++ {
		trail = append(trail, Vec2{X: -float64(i) * 1.0, Y: 0})
	}
	segs := segmentPositions(trail, 10, 20)
	assert.Len(t, segs, 10)
	assert.Equal(t, trail[0], segs[0])
	for i := 1; i < len(segs); i++ {
		assert.InDelta(t, 20, dist(segs[i-1], segs[i]), 1e-6)
	}
}

func TestSegmentPositions_ShortTrailTruncates(t *testing.T) {
	trail := []Vec2{{X: 0, Y: 0}, {X: 5, Y: 0}}
	segs := segmentPositions(trail, 10, 20)
	assert.Len(t, segs, 1)
}

func TestSegmentPositions_EmptyTrail(t *testing.T) {
	assert.Nil(t, segmentPositions(nil, 5, 20))
	assert.Nil(t, segmentPositions([]Vec2{{X: 0, Y: 0}}, 0, 20))
}

type fixedRand struct{ vals []float64 }

func (f *fixedRand) Float64() float64 {
	v := f.vals[0]
	if len(f.vals) > 1 {
		f.vals = f.vals[1:]
	}
	return v
}

func TestSpawnPosition_WithinExpectedRadiusBand(t *testing.T) {
	rnd := &fixedRand{vals: []float64{0.25, 0.5, 0.0}}
	pos, heading := spawnPosition(1000, rnd)
	r := math.Hypot(pos.X, pos.Y)
	assert.GreaterOrEqual(t, r, 0.5*1000-1e-6)
	assert.LessOrEqual(t, r, 0.8*1000+1e-6)
	assert.False(t, math.IsNaN(heading))
}

func TestSpawnFood_WithinArena(t *testing.T) {
	rnd := &fixedRand{vals: []float64{0.9, 0.9}}
	pos := spawnFood(1000, rnd)
	assert.True(t, isInBounds(pos.X, pos.Y, 1000))
}
