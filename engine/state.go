package engine

import (
	"math"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// buildInitialTrail lays out the starting body as n*3 points spaced
// spacing/2 apart, walking backward from pos opposite the spawn
// heading (spec.md §4.3 step 2).
func buildInitialTrail(pos Vec2, heading float64, startingSegments int, spacing float64) []Vec2 {
	n := startingSegments * 3
	step := spacing / 2
	trail := make([]Vec2, n)
	for i := 0; i < n; i++ {
		d := step * float64(i)
		trail[i] = Vec2{
			X: pos.X - math.Cos(heading)*d,
			Y: pos.Y - math.Sin(heading)*d,
		}
	}
	return trail
}

// respawn is idempotent: it resets kinematic and per-life state and
// preserves every lifetime/submission stat (spec.md §4.4). It never
// allocates an id or color.
func respawnSnake(s *Snake, cfg GameConfig, rnd *rand.Rand) {
	pos, heading := spawnPosition(cfg.ArenaRadius, rnd)
	s.Head = pos
	s.Angle = normalizeAngle(heading)
	s.Speed = cfg.SnakeSpeed
	s.Trail = buildInitialTrail(pos, heading, cfg.StartingSegments, cfg.SegmentSpacing)
	s.SegmentCount = cfg.StartingSegments
	s.Alive = true
	s.Kills = 0
	s.DiedAtTick = 0
	s.DeathReason = ""
	s.RespawnAt = 0
	s.LastAIError = ""
	s.HadSteerThis = false
	s.segCache = nil
}

// pruneTrail trims trail to (segmentCount+slack)*spacing of arc length,
// keeping growth (segmentCount += value) O(1) (spec.md §3, §9).
func pruneTrail(trail []Vec2, segmentCount, slack int, spacing float64) []Vec2 {
	maxLen := float64(segmentCount+slack) * spacing
	if len(trail) < 2 {
		return trail
	}
	acc := 0.0
	for i := 1; i < len(trail); i++ {
		acc += dist(trail[i-1], trail[i])
		if acc > maxLen {
			return trail[:i+1]
		}
	}
	return trail
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// register creates a new snake for a never-before-seen name, or — if
// the name already belongs to a snake — updates its AI source and
// respawns it immediately, exactly like submit (spec.md §4.3
// "register-existing-name").
func (g *GameState) register(cfg GameConfig, rnd *rand.Rand, name, aiSource string) (*Snake, error) {
	if name == "" || len(name) > 20 {
		return nil, ErrInvalidName
	}
	if len(aiSource) == 0 || len(aiSource) > 10000 {
		return nil, ErrInvalidAISource
	}

	key := normalizeName(name)
	if id, ok := g.nameIndex[key]; ok {
		s := g.Snakes[id]
		s.AISource = aiSource
		respawnSnake(s, cfg, rnd)
		return s, nil
	}

	s := &Snake{
		ID:       uuid.NewString(),
		Name:     name,
		Color:    g.nextColor(cfg),
		AISource: aiSource,
	}
	g.Snakes[s.ID] = s
	g.nameIndex[key] = s.ID
	respawnSnake(s, cfg, rnd)
	return s, nil
}

// submit updates an existing snake's AI source and respawns it
// immediately (spec.md §4.3, §6 POST /api/submit).
func (g *GameState) submit(cfg GameConfig, rnd *rand.Rand, id, aiSource string) (*Snake, error) {
	s, ok := g.Snakes[id]
	if !ok {
		return nil, ErrSnakeNotFound
	}
	if len(aiSource) == 0 || len(aiSource) > 10000 {
		return nil, ErrInvalidAISource
	}
	s.AISource = aiSource
	respawnSnake(s, cfg, rnd)
	return s, nil
}

// remove deletes a snake entirely (DELETE /api/admin/snake/:id).
func (g *GameState) remove(id string) error {
	s, ok := g.Snakes[id]
	if !ok {
		return ErrSnakeNotFound
	}
	delete(g.nameIndex, normalizeName(s.Name))
	delete(g.Snakes, id)
	return nil
}

// reset keeps registrations but clears all per-life state and food
// (spec.md §4.3 state machine, §8 testable property). Lifetime stats
// (totalKills, deaths, bestLength, submissions) survive a reset, the
// same as they survive submit, register-existing-name, and Restore.
func (g *GameState) reset(cfg GameConfig, rnd *rand.Rand) {
	g.Tick = 0
	g.Food = nil
	g.WinnerID = ""
	for _, s := range g.Snakes {
		respawnSnake(s, cfg, rnd)
	}
	g.Status = StatusWaiting
}
