package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() GameConfig {
	cfg := DefaultConfig()
	cfg.ArenaRadius = 500
	cfg.MinFood = 0
	return cfg
}

func TestRegister_NewName(t *testing.T) {
	g := newGameState(testConfig())
	rnd := rand.New(rand.NewSource(1))
	s, err := g.register(testConfig(), rnd, "alice", "0")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Name)
	assert.True(t, s.Alive)
	assert.Equal(t, testConfig().StartingSegments, s.SegmentCount)
	assert.NotEmpty(t, s.ID)
	assert.NotEmpty(t, s.Color)
}

func TestRegister_ExistingNameUpdatesAndRespawns(t *testing.T) {
	cfg := testConfig()
	g := newGameState(cfg)
	rnd := rand.New(rand.NewSource(1))
	first, err := g.register(cfg, rnd, "alice", "0")
	require.NoError(t, err)
	firstID := first.ID
	first.Alive = false
	first.Kills = 7

	second, err := g.register(cfg, rnd, "Alice", "1")
	require.NoError(t, err)
	assert.Equal(t, firstID, second.ID, "same normalized name reuses the snake")
	assert.Equal(t, "1", second.AISource)
	assert.True(t, second.Alive, "re-registering respawns")
	assert.Equal(t, 0, second.Kills, "respawn clears per-life kills")
	assert.Len(t, g.Snakes, 1)
}

func TestRegister_RejectsInvalidNameAndSource(t *testing.T) {
	cfg := testConfig()
	g := newGameState(cfg)
	rnd := rand.New(rand.NewSource(1))

	_, err := g.register(cfg, rnd, "", "0")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = g.register(cfg, rnd, "toolong-toolong-toolong-toolong", "0")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = g.register(cfg, rnd, "bob", "")
	assert.ErrorIs(t, err, ErrInvalidAISource)
}

func TestSubmit_UnknownIDFails(t *testing.T) {
	cfg := testConfig()
	g := newGameState(cfg)
	rnd := rand.New(rand.NewSource(1))
	_, err := g.submit(cfg, rnd, "nonexistent", "0")
	assert.ErrorIs(t, err, ErrSnakeNotFound)
}

func TestSubmit_RespawnsAndPreservesLifetimeStats(t *testing.T) {
	cfg := testConfig()
	g := newGameState(cfg)
	rnd := rand.New(rand.NewSource(1))
	s, err := g.register(cfg, rnd, "alice", "0")
	require.NoError(t, err)
	s.TotalKills = 3
	s.Deaths = 2
	s.Alive = false

	updated, err := g.submit(cfg, rnd, s.ID, "1")
	require.NoError(t, err)
	assert.True(t, updated.Alive)
	assert.Equal(t, 3, updated.TotalKills)
	assert.Equal(t, 2, updated.Deaths)
	assert.Equal(t, "1", updated.AISource)
}

func TestRemove_DeletesSnakeAndNameIndex(t *testing.T) {
	cfg := testConfig()
	g := newGameState(cfg)
	rnd := rand.New(rand.NewSource(1))
	s, err := g.register(cfg, rnd, "alice", "0")
	require.NoError(t, err)

	require.NoError(t, g.remove(s.ID))
	assert.Len(t, g.Snakes, 0)
	assert.Len(t, g.nameIndex, 0)

	assert.ErrorIs(t, g.remove(s.ID), ErrSnakeNotFound)
}

func TestReset_KeepsRegistrationsAndLifetimeStatsClearsPerLifeState(t *testing.T) {
	cfg := testConfig()
	g := newGameState(cfg)
	rnd := rand.New(rand.NewSource(1))
	s, err := g.register(cfg, rnd, "alice", "0")
	require.NoError(t, err)
	s.Kills = 2
	s.TotalKills = 5
	s.Deaths = 4
	s.BestLength = 99
	s.Submissions = []Submission{{Tick: 1}}
	g.Tick = 42
	g.Food = []*Food{{Pos: Vec2{X: 1, Y: 1}, Value: 1}}
	g.Status = StatusFinished

	g.reset(cfg, rnd)

	assert.Equal(t, int64(0), g.Tick)
	assert.Nil(t, g.Food)
	assert.Equal(t, StatusWaiting, g.Status)
	reset := g.Snakes[s.ID]
	assert.Equal(t, 0, reset.Kills, "per-life kills clear on respawn")
	assert.Equal(t, 5, reset.TotalKills, "lifetime stats survive reset, same as submit/Restore")
	assert.Equal(t, 4, reset.Deaths)
	assert.Equal(t, 99, reset.BestLength)
	assert.Equal(t, []Submission{{Tick: 1}}, reset.Submissions)
	assert.True(t, reset.Alive)
}

func TestRespawnSnake_IsIdempotentOnIdentity(t *testing.T) {
	cfg := testConfig()
	g := newGameState(cfg)
	rnd := rand.New(rand.NewSource(1))
	s, err := g.register(cfg, rnd, "alice", "0")
	require.NoError(t, err)
	id, color := s.ID, s.Color

	respawnSnake(s, cfg, rnd)
	respawnSnake(s, cfg, rnd)

	assert.Equal(t, id, s.ID)
	assert.Equal(t, color, s.Color)
	assert.Equal(t, cfg.StartingSegments, s.SegmentCount)
}

func TestPruneTrail_BoundsArcLength(t *testing.T) {
	trail := make([]Vec2, 500)
	for i := range trail {
		trail[i] = Vec2{X: -float64(i), Y: 0}
	}
	pruned := pruneTrail(trail, 10, 4, 20)
	maxLen := float64(10+4) * 20
	acc := 0.0
	for i := 1; i < len(pruned); i++ {
		acc += dist(pruned[i-1], pruned[i])
	}
	assert.LessOrEqual(t, acc, maxLen+20)
}

func TestNextColor_RoundRobins(t *testing.T) {
	cfg := testConfig()
	cfg.Colors = []string{"a", "b"}
	g := newGameState(cfg)
	assert.Equal(t, "a", g.nextColor(cfg))
	assert.Equal(t, "b", g.nextColor(cfg))
	assert.Equal(t, "a", g.nextColor(cfg))
}
