package engine

// GameConfig holds every tunable named in the configuration defaults
// table. Fields are JSON-tagged so the same struct serves as the CLI's
// `--config` file format; the admin `/api/admin/config` patch body is
// the separate ConfigPatch type below.
type GameConfig struct {
	ArenaRadius      float64  `json:"arenaRadius"`
	TickRateMs       int      `json:"tickRateMs"`
	SnakeSpeed       float64  `json:"snakeSpeed"`
	SnakeRadius      float64  `json:"snakeRadius"`
	SegmentSpacing   float64  `json:"segmentSpacing"`
	MaxTurnRate      float64  `json:"maxTurnRate"`
	StartingSegments int      `json:"startingSegments"`
	FoodRadius       float64  `json:"foodRadius"`
	MinFood          int      `json:"minFood"`
	MaxFood          int      `json:"maxFood"`
	RespawnOnDeath   bool     `json:"respawnOnDeath"`
	RespawnDelayMs   int      `json:"respawnDelayMs"`
	AITimeoutMs      int      `json:"aiTimeoutMs"`
	Colors           []string `json:"colors"`

	// TrailSlack is the extra multiple of segmentSpacing worth of arc
	// length kept beyond the visible segments before the trail is
	// pruned (spec.md §3: "(segmentCount + slack) × segmentSpacing").
	TrailSlack int `json:"trailSlack"`

	// MaxCorpseFoodFraction is the fraction of a dying snake's visible
	// segments that become corpse food (0.5 turns every second segment
	// into a food tile). Corpse food is still appended only while the
	// food list is below maxFood; this generalizes the teacher's
	// KillFoodCount constant into config.
	MaxCorpseFoodFraction float64 `json:"maxCorpseFoodFraction"`
}

// DefaultConfig returns the configuration defaults from spec.md §6.
func DefaultConfig() GameConfig {
	return GameConfig{
		ArenaRadius:      2000,
		TickRateMs:       50,
		SnakeSpeed:       4,
		SnakeRadius:      12,
		SegmentSpacing:   20,
		MaxTurnRate:      0.25,
		StartingSegments: 10,
		FoodRadius:       6,
		MinFood:          200,
		MaxFood:          600,
		RespawnOnDeath:   true,
		RespawnDelayMs:   3000,
		AITimeoutMs:      50,
		Colors: []string{
			"#e94560", "#00cc88", "#533483", "#0f3460",
			"#f2a365", "#47c1ff", "#ffd23f", "#ff6b6b",
			"#6bffb8", "#c77dff", "#ffb86b", "#4cc9f0",
		},
		TrailSlack:            4,
		MaxCorpseFoodFraction: 0.5,
	}
}

// ConfigPatch is the partial-update shape accepted by
// POST /api/admin/config — every field optional, applied only when
// present, clamped to the ranges spec.md §6 names.
type ConfigPatch struct {
	TickRateMs     *int     `json:"tickRateMs,omitempty"`
	ArenaRadius    *float64 `json:"arenaRadius,omitempty"`
	RespawnOnDeath *bool    `json:"respawnOnDeath,omitempty"`
	RespawnDelayMs *int     `json:"respawnDelayMs,omitempty"`
	SnakeSpeed     *float64 `json:"snakeSpeed,omitempty"`
	MaxTurnRate    *float64 `json:"maxTurnRate,omitempty"`
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Apply mutates cfg in place with the clamped values from the patch.
// A change to TickRateMs while running takes effect on the next
// scheduled tick (spec.md §4.3) because the scheduler reads cfg fresh
// at the top of each tick rather than capturing it once.
func (p ConfigPatch) Apply(cfg *GameConfig) {
	if p.TickRateMs != nil {
		cfg.TickRateMs = clampInt(*p.TickRateMs, 20, 1000)
	}
	if p.ArenaRadius != nil {
		cfg.ArenaRadius = clampFloat(*p.ArenaRadius, 500, 10000)
	}
	if p.RespawnOnDeath != nil {
		cfg.RespawnOnDeath = *p.RespawnOnDeath
	}
	if p.RespawnDelayMs != nil {
		cfg.RespawnDelayMs = clampInt(*p.RespawnDelayMs, 0, 30000)
	}
	if p.SnakeSpeed != nil {
		cfg.SnakeSpeed = clampFloat(*p.SnakeSpeed, 1, 20)
	}
	if p.MaxTurnRate != nil {
		cfg.MaxTurnRate = clampFloat(*p.MaxTurnRate, 0.01, 0.5)
	}
}
