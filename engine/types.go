package engine

// Status is the game's coarse state-machine value (spec.md §4.3).
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// Submission records one accepted AI-function upload, for the
// submission-history stat named in spec.md §3.
type Submission struct {
	Tick        int64   `json:"tick"`
	LineCount   int     `json:"lineCount"`
	WallClockMs float64 `json:"wallClockMs"`
}

// Snake is one participant's avatar. The scheduler is its only
// mutator; every other component reads it through a snapshot.
type Snake struct {
	ID       string
	Name     string
	Color    string
	AISource string

	Head  Vec2
	Angle float64
	Speed float64

	// Trail holds head-position history, newest (current head) first.
	// Segment centers are reconstructed from it per tick rather than
	// stored directly (spec.md §9: "trail as a lazy polyline").
	Trail        []Vec2
	SegmentCount int

	Alive        bool
	DiedAtTick   int64
	DeathReason  string
	RespawnAt    int64
	LastAIError  string
	HadSteerThis bool

	Kills       int
	TotalKills  int
	Deaths      int
	BestLength  int
	Submissions []Submission

	// segCache holds this tick's reconstructed visible segment
	// centers; rebuilt once per tick in the pipeline and reused for
	// both collision and broadcast (spec.md §4.3 step 7, §9).
	segCache []Vec2
}

// Length returns the snake's current visible length (segment count).
func (s *Snake) Length() int { return s.SegmentCount }

// Food is a collectible tile. Value is the segment-count delta granted
// on consumption.
type Food struct {
	Pos    Vec2
	Value  int
	Radius float64
}

// GameState is the authoritative, single-writer arena aggregate.
// Only the scheduler mutates it; everything else reads snapshots or
// enqueues commands (spec.md §3 "Ownership").
type GameState struct {
	Tick            int64
	Status          Status
	ArenaRadius     float64
	SpectatorCount  int
	WinnerID        string
	TournamentMode  bool

	Snakes map[string]*Snake
	Food   []*Food

	// nameIndex enforces unique display names across registrations.
	nameIndex map[string]string // lowercase name -> snake id

	colorCursor int
}

func newGameState(cfg GameConfig) *GameState {
	return &GameState{
		Status:      StatusWaiting,
		ArenaRadius: cfg.ArenaRadius,
		Snakes:      make(map[string]*Snake),
		nameIndex:   make(map[string]string),
	}
}

func (g *GameState) nextColor(cfg GameConfig) string {
	if len(cfg.Colors) == 0 {
		return "#ffffff"
	}
	c := cfg.Colors[g.colorCursor%len(cfg.Colors)]
	g.colorCursor++
	return c
}

func (g *GameState) aliveCount() int {
	n := 0
	for _, s := range g.Snakes {
		if s.Alive {
			n++
		}
	}
	return n
}
