package engine

import "math"

// Snapshot is the reduced, bandwidth-conscious view fanned out to
// spectators on every tick (spec.md §4.5). Rounding happens only here;
// authoritative state retains full precision.
type Snapshot struct {
	Tick           int64          `json:"tick"`
	Status         Status         `json:"status"`
	ArenaRadius    float64        `json:"arenaRadius"`
	SpectatorCount int            `json:"spectatorCount"`
	Snakes         []SnakeView    `json:"snakes"`
	Food           []FoodViewJSON `json:"food"`
}

type SnakeView struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Color            string    `json:"color"`
	Alive            bool      `json:"alive"`
	Head             PointJSON `json:"head"`
	Angle            float64   `json:"angle"`
	Speed            float64   `json:"speed"`
	Segments         []PointJSON `json:"segments"`
	Length           int       `json:"length"`
	BestLength       int       `json:"bestLength"`
	Kills            int       `json:"kills"`
	TotalKills       int       `json:"totalKills"`
	Deaths           int       `json:"deaths"`
	DeathReason      string    `json:"deathReason,omitempty"`
	LastAIError      string    `json:"lastAIError,omitempty"`
	SubmissionCount  int       `json:"submissionCount"`
	LastSubmitLines  int       `json:"lastSubmitLines"`
}

type PointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type FoodViewJSON struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
}

func round1(v float64) float64  { return math.Round(v*10) / 10 }
func round2(v float64) float64  { return math.Round(v*100) / 100 }

// buildSnapshot reuses the per-tick segment cache (spec.md §9:
// "building segments twice ... is a common implementation mistake")
// and downsamples visible segments at stride 3 plus first and last.
func (g *Game) buildSnapshot() Snapshot {
	snap := Snapshot{
		Tick:           g.state.Tick,
		Status:         g.state.Status,
		ArenaRadius:    g.state.ArenaRadius,
		SpectatorCount: g.broadcast.count(),
	}

	for _, s := range g.state.Snakes {
		var lastLines int
		if n := len(s.Submissions); n > 0 {
			lastLines = s.Submissions[n-1].LineCount
		}
		snap.Snakes = append(snap.Snakes, SnakeView{
			ID:              s.ID,
			Name:            s.Name,
			Color:           s.Color,
			Alive:           s.Alive,
			Head:            PointJSON{X: round1(s.Head.X), Y: round1(s.Head.Y)},
			Angle:           round2(s.Angle),
			Speed:           s.Speed,
			Segments:        downsampleSegments(s.segCache),
			Length:          s.SegmentCount,
			BestLength:      s.BestLength,
			Kills:           s.Kills,
			TotalKills:      s.TotalKills,
			Deaths:          s.Deaths,
			DeathReason:     s.DeathReason,
			LastAIError:     s.LastAIError,
			SubmissionCount: len(s.Submissions),
			LastSubmitLines: lastLines,
		})
	}
	for _, f := range g.state.Food {
		snap.Food = append(snap.Food, FoodViewJSON{X: round1(f.Pos.X), Y: round1(f.Pos.Y), Value: f.Value})
	}
	return snap
}

func downsampleSegments(segs []Vec2) []PointJSON {
	if len(segs) == 0 {
		return nil
	}
	out := make([]PointJSON, 0, len(segs)/3+2)
	for i, seg := range segs {
		if i == 0 || i == len(segs)-1 || i%3 == 0 {
			out = append(out, PointJSON{X: round1(seg.X), Y: round1(seg.Y)})
		}
	}
	return out
}

func (g *Game) broadcastSnapshot() {
	snap := g.buildSnapshot()
	g.broadcast.send("game:tick", snap)
}

func (g *Game) broadcastEvent(event string, payload interface{}) {
	g.broadcast.send(event, payload)
}

// StateView is the full-precision authoritative debug dump served by
// GET /api/state (spec.md §6). Unlike Snapshot, nothing here is
// rounded or downsampled.
type StateView struct {
	Tick        int64             `json:"tick"`
	Status      Status            `json:"status"`
	ArenaRadius float64           `json:"arenaRadius"`
	Snakes      []StateSnakeView  `json:"snakes"`
	Food        []FoodViewJSON    `json:"food"`
}

type StateSnakeView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Color       string     `json:"color"`
	Alive       bool       `json:"alive"`
	Head        PointJSON  `json:"head"`
	Angle       float64    `json:"angle"`
	Speed       float64    `json:"speed"`
	Length      int        `json:"length"`
	BestLength  int        `json:"bestLength"`
	Kills       int        `json:"kills"`
	TotalKills  int        `json:"totalKills"`
	Deaths      int        `json:"deaths"`
	DeathReason string     `json:"deathReason,omitempty"`
	LastAIError string     `json:"lastAIError,omitempty"`
	Submissions []Submission `json:"submissions"`
}

func (g *Game) buildStateView() StateView {
	sv := StateView{
		Tick:        g.state.Tick,
		Status:      g.state.Status,
		ArenaRadius: g.state.ArenaRadius,
	}
	for _, s := range g.state.Snakes {
		sv.Snakes = append(sv.Snakes, StateSnakeView{
			ID: s.ID, Name: s.Name, Color: s.Color, Alive: s.Alive,
			Head: PointJSON{X: s.Head.X, Y: s.Head.Y}, Angle: s.Angle, Speed: s.Speed,
			Length: s.SegmentCount, BestLength: s.BestLength,
			Kills: s.Kills, TotalKills: s.TotalKills, Deaths: s.Deaths,
			DeathReason: s.DeathReason, LastAIError: s.LastAIError,
			Submissions: s.Submissions,
		})
	}
	for _, f := range g.state.Food {
		sv.Food = append(sv.Food, FoodViewJSON{X: f.Pos.X, Y: f.Pos.Y, Value: f.Value})
	}
	return sv
}
