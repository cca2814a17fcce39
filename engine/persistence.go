package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// persistedSnake is the on-disk shape of one snake's durable fields
// (spec.md §4.6): kinematic/per-life state is deliberately excluded.
type persistedSnake struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Color       string       `json:"color"`
	AIFunction  string       `json:"aiFunction"`
	Submissions []Submission `json:"submissions"`
	TotalKills  int          `json:"totalKills"`
	Deaths      int          `json:"deaths"`
	BestLength  int          `json:"bestLength"`
}

type persistedFood struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
}

type persistedBlob struct {
	Tick   int64             `json:"tick"`
	Status Status            `json:"status"`
	Snakes []persistedSnake  `json:"snakes"`
	Food   []persistedFood   `json:"food"`
}

// persistence coalesces save requests: a mutating event (register,
// submit, death) or a 30-second timer enqueues a save, and concurrent
// enqueues while a write is pending collapse into a single write
// (spec.md §4.6, §5 "at most one pending write at a time").
type persistence struct {
	path string
	log  zerolog.Logger

	mu      sync.Mutex
	pending bool
	dirty   bool
	saveFn  func() persistedBlob
}

func newPersistence(path string, log zerolog.Logger) *persistence {
	return &persistence{path: path, log: log}
}

// save marks the state dirty and, if no write is currently
// in-flight, performs one. Only ever called from the single scheduler
// goroutine, so "in-flight" really means "on this goroutine right
// now" — the pending/dirty pair exists so a save triggered mid-write
// by the 30s timer doesn't recurse, not to guard cross-goroutine
// access.
func (p *persistence) save(blob persistedBlob) {
	p.mu.Lock()
	if p.pending {
		p.dirty = true
		p.mu.Unlock()
		return
	}
	p.pending = true
	p.mu.Unlock()

	p.writeBlob(blob)

	p.mu.Lock()
	p.pending = false
	stillDirty := p.dirty
	p.dirty = false
	p.mu.Unlock()

	if stillDirty {
		p.save(blob)
	}
}

func (p *persistence) writeBlob(blob persistedBlob) {
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		p.log.Error().Err(err).Msg("failed to marshal persistence blob")
		return
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.log.Error().Err(err).Str("dir", dir).Msg("failed to create persistence directory")
		return
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		p.log.Error().Err(err).Msg("failed to write persistence temp file")
		return
	}
	if err := os.Rename(tmp, p.path); err != nil {
		p.log.Error().Err(err).Msg("failed to atomically replace persistence file")
	}
}

func (p *persistence) load() (persistedBlob, bool) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return persistedBlob{}, false
	}
	var blob persistedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		p.log.Error().Err(err).Msg("failed to parse persistence blob, starting fresh")
		return persistedBlob{}, false
	}
	return blob, true
}

func (g *Game) snapshotForPersistence() persistedBlob {
	blob := persistedBlob{Tick: g.state.Tick, Status: g.state.Status}
	for _, s := range g.state.Snakes {
		blob.Snakes = append(blob.Snakes, persistedSnake{
			ID: s.ID, Name: s.Name, Color: s.Color, AIFunction: s.AISource,
			Submissions: s.Submissions, TotalKills: s.TotalKills,
			Deaths: s.Deaths, BestLength: s.BestLength,
		})
	}
	for _, f := range g.state.Food {
		blob.Food = append(blob.Food, persistedFood{X: f.Pos.X, Y: f.Pos.Y, Value: f.Value})
	}
	return blob
}

// enqueueSave is called on every mutating event; it performs a
// synchronous coalesced write on the scheduler goroutine. The 30s
// periodic save in Run's companion ticker calls the same path.
func (g *Game) enqueueSave() {
	if g.persist == nil {
		return
	}
	g.persist.save(g.snapshotForPersistence())
}

// RunPersistenceTimer issues a save every 30 seconds until Stop is
// called; intended to run in its own goroutine alongside Run.
func (g *Game) RunPersistenceTimer() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.enqueue(saveTimerCmd{})
		case <-g.stopCh:
			return
		}
	}
}

type saveTimerCmd struct{}

func (saveTimerCmd) apply(g *Game) { g.enqueueSave() }

// Restore loads the persistence blob (if any) and reconstructs
// registrations per spec.md §4.6: each snake is built with zero
// kinematic state and then respawned via the §4.4 respawn path. Food
// is loaded verbatim; the simulation always starts in `waiting`.
func (g *Game) Restore() {
	if g.persist == nil {
		return
	}
	blob, ok := g.persist.load()
	if !ok {
		return
	}

	for _, ps := range blob.Snakes {
		s := &Snake{
			ID: ps.ID, Name: ps.Name, Color: ps.Color, AISource: ps.AIFunction,
			Submissions: ps.Submissions, TotalKills: ps.TotalKills,
			Deaths: ps.Deaths, BestLength: ps.BestLength,
			Alive: false,
		}
		respawnSnake(s, g.cfg, g.rnd)
		g.state.Snakes[s.ID] = s
		g.state.nameIndex[normalizeName(s.Name)] = s.ID
	}
	for _, pf := range blob.Food {
		g.state.Food = append(g.state.Food, &Food{Pos: Vec2{X: pf.X, Y: pf.Y}, Value: pf.Value, Radius: g.cfg.FoodRadius})
	}
	g.topUpFood()
	g.state.Status = StatusWaiting
	g.log.Info().Int("snakes", len(blob.Snakes)).Int("food", len(blob.Food)).Msg("restored persisted state")
}
