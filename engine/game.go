package engine

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"snakearena.dev/arena/internal/aipool"
)

// Game is the tick scheduler and simulation kernel (spec.md §2 "THE
// CORE"). It is the exclusive mutator of its GameState; every other
// component reaches it through commands or snapshots.
type Game struct {
	cfg   GameConfig
	state *GameState
	rnd   *rand.Rand
	pool  *aipool.Pool
	log   zerolog.Logger

	commandCh chan command
	stopCh    chan struct{}
	doneCh    chan struct{}

	// tickRunning guards against re-entrant tick execution. Run() is
	// the single caller of tick() so this can never actually trip,
	// but it documents and enforces the invariant spec.md §4.3 names
	// explicitly rather than relying on "there happens to be one
	// caller".
	tickRunning int32

	broadcast *broadcaster
	persist   *persistence

	statsMu sync.Mutex
	stats   runtimeStats
}

type runtimeStats struct {
	startTime      time.Time
	totalJoins     int64
	totalKills     int64
	maxTickMs      float64
	tickDurations  [60]time.Duration
	tickDurIdx     int
}

// NewGame constructs a Game ready to run, with no snakes registered.
// persistPath may be empty, in which case persistence is disabled
// (used by tests that don't want a data/ directory created).
func NewGame(cfg GameConfig, persistPath string, log zerolog.Logger) *Game {
	g := &Game{
		cfg:       cfg,
		state:     newGameState(cfg),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		pool:      aipool.New(64, time.Duration(cfg.AITimeoutMs)*time.Millisecond, log),
		log:       log,
		commandCh: make(chan command, 256),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		broadcast: newBroadcaster(),
	}
	if persistPath != "" {
		g.persist = newPersistence(persistPath, log)
	}
	g.stats.startTime = time.Now()
	for i := 0; i < g.cfg.MinFood; i++ {
		g.state.Food = append(g.state.Food, &Food{
			Pos:    mustSpawnFood(g.cfg.ArenaRadius, g.rnd),
			Value:  1,
			Radius: g.cfg.FoodRadius,
		})
	}
	return g
}

func mustSpawnFood(radius float64, rnd *rand.Rand) Vec2 {
	return spawnFood(radius, rnd)
}

// Run blocks, driving the tick loop until Stop is called. Ticks are
// strictly sequential: if a tick's work (including AI fan-out)
// exceeds tickRateMs, the next tick begins immediately on completion
// instead of overlapping with it (spec.md §4.3, §5) — this differs
// from a plain time.Ticker, which would either overlap receives or
// silently drop ticks under load.
func (g *Game) Run() {
	defer close(g.doneCh)
	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		start := time.Now()
		g.tick()
		elapsed := time.Since(start)
		g.recordTickDuration(elapsed)

		budget := time.Duration(g.cfg.TickRateMs) * time.Millisecond
		if elapsed < budget {
			select {
			case <-time.After(budget - elapsed):
			case <-g.stopCh:
				return
			}
		}
	}
}

// SetTournamentMode toggles win-condition checking (spec.md §4.3's
// tournament-mode variant: last snake alive wins, as opposed to
// respawn-on-death running indefinitely).
func (g *Game) SetTournamentMode(on bool) { g.state.TournamentMode = on }

// Stop halts the tick loop. It clears the pending timer by returning
// from the sleep select above; an in-flight tick always completes.
func (g *Game) Stop() { close(g.stopCh) }

// Done returns a channel closed once Run has returned, so a caller can
// wait for the scheduler goroutine to fully exit before touching
// GameState itself from another goroutine (spec.md §5 "single writer").
func (g *Game) Done() <-chan struct{} { return g.doneCh }

func (g *Game) recordTickDuration(d time.Duration) {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	g.stats.tickDurations[g.stats.tickDurIdx%len(g.stats.tickDurations)] = d
	g.stats.tickDurIdx++
	ms := float64(d.Nanoseconds()) / 1e6
	if ms > g.stats.maxTickMs {
		g.stats.maxTickMs = ms
	}
}

// tick runs one full pipeline pass per spec.md §4.3. Order is
// contractual.
func (g *Game) tick() {
	if !atomic.CompareAndSwapInt32(&g.tickRunning, 0, 1) {
		g.log.Fatal().Msg("tick re-entered while a tick was already running")
	}
	defer atomic.StoreInt32(&g.tickRunning, 0)

	g.drainCommands()

	if g.state.Status != StatusRunning {
		g.broadcastSnapshot()
		return
	}

	g.state.Tick++

	if g.cfg.RespawnOnDeath {
		g.respawnSweep()
	}

	if g.state.aliveCount() == 0 {
		g.broadcastSnapshot()
		return
	}

	results := g.aiFanOut()

	for id, r := range results {
		s := g.state.Snakes[id]
		s.LastAIError = r.Error
		s.HadSteerThis = r.Steered
		if r.TargetAngle != nil {
			s.Angle = turnToward(s.Angle, normalizeAngle(*r.TargetAngle), g.cfg.MaxTurnRate)
		}
	}

	g.moveAll()
	g.rebuildSegmentCaches()
	g.resolveFoodEating()
	deaths := g.resolveCollisions()
	g.processDeaths(deaths)
	g.applyKillCredit(deaths)
	g.topUpFood()

	if g.state.TournamentMode {
		g.checkTournamentWin()
	}

	g.broadcastSnapshot()
}

func (g *Game) respawnSweep() {
	for _, s := range g.state.Snakes {
		if !s.Alive && s.RespawnAt != 0 && s.RespawnAt <= g.state.Tick {
			respawnSnake(s, g.cfg, g.rnd)
			g.log.Info().Str("event", "snake_respawned").Str("name", s.Name).Msg("snake respawned")
			g.broadcastEvent("snake:respawned", map[string]interface{}{"name": s.Name})
		}
	}
}

// aiFanOut builds every alive snake's input from the current
// pre-move state and dispatches them concurrently to the pool,
// joining before returning (spec.md §4.3 step 4, §5's sole
// suspension point per tick).
func (g *Game) aiFanOut() map[string]aipool.Result {
	type job struct {
		id     string
		source string
		input  aipool.State
	}

	var jobs []job
	for id, s := range g.state.Snakes {
		if !s.Alive {
			continue
		}
		jobs = append(jobs, job{id: id, source: s.AISource, input: g.buildAIInput(s)})
	}

	budget := time.Duration(g.cfg.TickRateMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	results := make(map[string]aipool.Result, len(jobs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			r := g.pool.Dispatch(ctx, j.source, j.input)
			mu.Lock()
			results[j.id] = r
			mu.Unlock()
		}(j)
	}
	wg.Wait()
	return results
}

func (g *Game) buildAIInput(self *Snake) aipool.State {
	you := aipool.You{
		ID: self.ID, X: self.Head.X, Y: self.Head.Y,
		Angle: self.Angle, Speed: self.Speed,
		Segments: toPoints(self.visibleSegments(g.cfg)),
		Length:   self.SegmentCount,
	}

	var snakes []aipool.SnakeView
	var foods []aipool.FoodView
	for _, s := range g.state.Snakes {
		snakes = append(snakes, aipool.SnakeView{
			ID: s.ID, Name: s.Name, X: s.Head.X, Y: s.Head.Y,
			Angle:    s.Angle,
			Segments: toPoints(s.visibleSegments(g.cfg)),
			Length:   s.SegmentCount,
			Alive:    s.Alive,
		})
	}
	for _, f := range g.state.Food {
		foods = append(foods, aipool.FoodView{X: f.Pos.X, Y: f.Pos.Y, Value: f.Value})
	}

	return aipool.State{
		You:    you,
		Arena:  aipool.Arena{Radius: g.state.ArenaRadius},
		Snakes: snakes,
		Food:   foods,
		Tick:   g.state.Tick,
	}
}

func toPoints(vs []Vec2) []aipool.Point {
	out := make([]aipool.Point, len(vs))
	for i, v := range vs {
		out[i] = aipool.Point{X: v.X, Y: v.Y}
	}
	return out
}

// visibleSegments reconstructs this tick's segment centers. Callers
// within the pipeline should prefer s.segCache once step 7 has run;
// this method exists for building AI input from pre-move state, where
// the cache has not been rebuilt yet for the new head position.
func (s *Snake) visibleSegments(cfg GameConfig) []Vec2 {
	return segmentPositions(s.Trail, s.SegmentCount, cfg.SegmentSpacing)
}

func (g *Game) moveAll() {
	for _, s := range g.state.Snakes {
		if !s.Alive {
			continue
		}
		newHead := Vec2{
			X: s.Head.X + math.Cos(s.Angle)*s.Speed,
			Y: s.Head.Y + math.Sin(s.Angle)*s.Speed,
		}
		s.Head = newHead
		s.Trail = append([]Vec2{newHead}, s.Trail...)
		s.Trail = pruneTrail(s.Trail, s.SegmentCount, g.cfg.TrailSlack, g.cfg.SegmentSpacing)
	}
}

func (g *Game) rebuildSegmentCaches() {
	for _, s := range g.state.Snakes {
		if !s.Alive {
			s.segCache = nil
			continue
		}
		s.segCache = segmentPositions(s.Trail, s.SegmentCount, g.cfg.SegmentSpacing)
	}
}

func (g *Game) resolveFoodEating() {
	eatRadius := g.cfg.SnakeRadius + g.cfg.FoodRadius
	eatRadiusSq := eatRadius * eatRadius
	eaten := make(map[int]bool)

	for _, s := range g.state.Snakes {
		if !s.Alive {
			continue
		}
		for i, f := range g.state.Food {
			if eaten[i] {
				continue
			}
			if distSq(s.Head, f.Pos) < eatRadiusSq {
				eaten[i] = true
				s.SegmentCount += f.Value
				if s.SegmentCount > s.BestLength {
					s.BestLength = s.SegmentCount
				}
			}
		}
	}

	if len(eaten) == 0 {
		return
	}
	kept := g.state.Food[:0]
	for i, f := range g.state.Food {
		if !eaten[i] {
			kept = append(kept, f)
		}
	}
	g.state.Food = kept
}

type deathRecord struct {
	snake     *Snake
	reason    string
	killerID  string // "" if no credit (boundary or head-on)
}

// resolveCollisions runs the three collision passes against the
// post-move segment cache built in step 7 (spec.md §4.3 step 9).
// There is no self-collision by design.
func (g *Game) resolveCollisions() []deathRecord {
	threshold := 2 * g.cfg.SnakeRadius
	thresholdSq := threshold * threshold

	var alive []*Snake
	for _, s := range g.state.Snakes {
		if s.Alive {
			alive = append(alive, s)
		}
	}
	sort.Slice(alive, func(i, j int) bool { return alive[i].ID < alive[j].ID })

	dead := make(map[string]*deathRecord)

	// Boundary.
	for _, s := range alive {
		if !isInBounds(s.Head.X, s.Head.Y, g.state.ArenaRadius) {
			dead[s.ID] = &deathRecord{snake: s, reason: "boundary"}
		}
	}

	// Head-vs-other-body: pairwise alive x alive, self excluded,
	// opponent's index-0 segment (the head) skipped.
	for _, s := range alive {
		if dead[s.ID] != nil {
			continue
		}
		for _, o := range alive {
			if o == s {
				continue
			}
			for i, seg := range o.segCache {
				if i == 0 {
					continue
				}
				if distSq(s.Head, seg) < thresholdSq {
					dead[s.ID] = &deathRecord{snake: s, reason: "snake:" + o.Name, killerID: o.ID}
					break
				}
			}
			if dead[s.ID] != nil {
				break
			}
		}
	}

	// Head-vs-head: symmetric, no kill credit, skip snakes already
	// dead this tick.
	for i := 0; i < len(alive); i++ {
		a := alive[i]
		if dead[a.ID] != nil {
			continue
		}
		for j := i + 1; j < len(alive); j++ {
			b := alive[j]
			if dead[b.ID] != nil {
				continue
			}
			if distSq(a.Head, b.Head) < thresholdSq {
				dead[a.ID] = &deathRecord{snake: a, reason: "headon:" + b.Name}
				dead[b.ID] = &deathRecord{snake: b, reason: "headon:" + a.Name}
			}
		}
	}

	out := make([]deathRecord, 0, len(dead))
	for _, d := range dead {
		out = append(out, *d)
	}
	return out
}

// processDeaths marks snakes dead, schedules respawn, converts the
// body to corpse food, and clears the trail (spec.md §4.3 step 10).
func (g *Game) processDeaths(deaths []deathRecord) {
	for _, d := range deaths {
		s := d.snake
		s.Alive = false
		s.Deaths++
		s.DiedAtTick = g.state.Tick
		s.DeathReason = d.reason
		if g.cfg.RespawnOnDeath {
			ticks := int64(math.Ceil(float64(g.cfg.RespawnDelayMs) / float64(g.cfg.TickRateMs)))
			s.RespawnAt = g.state.Tick + ticks
		}
		g.log.Info().Str("event", "snake_died").Str("name", s.Name).Str("reason", d.reason).Msg("snake died")
		g.broadcastEvent("snake:died", map[string]interface{}{"name": s.Name, "reason": d.reason})

		g.spawnCorpseFood(s)
		s.Trail = nil
		s.segCache = nil
	}
	if len(deaths) > 0 {
		g.enqueueSave()
	}
}

func (g *Game) spawnCorpseFood(s *Snake) {
	segs := s.segCache
	if len(segs) == 0 {
		return
	}
	count := int(float64(len(segs)) * g.cfg.MaxCorpseFoodFraction)
	if count < 1 {
		count = 1
	}
	step := len(segs) / count
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(segs) && len(g.state.Food) < g.cfg.MaxFood; i += step {
		seg := segs[i]
		g.state.Food = append(g.state.Food, &Food{
			Pos: Vec2{
				X: seg.X + (g.rnd.Float64()*10 - 5),
				Y: seg.Y + (g.rnd.Float64()*10 - 5),
			},
			Value:  3,
			Radius: g.cfg.FoodRadius * 1.5,
		})
	}
}

// applyKillCredit awards a kill only if the killer itself did not die
// this tick (spec.md §4.3 step 11).
func (g *Game) applyKillCredit(deaths []deathRecord) {
	deadThisTick := make(map[string]bool, len(deaths))
	for _, d := range deaths {
		deadThisTick[d.snake.ID] = true
	}
	for _, d := range deaths {
		if d.killerID == "" || deadThisTick[d.killerID] {
			continue
		}
		killer, ok := g.state.Snakes[d.killerID]
		if !ok {
			continue
		}
		killer.Kills++
		killer.TotalKills++
		g.statsMu.Lock()
		g.stats.totalKills++
		g.statsMu.Unlock()
	}
}

// topUpFood maintains len(food) >= min(minFood + 20*len(snakes), maxFood).
// This is a floor applied after corpse food from this step's deaths has
// already been added, per spec.md §9's resolution of the ambiguity
// between the top-up formula and maxFood as the hard ceiling.
func (g *Game) topUpFood() {
	target := g.cfg.MinFood + 20*len(g.state.Snakes)
	if target > g.cfg.MaxFood {
		target = g.cfg.MaxFood
	}
	for len(g.state.Food) < target {
		g.state.Food = append(g.state.Food, &Food{
			Pos:    spawnFood(g.state.ArenaRadius, g.rnd),
			Value:  1,
			Radius: g.cfg.FoodRadius,
		})
	}
}

// AdminStats is the supplemented operator-facing summary surfaced at
// /api/admin/stats: uptime and tick-timing health that isn't part of
// the spectator snapshot but is useful for running an arena in
// production.
type AdminStats struct {
	UptimeSeconds  float64 `json:"uptimeSeconds"`
	Tick           int64   `json:"tick"`
	Status         Status  `json:"status"`
	SnakeCount     int     `json:"snakeCount"`
	AliveCount     int     `json:"aliveCount"`
	SpectatorCount int     `json:"spectatorCount"`
	TotalKills     int64   `json:"totalKills"`
	TotalJoins     int64   `json:"totalJoins"`
	AvgTickMs      float64 `json:"avgTickMs"`
	MaxTickMs      float64 `json:"maxTickMs"`
}

// buildAdminStats must only be called from the scheduler goroutine
// (via adminStatsCmd) for the GameState fields it reads; the stats
// struct itself is guarded separately by statsMu since tick duration
// recording runs on the same goroutine as Run's sleep accounting.
func (g *Game) buildAdminStats() AdminStats {
	g.statsMu.Lock()
	var sum time.Duration
	n := 0
	for _, d := range g.stats.tickDurations {
		if d > 0 {
			sum += d
			n++
		}
	}
	avgMs := 0.0
	if n > 0 {
		avgMs = float64(sum.Nanoseconds()) / float64(n) / 1e6
	}
	stats := AdminStats{
		UptimeSeconds: time.Since(g.stats.startTime).Seconds(),
		TotalKills:    g.stats.totalKills,
		TotalJoins:    g.stats.totalJoins,
		AvgTickMs:     avgMs,
		MaxTickMs:     g.stats.maxTickMs,
	}
	g.statsMu.Unlock()

	stats.Tick = g.state.Tick
	stats.Status = g.state.Status
	stats.SnakeCount = len(g.state.Snakes)
	stats.AliveCount = g.state.aliveCount()
	stats.SpectatorCount = g.broadcast.count()
	return stats
}

func (g *Game) checkTournamentWin() {
	total := len(g.state.Snakes)
	if total < 2 {
		return
	}
	var survivor *Snake
	aliveN := 0
	for _, s := range g.state.Snakes {
		if s.Alive {
			aliveN++
			survivor = s
		}
	}
	if aliveN <= 1 {
		g.state.Status = StatusFinished
		payload := map[string]interface{}{}
		if survivor != nil {
			g.state.WinnerID = survivor.ID
			payload["winnerId"] = survivor.ID
			payload["winnerName"] = survivor.Name
		}
		g.log.Info().Str("event", "game_finished").Interface("winner", payload).Msg("game finished")
		g.broadcastEvent("game:finished", payload)
	}
}
