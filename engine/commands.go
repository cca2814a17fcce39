package engine

// Commands are applied synchronously between ticks from the
// scheduler's point of view (spec.md §4.3 "Command application"):
// they mutate GameState outside the pipeline but hold no reference
// into per-tick caches, so applying them can never race a step of the
// pipeline itself.
type command interface {
	apply(g *Game)
}

type registerCmd struct {
	name, aiSource string
	reply          chan registerResult
}

type registerResult struct {
	Snake *Snake
	Err   error
}

func (c registerCmd) apply(g *Game) {
	_, existed := g.state.nameIndex[normalizeName(c.name)]
	s, err := g.state.register(g.cfg, g.rnd, c.name, c.aiSource)
	if err == nil {
		s.Submissions = append(s.Submissions, Submission{Tick: g.state.Tick})
		g.statsMu.Lock()
		g.stats.totalJoins++
		g.statsMu.Unlock()
		g.log.Info().Str("event", "snake_registered").Str("name", s.Name).Str("color", s.Color).Msg("snake registered")
		if !existed {
			g.broadcastEvent("snake:registered", map[string]interface{}{"name": s.Name, "color": s.Color})
		}
		g.enqueueSave()
	}
	if c.reply != nil {
		c.reply <- registerResult{Snake: s, Err: err}
	}
}

type submitCmd struct {
	id, aiSource string
	lineCount    int
	reply        chan registerResult
}

func (c submitCmd) apply(g *Game) {
	s, err := g.state.submit(g.cfg, g.rnd, c.id, c.aiSource)
	if err == nil {
		s.Submissions = append(s.Submissions, Submission{Tick: g.state.Tick, LineCount: c.lineCount})
		g.log.Info().Str("event", "snake_submitted").Str("name", s.Name).Int("submissions", len(s.Submissions)).Msg("AI function submitted")
		g.broadcastEvent("snake:respawned", map[string]interface{}{"name": s.Name})
		g.enqueueSave()
	}
	if c.reply != nil {
		c.reply <- registerResult{Snake: s, Err: err}
	}
}

type removeCmd struct {
	id    string
	reply chan error
}

func (c removeCmd) apply(g *Game) {
	err := g.state.remove(c.id)
	if c.reply != nil {
		c.reply <- err
	}
}

type controlCmd struct {
	action string // "start", "pause", "reset"
	reply  chan error
}

func (c controlCmd) apply(g *Game) {
	var err error
	switch c.action {
	case "start":
		if g.state.Status == StatusWaiting || g.state.Status == StatusPaused {
			g.state.Status = StatusRunning
			g.broadcastEvent("game:started", nil)
		}
	case "pause":
		if g.state.Status == StatusRunning {
			g.state.Status = StatusPaused
			g.broadcastEvent("game:paused", nil)
		}
	case "reset":
		if g.state.Status == StatusFinished || g.state.Status == StatusPaused || g.state.Status == StatusWaiting {
			g.state.reset(g.cfg, g.rnd)
			g.broadcastEvent("game:reset", nil)
		}
	default:
		err = ErrGameNotRunning
	}
	if c.reply != nil {
		c.reply <- err
	}
}

type configCmd struct {
	patch ConfigPatch
	reply chan struct{}
}

func (c configCmd) apply(g *Game) {
	c.patch.Apply(&g.cfg)
	g.state.ArenaRadius = g.cfg.ArenaRadius
	if c.reply != nil {
		c.reply <- struct{}{}
	}
}

type stateReqCmd struct {
	reply chan StateView
}

func (c stateReqCmd) apply(g *Game) {
	c.reply <- g.buildStateView()
}

type adminStatsCmd struct {
	reply chan AdminStats
}

func (c adminStatsCmd) apply(g *Game) {
	c.reply <- g.buildAdminStats()
}

// enqueue pushes a command onto the scheduler's inbox. It never blocks
// the caller on the tick itself — the channel is buffered and drained
// at the top of the next tick (spec.md §5 "Ordering guarantees").
func (g *Game) enqueue(c command) {
	g.commandCh <- c
}

func (g *Game) drainCommands() {
	for {
		select {
		case c := <-g.commandCh:
			c.apply(g)
		default:
			return
		}
	}
}
