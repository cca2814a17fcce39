package aipool

import (
	"context"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"
)

// Pool is a fixed-size set of isolated executor slots that compile and
// run untrusted AI-function source (spec.md §4.2). The pool owns a
// compiled-program cache keyed by exact (scrubbed) source text, shared
// across all slots so resubmitting identical code never recompiles.
type Pool struct {
	size    int
	timeout time.Duration
	sem     chan struct{}
	log     zerolog.Logger

	cacheMu sync.RWMutex
	cache   map[string]*vm.Program
}

// New builds a pool of `size` executor slots (spec.md recommends
// size ≥ max expected concurrent snakes, e.g. 30), each call bounded
// by timeout.
func New(size int, timeout time.Duration, log zerolog.Logger) *Pool {
	return &Pool{
		size:    size,
		timeout: timeout,
		sem:     make(chan struct{}, size),
		cache:   make(map[string]*vm.Program),
		log:     log,
	}
}

func (p *Pool) compile(source string) (*vm.Program, error) {
	scrubbed := scrubSource(source)

	p.cacheMu.RLock()
	prog, ok := p.cache[scrubbed]
	p.cacheMu.RUnlock()
	if ok {
		return prog, nil
	}

	env := map[string]interface{}{"state": State{}}
	for k, v := range helperEnv(0) {
		env[k] = v
	}
	prog, err := expr.Compile(scrubbed, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	p.cache[scrubbed] = prog
	p.cacheMu.Unlock()
	return prog, nil
}

// invalidate drops a program from the cache. Called when an executor
// slot is recycled after a timeout so a subsequent dispatch recompiles
// rather than risk reusing a program whose evaluation is still running
// in an abandoned goroutine against shared cache state.
func (p *Pool) invalidate(scrubbedSource string) {
	p.cacheMu.Lock()
	delete(p.cache, scrubbedSource)
	p.cacheMu.Unlock()
}

// Dispatch runs one AI call. If the pool has no free slot before ctx
// is done, it returns a null steering result without surfacing an
// error — this is the "unserved requests at the tick boundary are
// treated as null steering" backpressure rule (spec.md §4.2, §5).
func (p *Pool) Dispatch(ctx context.Context, source string, state State) Result {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}
	}
	defer func() { <-p.sem }()

	scrubbed := scrubSource(source)
	prog, err := p.compile(source)
	if err != nil {
		return Result{Error: "compile error"}
	}

	env := map[string]interface{}{"state": state}
	for k, v := range helperEnv(state.Arena.Radius) {
		env[k] = v
	}

	resultCh := make(chan interface{}, 1)
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- &panicError{r}
			}
		}()
		out, runErr := expr.Run(prog, env)
		if runErr != nil {
			errCh <- runErr
			return
		}
		resultCh <- out
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case out := <-resultCh:
		return coerceReturn(out, state.You.X, state.You.Y)
	case <-errCh:
		// Crash semantics: the slot returns a generic error and the
		// caller observes targetAngle=null (spec.md §4.2, §7).
		return Result{Error: "AI crashed"}
	case <-timer.C:
		p.invalidate(scrubbed)
		p.log.Warn().Str("event", "ai_timeout").Msg("AI call exceeded deadline, executor recycled")
		return Result{Error: "AI timed out"}
	case <-ctx.Done():
		return Result{Error: "AI timed out"}
	}
}

type panicError struct{ v interface{} }

func (e *panicError) Error() string { return "panic during AI evaluation" }
