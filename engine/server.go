package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Version is logged when the server starts; the CLI assigns it from
// its own version string before building the Runtime.
var Version = "dev"

// Runtime wires a Game's tick loop, persistence timer, and HTTP/WS
// surface into one process-lifetime unit (grounded on the teacher's
// own Server.Start/Stop split between background goroutines and a
// blocking listener).
type Runtime struct {
	game       *Game
	httpServer *http.Server
	listener   net.Listener
	log        zerolog.Logger
}

// NewRuntime builds a Runtime around an already-constructed Game.
func NewRuntime(game *Game, log zerolog.Logger) (*Runtime, error) {
	srv, err := NewServer(game)
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}
	return &Runtime{game: game, httpServer: &http.Server{Handler: srv.Handler()}, log: log}, nil
}

func (rt *Runtime) logStartup(addr string) {
	rt.log.Info().Str("version", Version).Str("addr", addr).Msg("arena server starting")
	rt.log.Info().Str("ws", "ws://"+addr+"/ws").Msg("spectator channel")
}

// Start launches the tick loop, the persistence timer, and the HTTP
// listener as background goroutines and returns immediately.
func (rt *Runtime) Start(addr string) error {
	rt.game.Restore()
	go rt.game.Run()
	go rt.game.RunPersistenceTimer()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	rt.listener = ln
	rt.httpServer.Addr = addr
	rt.logStartup(addr)

	go func() {
		if err := rt.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			rt.log.Error().Err(err).Msg("http server exited")
		}
	}()
	return nil
}

// ListenAndServe is the blocking counterpart to Start: it runs the
// HTTP listener on the calling goroutine until the server is shut down.
func (rt *Runtime) ListenAndServe(addr string) error {
	rt.game.Restore()
	go rt.game.Run()
	go rt.game.RunPersistenceTimer()

	rt.httpServer.Addr = addr
	rt.logStartup(addr)
	return rt.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP listener and halts the tick
// loop, flushing a final persistence save. It waits for the scheduler
// goroutine to actually exit before saving: GameState has a single
// writer, and a save issued from this goroutine while a tick is still
// in flight would read it unsynchronized.
func (rt *Runtime) Stop(ctx context.Context) error {
	rt.game.Stop()
	<-rt.game.Done()
	rt.game.enqueueSave()
	if rt.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return rt.httpServer.Shutdown(shutdownCtx)
}
