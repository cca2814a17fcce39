// Command arenad runs a snake arena server: the tick scheduler, the
// sandboxed AI pool, and the HTTP/WebSocket facade in one process.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"snakearena.dev/arena/engine"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "arenad",
		Short: "Real-time multi-agent snake arena server",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		addr           string
		configFile     string
		dataFile       string
		tickRateMs     int
		arenaRadius    float64
		snakeSpeed     float64
		maxTurnRate    float64
		respawnOnDeath bool
		respawnDelayMs int
		aiTimeoutMs    int
		tournament     bool
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the arena server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)
			engine.Version = version

			cfg := engine.DefaultConfig()
			if configFile != "" {
				data, err := os.ReadFile(configFile)
				if err != nil {
					return fmt.Errorf("read config file: %w", err)
				}
				if err := json.Unmarshal(data, &cfg); err != nil {
					return fmt.Errorf("parse config file: %w", err)
				}
				log.Info().Str("path", configFile).Msg("loaded config file")
			}

			applyFlagOverrides(&cfg, cmd.Flags(), tickRateMs, arenaRadius, snakeSpeed, maxTurnRate, respawnOnDeath, respawnDelayMs, aiTimeoutMs)

			log.Info().
				Float64("arenaRadius", cfg.ArenaRadius).
				Int("tickRateMs", cfg.TickRateMs).
				Float64("snakeSpeed", cfg.SnakeSpeed).
				Bool("respawnOnDeath", cfg.RespawnOnDeath).
				Msg("resolved configuration")

			game := engine.NewGame(cfg, dataFile, log)
			if tournament {
				game.SetTournamentMode(true)
			}

			rt, err := engine.NewRuntime(game, log)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := rt.Start(addr); err != nil {
				return fmt.Errorf("start server: %w", err)
			}

			<-ctx.Done()
			log.Info().Msg("shutdown signal received")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return rt.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0:8080", "listen address")
	cmd.Flags().StringVar(&configFile, "config", "", "path to JSON config file")
	cmd.Flags().StringVar(&dataFile, "data-file", "data/arena.json", "path to the persistence blob (empty disables persistence)")
	cmd.Flags().IntVar(&tickRateMs, "tick-rate-ms", 0, "tick interval in milliseconds (default 50)")
	cmd.Flags().Float64Var(&arenaRadius, "arena-radius", 0, "arena radius (default 2000)")
	cmd.Flags().Float64Var(&snakeSpeed, "snake-speed", 0, "snake speed in units/tick (default 4)")
	cmd.Flags().Float64Var(&maxTurnRate, "max-turn-rate", 0, "max radians turned per tick (default 0.25)")
	cmd.Flags().BoolVar(&respawnOnDeath, "respawn-on-death", true, "respawn snakes automatically after death")
	cmd.Flags().IntVar(&respawnDelayMs, "respawn-delay-ms", 0, "delay before respawn in milliseconds (default 3000)")
	cmd.Flags().IntVar(&aiTimeoutMs, "ai-timeout-ms", 0, "AI execution wall-clock timeout in milliseconds (default 50)")
	cmd.Flags().BoolVar(&tournament, "tournament", false, "enable tournament mode (last snake alive wins, no auto-respawn win check)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	return cmd
}

// applyFlagOverrides mirrors the teacher's defaults -> config file ->
// CLI override precedence, but keys off whether the flag was actually
// set rather than "non-zero value" so a deliberate zero (e.g.
// --respawn-delay-ms 0) is honored.
func applyFlagOverrides(cfg *engine.GameConfig, flags *pflag.FlagSet, tickRateMs int, arenaRadius, snakeSpeed, maxTurnRate float64, respawnOnDeath bool, respawnDelayMs, aiTimeoutMs int) {
	if flags.Changed("tick-rate-ms") {
		cfg.TickRateMs = tickRateMs
	}
	if flags.Changed("arena-radius") {
		cfg.ArenaRadius = arenaRadius
	}
	if flags.Changed("snake-speed") {
		cfg.SnakeSpeed = snakeSpeed
	}
	if flags.Changed("max-turn-rate") {
		cfg.MaxTurnRate = maxTurnRate
	}
	if flags.Changed("respawn-on-death") {
		cfg.RespawnOnDeath = respawnOnDeath
	}
	if flags.Changed("respawn-delay-ms") {
		cfg.RespawnDelayMs = respawnDelayMs
	}
	if flags.Changed("ai-timeout-ms") {
		cfg.AITimeoutMs = aiTimeoutMs
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}
