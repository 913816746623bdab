package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	flag "github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/wfunc/kruivka/config"
	"github.com/wfunc/kruivka/logger"
	"github.com/wfunc/kruivka/monitor"
	"github.com/wfunc/kruivka/persistence"
	"github.com/wfunc/kruivka/room"
	"github.com/wfunc/kruivka/server"
	"github.com/wfunc/kruivka/state"
)

func timings(g config.GameConfig) state.Timings {
	return state.Timings{
		Discussion:  g.DiscussionTicks,
		BotSpeak:    g.BotSpeakTick,
		BotPass:     g.BotPassTick,
		NightZero:   g.NightZeroTicks,
		Planning:    g.PlanningTicks,
		BotPlan:     g.BotPlanTick,
		Night:       g.NightTicks,
		VoteDelay:   g.VoteDelayTicks,
		VoteGrace:   g.VoteGraceTicks,
		InfoDisplay: g.InfoDisplayTicks,
	}
}

func main() {
	configPath := flag.StringP("config", "c", ".", "directory holding config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.Init(cfg.Log)
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg conc.WaitGroup
	var closers []func() error

	// Initialize Database
	var db persistence.Database
	switch cfg.Database.Driver {
	case "postgres":
		gormDB, err := persistence.NewGormPostgreSQL(cfg.Database.Postgres)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		notifier, err := persistence.NewNotifier(persistence.DSN(cfg.Database.Postgres), gormDB)
		if err != nil {
			logger.Log.Fatalf("Failed to listen on %s: %v", persistence.RoomChannel, err)
		}
		wg.Go(func() { notifier.Run(ctx) })
		closers = append(closers, notifier.Close)
		db = gormDB
		logger.Log.Info("Database connection successful.")
	default:
		db = persistence.NewMemoryStore()
		logger.Log.Info("Using in-memory store.")
	}
	closers = append(closers, db.Close)

	// Initialize Game Server
	opts := room.Options{
		Timings:  timings(cfg.Game),
		DriverID: cfg.Server.DriverID,
		Tick:     time.Second,
	}
	gameServer, err := server.NewGameServer(*cfg, db, opts, monitor.NewMonitor("kruivka"))
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	// Start Server
	wg.Go(func() {
		if err := gameServer.Start(); err != nil {
			logger.Log.Errorf("Server stopped: %v", err)
			stop()
		}
	})

	<-ctx.Done()
	logger.Log.Info("Shutting down.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = gameServer.Shutdown(shutdownCtx)
	wg.Wait()
	for _, c := range closers {
		err = multierr.Append(err, c())
	}
	if err != nil {
		logger.Log.Errorf("Shutdown: %v", err)
	}
}
