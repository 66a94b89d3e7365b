// Command ecsched runs a particle simulation on the scheduler: it loads the
// config and the declaration table, prints the plan and ticks until
// interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/oriumgames/ecsched"
	"github.com/oriumgames/ecsched/costdb"
	"github.com/oriumgames/ecsched/internal/config"
	"github.com/oriumgames/ecsched/luasys"
	"github.com/oriumgames/ecsched/natsreport"
	"github.com/oriumgames/ecsched/store"
	"github.com/oriumgames/ecsched/table"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ecsched: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", config.Path("config/ecsched.toml"), "path to the TOML config")
	maxTicks := flag.Uint64("ticks", 0, "stop after this many ticks (0 = until interrupted)")
	planOnly := flag.Bool("plan", false, "print the execution plan and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return err
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc := newScene()

	opts := []ecsched.Option{
		ecsched.WithLogger(log),
		ecsched.WithWorkers(cfg.Scheduler.Workers),
		ecsched.WithTickRate(cfg.Scheduler.TickRate),
		ecsched.WithWorld(sc.world),
		ecsched.WithTickHook(func(r *ecsched.TickReport) {
			if *maxTicks > 0 && r.Tick >= *maxTicks {
				stop()
			}
		}),
	}
	if cfg.Scheduler.AdaptiveCosts {
		opts = append(opts, ecsched.WithAdaptiveCosts(cfg.Scheduler.CostSmoothing))
	}

	if cfg.Report.NatsURL != "" {
		rep, err := natsreport.Connect(cfg.Report.NatsURL, cfg.Report.Subject, log)
		if err != nil {
			return err
		}
		defer rep.Close()
		opts = append(opts, ecsched.WithFailureHook(rep.Report))
		log.Info("reporting failures", zap.String("url", cfg.Report.NatsURL), zap.String("subject", cfg.Report.Subject))
	}

	builder := ecsched.NewBuilder().
		Option(opts...).
		Bundle(sc.bundle().Build())

	var scripts []*luasys.System
	defer func() {
		for _, s := range scripts {
			s.Close()
		}
	}()
	if cfg.Table.Path != "" {
		tab, err := table.Load(cfg.Table.Path)
		if err != nil {
			return err
		}
		binder := table.Chain(
			sc.hooks(),
			luasys.Binder(func(s *luasys.System) { scripts = append(scripts, s) }, luasys.WithLogger(log)),
		)
		b, err := tab.Bundle("table", binder)
		if err != nil {
			return err
		}
		builder.Bundle(b.Build())
		log.Info("loaded systems table", zap.String("path", cfg.Table.Path), zap.Int("systems", tab.Len()))
	}

	mngr, err := builder.Build()
	if err != nil {
		return err
	}
	defer mngr.Close()

	// The flush system follows everything else, so it is registered last.
	snap := mngr.Registry().Snapshot()
	ids := make([]ecsched.SystemID, 0, snap.Len())
	for _, d := range snap.Declarations() {
		ids = append(ids, d.ID)
	}
	if err := mngr.Register(store.FlushDeclaration(sc.world, "flush", ids...)); err != nil {
		return err
	}

	var costs *costdb.Store
	profile, _ := os.Hostname()
	if cfg.Costs.Enabled && mngr.Costs() != nil {
		costs, err = costdb.Open(ctx, cfg.Costs.DSN, log)
		if err != nil {
			return err
		}
		defer costs.Close()
		if err := costs.Migrate(ctx); err != nil {
			return err
		}
		if _, err := costs.Seed(ctx, profile, mngr.Costs()); err != nil {
			return err
		}
	}

	plan, err := mngr.Replan()
	if err != nil {
		return err
	}
	fmt.Printf("plan %s (%d systems)\n%s", plan.ID, plan.Len(), plan)
	if *planOnly {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mngr.Start()
		<-gctx.Done()
		mngr.Stop()
		return nil
	})
	if mngr.Costs() != nil {
		g.Go(func() error {
			return replanLoop(gctx, mngr, 10*time.Second, log)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("stopped",
		zap.Uint64("ticks", mngr.TickNumber()),
		zap.Int("entities", sc.world.Len()),
	)

	if costs != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := costs.Save(saveCtx, profile, mngr.Costs()); err != nil {
			return err
		}
	}
	return nil
}

// replanLoop rebuilds the plan periodically so measured costs reach the
// worker hints.
func replanLoop(ctx context.Context, mngr *ecsched.Manager, every time.Duration, log *zap.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			plan, err := mngr.Replan()
			if err != nil {
				return err
			}
			log.Debug("replanned with measured costs", zap.String("plan", plan.ID.String()))
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
