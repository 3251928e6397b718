package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/config"
	"github.com/vshulcz/dslbridge/pkg/util"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	info := util.BuildInfo{Version: buildVersion, Date: buildDate, Commit: buildCommit}.Resolve()

	cfg, err := config.LoadBridgeConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		info.Print(os.Stderr)
		return
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("dslbridge starting", info.Fields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger, defaultDeps(cfg))
	stop()
	if err != nil {
		logger.Fatal("bridge stopped", zap.Error(err))
	}
	logger.Info("dslbridge stopped")
	_ = logger.Sync()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}
