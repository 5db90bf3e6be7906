package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"dailysignal/internal/cli"
	"dailysignal/internal/config"
	"dailysignal/internal/model"
	"dailysignal/internal/svc"
	"dailysignal/pkg/calendar"
)

var (
	configFile = flag.String("f", "etc/dailysignal.yaml", "the config file")
	dateFlag   = flag.String("date", "", "target date YYYY-MM-DD (default: today in the market timezone)")
	dryRun     = flag.Bool("dry-run", false, "run every step without persisting writes")
	info       = flag.Bool("info", false, "print the configuration summary and exit")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if *info {
		for _, line := range cli.ConfigSummaryLines(cfg) {
			fmt.Println(line)
		}
		return 0
	}

	logx.MustSetup(cfg.Log)
	logx.DisableStat()
	defer logx.Close()

	target, err := targetDate(*dateFlag, cfg)
	if err != nil {
		logx.Errorf("[main] %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli.LogConfigSummary(cfg)
	sc, err := svc.NewServiceContext(ctx, cfg, svc.WithDryRun(*dryRun))
	if err != nil {
		logx.Errorf("[main] %v", err)
		return 1
	}
	defer sc.Close()

	wf, err := sc.Workflow()
	if err != nil {
		logx.Errorf("[main] %v", err)
		return 1
	}

	logx.Infof("[main] running %s for %s (dry_run=%t store=%s)", cfg.Symbol, target, *dryRun, sc.Store.Driver)
	rep, err := wf.Run(ctx, target)
	for _, line := range cli.ReportLines(rep) {
		fmt.Println(line)
	}
	if err != nil {
		logx.Errorf("[main] run aborted: %v", err)
		return 1
	}
	if !rep.Succeeded() {
		return 1
	}
	return 0
}

// targetDate parses raw or falls back to today in the market timezone.
func targetDate(raw string, cfg *config.Config) (model.Date, error) {
	if raw == "" {
		return calendar.Today(time.Now(), cfg.Location()), nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, fmt.Errorf("invalid --date: %w", err)
	}
	return d, nil
}
