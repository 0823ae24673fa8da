// Command marketlens runs the ingestion-analysis pipeline: the
// scheduler (when enabled), its collectors and analyzers, the safety
// scorer, and the metrics exposition server, all wired through fx.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/marketlens/marketlens/internal/analyzers"
	"github.com/marketlens/marketlens/internal/collectors"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/logging"
	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/marketlens/marketlens/internal/relationships"
	"github.com/marketlens/marketlens/internal/retention"
	"github.com/marketlens/marketlens/internal/scheduler"
	"github.com/marketlens/marketlens/internal/scorer"
	"github.com/marketlens/marketlens/internal/store"
	"github.com/marketlens/marketlens/internal/upstream"
)

const appVersion = "v1.0.0"

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration directory")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("marketlens %s\n", appVersion)
		os.Exit(0)
	}

	app := fx.New(
		fx.Supply(config.Path(*configPath)),
		config.Module,
		logging.Module,
		metrics.Module,
		store.Module,
		upstream.Module,
		collectors.Module,
		relationships.Module,
		analyzers.Module,
		scorer.Module,
		retention.Module,
		scheduler.Module,
	)

	app.Run()
}
