// Command arxml-extract reads ARXML files, extracts the CAN topology of every
// system they describe and prints a JSON summary per system. The topology can
// also be exported to Neo4j and the summaries published on NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sheetlar/arxml/engine/arxml"
	"github.com/Sheetlar/arxml/engine/extract"
	"github.com/Sheetlar/arxml/engine/graph"
	"github.com/Sheetlar/arxml/engine/topology"
	"github.com/Sheetlar/arxml/pkg/config"
	"github.com/Sheetlar/arxml/pkg/fn"
	"github.com/Sheetlar/arxml/pkg/metrics"
	"github.com/Sheetlar/arxml/pkg/mid"
	"github.com/Sheetlar/arxml/pkg/natsutil"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] file.arxml...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, flag.Args(), os.Stdout); err != nil {
		log.Error("extraction failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, paths []string, out io.Writer) error {
	if len(paths) == 0 {
		return errors.New("no input files")
	}

	reg := metrics.New()
	if cfg.Metrics.Enabled {
		shutdown := serveMetrics(cfg.Metrics.Addr, reg, log)
		defer shutdown()
	}

	reader := arxml.New(
		arxml.WithLogger(log),
		arxml.WithStrict(cfg.Extract.Strict),
		arxml.WithWorkers(cfg.Extract.Workers),
	)
	m, err := reader.Load(ctx, paths...)
	if err != nil {
		return err
	}

	diags := extract.NewCollector(extract.LogSink{Log: log})
	x := extract.New(
		extract.WithLogger(log),
		extract.WithSink(diags),
		extract.WithMetrics(extract.NewMetrics(reg)),
		extract.WithWorkers(cfg.Extract.Workers),
	)
	systems, extractErr := x.ExtractAll(ctx, m)
	if extractErr != nil && len(systems) == 0 {
		return extractErr
	}

	summaries := make([]topology.Summary, 0, len(systems))
	for _, sys := range systems {
		summaries = append(summaries, topology.Summarize(sys, diags.CountRef(sys.Ref(), slog.LevelWarn)))
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	errs := []error{extractErr}
	if cfg.Neo4j.Enabled {
		errs = append(errs, exportGraph(ctx, cfg.Neo4j, systems, log))
	}
	if cfg.NATS.Enabled {
		errs = append(errs, publish(ctx, cfg.NATS, summaries, log))
	}
	if cfg.Extract.Strict {
		errs = append(errs, diags.Err())
	}
	return errors.Join(errs...)
}

func exportGraph(ctx context.Context, cfg config.Neo4jConfig, systems []*topology.System, log *slog.Logger) error {
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	verified := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[struct{}] {
		return fn.FromPair(struct{}{}, driver.VerifyConnectivity(ctx))
	})
	if _, err := verified.Unwrap(); err != nil {
		return fmt.Errorf("neo4j verify: %w", err)
	}

	store := graph.New(driver, cfg.Database, graph.WithLogger(log))
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	for _, sys := range systems {
		stats, err := store.SaveTopology(ctx, sys)
		if err != nil {
			return err
		}
		log.Debug("graph export", "system", sys.Name(), "nodes", stats.Nodes, "edges", stats.Edges)
	}
	return nil
}

func publish(ctx context.Context, cfg config.NATSConfig, summaries []topology.Summary, log *slog.Logger) error {
	nc, err := natsutil.Connect(cfg.URL, "arxml-extract", log)
	if err != nil {
		return err
	}
	defer nc.Close()

	for _, s := range summaries {
		if err := natsutil.Publish(ctx, nc, cfg.Subject, s); err != nil {
			return fmt.Errorf("publish %s: %w", s.System, err)
		}
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	log.Info("summaries published", "subject", cfg.Subject, "count", len(summaries))
	return nil
}

// serveMetrics starts the metrics endpoint and returns a function stopping it.
func serveMetrics(addr string, reg *metrics.Registry, log *slog.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           mid.Chain(reg.Mux(), mid.Recover(log), mid.Logger(log), mid.Instrument(reg)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("metrics server shutdown", "error", err)
		}
	}
}
