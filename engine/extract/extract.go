// Package extract derives a CAN network topology from a frozen model: ECUs,
// signals with data types and conversions, channels and frames with their
// senders and receivers.
//
// Extraction runs as a pipeline of stages per system. Missing ECUs or
// signals abort the system with an *ExtractionError; every other problem is
// reported to the configured Sink and the offending element is skipped.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sheetlar/arxml/engine/conversion"
	"github.com/Sheetlar/arxml/engine/model"
	"github.com/Sheetlar/arxml/engine/registry"
	"github.com/Sheetlar/arxml/engine/topology"
	"github.com/Sheetlar/arxml/pkg/fn"
	"github.com/hashicorp/go-multierror"
)

// Stage names used in diagnostics, errors and spans.
const (
	StageFibex    = "fibex"
	StageEcus     = "ecus"
	StageSignals  = "signals"
	StageTopology = "topology"
)

// Extractor extracts systems from models. It is safe for concurrent use.
type Extractor struct {
	log     *slog.Logger
	sink    Sink
	metrics *Metrics
	workers int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for progress messages.
func WithLogger(log *slog.Logger) Option {
	return func(x *Extractor) { x.log = log }
}

// WithSink sets the diagnostics sink. The default logs diagnostics.
func WithSink(s Sink) Option {
	return func(x *Extractor) { x.sink = s }
}

// WithMetrics records extraction metrics.
func WithMetrics(m *Metrics) Option {
	return func(x *Extractor) { x.metrics = m }
}

// WithWorkers bounds how many systems ExtractAll extracts in parallel.
func WithWorkers(n int) Option {
	return func(x *Extractor) { x.workers = n }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{log: slog.Default(), workers: 4}
	for _, o := range opts {
		o(x)
	}
	if x.sink == nil {
		x.sink = LogSink{Log: x.log}
	}
	return x
}

// run is the state of one system extraction.
type run struct {
	x      *Extractor
	model  *model.Model
	system *model.System

	fibex map[model.Kind][]model.Entity

	ecus      *registry.Registry[*topology.Ecu]
	dataTypes *registry.Registry[*topology.DataType]
	frames    *registry.Registry[*topology.CanFrame]
	compus    map[string]conversion.Conversion

	ecuList  []*topology.Ecu
	signals  []*topology.Signal
	byRef    map[string]*topology.Signal
	channels []*topology.CanChannel
}

func (x *Extractor) newRun(m *model.Model, sys *model.System) *run {
	return &run{
		x:         x,
		model:     m,
		system:    sys,
		fibex:     make(map[model.Kind][]model.Entity),
		ecus:      registry.New[*topology.Ecu](),
		dataTypes: registry.New[*topology.DataType](),
		frames:    registry.New[*topology.CanFrame](),
		compus:    make(map[string]conversion.Conversion),
		byRef:     make(map[string]*topology.Signal),
	}
}

func (r *run) report(ctx context.Context, level slog.Level, stage, ref, format string, args ...any) {
	d := Diagnostic{
		Level:     level,
		System:    r.system.Name,
		SystemRef: r.system.Ref(),
		Stage:     stage,
		Ref:       ref,
		Message:   fmt.Sprintf(format, args...),
	}
	r.x.metrics.diagnostic(d)
	r.x.sink.Report(ctx, d)
}

func (r *run) warn(ctx context.Context, stage, ref, format string, args ...any) {
	r.report(ctx, slog.LevelWarn, stage, ref, format, args...)
}

func (r *run) fail(stage string, err error) fn.Result[*run] {
	return fn.Err[*run](NewExtractionError(r.system.Name, stage, err))
}

// pipeline runs the extraction stages in order, each in its own span.
func (x *Extractor) pipeline() fn.Stage[*run, *run] {
	return fn.Pipeline(
		fn.TracedStage[*run, *run]("extract.fibex", collectFibex),
		fn.TracedStage[*run, *run]("extract.ecus", extractEcus),
		fn.TracedStage[*run, *run]("extract.signals", extractSignals),
		fn.TracedStage[*run, *run]("extract.topology", extractTopology),
	)
}

// Extract derives the topology of one system of m.
func (x *Extractor) Extract(ctx context.Context, m *model.Model, sys *model.System) (*topology.System, error) {
	start := time.Now()
	r, err := x.pipeline()(ctx, x.newRun(m, sys)).Unwrap()
	x.metrics.system(err, start)
	if err != nil {
		return nil, err
	}
	x.log.Debug("system extracted",
		"system", sys.Name,
		"ecus", len(r.ecuList),
		"signals", len(r.signals),
		"channels", len(r.channels),
		"duration", time.Since(start))
	return topology.NewSystem(sys.Ref(), sys.Name, r.ecuList, r.signals, r.channels), nil
}

// ExtractAll extracts every system of m in parallel. Systems that fail are
// left out of the result and their errors are aggregated.
func (x *Extractor) ExtractAll(ctx context.Context, m *model.Model) ([]*topology.System, error) {
	results := fn.ParMapResult(m.Systems(), x.workers, func(sys *model.System) fn.Result[*topology.System] {
		out, err := x.Extract(ctx, m, sys)
		return fn.FromPair(out, err)
	})

	var out []*topology.System
	var errs *multierror.Error
	for _, res := range results {
		sys, err := res.Unwrap()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		out = append(out, sys)
	}
	return out, errs.ErrorOrNil()
}

// collectFibex resolves the system's fibex element references and groups
// them by kind.
func collectFibex(ctx context.Context, r *run) fn.Result[*run] {
	for _, ref := range fn.Unique(r.system.FibexElementRefs) {
		e, ok := r.model.Resolve(ref)
		if !ok {
			r.warn(ctx, StageFibex, ref, "cannot find fibex element")
			continue
		}
		r.fibex[e.Kind()] = append(r.fibex[e.Kind()], e)
	}
	return fn.Ok(r)
}

func extractEcus(_ context.Context, r *run) fn.Result[*run] {
	instances := r.fibex[model.KindEcuInstance]
	if len(instances) == 0 {
		return r.fail(StageEcus, ErrNoEcus)
	}
	for _, e := range instances {
		inst := e.(*model.EcuInstance)
		ecu, _, created := r.ecus.GetOrCreate(inst.Ref(), func(registry.Handle) *topology.Ecu {
			return &topology.Ecu{Ref: inst.Ref(), Name: inst.Name, DiagnosticAddress: inst.DiagnosticAddress}
		})
		if created {
			r.ecuList = append(r.ecuList, ecu)
		}
	}
	return fn.Ok(r)
}
