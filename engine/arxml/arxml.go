// Package arxml reads AUTOSAR XML system descriptions into a model session.
//
// Only the element kinds needed for CAN topology and signal conversion are
// decoded; every other element is skipped. References are taken verbatim
// from the *-REF elements and resolved later against the frozen model.
package arxml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Sheetlar/arxml/engine/model"
	"github.com/Sheetlar/arxml/pkg/fn"
	"github.com/antchfx/xmlquery"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotAutosar is returned for documents without an AUTOSAR root element.
var ErrNotAutosar = errors.New("not an AUTOSAR document")

var errIdentifierRange = errors.New("CAN identifier exceeds 29 bits")

// ParseError locates a value that could not be decoded.
type ParseError struct {
	File  string
	Ref   string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %s: %v", e.File, e.Ref, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reader decodes ARXML documents.
type Reader struct {
	log     *slog.Logger
	strict  bool
	workers int
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger for skipped elements and malformed values.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reader) { r.log = log }
}

// WithStrict makes malformed values fail the read instead of being logged.
func WithStrict(strict bool) Option {
	return func(r *Reader) { r.strict = strict }
}

// WithWorkers bounds how many files Load parses in parallel.
func WithWorkers(n int) Option {
	return func(r *Reader) { r.workers = n }
}

// New creates a Reader.
func New(opts ...Option) *Reader {
	r := &Reader{log: slog.Default(), workers: 4}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Read decodes one document into s. name identifies the document in errors.
func (r *Reader) Read(ctx context.Context, name string, src io.Reader, s *model.Session) error {
	doc, err := xmlquery.Parse(src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return r.decode(ctx, name, doc, s)
}

// ReadFile decodes the document at path into s.
func (r *Reader) ReadFile(ctx context.Context, path string, s *model.Session) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.Read(ctx, path, f, s)
}

type parsed struct {
	path string
	doc  *xmlquery.Node
}

// Load reads every file into one session and freezes it. Files are parsed in
// parallel and decoded in the order given, so the model does not depend on
// scheduling.
func (r *Reader) Load(ctx context.Context, paths ...string) (*model.Model, error) {
	ctx, span := otel.Tracer("engine/arxml").Start(ctx, "arxml.load")
	defer span.End()
	span.SetAttributes(attribute.Int("arxml.files", len(paths)))

	docs := fn.ParMapResult(paths, r.workers, func(path string) fn.Result[parsed] {
		f, err := os.Open(path)
		if err != nil {
			return fn.Err[parsed](err)
		}
		defer f.Close()
		doc, err := xmlquery.Parse(f)
		if err != nil {
			return fn.Err[parsed](fmt.Errorf("parse %s: %w", path, err))
		}
		return fn.Ok(parsed{path: path, doc: doc})
	})
	all, err := fn.Collect(docs).Unwrap()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s := model.NewSession(r.log)
	var errs *multierror.Error
	for _, p := range all {
		if err := r.decode(ctx, p.path, p.doc, s); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	m := s.Freeze()
	span.SetAttributes(attribute.Int("arxml.entities", m.Len()))
	r.log.Info("arxml loaded", "files", len(paths), "entities", m.Len(), "diverged", s.Diverged())
	return m, nil
}

func (r *Reader) decode(ctx context.Context, name string, doc *xmlquery.Node, s *model.Session) error {
	root := child(doc, "AUTOSAR")
	if root == nil {
		return fmt.Errorf("%s: %w", name, ErrNotAutosar)
	}
	d := &decoder{r: r, s: s, file: name}
	for pkg := range children(child(root, "AR-PACKAGES"), "AR-PACKAGE") {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.pkg(nil, "", pkg)
	}
	if r.strict {
		return d.errs.ErrorOrNil()
	}
	return nil
}
