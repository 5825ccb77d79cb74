package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/geoff/internal/catalog"
	"github.com/roach88/geoff/internal/examples"
	"github.com/roach88/geoff/internal/ir"
	"github.com/roach88/geoff/internal/layers"
	"github.com/roach88/geoff/internal/plan"
	"github.com/roach88/geoff/internal/querysql"
)

// Defaults applied by New.
const (
	DefaultRetries     = 2
	DefaultCacheSize   = 512
	DefaultParallelism = 4
	DefaultMaxExamples = 10
)

// Response is the answer to a question or a caller-supplied plan.
//
// A successful response carries the compiled statements and their layers.
// A failed one carries the last SQL tried, the error, and its code.
type Response struct {
	ID         string               `json:"id,omitempty"`
	SQL        string               `json:"sql"`
	Statements []querysql.Statement `json:"statements,omitempty"`
	Layers     []layers.Layer       `json:"layers,omitempty"`
	Attempts   int                  `json:"attempts,omitempty"`
	Error      string               `json:"error,omitempty"`
	Code       Code                 `json:"code,omitempty"`
}

// Failed reports whether the response carries an error instead of layers.
func (r *Response) Failed() bool {
	return r.Error != ""
}

// Err returns the response's failure as an *Error, or nil.
func (r *Response) Err() error {
	if !r.Failed() {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Error}
}

// Service orchestrates question answering.
//
// Thread-safety: Service is safe for concurrent use. The compile cache is
// internally locked and every other field is read-only after New.
type Service struct {
	catalog  *catalog.Catalog
	examples *examples.Library
	exec     Executor
	gen      Generator
	history  History
	compiler *querysql.Compiler
	cache    *lru.Cache[string, []querysql.Statement]
	log      *zap.Logger
	clock    Clock
	ids      IDGenerator

	retries     int
	retryDelay  time.Duration
	cacheSize   int
	strict      bool
	parallelism int
	maxExamples int
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator sets the plan generator. Without one, Ask fails with
// CodeUnavailable and only RunPlan works.
func WithGenerator(g Generator) Option {
	return func(s *Service) { s.gen = g }
}

// WithExamples sets the example library used for prompting.
// Default: examples.Default().
func WithExamples(l *examples.Library) Option {
	return func(s *Service) { s.examples = l }
}

// WithHistory records every question asked.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock sets the clock stamping history records.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDs sets the id generator for history records. Default: UUIDv7.
func WithIDs(g IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithRetries sets how many times a failed question is regenerated.
// Zero means a single attempt.
func WithRetries(n int) Option {
	return func(s *Service) { s.retries = n }
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) { s.retryDelay = d }
}

// WithCacheSize sets the compile cache capacity; zero disables caching.
func WithCacheSize(n int) Option {
	return func(s *Service) { s.cacheSize = n }
}

// WithStrict enforces the catalog as an identifier allow-list.
// Default: true.
func WithStrict(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithParallelism caps concurrently executing statements per plan.
func WithParallelism(n int) Option {
	return func(s *Service) { s.parallelism = n }
}

// WithMaxExamples caps the examples included in a prompt.
func WithMaxExamples(n int) Option {
	return func(s *Service) { s.maxExamples = n }
}

// New creates a Service over a catalog and an executor.
func New(cat *catalog.Catalog, exec Executor, opts ...Option) (*Service, error) {
	if cat == nil {
		return nil, errors.New("service: catalog is required")
	}
	if exec == nil {
		return nil, errors.New("service: executor is required")
	}

	s := &Service{
		catalog:     cat,
		exec:        exec,
		log:         zap.NewNop(),
		clock:       systemClock{},
		ids:         UUIDv7{},
		retries:     DefaultRetries,
		cacheSize:   DefaultCacheSize,
		strict:      true,
		parallelism: DefaultParallelism,
		maxExamples: DefaultMaxExamples,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.retries < 0 {
		return nil, fmt.Errorf("service: retries must be >= 0, got %d", s.retries)
	}
	if s.parallelism <= 0 {
		return nil, fmt.Errorf("service: parallelism must be > 0, got %d", s.parallelism)
	}
	if s.examples == nil {
		s.examples = examples.Default()
	}

	var copts []querysql.Option
	if s.strict {
		copts = append(copts, querysql.WithAllowlist(cat))
	}
	s.compiler = querysql.NewCompiler(copts...)

	if s.cacheSize > 0 {
		cache, err := lru.New[string, []querysql.Statement](s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("service: compile cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Catalog returns the catalog the service compiles against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Examples returns the example library.
func (s *Service) Examples() *examples.Library {
	return s.examples
}

// Ping checks that the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.exec.Ping(ctx); err != nil {
		return newError(CodeUnavailable, err)
	}
	return nil
}

// Compile checks raw plan JSON against the plan schema, then parses and
// compiles it, consulting the cache first. Failures are *Error values with
// CodePlanInvalid.
func (s *Service) Compile(raw []byte) ([]querysql.Statement, error) {
	key, err := ir.PlanFingerprint(raw)
	if err != nil {
		return nil, &Error{Code: CodePlanInvalid, Message: "plan is not valid JSON", Err: err}
	}
	if s.cache != nil {
		if stmts, ok := s.cache.Get(key); ok {
			return stmts, nil
		}
	}

	if err := plan.CheckSchema(raw); err != nil {
		return nil, newError(CodePlanInvalid, err)
	}
	p, err := plan.Parse(raw)
	if err != nil {
		return nil, newError(CodePlanInvalid, err)
	}
	stmts, err := s.compiler.Compile(p)
	if err != nil {
		return nil, newError(CodePlanInvalid, err)
	}

	if s.cache != nil {
		s.cache.Add(key, stmts)
	}
	return stmts, nil
}

// Execute runs statements concurrently and converts their results into
// layers in statement order. The first failure cancels the rest.
func (s *Service) Execute(ctx context.Context, stmts []querysql.Statement) ([]layers.Layer, error) {
	results := make([]layerResult, len(stmts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, st := range stmts {
		i, st := i, st
		g.Go(func() error {
			start := time.Now()
			res, err := s.exec.Execute(gctx, st.Query, st.Args)
			if err != nil {
				return err
			}
			s.log.Debug("statement executed",
				zap.String("layer", st.Layer),
				zap.Int("rows", len(res.Rows)),
				zap.Duration("elapsed", time.Since(start)),
			)
			results[i] = layerResult{columns: res.Columns, rows: res.Rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, newError(CodeExecution, err)
	}

	out := []layers.Layer{}
	for i, st := range stmts {
		out = append(out, layers.ConvertResult(st.Layer, results[i].columns, results[i].rows)...)
	}
	return out, nil
}

type layerResult struct {
	columns []string
	rows    [][]any
}

// RunPlan compiles and executes a caller-supplied plan once, without
// generation or retry.
//
// An invalid plan is returned as an error. An execution failure is reported
// in the response, the same way Ask reports exhausted questions.
func (s *Service) RunPlan(ctx context.Context, raw []byte) (*Response, error) {
	stmts, err := s.Compile(raw)
	if err != nil {
		return nil, err
	}
	resp := &Response{SQL: joinSQL(stmts), Statements: stmts, Attempts: 1}

	lays, err := s.Execute(ctx, stmts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.Info("plan execution failed", zap.Error(err))
		resp.Error = causeMessage(err)
		resp.Code = CodeExecution
		return resp, nil
	}
	resp.Layers = lays
	return resp, nil
}

// joinSQL renders statements as one display string, one per line.
func joinSQL(stmts []querysql.Statement) string {
	parts := make([]string, len(stmts))
	for i, st := range stmts {
		parts[i] = st.SQL
	}
	return strings.Join(parts, "\n")
}

// causeMessage returns the message of the error a service *Error wraps, so
// end users see the database or compiler text rather than the code prefix.
func causeMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}
