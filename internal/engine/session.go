package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/seantiz/duckview/internal/bundle"
	"github.com/seantiz/duckview/internal/dataset"
	"github.com/seantiz/duckview/internal/model"
)

// DefaultFileName is the logical name a dataset is registered under when none is given.
const DefaultFileName = "res.json"

// Options configures Initialize.
type Options struct {
	// Registry and Bundles pick the engine variant: the first name in Bundles
	// whose probe succeeds wins. Empty Bundles means registry order.
	Registry *bundle.Registry
	Bundles  []string

	DatasetURL   string
	Format       string
	FileName     string
	Preprocessor dataset.Preprocessor
	Schema       string

	// Setup statements run once after the dataset is registered.
	Setup []string

	Fetcher      *dataset.Fetcher
	WorkDir      string
	QueryTimeout time.Duration
	Logger       *slog.Logger
}

// Info describes a live session.
type Info struct {
	ID         string    `json:"id"`
	Bundle     string    `json:"bundle"`
	DatasetURL string    `json:"dataset_url"`
	FileName   string    `json:"file_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// job is one unit of work for the session worker.
type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Session is one engine instance owned by a worker goroutine.
type Session struct {
	info         Info
	bundle       bundle.Bundle
	workDir      string
	queryTimeout time.Duration
	logger       *slog.Logger

	db      atomic.Pointer[sql.DB]
	jobs    chan job
	quit    chan struct{}
	stopped chan struct{}

	live      atomic.Bool
	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

// Initialize selects a bundle, starts a worker that opens the engine, fetches
// and prepares the dataset, registers it under its logical file name and runs
// any setup statements. On failure everything started so far is released and
// an *InitError is returned.
func Initialize(ctx context.Context, opts Options) (*Session, error) {
	start := time.Now()
	s, err := initialize(ctx, opts)

	name := "unknown"
	if s != nil {
		name = s.info.Bundle
	}
	var ie *InitError
	switch {
	case err == nil:
		initsTotal.WithLabelValues("ok").Inc()
		initDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	case errors.As(err, &ie):
		initsTotal.WithLabelValues(ie.Stage).Inc()
	}
	return s, err
}

func initialize(ctx context.Context, opts Options) (*Session, error) {
	if opts.Registry == nil {
		return nil, &InitError{Stage: StageBundle, Err: errors.New("no bundle registry")}
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	if opts.Format == "" {
		opts.Format = dataset.FormatJSON
	}
	if opts.Fetcher == nil {
		opts.Fetcher = dataset.NewFetcher(dataset.FetcherConfig{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := bundle.ValidateFileName(opts.FileName); err != nil {
		return nil, &InitError{Stage: StageRegister, Err: err}
	}

	b, err := opts.Registry.Select(ctx, opts.Bundles)
	if err != nil {
		return nil, &InitError{Stage: StageBundle, Err: err}
	}

	workDir, err := os.MkdirTemp(opts.WorkDir, "duckview-session-*")
	if err != nil {
		return nil, &InitError{Stage: StageWorker, Err: fmt.Errorf("create work dir: %w", err)}
	}

	id := model.NewID()
	s := &Session{
		info: Info{
			ID:         id,
			Bundle:     b.Name(),
			DatasetURL: opts.DatasetURL,
			FileName:   opts.FileName,
			CreatedAt:  time.Now().UTC(),
		},
		bundle:       b,
		workDir:      workDir,
		queryTimeout: opts.QueryTimeout,
		logger:       logger.With("session_id", id, "bundle", b.Name()),
		jobs:         make(chan job),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go s.run()

	fail := func(stage string, err error) (*Session, error) {
		if cerr := s.Close(); cerr != nil {
			s.logger.Warn("release after failed init", "error", cerr)
		}
		s.logger.Error("session init failed", "stage", stage, "error", err)
		return nil, &InitError{Stage: stage, Err: err}
	}

	err = s.do(ctx, func(ctx context.Context) error {
		db, err := b.Open(ctx, workDir)
		if err != nil {
			return err
		}
		s.db.Store(db)
		return nil
	})
	if err != nil {
		return fail(StageWorker, err)
	}

	raw, err := opts.Fetcher.Fetch(ctx, opts.DatasetURL)
	if err != nil {
		return fail(StageFetch, err)
	}

	content, err := dataset.Prepare(raw, opts.Format, opts.Preprocessor, opts.Schema)
	if err != nil {
		return fail(StagePrepare, err)
	}

	file := dataset.VirtualFile{Name: opts.FileName, Format: opts.Format, Content: content}
	if err := s.Register(ctx, file); err != nil {
		return fail(StageRegister, err)
	}

	for _, stmt := range opts.Setup {
		if err := s.exec(ctx, stmt); err != nil {
			return fail(StageSetup, err)
		}
	}

	s.logger.Info("session ready", "dataset_url", opts.DatasetURL, "file_name", opts.FileName, "bytes", len(content))
	s.live.Store(true)
	activeSessions.Inc()
	return s, nil
}

// run is the worker loop. It executes jobs one at a time until quit is closed.
func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case j := <-s.jobs:
			j.done <- j.fn(j.ctx)
		case <-s.quit:
			return
		}
	}
}

// do hands fn to the worker and waits for it to finish. Once the worker has
// accepted a job, do waits for completion even if ctx is cancelled, so that
// resources the job holds are released before do returns.
func (s *Session) do(ctx context.Context, fn func(ctx context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case s.jobs <- j:
	case <-s.quit:
		return ErrNoSession
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-j.done
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.info.ID }

// Info describes the session.
func (s *Session) Info() Info { return s.info }

// Register makes f visible to SQL under f.Name, replacing previous content.
func (s *Session) Register(ctx context.Context, f dataset.VirtualFile) error {
	if s == nil {
		return ErrNoSession
	}
	return s.do(ctx, func(ctx context.Context) error {
		db := s.db.Load()
		if db == nil {
			return ErrNoSession
		}
		return s.bundle.Register(ctx, db, s.workDir, f)
	})
}

// exec runs a statement that returns no rows on its own connection.
func (s *Session) exec(ctx context.Context, stmt string) error {
	return s.do(ctx, func(ctx context.Context) error {
		db := s.db.Load()
		if db == nil {
			return ErrNoSession
		}
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("open connection: %w", err)
		}
		defer conn.Close()
		_, err = conn.ExecContext(ctx, stmt)
		return err
	})
}

// ExecuteQuery runs sqlText on a connection opened for this call and closed
// before returning, and converts the result into records. A nil or closed
// session returns ErrNoSession; engine failures are returned as *QueryError.
func (s *Session) ExecuteQuery(ctx context.Context, sqlText string) (Result, error) {
	if s == nil {
		return Result{}, ErrNoSession
	}
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	var res Result
	err := s.do(ctx, func(ctx context.Context) error {
		db := s.db.Load()
		if db == nil {
			return ErrNoSession
		}
		cols, rows, err := runQuery(ctx, db, sqlText)
		if err != nil {
			return err
		}
		res = Result{Columns: cols, Rows: rows}
		return nil
	})
	elapsed := time.Since(start)
	queryDuration.WithLabelValues(s.info.Bundle).Observe(elapsed.Seconds())

	if errors.Is(err, ErrNoSession) {
		return Result{}, ErrNoSession
	}
	if err != nil {
		queriesTotal.WithLabelValues(s.info.Bundle, "failed").Inc()
		s.logger.Debug("query failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return Result{}, &QueryError{SQL: sqlText, Err: err}
	}

	queriesTotal.WithLabelValues(s.info.Bundle, "succeeded").Inc()
	res.Duration = elapsed
	s.logger.Debug("query executed", "rows", len(res.Rows), "duration_ms", elapsed.Milliseconds())
	return res, nil
}

func runQuery(ctx context.Context, db *sql.DB, sqlText string) ([]string, []Row, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// OpenConnections reports how many engine connections are currently open.
func (s *Session) OpenConnections() int {
	if s == nil {
		return 0
	}
	db := s.db.Load()
	if db == nil {
		return 0
	}
	return db.Stats().OpenConnections
}

// Close stops the worker, closes the engine and removes the work directory.
// It is safe to call more than once; later calls return the first result.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.stopped

		var errs *multierror.Error
		if db := s.db.Swap(nil); db != nil {
			if err := db.Close(); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("close engine: %w", err))
			}
		}
		if s.live.Swap(false) {
			activeSessions.Dec()
		}
		if err := os.RemoveAll(s.workDir); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("remove work dir: %w", err))
		}
		s.closeErr = errs.ErrorOrNil()

		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Info("session closed")
	})
	return s.closeErr
}
