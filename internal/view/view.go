package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/seantiz/duckview/internal/config"
	"github.com/seantiz/duckview/internal/dataset"
	"github.com/seantiz/duckview/internal/engine"
	"github.com/seantiz/duckview/internal/model"
)

// Message prefixes shown in the error state.
const (
	initErrorPrefix  = "Error initializing engine: "
	queryErrorPrefix = "Query error: "
)

// Opener starts engine sessions.
type Opener interface {
	Open(ctx context.Context, opts engine.Options) (*engine.Session, error)
}

// History persists view state changes and executed queries.
type History interface {
	CreateView(ctx context.Context, v *model.View) error
	UpdateViewState(ctx context.Context, id, state, errMsg string) error
	SetViewBundle(ctx context.Context, id, bundle string) error
	InsertQuery(ctx context.Context, q *model.QueryRecord) error
}

// Snapshot is an immutable copy of a view's render state.
type Snapshot struct {
	ID         string       `json:"id"`
	Profile    string       `json:"profile"`
	Title      string       `json:"title"`
	Editable   bool         `json:"editable"`
	Bundle     string       `json:"bundle,omitempty"`
	DatasetURL string       `json:"dataset_url"`
	State      string       `json:"state"`
	Message    string       `json:"message,omitempty"`
	Query      string       `json:"query"`
	Columns    []string     `json:"columns"`
	Rows       []engine.Row `json:"rows"`
	Seq        int64        `json:"seq"`
	DurationMS int64        `json:"duration_ms"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// View is one mounted query table view.
type View struct {
	id         string
	profile    config.Profile
	datasetURL string
	opener     Opener
	history    History
	broker     *Broker
	logger     *slog.Logger

	mu       sync.Mutex
	state    string
	message  string
	query    string
	columns  []string
	rows     []engine.Row
	duration time.Duration
	bundle   string
	seq      int64
	applied  int64
	session  *engine.Session
	life     context.Context
	cancel   context.CancelFunc
	created  time.Time
	updated  time.Time

	initialized chan struct{}
}

// Config holds the collaborators of a view.
type Config struct {
	Profile    config.Profile
	DatasetURL string
	Opener     Opener
	History    History
	Broker     *Broker
	Logger     *slog.Logger
}

// New creates an unmounted view. An empty DatasetURL uses the profile's.
func New(cfg Config) *View {
	url := cfg.DatasetURL
	if url == "" {
		url = cfg.Profile.DatasetURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	broker := cfg.Broker
	if broker == nil {
		broker = NewBroker()
	}
	id := model.NewID()
	now := time.Now().UTC()
	return &View{
		id:          id,
		profile:     cfg.Profile,
		datasetURL:  url,
		opener:      cfg.Opener,
		history:     cfg.History,
		broker:      broker,
		logger:      logger.With("view_id", id, "profile", cfg.Profile.Name),
		query:       cfg.Profile.Query,
		columns:     []string{},
		rows:        []engine.Row{},
		created:     now,
		updated:     now,
		initialized: make(chan struct{}),
	}
}

// ID returns the view identifier.
func (v *View) ID() string { return v.id }

// Initialized is closed once initialization has finished, whatever the outcome.
func (v *View) Initialized() <-chan struct{} { return v.initialized }

// Mount enters the initializing state and starts engine initialization in the
// background. It returns once the view is recorded; initialization outlives ctx.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.state != "" {
		v.mu.Unlock()
		return fmt.Errorf("view %s already mounted", v.id)
	}
	v.state = model.StateInitializing
	initCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v.life = initCtx
	v.cancel = cancel
	snap := v.snapshotLocked()
	v.mu.Unlock()

	if v.history != nil {
		err := v.history.CreateView(ctx, &model.View{
			ID:         v.id,
			Profile:    v.profile.Name,
			DatasetURL: v.datasetURL,
			State:      model.StateInitializing,
			CreatedAt:  v.created,
		})
		if err != nil {
			cancel()
			close(v.initialized)
			v.mu.Lock()
			v.state = model.StateUnmounted
			v.mu.Unlock()
			return fmt.Errorf("record view: %w", err)
		}
	}
	v.broker.Publish(snap)

	v.logger.Info("view mounted", "dataset_url", v.datasetURL)
	go v.initialize(initCtx)
	return nil
}

func (v *View) sessionOptions() (engine.Options, error) {
	p := v.profile
	opts := engine.Options{
		DatasetURL: v.datasetURL,
		Format:     p.Format,
		FileName:   p.FileName,
		Schema:     p.Schema,
		Setup:      p.Setup,
	}
	if p.Select != "" {
		opts.Preprocessor = dataset.SelectPath(p.Select)
	}
	if v.opener == nil {
		return opts, errors.New("no engine available")
	}
	return opts, nil
}

func (v *View) initialize(ctx context.Context) {
	defer close(v.initialized)

	opts, err := v.sessionOptions()
	var sess *engine.Session
	if err == nil {
		sess, err = v.opener.Open(ctx, opts)
	}

	v.mu.Lock()
	if v.state != model.StateInitializing {
		// Unmounted while initializing.
		v.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}
		return
	}
	if err != nil {
		v.setLocked(model.StateError, initErrorPrefix+err.Error())
		snap := v.snapshotLocked()
		v.mu.Unlock()

		v.logger.Warn("view initialization failed", "error", err)
		v.record(model.StateError, snap.Message)
		v.broker.Publish(snap)
		return
	}
	v.session = sess
	v.bundle = sess.Info().Bundle
	v.setLocked(model.StateReady, "")
	snap := v.snapshotLocked()
	v.mu.Unlock()

	if v.history != nil {
		if err := v.history.SetViewBundle(ctx, v.id, v.bundle); err != nil {
			v.logger.Warn("record view bundle", "error", err)
		}
	}
	v.record(model.StateReady, "")
	v.broker.Publish(snap)
	v.logger.Info("view ready", "bundle", v.bundle, "session_id", sess.ID())

	if v.profile.AutoRun {
		if _, err := v.Execute(ctx, ""); err != nil {
			v.logger.Warn("auto run failed", "error", err)
		}
	}
}

// Execute runs a query and returns the snapshot after its result is applied.
// It does nothing unless the view holds a session and is ready or loading.
// An empty sqlText, or any sqlText on a non-editable profile, runs the
// profile's query. Only the response to the most recent Execute is applied;
// earlier responses are discarded. Cancelling ctx does not cancel the query;
// Unmount does.
func (v *View) Execute(ctx context.Context, sqlText string) (Snapshot, error) {
	v.mu.Lock()
	if v.session == nil || (v.state != model.StateReady && v.state != model.StateLoading) {
		snap := v.snapshotLocked()
		v.mu.Unlock()
		return snap, nil
	}
	query := strings.TrimSpace(sqlText)
	if query == "" || !v.profile.Editable {
		query = v.profile.Query
	}
	v.seq++
	seq := v.seq
	sess := v.session
	// Queries follow the view's lifetime, not the caller's.
	qctx := v.life
	if qctx == nil {
		qctx = context.WithoutCancel(ctx)
	}
	prev := v.state
	v.query = query
	v.setLocked(model.StateLoading, "")
	snap := v.snapshotLocked()
	v.mu.Unlock()

	if prev != model.StateLoading {
		v.record(model.StateLoading, "")
	}
	v.broker.Publish(snap)

	res, err := sess.ExecuteQuery(qctx, query)

	v.mu.Lock()
	if seq != v.seq || v.state != model.StateLoading {
		snap := v.snapshotLocked()
		v.mu.Unlock()
		v.recordQuery(seq, query, model.QueryStatusDiscarded, res, err)
		return snap, nil
	}
	v.applied = seq
	if err != nil {
		v.setLocked(model.StateError, queryErrorPrefix+err.Error())
	} else {
		v.columns = res.Columns
		v.rows = res.Rows
		v.duration = res.Duration
		v.setLocked(model.StateReady, "")
	}
	snap = v.snapshotLocked()
	v.mu.Unlock()

	status := model.QueryStatusSucceeded
	if err != nil {
		status = model.QueryStatusFailed
		v.logger.Info("query failed", "seq", seq, "error", err)
	}
	v.record(snap.State, snap.Message)
	v.recordQuery(seq, query, status, res, err)
	v.broker.Publish(snap)
	return snap, nil
}

// Unmount releases the session and ends the view. Later calls do nothing.
func (v *View) Unmount() error {
	v.mu.Lock()
	if v.state == model.StateUnmounted || v.state == "" {
		v.mu.Unlock()
		return nil
	}
	v.state = model.StateUnmounted
	v.updated = time.Now().UTC()
	sess := v.session
	v.session = nil
	if v.cancel != nil {
		v.cancel()
	}
	snap := v.snapshotLocked()
	v.mu.Unlock()

	var err error
	if sess != nil {
		err = sess.Close()
	}
	v.record(model.StateUnmounted, "")
	v.broker.Publish(snap)
	v.broker.Close(v.id)
	v.logger.Info("view unmounted")
	return err
}

// Snapshot returns a copy of the current render state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) setLocked(state, message string) {
	v.state = state
	v.message = message
	v.updated = time.Now().UTC()
}

func (v *View) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         v.id,
		Profile:    v.profile.Name,
		Title:      v.profile.Title,
		Editable:   v.profile.Editable,
		Bundle:     v.bundle,
		DatasetURL: v.datasetURL,
		State:      v.state,
		Message:    v.message,
		Query:      v.query,
		Columns:    append([]string{}, v.columns...),
		Rows:       append([]engine.Row{}, v.rows...),
		Seq:        v.applied,
		DurationMS: v.duration.Milliseconds(),
		CreatedAt:  v.created,
		UpdatedAt:  v.updated,
	}
}

func (v *View) record(state, message string) {
	if v.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.history.UpdateViewState(ctx, v.id, state, message); err != nil {
		v.logger.Warn("record view state", "state", state, "error", err)
	}
}

func (v *View) recordQuery(seq int64, query, status string, res engine.Result, qerr error) {
	if v.history == nil {
		return
	}
	q := &model.QueryRecord{
		ID:          model.NewID(),
		ViewID:      v.id,
		Seq:         seq,
		SQL:         query,
		Status:      status,
		RowCount:    len(res.Rows),
		ColumnCount: len(res.Columns),
		DurationMS:  int(res.Duration.Milliseconds()),
		CreatedAt:   time.Now().UTC(),
	}
	if qerr != nil {
		q.Error = qerr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.history.InsertQuery(ctx, q); err != nil {
		v.logger.Warn("record query", "seq", seq, "error", err)
	}
}
