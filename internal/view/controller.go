package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"

	"github.com/go-pkgz/syncs"
	"github.com/hashicorp/go-multierror"

	"github.com/seantiz/duckview/internal/config"
)

var (
	// ErrNotFound is returned for an unknown or unmounted view id.
	ErrNotFound = errors.New("view not found")

	// ErrUnknownProfile is returned when mounting a profile that does not exist.
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrDatasetURL is returned when a dataset override is not an http(s) URL.
	ErrDatasetURL = errors.New("dataset url must be an absolute http or https url")
)

// Controller owns the mounted views of a process.
type Controller struct {
	profiles map[string]config.Profile
	names    []string
	opener   Opener
	history  History
	broker   *Broker
	logger   *slog.Logger

	mu    sync.RWMutex
	views map[string]*View
}

// ControllerConfig holds the collaborators shared by all views.
type ControllerConfig struct {
	Profiles []config.Profile
	Opener   Opener
	History  History
	Broker   *Broker
	Logger   *slog.Logger
}

// NewController creates a controller with no mounted views.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		profiles: make(map[string]config.Profile, len(cfg.Profiles)),
		opener:   cfg.Opener,
		history:  cfg.History,
		broker:   cfg.Broker,
		logger:   cfg.Logger,
		views:    make(map[string]*View),
	}
	if c.broker == nil {
		c.broker = NewBroker()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	for _, p := range cfg.Profiles {
		if _, ok := c.profiles[p.Name]; !ok {
			c.names = append(c.names, p.Name)
		}
		c.profiles[p.Name] = p
	}
	sort.Strings(c.names)
	return c
}

// Broker returns the broker views publish on.
func (c *Controller) Broker() *Broker { return c.broker }

// Profiles returns the known profiles sorted by name.
func (c *Controller) Profiles() []config.Profile {
	out := make([]config.Profile, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.profiles[n])
	}
	return out
}

// Profile returns the profile with the given name.
func (c *Controller) Profile(name string) (config.Profile, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// Mount creates a view for profile and starts its initialization.
// datasetURL overrides the profile's dataset when non-empty. Overrides are
// limited to http and https; local files and s3 sources come from profiles only.
func (c *Controller) Mount(ctx context.Context, profile, datasetURL string) (*View, error) {
	p, ok := c.profiles[profile]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	if err := checkOverrideURL(datasetURL); err != nil {
		return nil, err
	}

	v := New(Config{
		Profile:    p,
		DatasetURL: datasetURL,
		Opener:     c.opener,
		History:    c.history,
		Broker:     c.broker,
		Logger:     c.logger,
	})

	c.mu.Lock()
	c.views[v.ID()] = v
	c.mu.Unlock()

	if err := v.Mount(ctx); err != nil {
		c.forget(v.ID())
		return nil, err
	}
	return v, nil
}

// Get returns the mounted view with the given id.
func (c *Controller) Get(id string) (*View, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.views[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Execute runs sqlText on the view with the given id.
func (c *Controller) Execute(ctx context.Context, id, sqlText string) (Snapshot, error) {
	v, err := c.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return v.Execute(ctx, sqlText)
}

// Unmount unmounts and forgets the view with the given id.
func (c *Controller) Unmount(id string) error {
	v, err := c.Get(id)
	if err != nil {
		return err
	}
	c.forget(id)
	return v.Unmount()
}

// Len returns the number of mounted views.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.views)
}

// Snapshots returns snapshots of every mounted view, oldest first.
func (c *Controller) Snapshots() []Snapshot {
	c.mu.RLock()
	views := make([]*View, 0, len(c.views))
	for _, v := range c.views {
		views = append(views, v)
	}
	c.mu.RUnlock()

	out := make([]Snapshot, 0, len(views))
	for _, v := range views {
		out = append(out, v.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UnmountAll unmounts every view, a few at a time.
func (c *Controller) UnmountAll(ctx context.Context) error {
	c.mu.Lock()
	views := make([]*View, 0, len(c.views))
	for id, v := range c.views {
		views = append(views, v)
		delete(c.views, id)
	}
	c.mu.Unlock()

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	wg := syncs.NewSizedGroup(4, syncs.Context(ctx))
	for _, v := range views {
		wg.Go(func(context.Context) {
			if err := v.Unmount(); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("unmount %s: %w", v.ID(), err))
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errs.ErrorOrNil()
}

func (c *Controller) forget(id string) {
	c.mu.Lock()
	delete(c.views, id)
	c.mu.Unlock()
}

func checkOverrideURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatasetURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrDatasetURL, raw)
	}
	return nil
}
