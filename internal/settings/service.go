package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Listener is called with a site ID and its new enabled features after a
// change has been saved.
type Listener func(site string, enabled []string)

// Service holds the current selection and persists changes through a Store.
// It is safe for concurrent use.
type Service struct {
	store    Store
	defaults Selection
	logger   *slog.Logger

	mu  sync.RWMutex
	sel Selection

	listenersMu sync.Mutex
	listeners   map[uint64]Listener
	nextID      uint64
}

// Option configures a Service.
type Option func(*Service)

// WithDefaults sets the selection used when the store has never been saved
// to and by Reset.
// Unknown sites and features are dropped.
func WithDefaults(sel Selection) Option {
	return func(s *Service) {
		s.defaults = sel.Normalize()
	}
}

// WithLogger sets the logger for change events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New loads the selection from store and returns a Service around it. The
// defaults apply only when the store reports ErrNotSaved, so a saved empty
// selection stays empty. Stored entries the catalogue no longer knows are
// dropped with a warning.
func New(ctx context.Context, store Store, opts ...Option) (*Service, error) {
	s := &Service{
		store:     store,
		defaults:  Selection{},
		logger:    slog.Default(),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}

	sel, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotSaved):
		s.sel = s.defaults.Clone()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := sel.Validate(); err != nil {
		s.logger.Warn("dropping stale settings entries", "error", err)
	}
	s.sel = sel.Normalize()
	return s, nil
}

// Enabled returns the enabled features of a site in catalogue order.
func (s *Service) Enabled(site string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sel[site])
}

// IsEnabled reports whether a feature is enabled for a site.
func (s *Service) IsEnabled(site, feature string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.sel[site], feature)
}

// Snapshot returns a copy of the whole selection.
func (s *Service) Snapshot() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel.Clone()
}

// Set enables or disables one feature.
func (s *Service) Set(ctx context.Context, site, feature string, on bool) error {
	if err := validate(site, []string{feature}); err != nil {
		return err
	}
	_, err := s.update(ctx, site, func(current []string) []string {
		next := slices.DeleteFunc(slices.Clone(current), func(id string) bool { return id == feature })
		if on {
			next = append(next, feature)
		}
		return next
	})
	return err
}

// Toggle flips one feature and returns its new state.
func (s *Service) Toggle(ctx context.Context, site, feature string) (bool, error) {
	if err := validate(site, []string{feature}); err != nil {
		return false, err
	}
	next, err := s.update(ctx, site, func(current []string) []string {
		if slices.Contains(current, feature) {
			return slices.DeleteFunc(slices.Clone(current), func(id string) bool { return id == feature })
		}
		return append(slices.Clone(current), feature)
	})
	if err != nil {
		return false, err
	}
	return slices.Contains(next, feature), nil
}

// Replace sets the enabled features of a site to exactly features.
func (s *Service) Replace(ctx context.Context, site string, features []string) error {
	if err := validate(site, features); err != nil {
		return err
	}
	_, err := s.update(ctx, site, func([]string) []string {
		return slices.Clone(features)
	})
	return err
}

// Reset restores the default features of a site.
func (s *Service) Reset(ctx context.Context, site string) error {
	if err := validate(site, nil); err != nil {
		return err
	}
	_, err := s.update(ctx, site, func([]string) []string {
		return slices.Clone(s.defaults[site])
	})
	return err
}

// Subscribe registers fn for change notifications. The returned function
// removes the registration.
func (s *Service) Subscribe(fn Listener) (cancel func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			delete(s.listeners, id)
		})
	}
}

// update applies change to a site's list, saves the result and notifies
// listeners. Nothing is saved or announced when the list is unchanged.
func (s *Service) update(ctx context.Context, site string, change func([]string) []string) ([]string, error) {
	s.mu.Lock()
	current := s.sel[site]
	next := order(site, change(current))
	if slices.Equal(current, next) {
		s.mu.Unlock()
		return next, nil
	}

	candidate := s.sel.Clone()
	if len(next) == 0 {
		delete(candidate, site)
	} else {
		candidate[site] = next
	}
	if err := s.store.Save(ctx, candidate); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.sel = candidate
	s.mu.Unlock()

	s.logger.Debug("settings changed", "site", site, "enabled", next)
	s.notify(site, next)
	return next, nil
}

func (s *Service) notify(site string, enabled []string) {
	s.listenersMu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(site, slices.Clone(enabled))
	}
}
