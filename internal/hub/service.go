package hub

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/event"
)

// Service validates and stores config documents and moves active pointers.
type Service struct {
	store     Store
	registry  *configdoc.Registry
	publisher event.Publisher
	versions  *VersionAllocator
	logger    *slog.Logger
}

// NewService creates a hub service. publisher may be nil.
func NewService(log *slog.Logger, store Store, registry *configdoc.Registry, publisher event.Publisher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		registry:  registry,
		publisher: publisher,
		versions:  NewVersionAllocator(),
		logger:    log.With(slog.String("service", "hub")),
	}
}

// Registry exposes the schema registry used by the service.
func (s *Service) Registry() *configdoc.Registry {
	return s.registry
}

// Create validates the body against the schema of its type and stores it.
// Nothing is persisted when validation fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (configdoc.Ref, error) {
	t, err := s.registry.ParseType(req.ConfigType)
	if err != nil {
		return configdoc.Ref{}, err
	}
	version := strings.TrimSpace(req.ConfigVersion)
	if version == "" {
		version = s.versions.Next()
	}
	if err := ValidateVersion(version); err != nil {
		return configdoc.Ref{}, err
	}
	body, err := s.registry.Validate(t, req.ConfigBody)
	if err != nil {
		return configdoc.Ref{}, err
	}
	stored, err := s.store.Insert(ctx, configdoc.Document{Type: t, Version: version, Body: body})
	if err != nil {
		return configdoc.Ref{}, s.mapErr(err, t, version)
	}
	s.logger.Info("config created",
		slog.String("config_type", string(t)),
		slog.String("config_version", stored.Version))
	if s.publisher != nil {
		s.publisher.Publish(event.Event{Type: event.TypeConfigCreated, ConfigType: string(t), Version: stored.Version})
	}
	return configdoc.Ref{Type: t, Version: stored.Version}, nil
}

// Get returns the document at version, or the active document when
// version is empty or ACTIVE.
func (s *Service) Get(ctx context.Context, t configdoc.Type, version string) (configdoc.Document, error) {
	t, err := s.registry.ParseType(string(t))
	if err != nil {
		return configdoc.Document{}, err
	}
	active, err := s.store.Active(ctx, t)
	if err != nil && !errors.Is(err, ErrNoActive) {
		return configdoc.Document{}, s.mapErr(err, t, version)
	}
	version = strings.TrimSpace(version)
	if version == "" || strings.EqualFold(version, configdoc.ActiveVersion) {
		if active == "" {
			return configdoc.Document{}, apperr.New(apperr.KindNoActive, "no active version for %s", t)
		}
		version = active
	}
	doc, err := s.store.Get(ctx, t, version)
	if err != nil {
		return configdoc.Document{}, s.mapErr(err, t, version)
	}
	if _, err := s.registry.Validate(t, doc.Body); err != nil {
		return configdoc.Document{}, apperr.Wrap(apperr.KindInternal, err, "stored %s version %s no longer validates", t, version)
	}
	doc.Active = doc.Version == active
	return doc, nil
}

// List returns every stored version of t, newest first.
func (s *Service) List(ctx context.Context, t configdoc.Type) ([]configdoc.Document, error) {
	t, err := s.registry.ParseType(string(t))
	if err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, t)
	if err != nil {
		return nil, s.mapErr(err, t, "")
	}
	active, err := s.store.Active(ctx, t)
	if err != nil && !errors.Is(err, ErrNoActive) {
		return nil, s.mapErr(err, t, "")
	}
	for i := range docs {
		docs[i].Active = docs[i].Version == active
	}
	return docs, nil
}

// Activate makes version the active version of t and publishes an
// activation event so caches can drop their ACTIVE entry.
func (s *Service) Activate(ctx context.Context, t configdoc.Type, version string) error {
	t, err := s.registry.ParseType(string(t))
	if err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	if err := ValidateVersion(version); err != nil {
		return err
	}
	previous, err := s.store.SetActive(ctx, t, version)
	if err != nil {
		return s.mapErr(err, t, version)
	}
	s.logger.Info("config activated",
		slog.String("config_type", string(t)),
		slog.String("config_version", version),
		slog.String("previous_version", previous))
	if s.publisher != nil {
		s.publisher.Publish(event.Event{Type: event.TypeConfigActivated, ConfigType: string(t), Version: version})
	}
	return nil
}

func (s *Service) mapErr(err error, t configdoc.Type, version string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.New(apperr.KindConfigNotFound, "%s version %s not found", t, version)
	case errors.Is(err, ErrExists):
		return apperr.New(apperr.KindVersionConflict, "%s version %s already exists", t, version)
	case errors.Is(err, ErrNoActive):
		return apperr.New(apperr.KindNoActive, "no active version for %s", t)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTimeout, err, "config store")
	}
	var classified *apperr.Error
	if errors.As(err, &classified) {
		return classified
	}
	s.logger.Error("config store failed", slog.String("config_type", string(t)), slog.Any("error", err))
	return apperr.Wrap(apperr.KindUpstreamUnavailable, err, "config store")
}
