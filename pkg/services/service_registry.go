package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// DefaultServiceCacheTTL bounds how long a cached ServiceConfig lookup is served.
const DefaultServiceCacheTTL = 60 * time.Second

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ServiceRepository is the ServiceConfig persistence behind the registry.
type ServiceRepository interface {
	Create(ctx context.Context, svc *models.ServiceConfig) error
	Get(ctx context.Context, id string) (*models.ServiceConfig, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.ServiceConfig, error)
	List(ctx context.Context, includeInactive bool) ([]*models.ServiceConfig, error)
	Update(ctx context.Context, id string, req models.UpdateServiceRequest) (*models.ServiceConfig, error)
	Deactivate(ctx context.Context, id string) error
}

// ServiceRegistry administers monitored services and serves cached lookups
// by external service ID. Any write drops the cache.
type ServiceRegistry struct {
	repo  ServiceRepository
	cache *ttlcache.Cache[string, *models.ServiceConfig]
}

// NewServiceRegistry creates a new ServiceRegistry.
func NewServiceRegistry(repo ServiceRepository, ttl time.Duration) *ServiceRegistry {
	if repo == nil {
		panic("NewServiceRegistry: repo must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultServiceCacheTTL
	}
	return &ServiceRegistry{
		repo: repo,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, *models.ServiceConfig](ttl),
			ttlcache.WithDisableTouchOnHit[string, *models.ServiceConfig](),
		),
	}
}

// GetByExternalID returns the active service for a pager service ID. Misses
// are not cached, so a newly registered service is visible immediately.
func (r *ServiceRegistry) GetByExternalID(ctx context.Context, externalID string) (*models.ServiceConfig, error) {
	if item := r.cache.Get(externalID); item != nil {
		cp := *item.Value()
		return &cp, nil
	}
	svc, err := r.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	cp := *svc
	r.cache.Set(externalID, &cp, ttlcache.DefaultTTL)
	return svc, nil
}

// CreateService validates and registers a new monitored service.
func (r *ServiceRegistry) CreateService(ctx context.Context, req models.CreateServiceRequest) (*models.ServiceConfig, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	svc := &models.ServiceConfig{
		ID:                uuid.New().String(),
		Name:              req.Name,
		ExternalServiceID: req.ExternalServiceID,
		RepoOwner:         req.RepoOwner,
		RepoName:          req.RepoName,
		DefaultBranch:     req.DefaultBranch,
		ChatChannel:       req.ChatChannel,
		LogSource:         models.LogSource(req.LogSource),
		LogQuery:          req.LogQuery,
		Active:            true,
	}
	if svc.DefaultBranch == "" {
		svc.DefaultBranch = "main"
	}
	if svc.LogSource == "" {
		svc.LogSource = models.LogSourceMock
	}

	if err := r.repo.Create(ctx, svc); err != nil {
		return nil, err
	}
	r.cache.DeleteAll()
	return svc, nil
}

// GetService returns a service by internal ID.
func (r *ServiceRegistry) GetService(ctx context.Context, id string) (*models.ServiceConfig, error) {
	return r.repo.Get(ctx, id)
}

// ListServices returns registered services.
func (r *ServiceRegistry) ListServices(ctx context.Context, includeInactive bool) ([]*models.ServiceConfig, error) {
	return r.repo.List(ctx, includeInactive)
}

// UpdateService applies a partial update.
func (r *ServiceRegistry) UpdateService(ctx context.Context, id string, req models.UpdateServiceRequest) (*models.ServiceConfig, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	svc, err := r.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	r.cache.DeleteAll()
	return svc, nil
}

// DeactivateService stops routing alerts to a service.
func (r *ServiceRegistry) DeactivateService(ctx context.Context, id string) error {
	if err := r.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	r.cache.DeleteAll()
	return nil
}

func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Param() != "" {
			return NewValidationError(fe.Field(), fmt.Sprintf("failed '%s=%s' constraint", fe.Tag(), fe.Param()))
		}
		return NewValidationError(fe.Field(), fmt.Sprintf("failed '%s' constraint", fe.Tag()))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
