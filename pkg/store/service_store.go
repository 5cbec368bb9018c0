package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/responder/pkg/models"
)

const serviceColumns = `id, name, external_service_id, repo_owner, repo_name, default_branch,
	chat_channel, log_source, log_query, active, created_at, updated_at`

// ServiceStore manages monitored service configurations.
type ServiceStore struct {
	pool *pgxpool.Pool
}

// NewServiceStore creates a new ServiceStore.
func NewServiceStore(pool *pgxpool.Pool) *ServiceStore {
	if pool == nil {
		panic("NewServiceStore: pool must not be nil")
	}
	return &ServiceStore{pool: pool}
}

// Create inserts a service. An external service ID already used by an
// active service yields ErrAlreadyExists.
func (s *ServiceStore) Create(ctx context.Context, svc *models.ServiceConfig) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO services (id, name, external_service_id, repo_owner, repo_name,
			default_branch, chat_channel, log_source, log_query, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		svc.ID, svc.Name, svc.ExternalServiceID, svc.RepoOwner, svc.RepoName,
		svc.DefaultBranch, svc.ChatChannel, svc.LogSource, svc.LogQuery, svc.Active,
	).Scan(&svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("service with external id %s: %w", svc.ExternalServiceID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert service: %w", err)
	}
	return nil
}

// Get returns a service by internal ID, active or not.
func (s *ServiceStore) Get(ctx context.Context, id string) (*models.ServiceConfig, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	svc, err := scanService(row)
	if err != nil {
		return nil, notFound(err)
	}
	return svc, nil
}

// GetByExternalID returns the active service registered for a pager service ID.
func (s *ServiceStore) GetByExternalID(ctx context.Context, externalID string) (*models.ServiceConfig, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+serviceColumns+`
		FROM services WHERE external_service_id = $1 AND active`, externalID)
	svc, err := scanService(row)
	if err != nil {
		return nil, notFound(err)
	}
	return svc, nil
}

// List returns services ordered by name.
func (s *ServiceStore) List(ctx context.Context, includeInactive bool) ([]*models.ServiceConfig, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+serviceColumns+`
		FROM services WHERE active OR $1 ORDER BY name`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := make([]*models.ServiceConfig, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// Update applies the non-nil fields of req.
func (s *ServiceStore) Update(ctx context.Context, id string, req models.UpdateServiceRequest) (*models.ServiceConfig, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE services SET
			name = COALESCE($2, name),
			repo_owner = COALESCE($3, repo_owner),
			repo_name = COALESCE($4, repo_name),
			default_branch = COALESCE($5, default_branch),
			chat_channel = COALESCE($6, chat_channel),
			log_source = COALESCE($7, log_source),
			log_query = COALESCE($8, log_query),
			active = COALESCE($9, active),
			updated_at = now()
		WHERE id = $1
		RETURNING `+serviceColumns,
		id, req.Name, req.RepoOwner, req.RepoName, req.DefaultBranch,
		req.ChatChannel, req.LogSource, req.LogQuery, req.Active)
	svc, err := scanService(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("reactivating service %s: %w", id, ErrAlreadyExists)
		}
		return nil, notFound(err)
	}
	return svc, nil
}

// Deactivate marks a service inactive. Its incidents are kept.
func (s *ServiceStore) Deactivate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE services SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanService(row pgx.Row) (*models.ServiceConfig, error) {
	var svc models.ServiceConfig
	err := row.Scan(
		&svc.ID, &svc.Name, &svc.ExternalServiceID, &svc.RepoOwner, &svc.RepoName, &svc.DefaultBranch,
		&svc.ChatChannel, &svc.LogSource, &svc.LogQuery, &svc.Active, &svc.CreatedAt, &svc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}
