package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
)

type TenantRepo struct {
	db *sql.DB
}

func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

func (r *TenantRepo) Create(ctx context.Context, tenant *model.Tenant) error {
	const query = `INSERT INTO tenants (id, name, ctime) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, tenant.ID, tenant.Name, tenant.Ctime)
	return err
}

// Ensure registers the tenant row on first use so foreign keys hold for
// data created under a fresh token.
func (r *TenantRepo) Ensure(ctx context.Context, tenant *model.Tenant) error {
	const query = `INSERT INTO tenants (id, name, ctime) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, tenant.ID, tenant.Name, tenant.Ctime)
	return err
}

func (r *TenantRepo) GetByID(ctx context.Context, tenantID string) (*model.Tenant, error) {
	const query = `SELECT id, name, ctime FROM tenants WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, tenantID)
	var tenant model.Tenant
	if err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}
