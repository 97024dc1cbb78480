package repository

import (
	"context"
	"database/sql"
	"errors"
)

// PortfolioRepo reads the portfolios table owned by the catalogue
// service.  The lease service only needs existence checks, display names
// and the all-sites-checked flag.
type PortfolioRepo struct {
	db *sql.DB // shared connection pool
}

// NewPortfolioRepo constructs a PortfolioRepo with the provided DB handle.
func NewPortfolioRepo(db *sql.DB) *PortfolioRepo {
	return &PortfolioRepo{db: db}
}

// Exists reports whether the portfolio exists in the tenant.
func (r *PortfolioRepo) Exists(ctx context.Context, tenantID, portfolioID uint64) (bool, error) {
	const q = "SELECT 1 FROM portfolios WHERE id = ? AND tenant_id = ? LIMIT 1"
	return r.exists(ctx, q, portfolioID, tenantID)
}

// ExistsAnyTenant reports whether the portfolio exists at all.  Used as a
// lenient fallback for rows written before tenant ids were consistent.
func (r *PortfolioRepo) ExistsAnyTenant(ctx context.Context, portfolioID uint64) (bool, error) {
	const q = "SELECT 1 FROM portfolios WHERE id = ? LIMIT 1"
	return r.exists(ctx, q, portfolioID)
}

func (r *PortfolioRepo) exists(ctx context.Context, q string, args ...any) (bool, error) {
	var one int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Name returns the display name of a portfolio in the tenant or
// ErrPortfolioNotFound.
func (r *PortfolioRepo) Name(ctx context.Context, tenantID, portfolioID uint64) (string, error) {
	const q = "SELECT name FROM portfolios WHERE id = ? AND tenant_id = ?"
	var name string
	if err := r.db.QueryRowContext(ctx, q, portfolioID, tenantID).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPortfolioNotFound
		}
		return "", err
	}
	return name, nil
}

// SetAllSitesChecked flips the all_sites_checked flag.  It returns
// ErrPortfolioNotFound when no row in the tenant matches.
func (r *PortfolioRepo) SetAllSitesChecked(ctx context.Context, tenantID, portfolioID uint64, checked bool) error {
	// all_sites_checked is an ENUM('Yes','No') column
	value := "No"
	if checked {
		value = "Yes"
	}
	// Check first: an UPDATE that writes the current value affects 0 rows
	ok, err := r.Exists(ctx, tenantID, portfolioID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPortfolioNotFound
	}
	const q = "UPDATE portfolios SET all_sites_checked = ? WHERE id = ? AND tenant_id = ?"
	_, err = r.db.ExecContext(ctx, q, value, portfolioID, tenantID)
	return err
}
