package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/portfolio-lease/internal/model"
)

// IssueRepo persists findings logged against a portfolio hour.
type IssueRepo struct {
	db *sql.DB // shared connection pool
}

// NewIssueRepo returns a new IssueRepo bound to the given database.
func NewIssueRepo(db *sql.DB) *IssueRepo { return &IssueRepo{db: db} }

// Create inserts the issue and populates its ID and CreatedAt.
func (r *IssueRepo) Create(ctx context.Context, is *model.Issue) error {
	const q = `INSERT INTO issues (tenant_id, portfolio_id, hour, author, description) VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, is.TenantID, is.PortfolioID, is.Hour, is.Author, is.Description)
	if err != nil {
		return err
	}
	// AUTO_INCREMENT id assigned by MySQL
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	is.ID = uint64(id)
	// Query back created_at so callers receive the stored value
	const sel = `SELECT created_at FROM issues WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, is.ID).Scan(&is.CreatedAt)
}
