package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/iliyamo/portfolio-lease/internal/model"
)

// ReservationRepo provides data access to the reservations table, the
// single source of truth for lease state.  Rows are only ever inserted or
// deleted; there is no update path.  All timestamps are UTC and every
// liveness comparison takes the caller's notion of "now" so that the
// service and reclaimer can run on an injected clock.
type ReservationRepo struct {
	db *sql.DB // shared connection pool
}

// NewReservationRepo returns a new ReservationRepo bound to the provided database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, tenant_id, portfolio_id, hour, holder, session_token, acquired_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var r model.Reservation
	var portfolioID sql.NullInt64
	if err := s.Scan(&r.ID, &r.TenantID, &portfolioID, &r.Hour, &r.Holder, &r.SessionToken, &r.AcquiredAt, &r.ExpiresAt); err != nil {
		return model.Reservation{}, err
	}
	if portfolioID.Valid { // NULL stays 0 and is treated as stale
		r.PortfolioID = uint64(portfolioID.Int64)
	}
	return r, nil
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ReservationRepo) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Insert writes a new reservation.  When the unique key on
// (tenant_id, portfolio_id) rejects the row, ErrDuplicateReservation is
// returned.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	// Zero means no portfolio and is stored as NULL
	var portfolioID any
	if res.PortfolioID != 0 {
		portfolioID = res.PortfolioID
	}
	_, err := r.db.ExecContext(ctx, q,
		res.ID, res.TenantID, portfolioID, res.Hour, res.Holder, res.SessionToken,
		res.AcquiredAt.UTC(), res.ExpiresAt.UTC(),
	)
	if isDuplicate(err) {
		return ErrDuplicateReservation
	}
	return err
}

// FindLiveByPortfolio returns the live reservation on a portfolio or
// ErrReservationNotFound.
func (r *ReservationRepo) FindLiveByPortfolio(ctx context.Context, tenantID, portfolioID uint64, now time.Time) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE tenant_id = ? AND portfolio_id = ? AND expires_at > ?
               LIMIT 1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, tenantID, portfolioID, now.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

// FindLiveByHolder returns every live reservation held by holder in the tenant.
func (r *ReservationRepo) FindLiveByHolder(ctx context.Context, tenantID uint64, holder string, now time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE tenant_id = ? AND holder = ? AND expires_at > ?
               ORDER BY acquired_at`
	return r.query(ctx, q, tenantID, holder, now.UTC())
}

// FindLiveByHolderAndHour returns live reservations held by holder for an
// hour slot regardless of portfolio.
func (r *ReservationRepo) FindLiveByHolderAndHour(ctx context.Context, tenantID uint64, holder string, hour int, now time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE tenant_id = ? AND holder = ? AND hour = ? AND expires_at > ?
               ORDER BY acquired_at`
	return r.query(ctx, q, tenantID, holder, hour, now.UTC())
}

// ListLive returns all live reservations for a tenant ordered by hour.
func (r *ReservationRepo) ListLive(ctx context.Context, tenantID uint64, now time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + `
               FROM reservations
               WHERE tenant_id = ? AND expires_at > ?
               ORDER BY hour, acquired_at`
	return r.query(ctx, q, tenantID, now.UTC())
}

// DeleteByID removes one reservation and reports how many rows went away.
// Zero means somebody else (reclaimer, concurrent release) got there first.
func (r *ReservationRepo) DeleteByID(ctx context.Context, id string) (int64, error) {
	return r.exec(ctx, `DELETE FROM reservations WHERE id = ?`, id)
}

// DeleteExpiredByHolder removes the holder's own expired reservations.
func (r *ReservationRepo) DeleteExpiredByHolder(ctx context.Context, tenantID uint64, holder string, now time.Time) (int64, error) {
	return r.exec(ctx,
		`DELETE FROM reservations WHERE tenant_id = ? AND holder = ? AND expires_at <= ?`,
		tenantID, holder, now.UTC())
}

// DeleteExpiredByPortfolio clears an expired row that would otherwise trip
// the unique key when the portfolio is leased again.
func (r *ReservationRepo) DeleteExpiredByPortfolio(ctx context.Context, tenantID, portfolioID uint64, now time.Time) (int64, error) {
	return r.exec(ctx,
		`DELETE FROM reservations WHERE tenant_id = ? AND portfolio_id = ? AND expires_at <= ?`,
		tenantID, portfolioID, now.UTC())
}

// DeleteLiveByHolder removes every live reservation held by holder in the tenant.
func (r *ReservationRepo) DeleteLiveByHolder(ctx context.Context, tenantID uint64, holder string, now time.Time) (int64, error) {
	return r.exec(ctx,
		`DELETE FROM reservations WHERE tenant_id = ? AND holder = ? AND expires_at > ?`,
		tenantID, holder, now.UTC())
}

// DeleteExpired removes every reservation whose expires_at is before now,
// across all tenants.
func (r *ReservationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM reservations WHERE expires_at < ?`, now.UTC())
}

// DeleteRolledOver removes reservations whose hour slot is not
// currentHour and that were acquired before acquiredBefore, across all
// tenants.
func (r *ReservationRepo) DeleteRolledOver(ctx context.Context, currentHour int, acquiredBefore time.Time) (int64, error) {
	return r.exec(ctx,
		`DELETE FROM reservations WHERE hour <> ? AND acquired_at < ?`,
		currentHour, acquiredBefore.UTC())
}

// NewSessionToken returns a random 64 character hex string used to
// populate the session_token column.
func NewSessionToken() (string, error) {
	return randomToken(32)
}

// randomToken generates a random hexadecimal string of length n*2 bytes
// using crypto/rand.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
