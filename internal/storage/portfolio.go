package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/propeval/internal/listing"
)

// ErrAlreadyTracked is returned when a listing already has a portfolio entry.
var ErrAlreadyTracked = errors.New("listing already in portfolio")

const portfolioColumns = `id, listing_id, status, purchase_price, actual_reno_cost, actual_sale_price, actual_weekly_rent,
	projected_reno_cost, projected_arv, projected_weekly_rent, projected_roi, notes, created_at, updated_at`

func scanPortfolioEntry(row rowScanner) (*listing.PortfolioEntry, error) {
	var (
		e                    listing.PortfolioEntry
		status               string
		actual               [4]sql.NullFloat64
		projected            [4]sql.NullFloat64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&e.ID, &e.ListingID, &status, &actual[0], &actual[1], &actual[2], &actual[3],
		&projected[0], &projected[1], &projected[2], &projected[3], &e.Notes, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = listing.PortfolioStatus(status)
	e.PurchasePrice = nullFloat(actual[0])
	e.ActualRenoCost = nullFloat(actual[1])
	e.ActualSalePrice = nullFloat(actual[2])
	e.ActualWeeklyRent = nullFloat(actual[3])
	e.ProjectedRenoCost = nullFloat(projected[0])
	e.ProjectedARV = nullFloat(projected[1])
	e.ProjectedWeeklyRent = nullFloat(projected[2])
	e.ProjectedROI = nullFloat(projected[3])
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	e.Compare()
	return &e, nil
}

// CreatePortfolioEntry starts tracking e.ListingID. The projected figures
// are taken from the listing's analysis, when it has one. It returns
// ErrNotFound for an unknown listing and ErrAlreadyTracked for a duplicate.
func (s *Store) CreatePortfolioEntry(ctx context.Context, e *listing.PortfolioEntry) error {
	a, err := s.GetAnalysis(ctx, e.ListingID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("loading analysis for listing %d: %w", e.ListingID, err)
	}
	e.Project(a)
	if e.Status == "" {
		e.Status = listing.PortfolioWatching
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning portfolio transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM listings WHERE id = ?`), e.ListingID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM portfolio WHERE listing_id = ?`), e.ListingID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrAlreadyTracked
	}

	now := time.Now().UTC().Truncate(time.Second)
	stamp := now.Format(time.RFC3339)
	err = tx.QueryRowContext(ctx, s.rebind(`
		INSERT INTO portfolio (listing_id, status, purchase_price, actual_reno_cost, actual_sale_price, actual_weekly_rent,
			projected_reno_cost, projected_arv, projected_weekly_rent, projected_roi, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		e.ListingID, string(e.Status), e.PurchasePrice, e.ActualRenoCost, e.ActualSalePrice, e.ActualWeeklyRent,
		e.ProjectedRenoCost, e.ProjectedARV, e.ProjectedWeeklyRent, e.ProjectedROI, e.Notes, stamp, stamp,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting portfolio entry for listing %d: %w", e.ListingID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing portfolio entry: %w", err)
	}
	e.CreatedAt, e.UpdatedAt = now, now
	e.Compare()
	return nil
}

func (s *Store) GetPortfolioEntry(ctx context.Context, id int64) (*listing.PortfolioEntry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+portfolioColumns+` FROM portfolio WHERE id = ?`), id)
	e, err := scanPortfolioEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListPortfolio returns every entry, most recently updated first.
func (s *Store) ListPortfolio(ctx context.Context) ([]listing.PortfolioEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+portfolioColumns+` FROM portfolio ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []listing.PortfolioEntry{}
	for rows.Next() {
		e, err := scanPortfolioEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// UpdatePortfolioEntry applies u to entry id and returns the result.
func (s *Store) UpdatePortfolioEntry(ctx context.Context, id int64, u listing.PortfolioUpdate) (*listing.PortfolioEntry, error) {
	e, err := s.GetPortfolioEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(e)

	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE portfolio SET status = ?, purchase_price = ?, actual_reno_cost = ?,
		actual_sale_price = ?, actual_weekly_rent = ?, notes = ?, updated_at = ? WHERE id = ?`),
		string(e.Status), e.PurchasePrice, e.ActualRenoCost, e.ActualSalePrice, e.ActualWeeklyRent, e.Notes,
		now.Format(time.RFC3339), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating portfolio entry %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	e.UpdatedAt = now
	e.Compare()
	return e, nil
}

func (s *Store) DeletePortfolioEntry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM portfolio WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
