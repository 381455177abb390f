package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/propeval/internal/listing"
)

const listingColumns = `id, listing_id, title, address, full_address, suburb, district, region, geographic_location,
	bedrooms, bathrooms, land_area, floor_area, capital_value, property_type, title_type,
	display_price, asking_price, estimated_market_price, estimated_weekly_rent,
	description, property_url, photos_json, nearby_json, listing_date,
	filter_status, filter_rejection_reason, analysis_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*listing.Listing, error) {
	var (
		l                            listing.Listing
		bedrooms, bathrooms          sql.NullInt64
		landArea, floorArea, asking  sql.NullFloat64
		photosJSON, nearbyJSON       string
		listingDate                  sql.NullString
		filterStatus, analysisStatus string
		createdAt, updatedAt         string
	)
	err := row.Scan(
		&l.ID, &l.ListingID, &l.Title, &l.Address, &l.FullAddress, &l.Suburb, &l.District, &l.Region, &l.GeographicLocation,
		&bedrooms, &bathrooms, &landArea, &floorArea, &l.CapitalValue, &l.PropertyType, &l.TitleType,
		&l.DisplayPrice, &asking, &l.EstimatedMarketPrice, &l.EstimatedWeeklyRent,
		&l.Description, &l.PropertyURL, &photosJSON, &nearbyJSON, &listingDate,
		&filterStatus, &l.FilterRejectionReason, &analysisStatus, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Bedrooms = nullInt(bedrooms)
	l.Bathrooms = nullInt(bathrooms)
	l.LandArea = nullFloat(landArea)
	l.FloorArea = nullFloat(floorArea)
	l.AskingPrice = nullFloat(asking)
	l.FilterStatus = listing.FilterStatus(filterStatus)
	l.AnalysisStatus = listing.AnalysisStatus(analysisStatus)

	if err := json.Unmarshal([]byte(photosJSON), &l.Photos); err != nil {
		return nil, fmt.Errorf("decoding photos for listing %d: %w", l.ID, err)
	}
	if err := json.Unmarshal([]byte(nearbyJSON), &l.NearbyProperties); err != nil {
		return nil, fmt.Errorf("decoding nearby sales for listing %d: %w", l.ID, err)
	}
	if listingDate.Valid && listingDate.String != "" {
		t, err := time.Parse(time.RFC3339, listingDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing listing_date: %w", err)
		}
		l.ListingDate = &t
	}
	if l.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if l.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &l, nil
}

// FactsHash digests everything the importer supplies about a listing. A
// changed hash on re-import means the listing must be analysed again.
func FactsHash(l *listing.Listing) string {
	facts := *l
	facts.ID = 0
	facts.FilterStatus = ""
	facts.FilterRejectionReason = ""
	facts.AnalysisStatus = ""
	facts.CreatedAt = time.Time{}
	facts.UpdatedAt = time.Time{}
	b, _ := json.Marshal(facts)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// UpsertListing inserts a listing keyed by its external listing_id, or
// refreshes the facts of an existing one. A listing whose facts changed is
// reset to pending on both status fields; an identical re-import is a no-op.
// The stored row id is written back to l.ID.
func (s *Store) UpsertListing(ctx context.Context, l *listing.Listing) (UpsertOutcome, error) {
	if strings.TrimSpace(l.ListingID) == "" {
		return "", fmt.Errorf("listing_id is required")
	}
	hash := FactsHash(l)

	photos, err := json.Marshal(nonNil(l.Photos))
	if err != nil {
		return "", fmt.Errorf("encoding photos: %w", err)
	}
	nearby, err := json.Marshal(nonNil(l.NearbyProperties))
	if err != nil {
		return "", fmt.Errorf("encoding nearby sales: %w", err)
	}
	var listingDate sql.NullString
	if l.ListingDate != nil {
		listingDate = sql.NullString{String: l.ListingDate.UTC().Format(time.RFC3339), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	var existingHash string
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT id, facts_hash FROM listings WHERE listing_id = ?`), l.ListingID).Scan(&id, &existingHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = 0
	case err != nil:
		return "", fmt.Errorf("looking up listing %s: %w", l.ListingID, err)
	case existingHash == hash:
		l.ID = id
		return Unchanged, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	facts := []any{
		l.Title, l.Address, l.FullAddress, l.Suburb, l.District, l.Region, l.GeographicLocation,
		l.Bedrooms, l.Bathrooms, l.LandArea, l.FloorArea, l.CapitalValue, l.PropertyType, l.TitleType,
		l.DisplayPrice, l.AskingPrice, l.EstimatedMarketPrice, l.EstimatedWeeklyRent,
		l.Description, l.PropertyURL, string(photos), string(nearby), listingDate, hash,
	}

	outcome := Updated
	if id == 0 {
		outcome = Created
		args := append([]any{l.ListingID}, facts...)
		args = append(args, now, now)
		err = tx.QueryRowContext(ctx, s.rebind(`
			INSERT INTO listings (listing_id, title, address, full_address, suburb, district, region, geographic_location,
				bedrooms, bathrooms, land_area, floor_area, capital_value, property_type, title_type,
				display_price, asking_price, estimated_market_price, estimated_weekly_rent,
				description, property_url, photos_json, nearby_json, listing_date, facts_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`), args...).Scan(&id)
		if err != nil {
			return "", fmt.Errorf("inserting listing %s: %w", l.ListingID, err)
		}
	} else {
		args := append(facts, now, id)
		_, err = tx.ExecContext(ctx, s.rebind(`
			UPDATE listings SET title = ?, address = ?, full_address = ?, suburb = ?, district = ?, region = ?, geographic_location = ?,
				bedrooms = ?, bathrooms = ?, land_area = ?, floor_area = ?, capital_value = ?, property_type = ?, title_type = ?,
				display_price = ?, asking_price = ?, estimated_market_price = ?, estimated_weekly_rent = ?,
				description = ?, property_url = ?, photos_json = ?, nearby_json = ?, listing_date = ?, facts_hash = ?,
				filter_status = 'pending', filter_rejection_reason = '', analysis_status = 'pending', updated_at = ?
			WHERE id = ?`), args...)
		if err != nil {
			return "", fmt.Errorf("updating listing %s: %w", l.ListingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing listing %s: %w", l.ListingID, err)
	}
	l.ID = id
	return outcome, nil
}

// GetListing loads a listing by its row id.
func (s *Store) GetListing(ctx context.Context, id int64) (*listing.Listing, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+listingColumns+` FROM listings WHERE id = ?`), id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// GetListingByExternalID loads a listing by the scraper's listing_id.
func (s *Store) GetListingByExternalID(ctx context.Context, listingID string) (*listing.Listing, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+listingColumns+` FROM listings WHERE listing_id = ?`), listingID)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// ListListings returns listings ordered by id.
func (s *Store) ListListings(ctx context.Context, f ListingFilter) ([]listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings`
	var where []string
	var args []any
	if f.FilterStatus != "" {
		where = append(where, "filter_status = ?")
		args = append(args, string(f.FilterStatus))
	}
	if f.AnalysisStatus != "" {
		where = append(where, "analysis_status = ?")
		args = append(args, string(f.AnalysisStatus))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return s.queryListings(ctx, query, args...)
}

// ListingsForAnalysis returns every listing whose analysis is pending or
// failed, in insertion order.
func (s *Store) ListingsForAnalysis(ctx context.Context) ([]listing.Listing, error) {
	return s.queryListings(ctx, `SELECT `+listingColumns+` FROM listings
		WHERE analysis_status IN ('pending', 'failed') ORDER BY id ASC`)
}

func (s *Store) queryListings(ctx context.Context, query string, args ...any) ([]listing.Listing, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []listing.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *l)
	}
	return results, rows.Err()
}

// SetFilterResult records the hard-filter outcome for a listing.
func (s *Store) SetFilterResult(ctx context.Context, id int64, status listing.FilterStatus, reason string) error {
	return s.updateListing(ctx, `UPDATE listings SET filter_status = ?, filter_rejection_reason = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, time.Now().UTC().Format(time.RFC3339), id)
}

// SetAnalysisStatus moves a listing's analysis_status.
func (s *Store) SetAnalysisStatus(ctx context.Context, id int64, status listing.AnalysisStatus) error {
	return s.updateListing(ctx, `UPDATE listings SET analysis_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339), id)
}

func (s *Store) updateListing(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
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

// ListingStats counts listings by filter and analysis status.
func (s *Store) ListingStats(ctx context.Context) (Stats, error) {
	st := Stats{ByFilter: map[string]int{}, ByAnalysis: map[string]int{}}
	rows, err := s.db.QueryContext(ctx, `SELECT filter_status, analysis_status, COUNT(*) FROM listings GROUP BY filter_status, analysis_status`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var fs, as string
		var n int
		if err := rows.Scan(&fs, &as, &n); err != nil {
			return st, err
		}
		st.Total += n
		st.ByFilter[fs] += n
		st.ByAnalysis[as] += n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE composite_score IS NOT NULL`).Scan(&st.Scored); err != nil {
		return st, err
	}
	return st, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
