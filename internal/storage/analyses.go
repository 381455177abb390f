package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/propeval/internal/listing"
)

const analysisColumns = `id, listing_id, population_json, demand_json, insurability_json, image_analysis_json, vision_photos_hash,
	renovation_json, timeline_json, arv_json, rental_estimate_json, council_rates_json, subdivision_json, subdivision_input_hash,
	flip_json, rental_json, strategy_json, composite_score, component_scores_json, verdict, score_rank,
	flags_json, next_steps_json, confidence_level, created_at, updated_at`

// analysisDocs lists every JSON sub-document column alongside the field it
// is stored from and decoded into, in column order.
func analysisDocs(a *listing.Analysis) []doc {
	return []doc{
		docFor(&a.Population),
		docFor(&a.DemandProfile),
		docFor(&a.Insurability),
		docFor(&a.ImageAnalysis),
		docFor(&a.Renovation),
		docFor(&a.Timeline),
		docFor(&a.ARV),
		docFor(&a.RentalEstimate),
		docFor(&a.CouncilRates),
		docFor(&a.Subdivision),
		docFor(&a.Flip),
		docFor(&a.Rental),
		docFor(&a.Strategy),
		docFor(&a.ComponentScores),
	}
}

// doc binds one nullable JSON column to a typed pointer field.
type doc struct {
	encode func() (sql.NullString, error)
	decode func(sql.NullString) error
}

func docFor[T any](field **T) doc {
	return doc{
		encode: func() (sql.NullString, error) {
			if *field == nil {
				return sql.NullString{}, nil
			}
			b, err := json.Marshal(*field)
			if err != nil {
				return sql.NullString{}, err
			}
			return sql.NullString{String: string(b), Valid: true}, nil
		},
		decode: func(s sql.NullString) error {
			if !s.Valid || s.String == "" {
				*field = nil
				return nil
			}
			v := new(T)
			if err := json.Unmarshal([]byte(s.String), v); err != nil {
				return err
			}
			*field = v
			return nil
		},
	}
}

func scanAnalysis(row rowScanner) (*listing.Analysis, error) {
	var (
		a                    listing.Analysis
		raw                  [14]sql.NullString
		composite            sql.NullFloat64
		rank                 sql.NullInt64
		verdict              string
		flags, nextSteps     string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&a.ID, &a.ListingID, &raw[0], &raw[1], &raw[2], &raw[3], &a.VisionPhotosHash,
		&raw[4], &raw[5], &raw[6], &raw[7], &raw[8], &raw[9], &a.SubdivisionHash,
		&raw[10], &raw[11], &raw[12], &composite, &raw[13], &verdict, &rank,
		&flags, &nextSteps, &a.ConfidenceLevel, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	for i, d := range analysisDocs(&a) {
		if err := d.decode(raw[i]); err != nil {
			return nil, fmt.Errorf("decoding analysis %d column %d: %w", a.ID, i, err)
		}
	}
	a.CompositeScore = nullFloat(composite)
	a.Rank = nullInt(rank)
	a.Verdict = listing.Verdict(verdict)
	if err := json.Unmarshal([]byte(flags), &a.Flags); err != nil {
		return nil, fmt.Errorf("decoding flags: %w", err)
	}
	if err := json.Unmarshal([]byte(nextSteps), &a.NextSteps); err != nil {
		return nil, fmt.Errorf("decoding next steps: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &a, nil
}

// GetAnalysis loads the analysis for a listing row id.
func (s *Store) GetAnalysis(ctx context.Context, listingID int64) (*listing.Analysis, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+analysisColumns+` FROM analyses WHERE listing_id = ?`), listingID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// SaveAnalysis inserts or replaces the analysis for a.ListingID. The rank
// column belongs to Rerank and is left untouched.
func (s *Store) SaveAnalysis(ctx context.Context, a *listing.Analysis) error {
	if a.ListingID == 0 {
		return fmt.Errorf("analysis has no listing id")
	}
	args := []any{a.ListingID}
	for i, d := range analysisDocs(a) {
		v, err := d.encode()
		if err != nil {
			return fmt.Errorf("encoding analysis column %d: %w", i, err)
		}
		args = append(args, v)
	}
	flags, err := json.Marshal(nonNil(a.Flags))
	if err != nil {
		return fmt.Errorf("encoding flags: %w", err)
	}
	nextSteps, err := json.Marshal(nonNil(a.NextSteps))
	if err != nil {
		return fmt.Errorf("encoding next steps: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	args = append(args,
		a.VisionPhotosHash, a.SubdivisionHash, a.CompositeScore, string(a.Verdict),
		string(flags), string(nextSteps), a.ConfidenceLevel, now, now,
	)

	err = s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO analyses (listing_id, population_json, demand_json, insurability_json, image_analysis_json,
			renovation_json, timeline_json, arv_json, rental_estimate_json, council_rates_json, subdivision_json,
			flip_json, rental_json, strategy_json, component_scores_json,
			vision_photos_hash, subdivision_input_hash, composite_score, verdict,
			flags_json, next_steps_json, confidence_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (listing_id) DO UPDATE SET
			population_json = excluded.population_json,
			demand_json = excluded.demand_json,
			insurability_json = excluded.insurability_json,
			image_analysis_json = excluded.image_analysis_json,
			renovation_json = excluded.renovation_json,
			timeline_json = excluded.timeline_json,
			arv_json = excluded.arv_json,
			rental_estimate_json = excluded.rental_estimate_json,
			council_rates_json = excluded.council_rates_json,
			subdivision_json = excluded.subdivision_json,
			flip_json = excluded.flip_json,
			rental_json = excluded.rental_json,
			strategy_json = excluded.strategy_json,
			component_scores_json = excluded.component_scores_json,
			vision_photos_hash = excluded.vision_photos_hash,
			subdivision_input_hash = excluded.subdivision_input_hash,
			composite_score = excluded.composite_score,
			verdict = excluded.verdict,
			flags_json = excluded.flags_json,
			next_steps_json = excluded.next_steps_json,
			confidence_level = excluded.confidence_level,
			updated_at = excluded.updated_at
		RETURNING id`), args...).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("saving analysis for listing %d: %w", a.ListingID, err)
	}
	return nil
}

// Rerank assigns rank 1..N over every analysis with a composite score,
// highest score first, ties broken by listing insertion order. Analyses
// without a score lose any rank they had. It returns N.
func (s *Store) Rerank(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning rerank transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE analyses SET score_rank = NULL`); err != nil {
		return 0, fmt.Errorf("clearing ranks: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM analyses WHERE composite_score IS NOT NULL
		ORDER BY composite_score DESC, listing_id ASC`)
	if err != nil {
		return 0, fmt.Errorf("selecting scored analyses: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	update := s.rebind(`UPDATE analyses SET score_rank = ? WHERE id = ?`)
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, update, i+1, id); err != nil {
			return 0, fmt.Errorf("ranking analysis %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rerank: %w", err)
	}
	return len(ids), nil
}

// RankedListings returns up to limit ranked listings in rank order.
func (s *Store) RankedListings(ctx context.Context, limit int) ([]Ranked, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT listing_id FROM analyses
		WHERE score_rank IS NOT NULL ORDER BY score_rank ASC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]Ranked, 0, len(ids))
	for _, id := range ids {
		l, err := s.GetListing(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading ranked listing %d: %w", id, err)
		}
		a, err := s.GetAnalysis(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading ranked analysis %d: %w", id, err)
		}
		results = append(results, Ranked{Listing: *l, Analysis: *a})
	}
	return results, nil
}

// DeleteAnalysis removes the analysis for a listing, if any.
func (s *Store) DeleteAnalysis(ctx context.Context, listingID int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM analyses WHERE listing_id = ?`), listingID)
	return err
}

// ClearScore drops the score, verdict and rank of a listing's analysis so a
// listing whose latest run failed is not ranked on a stale score.
func (s *Store) ClearScore(ctx context.Context, listingID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE analyses
		SET composite_score = NULL, score_rank = NULL, verdict = '', updated_at = ?
		WHERE listing_id = ?`), now, listingID)
	if err != nil {
		return fmt.Errorf("clearing score for listing %d: %w", listingID, err)
	}
	return nil
}
