//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/kalambet/propeval/internal/listing"
)

func openPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("propeval"),
		tcpostgres.WithUsername("propeval"),
		tcpostgres.WithPassword("propeval"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := OpenPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	s := openPostgresStore(t)
	require.Equal(t, Postgres, s.Dialect())

	versions, err := s.AppliedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	var ids []int64
	for i, score := range []float64{60, 85} {
		l := &listing.Listing{
			ListingID:   string(rune('P' + i)),
			Address:     "1 Postgres Road",
			Bedrooms:    listing.Int(3),
			AskingPrice: listing.Float64(400000),
			Photos:      []string{"https://img/a.jpg"},
		}
		outcome, err := s.UpsertListing(ctx, l)
		require.NoError(t, err)
		require.Equal(t, Created, outcome)
		ids = append(ids, l.ID)

		sc := score
		require.NoError(t, s.SaveAnalysis(ctx, &listing.Analysis{
			ListingID:      l.ID,
			CompositeScore: &sc,
			Verdict:        listing.VerdictBuy,
			Flip:           &listing.FlipFinancials{ROIPercentage: 14},
		}))
	}

	pending, err := s.ListingsForAnalysis(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	n, err := s.Rerank(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ranked, err := s.RankedListings(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, ids[1], ranked[0].Listing.ID)
	require.Equal(t, 14.0, ranked[0].Analysis.Flip.ROIPercentage)

	require.NoError(t, s.EnqueueJob(ctx, Job{ID: "pg-job", Type: "analyze_pending"}))
	job, err := s.ClaimNextJob(ctx, []string{"analyze_pending"})
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, s.FailJob(ctx, job.ID, "boom"))
	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempts)
}
