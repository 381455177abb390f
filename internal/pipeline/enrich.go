package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/propeval/internal/cache"
	"github.com/kalambet/propeval/internal/estimate"
	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/providers"
	"github.com/kalambet/propeval/internal/vision"
)

// lookups holds the provider-backed results of one listing. Each lookup
// writes only its own field, so they may run concurrently.
type lookups struct {
	rates     *providers.RatesQuote
	bonds     *providers.BondData
	insurance *providers.InsuranceQuote

	image     *listing.ImageAnalysis
	imageHash string

	zoning     *providers.Zoning
	zoningHash string
}

// enrich fills the estimator sub-documents of a. prev is the stored analysis
// from an earlier run, or nil; its hash slots let unchanged inputs skip the
// vision and zoning providers.
func (p *Pipeline) enrich(ctx context.Context, l *listing.Listing, prev *listing.Analysis, a *listing.Analysis) error {
	var lk lookups
	steps := []func(context.Context) error{
		func(ctx context.Context) error { lk.rates = p.lookupRates(ctx, l); return nil },
		func(ctx context.Context) error { lk.bonds = p.lookupBonds(ctx, l); return nil },
		func(ctx context.Context) error { lk.insurance = p.lookupInsurance(ctx, l); return nil },
		func(ctx context.Context) (err error) {
			lk.image, lk.imageHash, err = p.assessPhotos(ctx, l, prev)
			return err
		},
		func(ctx context.Context) (err error) {
			lk.zoning, lk.zoningHash, err = p.resolveZoning(ctx, l, prev)
			return err
		},
	}

	if p.cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, step := range steps {
			g.Go(func() error { return step(gctx) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for _, step := range steps {
			if err := step(ctx); err != nil {
				return err
			}
		}
	}

	a.ImageAnalysis = lk.image
	a.VisionPhotosHash = lk.imageHash
	if p.cfg.AnalysisMode == ModeOpenAIDeep && lk.image.HasRenoTimeline() {
		a.Renovation, a.Timeline = estimate.FromVision(lk.image)
	} else {
		a.Renovation = estimate.Renovation(l, lk.image)
		a.Timeline = estimate.Timeline(a.Renovation)
	}

	a.ARV = estimate.ARV(l)
	a.RentalEstimate = estimate.Rental(l, lk.bonds)
	a.CouncilRates = estimate.CouncilCosts(l.District, lk.rates)
	a.Insurability = estimate.Insurability(l, lk.insurance)
	a.Subdivision = estimate.Subdivision(l, lk.zoning)
	a.SubdivisionHash = lk.zoningHash

	p.metrics.ProviderRequest("arv", a.ARV.Source)
	p.metrics.ProviderRequest("rental", a.RentalEstimate.Source)
	p.metrics.ProviderRequest("council_rates", a.CouncilRates.Source)
	p.metrics.ProviderRequest("insurance", a.Insurability.Source)
	return nil
}

// assessPhotos returns the image analysis for l and the photo hash it is
// keyed on. Healthy-homes text signals come from the description, so they
// are attached after the cache and never shared between listings. A
// heuristic fallback is not cached and comes back with an empty hash, so
// the next run asks the provider again.
func (p *Pipeline) assessPhotos(ctx context.Context, l *listing.Listing, prev *listing.Analysis) (*listing.ImageAnalysis, string, error) {
	began := time.Now()
	defer p.metrics.ObserveStage("vision", began)

	hash := cache.PhotosHash(l.Photos, p.cfg.MaxPhotos)
	var slot cache.Slot[listing.ImageAnalysis]
	if prev != nil {
		slot = cache.Slot[listing.ImageAnalysis]{Value: prev.ImageAnalysis, Hash: prev.VisionPhotosHash}
	}

	img, res, err := p.visionCache.GetOrCompute(ctx, hash, slot, func(ctx context.Context) (*listing.ImageAnalysis, error) {
		img := vision.Assess(ctx, p.providers.Vision, vision.Select(l.Photos, p.cfg.MaxPhotos))
		p.metrics.ProviderRequest("vision", img.Source)
		return img, nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("assessing photos: %w", err)
	}
	switch res {
	case cache.RecordHit, cache.SharedHit:
		p.logger.Info("pipeline: reusing cached vision result", "listing_id", l.ListingID, "cache", res)
	case cache.Uncached:
		hash = ""
	}

	out := *img
	out.HealthyHomes = estimate.HealthyHomes(l.Description)
	return &out, hash, nil
}

// resolveZoning returns the zoning for l and the input hash it is keyed on.
// Only the provider lookup is cached; the subdivision arithmetic depends on
// the price and is redone on every run. A failed lookup is not cached and
// comes back with an empty hash.
func (p *Pipeline) resolveZoning(ctx context.Context, l *listing.Listing, prev *listing.Analysis) (*providers.Zoning, string, error) {
	if p.providers.Zoning == nil || !estimate.NeedsZoning(l) {
		return nil, "", nil
	}
	hash := cache.SubdivisionHash(l)
	var slot cache.Slot[providers.Zoning]
	if prev != nil {
		slot = cache.Slot[providers.Zoning]{Value: storedZoning(prev.Subdivision), Hash: prev.SubdivisionHash}
	}

	z, res, err := p.zoningCache.GetOrCompute(ctx, hash, slot, func(ctx context.Context) (*providers.Zoning, error) {
		return p.lookupZoning(ctx, l), nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("resolving zoning: %w", err)
	}
	switch res {
	case cache.RecordHit, cache.SharedHit:
		p.logger.Debug("pipeline: reusing cached zoning", "listing_id", l.ListingID, "cache", res)
	case cache.Uncached:
		hash = ""
	}
	return z, hash, nil
}

// storedZoning recovers the zoning a previous subdivision result was built
// from. Results built on the default zone carry no lookup.
func storedZoning(sub *listing.SubdivisionAnalysis) *providers.Zoning {
	if sub == nil || sub.Zoning == "" || sub.ZoningSource == "" || sub.ZoningSource == estimate.DefaultZoningSource {
		return nil
	}
	return &providers.Zoning{Zoning: sub.Zoning, MinLotSize: sub.MinLotSize, Source: sub.ZoningSource}
}

func (p *Pipeline) lookupZoning(ctx context.Context, l *listing.Listing) *providers.Zoning {
	z, err := p.providers.Zoning.Zoning(ctx, providers.ZoningQuery{
		Address:            l.Address,
		FullAddress:        l.FullAddress,
		Suburb:             l.Suburb,
		District:           l.District,
		Region:             l.Region,
		GeographicLocation: l.GeographicLocation,
	})
	if err != nil {
		p.providerFailed("zoning", l, err)
		return nil
	}
	p.metrics.ProviderRequest("zoning", z.Source)
	return &z
}

func (p *Pipeline) lookupRates(ctx context.Context, l *listing.Listing) *providers.RatesQuote {
	if p.providers.Rates == nil {
		return nil
	}
	q, err := p.providers.Rates.Rates(ctx, l.Address, l.District)
	if err != nil {
		p.providerFailed("council_rates", l, err)
		return nil
	}
	return &q
}

func (p *Pipeline) lookupBonds(ctx context.Context, l *listing.Listing) *providers.BondData {
	if p.providers.Tenancy == nil {
		return nil
	}
	b, err := p.providers.Tenancy.Bonds(ctx, providers.TenancyQuery{
		Suburb:       l.Suburb,
		District:     l.District,
		Region:       l.Region,
		Bedrooms:     l.BedroomsOrDefault(),
		PropertyType: l.PropertyType,
	})
	if err != nil {
		p.providerFailed("tenancy", l, err)
		return nil
	}
	return &b
}

func (p *Pipeline) lookupInsurance(ctx context.Context, l *listing.Listing) *providers.InsuranceQuote {
	if p.providers.Insurance == nil {
		return nil
	}
	q := providers.InsuranceQuery{
		Address:      l.Address,
		Bedrooms:     l.BedroomsOrDefault(),
		FloorArea:    estimate.FloorArea(l),
		PropertyType: l.PropertyType,
	}
	if l.Bathrooms != nil {
		q.Bathrooms = *l.Bathrooms
	}
	if l.LandArea != nil {
		q.LandArea = *l.LandArea
	}
	quote, err := p.providers.Insurance.Quote(ctx, q)
	if err != nil {
		p.providerFailed("insurance", l, err)
		return nil
	}
	return &quote
}

// providerFailed logs a provider failure. The estimator falls back to its
// own heuristic, so nothing is returned.
func (p *Pipeline) providerFailed(provider string, l *listing.Listing, err error) {
	cat := providers.CategoryOf(err)
	if cat == providers.CategoryNotConfigured {
		p.logger.Debug("pipeline: provider not configured", "provider", provider, "listing_id", l.ListingID)
		return
	}
	p.logger.Warn("pipeline: provider failed, using fallback",
		"provider", provider,
		"listing_id", l.ListingID,
		"category", cat,
		"error", err,
	)
}
