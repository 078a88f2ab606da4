package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/giveandget/giveandget/internal/geo"
	"github.com/giveandget/giveandget/internal/organization"
)

const instrumentationName = "github.com/giveandget/giveandget/internal/matching"

// DefaultConcurrency bounds how many organizations are scored at once.
const DefaultConcurrency = 8

// ErrFetchCandidates wraps failures of the candidate lookup.
var ErrFetchCandidates = errors.New("fetch candidates")

// Direction names which way a ranking matches.
type Direction string

// Directions.
const (
	DirectionPeople   Direction = "people"
	DirectionSupplies Direction = "supplies"
)

// CandidateFetcher returns organizations of the requested types strictly
// within radiusMiles of loc, nearest first.
type CandidateFetcher interface {
	FetchCandidates(ctx context.Context, loc geo.Point, radiusMiles float64, filter organization.TypeFilter) ([]organization.Candidate, error)
}

// EngineConfig holds configuration for the ranking engine.
type EngineConfig struct {
	// Fetcher supplies candidate organizations.
	Fetcher CandidateFetcher

	// Logger for ranking summaries.
	Logger zerolog.Logger

	// Concurrency bounds parallel scoring (default: DefaultConcurrency).
	Concurrency int
}

// Engine ranks organizations for people and donors.
type Engine struct {
	fetcher     CandidateFetcher
	logger      zerolog.Logger
	concurrency int
	tracer      trace.Tracer

	rankings metric.Int64Counter
	duration metric.Float64Histogram
}

// NewEngine creates a ranking engine.
func NewEngine(cfg EngineConfig) *Engine {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	meter := otel.Meter(instrumentationName)
	rankings, err := meter.Int64Counter("matching.rankings.total",
		metric.WithDescription("Number of rankings computed"),
		metric.WithUnit("{ranking}"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create ranking counter")
		rankings = nil
	}
	duration, err := meter.Float64Histogram("matching.ranking.duration",
		metric.WithDescription("Time spent computing a ranking"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create ranking duration histogram")
		duration = nil
	}

	return &Engine{
		fetcher:     cfg.Fetcher,
		logger:      cfg.Logger,
		concurrency: concurrency,
		tracer:      otel.Tracer(instrumentationName),
		rankings:    rankings,
		duration:    duration,
	}
}

// candidateScorer scores one candidate.
type candidateScorer func(c organization.Candidate) float64

// RankPeople ranks organizations for a person. Housing requests consider
// shelters only and other requests charities only; organizations failing any
// eligibility rule are dropped. A nil profile returns every shelter and
// charity in distance order with a score of 100.
func (e *Engine) RankPeople(ctx context.Context, loc geo.Point, radiusMiles float64, profile *RequesterProfile) (Ranking, error) {
	if profile == nil {
		return e.rankUnscored(ctx, DirectionPeople, loc, radiusMiles)
	}

	filter := organization.TypeFilter{Charity: true}
	if profile.NeedsHousing {
		filter = organization.TypeFilter{Shelter: true}
	}

	p := *profile
	return e.rank(ctx, DirectionPeople, loc, radiusMiles, filter,
		func(org *organization.Organization) bool {
			return CheckFeasibility(&p, org).Feasible
		},
		func(c organization.Candidate) float64 {
			return ScorePerson(&p, c.Organization, c.DistanceMiles)
		},
	)
}

// RankSupplies ranks organizations that need what the donor offers. An empty
// manifest returns every shelter and charity in distance order with a score
// of 100.
func (e *Engine) RankSupplies(ctx context.Context, loc geo.Point, radiusMiles float64, manifest DonorManifest) (Ranking, error) {
	if len(manifest) == 0 {
		return e.rankUnscored(ctx, DirectionSupplies, loc, radiusMiles)
	}

	return e.rank(ctx, DirectionSupplies, loc, radiusMiles, organization.AllTypes,
		func(org *organization.Organization) bool {
			return NeedsDonation(manifest, org)
		},
		func(c organization.Candidate) float64 {
			return ScoreSupply(manifest, c.Organization, c.DistanceMiles)
		},
	)
}

func (e *Engine) rankUnscored(ctx context.Context, dir Direction, loc geo.Point, radiusMiles float64) (Ranking, error) {
	ctx, span := e.startSpan(ctx, dir, loc, radiusMiles, false)
	defer span.End()
	start := time.Now()

	candidates, err := e.fetch(ctx, span, loc, radiusMiles, organization.AllTypes)
	if err != nil {
		return nil, err
	}

	ranking := make(Ranking, len(candidates))
	for i, c := range candidates {
		ranking[i] = MatchResult{
			Rank:          i + 1,
			DistanceMiles: c.DistanceMiles,
			Organization:  c.Organization.Clone(),
			Score:         100,
		}
	}

	e.finish(ctx, span, dir, false, len(candidates), len(candidates), start)
	return ranking, nil
}

func (e *Engine) rank(
	ctx context.Context,
	dir Direction,
	loc geo.Point,
	radiusMiles float64,
	filter organization.TypeFilter,
	keep func(*organization.Organization) bool,
	score candidateScorer,
) (Ranking, error) {
	ctx, span := e.startSpan(ctx, dir, loc, radiusMiles, true)
	defer span.End()
	start := time.Now()

	candidates, err := e.fetch(ctx, span, loc, radiusMiles, filter)
	if err != nil {
		return nil, err
	}

	survivors := make([]organization.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if keep(c.Organization) {
			survivors = append(survivors, c)
		}
	}

	scores, err := e.scoreAll(ctx, survivors, score)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring cancelled")
		return nil, err
	}

	order := make([]int, len(survivors))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranking := make(Ranking, len(order))
	for rank, idx := range order {
		c := survivors[idx]
		ranking[rank] = MatchResult{
			Rank:          rank + 1,
			DistanceMiles: c.DistanceMiles,
			Organization:  c.Organization.Clone(),
			Score:         outputScore(scores[idx]),
		}
	}

	e.finish(ctx, span, dir, true, len(candidates), len(survivors), start)
	return ranking, nil
}

// scoreAll scores candidates in parallel. scores[i] belongs to candidates[i].
func (e *Engine) scoreAll(ctx context.Context, candidates []organization.Candidate, score candidateScorer) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = score(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (e *Engine) fetch(ctx context.Context, span trace.Span, loc geo.Point, radiusMiles float64, filter organization.TypeFilter) ([]organization.Candidate, error) {
	candidates, err := e.fetcher.FetchCandidates(ctx, loc, radiusMiles, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch candidates failed")
		return nil, fmt.Errorf("%w: %w", ErrFetchCandidates, err)
	}
	return candidates, nil
}

func (e *Engine) startSpan(ctx context.Context, dir Direction, loc geo.Point, radiusMiles float64, scored bool) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "matching.Rank",
		trace.WithAttributes(
			attribute.String("matching.direction", string(dir)),
			attribute.Bool("matching.scored", scored),
			attribute.Float64("matching.radius_miles", radiusMiles),
			attribute.Float64("matching.location.lat", loc.Lat),
			attribute.Float64("matching.location.lng", loc.Lng),
		),
	)
}

func (e *Engine) finish(ctx context.Context, span trace.Span, dir Direction, scored bool, candidates, kept int, start time.Time) {
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("matching.candidates", candidates),
		attribute.Int("matching.ranked", kept),
	)

	attrs := metric.WithAttributes(
		attribute.String("direction", string(dir)),
		attribute.Bool("scored", scored),
	)
	if e.rankings != nil {
		e.rankings.Add(ctx, 1, attrs)
	}
	if e.duration != nil {
		e.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
	}

	e.logger.Info().
		Str("direction", string(dir)).
		Bool("scored", scored).
		Int("candidates", candidates).
		Int("ranked", kept).
		Dur("duration", elapsed).
		Msg("ranking computed")
}

// outputScore rounds an internal score to the nearest integer in [0, 100].
// Ties go to the even integer.
func outputScore(score float64) int {
	v := int(math.RoundToEven(score))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
