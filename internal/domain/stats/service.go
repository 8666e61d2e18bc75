package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/covercheck/covercheck/internal/platform/cache"
)

// Service runs aggregation queries with scope normalization, a bounded
// query timeout and TTL memoization. Cached entries are immutable and
// expire rather than being invalidated.
type Service struct {
	repo         Aggregator
	memo         *cache.TTLStore
	log          zerolog.Logger
	queryTimeout time.Duration
}

func NewService(repo Aggregator, memo *cache.TTLStore, log zerolog.Logger, queryTimeout time.Duration) *Service {
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	return &Service{repo: repo, memo: memo, log: log, queryTimeout: queryTimeout}
}

// TopDiseases returns the ranked result set for the scope. The scope
// is normalized first, so a reversed year range is corrected rather
// than rejected.
func (s *Service) TopDiseases(ctx context.Context, scope QueryScope) ([]DiseaseMetricRow, error) {
	scope = scope.Normalize()
	if len(scope.AgeGroups) == 0 {
		return nil, fmt.Errorf("query scope has no age groups")
	}

	key := scope.CacheKey()
	if s.memo != nil {
		if v, ok := s.memo.Get(key); ok {
			return v.([]DiseaseMetricRow), nil
		}
	}

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.repo.Aggregate(qctx, scope)
	if err != nil {
		s.log.Error().Err(err).
			Str("scope", key).
			Msg("disease metric aggregation failed")
		return nil, err
	}
	if s.memo != nil {
		s.memo.Set(key, rows)
	}
	return rows, nil
}

// FutureTopDiseases runs the same aggregation over the union of age
// bands after the supplied band. An empty union (the customer is
// already in the last band) yields an empty result, not an error.
func (s *Service) FutureTopDiseases(ctx context.Context, scope QueryScope, currentBand string) ([]DiseaseMetricRow, error) {
	future := FutureAgeBands(currentBand)
	if len(future) == 0 {
		return nil, nil
	}
	scope.AgeGroups = future
	return s.TopDiseases(ctx, scope)
}

// DataYearRange reports the years covered by the metrics tables.
func (s *Service) DataYearRange(ctx context.Context) (YearRange, error) {
	if s.memo != nil {
		if v, ok := s.memo.Get("stats:years"); ok {
			return v.(YearRange), nil
		}
	}

	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	yr, err := s.repo.YearRange(qctx)
	if err != nil {
		return YearRange{}, err
	}
	if s.memo != nil {
		s.memo.Set("stats:years", yr)
	}
	return yr, nil
}
