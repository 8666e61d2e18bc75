package pamphlet

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/covercheck/covercheck/internal/domain/stats"
	"github.com/covercheck/covercheck/internal/platform/auth"
)

const disclaimer = "Statistics are aggregated from national disease-cost data and describe population averages, not individual outcomes."

// Service assembles pamphlet contexts from the stats pipeline.
type Service struct {
	stats          *stats.Service
	charts         stats.ChartRenderer
	brandName      string
	contentVersion string
	tz             *time.Location
	log            zerolog.Logger
}

func NewService(st *stats.Service, charts stats.ChartRenderer, brandName, contentVersion string, tz *time.Location, log zerolog.Logger) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{
		stats:          st,
		charts:         charts,
		brandName:      brandName,
		contentVersion: contentVersion,
		tz:             tz,
		log:            log,
	}
}

// BuildContext runs the full query-aggregate-render pipeline for one
// customer and returns the computed pamphlet data model.
func (s *Service) BuildContext(ctx context.Context, consultant auth.Consultant, customer Customer, scope stats.QueryScope) (*Context, error) {
	scope = scope.Normalize()
	scope.AgeGroups = []string{customer.AgeBand}
	scope.Sex = customer.Sex

	current, err := s.stats.TopDiseases(ctx, scope)
	if err != nil {
		return nil, err
	}
	future, err := s.stats.FutureTopDiseases(ctx, scope, customer.AgeBand)
	if err != nil {
		return nil, err
	}

	section := StatsSection{
		Scope:    scope,
		Current:  current,
		Future:   future,
		Emerging: stats.PickEmergingRows(current, future, scope.Limit),
	}
	if s.charts != nil {
		section.CurrentChart = s.charts.DataURI(current, "What people your age are treated for",
			scope.SortBasis, scope.YearStart, scope.YearEnd, true)
		section.FutureChart = s.charts.DataURI(future, "What changes as you get older",
			scope.SortBasis, scope.YearStart, scope.YearEnd, true)
	}

	return &Context{
		Consultant: consultant,
		Customer:   customer,
		Segments:   DefaultSegments(),
		Stats:      section,
		Footer: Footer{
			BrandName:      s.brandName,
			ContentVersion: s.contentVersion,
			GeneratedAt:    time.Now().In(s.tz),
			Disclaimer:     disclaimer,
		},
	}, nil
}
