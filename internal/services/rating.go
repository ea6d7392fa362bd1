package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/repo"
)

// MeanScore returns the arithmetic mean of scores. ok is false when scores
// is empty: a title without reviews has no rating, which is not the same as
// a rating of zero.
func MeanScore(scores []int) (mean float64, ok bool) {
	if len(scores) == 0 {
		return 0, false
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores)), true
}

// RatingService computes title ratings from the current review set. Nothing
// is cached or stored: every call reads the scores again.
type RatingService struct {
	DB *gorm.DB
}

// ForTitle returns the rating of one title, or nil when it has no reviews.
func (s *RatingService) ForTitle(ctx context.Context, titleID int64) (*float64, error) {
	m, err := s.ForTitles(ctx, []int64{titleID})
	if err != nil {
		return nil, err
	}
	if v, ok := m[titleID]; ok {
		return &v, nil
	}
	return nil, nil
}

// ForTitles returns ratings keyed by title id. Titles without reviews are
// absent from the map.
func (s *RatingService) ForTitles(ctx context.Context, titleIDs []int64) (map[int64]float64, error) {
	ctx, span := otel.Tracer("services/RatingService").Start(ctx, "ForTitles",
		trace.WithAttributes(attribute.Int("titles.count", len(titleIDs))),
	)
	defer span.End()

	rows, err := repo.ScoresForTitles(ctx, s.DB, titleIDs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	grouped := make(map[int64][]int, len(titleIDs))
	for _, r := range rows {
		grouped[r.TitleID] = append(grouped[r.TitleID], r.Score)
	}
	out := make(map[int64]float64, len(grouped))
	for id, scores := range grouped {
		if mean, ok := MeanScore(scores); ok {
			out[id] = mean
		}
	}
	return out, nil
}
