package stats

import (
	"context"
	"errors"
	"math"

	"backend-stridehub/internal/apperr"
	"backend-stridehub/internal/db"
	"backend-stridehub/internal/user"

	"github.com/jackc/pgx/v5"
)

// XPPerKm is the XP earned per kilometer of a completed run.
const XPPerKm = 10

func XPForDistance(distanceKm float64) int {
	return int(math.Floor(distanceKm * XPPerKm))
}

// Service keeps per-user aggregates consistent with the set of completed
// runs. Every mutation is a single atomic UPDATE so concurrent completions
// for one user cannot lose increments.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

type Result struct {
	XP        int  `json:"xp"`
	Level     int  `json:"level"`
	LeveledUp bool `json:"leveled_up"`
}

// OnComplete applies one completed run to the owner's aggregates. It runs
// against the caller's transaction handle so the increments commit together
// with the run's terminal transition. Crossing several level thresholds in
// one jump reports a single level-up carrying the final level; the caller
// announces it once the transaction has committed.
func (s *Service) OnComplete(ctx context.Context, q db.Querier, userID string, distanceKm float64, durationSec int64) (Result, error) {
	xpDelta := XPForDistance(distanceKm)

	var xpAfter int
	err := q.QueryRow(ctx, `
		UPDATE users
		SET total_distance_km = total_distance_km + $2,
		    total_runs = total_runs + 1,
		    total_time_sec = total_time_sec + $3,
		    xp = xp + $4,
		    updated_at = now()
		WHERE id=$1
		RETURNING xp
	`, userID, distanceKm, durationSec, xpDelta).Scan(&xpAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return Result{}, err
	}

	levelBefore := user.LevelForXP(xpAfter - xpDelta)
	levelAfter := user.LevelForXP(xpAfter)
	return Result{XP: xpAfter, Level: levelAfter, LeveledUp: levelAfter > levelBefore}, nil
}

// OnDelete reverses OnComplete using the run's stored terminal metrics, plus
// any achievement XP the run's completion awarded, so the aggregates land
// back on their pre-completion values. Decrements are clamped at zero: a
// corrupted counter must not push one below the floor.
func (s *Service) OnDelete(ctx context.Context, q db.Querier, userID string, distanceKm float64, durationSec int64, achievementXP int) (Result, error) {
	xpDelta := XPForDistance(distanceKm) + achievementXP

	var xpAfter int
	err := q.QueryRow(ctx, `
		UPDATE users
		SET total_distance_km = GREATEST(total_distance_km - $2, 0),
		    total_runs = GREATEST(total_runs - 1, 0),
		    total_time_sec = GREATEST(total_time_sec - $3, 0),
		    xp = GREATEST(xp - $4, 0),
		    updated_at = now()
		WHERE id=$1
		RETURNING xp
	`, userID, distanceKm, durationSec, xpDelta).Scan(&xpAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return Result{}, err
	}
	return Result{XP: xpAfter, Level: user.LevelForXP(xpAfter)}, nil
}
