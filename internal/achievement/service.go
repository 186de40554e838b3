package achievement

import (
	"context"
	"errors"
	"strconv"

	"backend-stridehub/internal/apperr"
	"backend-stridehub/internal/db"
	"backend-stridehub/internal/notify"
	"backend-stridehub/internal/pagination"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Notifier interface {
	Notify(ctx context.Context, userID, fromUserID, kind, title, body string, relatedIDs map[string]string)
}

type Service struct {
	db       db.Querier
	notifier Notifier
}

func NewService(db db.Querier, notifier Notifier) *Service {
	return &Service{db: db, notifier: notifier}
}

// RunMetrics is the slice of a completed run the rules look at.
type RunMetrics struct {
	RunID      string
	DistanceKm float64
	AvgPace    float64
}

// Evaluate walks every rule the user has not unlocked yet, updates its
// progress, and claims unlocks. The claim is an UPDATE guarded on
// unlocked_at IS NULL, so a race between two evaluations awards the XP at
// most once; it also stamps the unlocking run so deleting that run can
// reverse the award. XP from all claims in the pass is applied in a single
// UPDATE, after which the derived level is final. Already-unlocked rules are
// never revisited, so re-evaluation is a no-op.
func (s *Service) Evaluate(ctx context.Context, userID string, run RunMetrics) ([]Unlock, error) {
	var totalDistance float64
	var totalRuns int
	err := s.db.QueryRow(ctx, `
		SELECT total_distance_km, total_runs FROM users WHERE id=$1
	`, userID).Scan(&totalDistance, &totalRuns)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}

	rules, err := s.lockedRules(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unlocks []Unlock
	xpAward := 0
	for _, rule := range rules {
		var progress float64
		switch rule.Type {
		case TypeTotalDistance:
			progress = totalDistance
		case TypeTotalRuns:
			progress = float64(totalRuns)
		case TypeSingleRunDistance:
			progress = run.DistanceKm
		case TypeSingleRunPace:
			progress = run.AvgPace
		default:
			continue
		}

		_, err := s.db.Exec(ctx, `
			INSERT INTO user_achievements (user_id, achievement_id, progress)
			VALUES ($1,$2,$3)
			ON CONFLICT (user_id, achievement_id) DO UPDATE
			SET progress=EXCLUDED.progress, updated_at=now()
		`, userID, rule.ID, progress)
		if err != nil {
			return nil, err
		}

		if !ruleMet(rule, progress) {
			continue
		}

		tag, err := s.db.Exec(ctx, `
			UPDATE user_achievements SET unlocked_at=now(), unlocked_run_id=$3, updated_at=now()
			WHERE user_id=$1 AND achievement_id=$2 AND unlocked_at IS NULL
		`, userID, rule.ID, run.RunID)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			// Lost the claim to a concurrent evaluation.
			continue
		}

		xpAward += rule.XPReward
		unlocks = append(unlocks, Unlock{Achievement: rule, XPAwarded: rule.XPReward})
		if s.notifier != nil {
			s.notifier.Notify(ctx, userID, "", notify.TypeAchievementUnlocked,
				"Achievement unlocked!", rule.Name,
				map[string]string{
					"achievement_id": rule.ID,
					"run_id":         run.RunID,
					"xp_reward":      strconv.Itoa(rule.XPReward),
				})
		}
	}

	if xpAward > 0 {
		_, err := s.db.Exec(ctx, `
			UPDATE users SET xp = xp + $2, updated_at = now() WHERE id=$1
		`, userID, xpAward)
		if err != nil {
			return nil, err
		}
	}
	return unlocks, nil
}

func ruleMet(rule Achievement, progress float64) bool {
	if rule.Type == TypeSingleRunPace {
		// Lower pace is better; zero means no pace was recorded.
		return progress > 0 && progress <= rule.Threshold
	}
	return progress >= rule.Threshold
}

func (s *Service) lockedRules(ctx context.Context, userID string) ([]Achievement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.type, a.name, COALESCE(a.description,''), a.threshold, a.xp_reward, a.created_at
		FROM achievements a
		WHERE NOT EXISTS (
			SELECT 1 FROM user_achievements ua
			WHERE ua.user_id=$1 AND ua.achievement_id=a.id AND ua.unlocked_at IS NOT NULL
		)
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []Achievement
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.Type, &a.Name, &a.Description, &a.Threshold, &a.XPReward, &a.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, a)
	}
	return rules, nil
}

func (s *Service) Create(ctx context.Context, input Achievement) (Achievement, error) {
	switch input.Type {
	case TypeTotalDistance, TypeTotalRuns, TypeSingleRunDistance, TypeSingleRunPace:
	default:
		return Achievement{}, apperr.Validation("unknown achievement type")
	}
	if input.Threshold <= 0 {
		return Achievement{}, apperr.Validation("threshold must be positive")
	}

	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO achievements (id, type, name, description, threshold, xp_reward)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, input.ID, input.Type, input.Name, input.Description, input.Threshold, input.XPReward)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Achievement{}, err
	}
	return input, nil
}

func (s *Service) List(ctx context.Context) ([]Achievement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, type, name, COALESCE(description,''), threshold, xp_reward, created_at
		FROM achievements
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Achievement
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.Type, &a.Name, &a.Description, &a.Threshold, &a.XPReward, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

// ForUser pages the user's achievement progress, most recently touched
// first, keyset on (updated_at, achievement_id) strictly before the cursor
// row.
func (s *Service) ForUser(ctx context.Context, userID string, page pagination.Page) ([]UserAchievement, string, error) {
	page = pagination.Normalize(page)
	rows, err := s.db.Query(ctx, `
		SELECT user_id, achievement_id, progress, unlocked_at, updated_at
		FROM user_achievements
		WHERE user_id=$1
		  AND ($2 = '' OR (updated_at, achievement_id) <
		       (SELECT updated_at, achievement_id FROM user_achievements WHERE user_id=$1 AND achievement_id=$2))
		ORDER BY updated_at DESC, achievement_id DESC
		LIMIT $3
	`, userID, page.Cursor, page.Limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var items []UserAchievement
	for rows.Next() {
		var ua UserAchievement
		if err := rows.Scan(&ua.UserID, &ua.AchievementID, &ua.Progress, &ua.UnlockedAt, &ua.UpdatedAt); err != nil {
			return nil, "", err
		}
		items = append(items, ua)
	}
	next := pagination.NextCursor(items, page.Limit, func(ua UserAchievement) string { return ua.AchievementID })
	return items, next, nil
}
