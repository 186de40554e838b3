package achievement

import "time"

// Rule kinds form a closed set; evaluation dispatches over these and nothing
// else.
const (
	TypeTotalDistance     = "TOTAL_DISTANCE"
	TypeTotalRuns         = "TOTAL_RUNS"
	TypeSingleRunDistance = "SINGLE_RUN_DISTANCE"
	TypeSingleRunPace     = "SINGLE_RUN_PACE"
)

type Achievement struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Threshold   float64   `json:"threshold"`
	XPReward    int       `json:"xp_reward"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserAchievement struct {
	UserID        string     `json:"user_id"`
	AchievementID string     `json:"achievement_id"`
	Progress      float64    `json:"progress"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Unlock reports one achievement claimed during an evaluation pass.
type Unlock struct {
	Achievement Achievement `json:"achievement"`
	XPAwarded   int         `json:"xp_awarded"`
}
