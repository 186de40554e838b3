package notify

import "time"

const (
	TypeRunCompleted        = "run_completed"
	TypeLevelUp             = "level_up"
	TypeAchievementUnlocked = "achievement_unlocked"
)

type Notification struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	FromUserID string            `json:"from_user_id,omitempty"`
	Type       string            `json:"type"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	RelatedIDs map[string]string `json:"related_ids,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
