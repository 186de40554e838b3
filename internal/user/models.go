package user

import (
	"encoding/json"
	"time"
)

// XPPerLevel is the XP span of one level. Level is derived from XP on read so
// there is no second counter to keep in sync.
const XPPerLevel = 1000

func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

type User struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Username           string    `json:"username"`
	FullName           string    `json:"full_name"`
	AvatarURL          string    `json:"avatar_url"`
	IsPublic           bool      `json:"is_public"`
	IsLocationPublic   bool      `json:"is_location_public"`
	Lat                float64   `json:"lat"`
	Lng                float64   `json:"lng"`
	LastLocationUpdate time.Time `json:"last_location_update"`
	IsCurrentlyRunning bool      `json:"is_currently_running"`
	CurrentRunID       string    `json:"current_run_id,omitempty"`
	TotalDistanceKm    float64   `json:"total_distance_km"`
	TotalRuns          int       `json:"total_runs"`
	TotalTimeSec       int64     `json:"total_time_sec"`
	XP                 int       `json:"xp"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (u User) Level() int { return LevelForXP(u.XP) }

func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return json.Marshal(struct {
		alias
		Level int `json:"level"`
	}{alias(u), u.Level()})
}

type NearbyUser struct {
	ID              string  `json:"id"`
	Username        string  `json:"username"`
	AvatarURL       string  `json:"avatar_url"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	DistanceKm      float64 `json:"distance_km"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	Level           int     `json:"level"`
}

type LeaderboardEntry struct {
	UserID          string  `json:"user_id"`
	Username        string  `json:"username"`
	AvatarURL       string  `json:"avatar_url"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	TotalRuns       int     `json:"total_runs"`
	Level           int     `json:"level"`
}
