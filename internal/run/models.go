package run

import "time"

type State string

const (
	StateActive    State = "ACTIVE"
	StatePaused    State = "PAUSED"
	StateCompleted State = "COMPLETED"
)

// Run is owned by exactly one user. Terminal metrics are written once, at
// completion, and never change afterwards.
type Run struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	RouteID        string     `json:"route_id,omitempty"`
	State          State      `json:"state"`
	IsPaused       bool       `json:"is_paused"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	DistanceKm     float64    `json:"distance_km"`
	DurationSec    int64      `json:"duration_sec"`
	AvgPaceMinKm   float64    `json:"avg_pace_min_km"`
	MaxPaceMinKm   float64    `json:"max_pace_min_km"`
	MinPaceMinKm   float64    `json:"min_pace_min_km"`
	Calories       float64    `json:"calories"`
	ElevationGainM float64    `json:"elevation_gain_m"`
	ElevationLossM float64    `json:"elevation_loss_m"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Coordinate struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AltitudeM  float64   `json:"altitude_m,omitempty"`
	SpeedKmh   float64   `json:"speed_kmh,omitempty"`
	AccuracyM  float64   `json:"accuracy_m,omitempty"`
	HeadingDeg float64   `json:"heading_deg,omitempty"`
	HeartRate  int       `json:"heart_rate,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CoordinateInput is one point of a batch as supplied by the client. Batch
// order is preserved verbatim; nothing is re-sorted.
type CoordinateInput struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AltitudeM  float64   `json:"altitude_m"`
	SpeedKmh   float64   `json:"speed_kmh"`
	AccuracyM  float64   `json:"accuracy_m"`
	HeadingDeg float64   `json:"heading_deg"`
	HeartRate  int       `json:"heart_rate"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Split struct {
	RunID        string  `json:"run_id"`
	Km           int     `json:"km"`
	TimeSec      int64   `json:"time_sec"`
	PaceMinKm    float64 `json:"pace_min_km"`
	ElevationM   float64 `json:"elevation_m"`
	AvgHeartRate int     `json:"avg_heart_rate,omitempty"`
}

type Photo struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CompletionMetrics carries the terminal metrics fixed by complete.
type CompletionMetrics struct {
	DistanceKm     float64   `json:"distance_km"`
	DurationSec    int64     `json:"duration_sec"`
	AvgPaceMinKm   float64   `json:"avg_pace_min_km"`
	MaxPaceMinKm   float64   `json:"max_pace_min_km"`
	MinPaceMinKm   float64   `json:"min_pace_min_km"`
	Calories       float64   `json:"calories"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	ElevationLossM float64   `json:"elevation_loss_m"`
	EndedAt        time.Time `json:"ended_at"`
}
