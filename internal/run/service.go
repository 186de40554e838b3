package run

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"backend-stridehub/internal/achievement"
	"backend-stridehub/internal/apperr"
	"backend-stridehub/internal/db"
	"backend-stridehub/internal/notify"
	"backend-stridehub/internal/pagination"
	"backend-stridehub/internal/stats"
	"backend-stridehub/internal/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const maxCoordinateBatch = 1000

type Notifier interface {
	Notify(ctx context.Context, userID, fromUserID, kind, title, body string, relatedIDs map[string]string)
}

// Service owns the run state machine. Completion and deletion run inside one
// transaction so the state-transition guard, the user's flags, and the
// aggregate deltas commit together.
type Service struct {
	db           db.Querier
	stats        *stats.Service
	achievements *achievement.Service
	notifier     Notifier
}

func NewService(db db.Querier, statsSvc *stats.Service, achievementSvc *achievement.Service, notifier Notifier) *Service {
	return &Service{db: db, stats: statsSvc, achievements: achievementSvc, notifier: notifier}
}

const runColumns = `
	id, user_id, COALESCE(route_id,''), state, is_paused, started_at, ended_at,
	COALESCE(distance_km,0), COALESCE(duration_sec,0),
	COALESCE(avg_pace_min_km,0), COALESCE(max_pace_min_km,0), COALESCE(min_pace_min_km,0),
	COALESCE(calories,0), COALESCE(elevation_gain_m,0), COALESCE(elevation_loss_m,0), created_at`

func scanRun(row pgx.Row) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.UserID, &r.RouteID, &r.State, &r.IsPaused, &r.StartedAt, &r.EndedAt,
		&r.DistanceKm, &r.DurationSec,
		&r.AvgPaceMinKm, &r.MaxPaceMinKm, &r.MinPaceMinKm,
		&r.Calories, &r.ElevationGainM, &r.ElevationLossM, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, apperr.NotFound("run not found")
	}
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

func (s *Service) Start(ctx context.Context, userID, routeID string, location *CoordinateInput) (Run, error) {
	if location != nil {
		if err := validateCoordinate(*location); err != nil {
			return Run{}, err
		}
	}

	r := Run{
		ID:      uuid.NewString(),
		UserID:  userID,
		RouteID: routeID,
		State:   StateActive,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO runs (id, user_id, route_id, state, is_paused)
		VALUES ($1,$2,NULLIF($3,''),'ACTIVE',false)
		RETURNING started_at, created_at
	`, r.ID, r.UserID, r.RouteID)
	if err := row.Scan(&r.StartedAt, &r.CreatedAt); err != nil {
		return Run{}, err
	}

	if location != nil {
		if _, err := s.insertCoordinate(ctx, s.db, r.ID, *location); err != nil {
			return Run{}, err
		}
		_, err := s.db.Exec(ctx, `
			UPDATE users
			SET is_currently_running=true, current_run_id=$2,
			    last_lat=$3, last_lng=$4, last_location_update=now(), updated_at=now()
			WHERE id=$1
		`, userID, r.ID, location.Lat, location.Lng)
		if err != nil {
			return Run{}, err
		}
	} else {
		_, err := s.db.Exec(ctx, `
			UPDATE users
			SET is_currently_running=true, current_run_id=$2, updated_at=now()
			WHERE id=$1
		`, userID, r.ID)
		if err != nil {
			return Run{}, err
		}
	}
	return r, nil
}

// AddCoordinates appends a batch in the caller's order and moves the user's
// last-known location to the final point. The batch runs in one transaction
// holding the run row lock, so a mid-batch failure persists nothing and a
// concurrent Complete cannot slip in between the state check and the inserts.
func (s *Service) AddCoordinates(ctx context.Context, runID, callerID string, coords []CoordinateInput) ([]Coordinate, error) {
	if len(coords) == 0 || len(coords) > maxCoordinateBatch {
		return nil, apperr.Validation("coordinate batch must hold 1 to 1000 points")
	}
	for _, c := range coords {
		if err := validateCoordinate(c); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ownerID string
	var state State
	err = tx.QueryRow(ctx, `SELECT user_id, state FROM runs WHERE id=$1 FOR UPDATE`, runID).Scan(&ownerID, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("run not found")
	}
	if err != nil {
		return nil, err
	}
	if ownerID != callerID {
		return nil, apperr.NotFound("run not found")
	}
	if state == StateCompleted {
		return nil, apperr.InvalidState("run already completed")
	}

	saved := make([]Coordinate, 0, len(coords))
	for _, c := range coords {
		point, err := s.insertCoordinate(ctx, tx, runID, c)
		if err != nil {
			return nil, err
		}
		saved = append(saved, point)
	}

	last := coords[len(coords)-1]
	_, err = tx.Exec(ctx, `
		UPDATE users
		SET last_lat=$2, last_lng=$3, last_location_update=now(), updated_at=now()
		WHERE id=$1
	`, callerID, last.Lat, last.Lng)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Service) Pause(ctx context.Context, runID, callerID string) (Run, error) {
	return s.setPaused(ctx, runID, callerID, true)
}

func (s *Service) Resume(ctx context.Context, runID, callerID string) (Run, error) {
	return s.setPaused(ctx, runID, callerID, false)
}

func (s *Service) setPaused(ctx context.Context, runID, callerID string, paused bool) (Run, error) {
	state := StateActive
	if paused {
		state = StatePaused
	}
	row := s.db.QueryRow(ctx, `
		UPDATE runs SET is_paused=$3, state=$4
		WHERE id=$1 AND user_id=$2 AND state <> 'COMPLETED'
		RETURNING`+runColumns, runID, callerID, paused, state)
	r, err := scanRun(row)
	if apperr.Is(err, apperr.KindNotFound) {
		return Run{}, s.disambiguateGuard(ctx, runID, callerID)
	}
	return r, err
}

// Complete finalizes the run. The transition guard lives in the UPDATE's
// WHERE clause, so under two concurrent completions exactly one statement
// changes the row and the other takes the failure path.
func (s *Service) Complete(ctx context.Context, runID, callerID string, metrics CompletionMetrics, splits []Split) (Run, []achievement.Unlock, error) {
	if metrics.DistanceKm < 0 || metrics.DurationSec < 0 {
		return Run{}, nil, apperr.Validation("metrics must not be negative")
	}
	endedAt := metrics.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Run{}, nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE runs
		SET state='COMPLETED', is_paused=false, ended_at=$3,
		    distance_km=$4, duration_sec=$5,
		    avg_pace_min_km=$6, max_pace_min_km=$7, min_pace_min_km=$8,
		    calories=$9, elevation_gain_m=$10, elevation_loss_m=$11
		WHERE id=$1 AND user_id=$2 AND state <> 'COMPLETED'
		RETURNING`+runColumns,
		runID, callerID, endedAt,
		metrics.DistanceKm, metrics.DurationSec,
		metrics.AvgPaceMinKm, metrics.MaxPaceMinKm, metrics.MinPaceMinKm,
		metrics.Calories, metrics.ElevationGainM, metrics.ElevationLossM)
	r, err := scanRun(row)
	if apperr.Is(err, apperr.KindNotFound) {
		return Run{}, nil, s.disambiguateGuard(ctx, runID, callerID)
	}
	if err != nil {
		return Run{}, nil, err
	}

	sort.Slice(splits, func(i, j int) bool { return splits[i].Km < splits[j].Km })
	for _, sp := range splits {
		_, err := tx.Exec(ctx, `
			INSERT INTO run_splits (run_id, km, time_sec, pace_min_km, elevation_m, avg_heart_rate)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, runID, sp.Km, sp.TimeSec, sp.PaceMinKm, sp.ElevationM, sp.AvgHeartRate)
		if err != nil {
			return Run{}, nil, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET is_currently_running=false, current_run_id=NULL, updated_at=now()
		WHERE id=$1 AND current_run_id=$2
	`, callerID, runID)
	if err != nil {
		return Run{}, nil, err
	}

	statsRes, err := s.stats.OnComplete(ctx, tx, callerID, r.DistanceKm, r.DurationSec)
	if err != nil {
		return Run{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Run{}, nil, err
	}

	// The run is terminal from here on. Downstream failures are logged, never
	// rolled back. Notifications fire only now: an aborted transaction must
	// not announce a level-up that never happened.
	if statsRes.LeveledUp && s.notifier != nil {
		s.notifier.Notify(ctx, callerID, "", notify.TypeLevelUp,
			"Level up!", fmt.Sprintf("You reached level %d", statsRes.Level),
			map[string]string{"level": strconv.Itoa(statsRes.Level)})
	}

	unlocks, err := s.achievements.Evaluate(ctx, callerID, achievement.RunMetrics{
		RunID:      runID,
		DistanceKm: r.DistanceKm,
		AvgPace:    r.AvgPaceMinKm,
	})
	if err != nil {
		log.Printf("achievement evaluation error: %v", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, callerID, "", notify.TypeRunCompleted,
			"Run completed", "Nice work out there",
			map[string]string{"run_id": runID})
	}
	return r, unlocks, nil
}

// Delete removes a run and its coordinates, splits, and photos. A completed
// run's contribution, including the achievement XP its completion awarded,
// is reversed from the owner's aggregates inside the same transaction, using
// the stored terminal metrics. The state read locks the run row so a
// concurrent Complete cannot commit between the read and the removal.
func (s *Service) Delete(ctx context.Context, runID, callerID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var state State
	var distanceKm float64
	var durationSec int64
	err = tx.QueryRow(ctx, `
		SELECT state, COALESCE(distance_km,0), COALESCE(duration_sec,0)
		FROM runs WHERE id=$1 AND user_id=$2
		FOR UPDATE
	`, runID, callerID).Scan(&state, &distanceKm, &durationSec)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("run not found")
	}
	if err != nil {
		return err
	}

	if state == StateCompleted {
		var achievementXP int
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(a.xp_reward), 0)
			FROM user_achievements ua
			JOIN achievements a ON a.id = ua.achievement_id
			WHERE ua.user_id=$1 AND ua.unlocked_run_id=$2
		`, callerID, runID).Scan(&achievementXP)
		if err != nil {
			return err
		}
		if _, err := s.stats.OnDelete(ctx, tx, callerID, distanceKm, durationSec, achievementXP); err != nil {
			return err
		}
	}

	for _, stmt := range []string{
		`DELETE FROM run_coordinates WHERE run_id=$1`,
		`DELETE FROM run_splits WHERE run_id=$1`,
		`DELETE FROM run_photos WHERE run_id=$1`,
		`DELETE FROM runs WHERE id=$1`,
	} {
		if _, err := tx.Exec(ctx, stmt, runID); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET is_currently_running=false, current_run_id=NULL, updated_at=now()
		WHERE id=$1 AND current_run_id=$2
	`, callerID, runID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) Get(ctx context.Context, runID, callerID string) (Run, error) {
	row := s.db.QueryRow(ctx, `SELECT`+runColumns+` FROM runs WHERE id=$1 AND user_id=$2`, runID, callerID)
	return scanRun(row)
}

// History pages the caller's runs newest first, keyset on (created_at, id)
// strictly before the cursor row.
func (s *Service) History(ctx context.Context, userID string, page pagination.Page) ([]Run, string, error) {
	page = pagination.Normalize(page)
	rows, err := s.db.Query(ctx, `
		SELECT`+runColumns+`
		FROM runs
		WHERE user_id=$1
		  AND ($2 = '' OR (created_at, id) < (SELECT created_at, id FROM runs WHERE id=$2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, userID, page.Cursor, page.Limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		runs = append(runs, r)
	}
	next := pagination.NextCursor(runs, page.Limit, func(r Run) string { return r.ID })
	return runs, next, nil
}

// Coordinates pages a run's points oldest first, keyset strictly after the
// cursor point.
func (s *Service) Coordinates(ctx context.Context, runID, callerID string, page pagination.Page) ([]Coordinate, string, error) {
	page = pagination.Normalize(page)
	var cursorID int64
	if page.Cursor != "" {
		id, err := strconv.ParseInt(page.Cursor, 10, 64)
		if err != nil {
			return nil, "", apperr.Validation("malformed cursor")
		}
		cursorID = id
	}
	if _, err := s.ownedRunState(ctx, runID, callerID); err != nil {
		return nil, "", err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, run_id, lat, lng, COALESCE(altitude_m,0), COALESCE(speed_kmh,0),
		       COALESCE(accuracy_m,0), COALESCE(heading_deg,0), COALESCE(heart_rate,0), recorded_at
		FROM run_coordinates
		WHERE run_id=$1
		  AND ($2 = 0 OR (recorded_at, id) > (SELECT recorded_at, id FROM run_coordinates WHERE id=$2))
		ORDER BY recorded_at ASC, id ASC
		LIMIT $3
	`, runID, cursorID, page.Limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var points []Coordinate
	for rows.Next() {
		var p Coordinate
		if err := rows.Scan(&p.ID, &p.RunID, &p.Lat, &p.Lng, &p.AltitudeM, &p.SpeedKmh,
			&p.AccuracyM, &p.HeadingDeg, &p.HeartRate, &p.RecordedAt); err != nil {
			return nil, "", err
		}
		points = append(points, p)
	}
	next := pagination.NextCursor(points, page.Limit, func(p Coordinate) string { return strconv.FormatInt(p.ID, 10) })
	return points, next, nil
}

func (s *Service) Splits(ctx context.Context, runID, callerID string) ([]Split, error) {
	if _, err := s.ownedRunState(ctx, runID, callerID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT run_id, km, time_sec, pace_min_km, COALESCE(elevation_m,0), COALESCE(avg_heart_rate,0)
		FROM run_splits WHERE run_id=$1
		ORDER BY km ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []Split
	for rows.Next() {
		var sp Split
		if err := rows.Scan(&sp.RunID, &sp.Km, &sp.TimeSec, &sp.PaceMinKm, &sp.ElevationM, &sp.AvgHeartRate); err != nil {
			return nil, err
		}
		splits = append(splits, sp)
	}
	return splits, nil
}

func (s *Service) AddPhoto(ctx context.Context, runID, callerID, url, caption string) (Photo, error) {
	if _, err := s.ownedRunState(ctx, runID, callerID); err != nil {
		return Photo{}, err
	}
	photo := Photo{
		ID:      uuid.NewString(),
		RunID:   runID,
		UserID:  callerID,
		URL:     url,
		Caption: caption,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO run_photos (id, run_id, user_id, photo_url, caption)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, photo.ID, photo.RunID, photo.UserID, photo.URL, photo.Caption)
	if err := row.Scan(&photo.CreatedAt); err != nil {
		return Photo{}, err
	}
	return photo, nil
}

func (s *Service) Photos(ctx context.Context, runID, callerID string) ([]Photo, error) {
	if _, err := s.ownedRunState(ctx, runID, callerID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, run_id, user_id, photo_url, COALESCE(caption,''), created_at
		FROM run_photos WHERE run_id=$1
		ORDER BY created_at DESC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.RunID, &p.UserID, &p.URL, &p.Caption, &p.CreatedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, nil
}

func (s *Service) insertCoordinate(ctx context.Context, q db.Querier, runID string, c CoordinateInput) (Coordinate, error) {
	recordedAt := c.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	point := Coordinate{
		RunID:      runID,
		Lat:        c.Lat,
		Lng:        c.Lng,
		AltitudeM:  c.AltitudeM,
		SpeedKmh:   c.SpeedKmh,
		AccuracyM:  c.AccuracyM,
		HeadingDeg: c.HeadingDeg,
		HeartRate:  c.HeartRate,
		RecordedAt: recordedAt,
	}
	row := q.QueryRow(ctx, `
		INSERT INTO run_coordinates (run_id, lat, lng, altitude_m, speed_kmh, accuracy_m, heading_deg, heart_rate, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, runID, c.Lat, c.Lng, c.AltitudeM, c.SpeedKmh, c.AccuracyM, c.HeadingDeg, c.HeartRate, recordedAt)
	if err := row.Scan(&point.ID); err != nil {
		return Coordinate{}, err
	}
	return point, nil
}

func (s *Service) ownedRunState(ctx context.Context, runID, callerID string) (State, error) {
	var ownerID string
	var state State
	err := s.db.QueryRow(ctx, `SELECT user_id, state FROM runs WHERE id=$1`, runID).Scan(&ownerID, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("run not found")
	}
	if err != nil {
		return "", err
	}
	if ownerID != callerID {
		// Ownership failures read the same as absence.
		return "", apperr.NotFound("run not found")
	}
	return state, nil
}

// disambiguateGuard turns a zero-row guarded UPDATE into the right failure:
// the run is either gone, not the caller's, or already terminal.
func (s *Service) disambiguateGuard(ctx context.Context, runID, callerID string) error {
	state, err := s.ownedRunState(ctx, runID, callerID)
	if err != nil {
		return err
	}
	if state == StateCompleted {
		return apperr.InvalidState("run already completed")
	}
	return apperr.Conflict("run was modified concurrently")
}

func validateCoordinate(c CoordinateInput) error {
	if err := user.ValidateLatLng(c.Lat, c.Lng); err != nil {
		return err
	}
	if c.HeartRate < 0 || c.HeartRate > 300 {
		return apperr.Validation("heart rate out of range")
	}
	if c.HeadingDeg < 0 || c.HeadingDeg > 360 {
		return apperr.Validation("heading out of range")
	}
	return nil
}
