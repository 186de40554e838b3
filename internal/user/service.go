package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"backend-stridehub/internal/apperr"
	"backend-stridehub/internal/db"
	"backend-stridehub/internal/pagination"
	"backend-stridehub/internal/shared/geo"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

const (
	minRadiusKm       = 0.1
	maxRadiusKm       = 50
	locationFreshness = 24 * time.Hour
	leaderboardTTL    = 30 * time.Second
)

type Service struct {
	db    db.Querier
	redis *redis.Client
}

func NewService(db db.Querier, redisClient *redis.Client) *Service {
	return &Service{db: db, redis: redisClient}
}

const userColumns = `
	id, email, username, COALESCE(full_name,''), COALESCE(avatar_url,''),
	is_public, is_location_public,
	COALESCE(last_lat,0), COALESCE(last_lng,0), COALESCE(last_location_update, to_timestamp(0)),
	is_currently_running, COALESCE(current_run_id,''),
	total_distance_km, total_runs, total_time_sec, xp, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &u.AvatarURL,
		&u.IsPublic, &u.IsLocationPublic,
		&u.Lat, &u.Lng, &u.LastLocationUpdate,
		&u.IsCurrentlyRunning, &u.CurrentRunID,
		&u.TotalDistanceKm, &u.TotalRuns, &u.TotalTimeSec, &u.XP, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id=$1`, id)
	return scanUser(row)
}

func (s *Service) UpdatePrivacy(ctx context.Context, id string, isPublic, isLocationPublic *bool) (User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET is_public = COALESCE($2, is_public),
		    is_location_public = COALESCE($3, is_location_public),
		    updated_at = now()
		WHERE id=$1
		RETURNING`+userColumns, id, isPublic, isLocationPublic)
	return scanUser(row)
}

func (s *Service) UpdateLocation(ctx context.Context, id string, lat, lng float64) (User, error) {
	if err := ValidateLatLng(lat, lng); err != nil {
		return User{}, err
	}
	row := s.db.QueryRow(ctx, `
		UPDATE users
		SET last_lat=$2, last_lng=$3, last_location_update=now(), updated_at=now()
		WHERE id=$1
		RETURNING`+userColumns, id, lat, lng)
	return scanUser(row)
}

// ValidateLatLng rejects coordinates outside the valid WGS84 ranges before
// they can reach a counter or an index.
func ValidateLatLng(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return apperr.Validation("latitude out of range")
	}
	if lng < -180 || lng > 180 {
		return apperr.Validation("longitude out of range")
	}
	return nil
}

// Nearby finds public users with a fresh location inside radiusKm of the
// center. A rectangular band prefilter narrows candidates in SQL, then the
// exact haversine distance decides membership. Longitude wrap at the
// antimeridian is not handled.
func (s *Service) Nearby(ctx context.Context, callerID string, lat, lng, radiusKm float64) ([]NearbyUser, error) {
	if err := ValidateLatLng(lat, lng); err != nil {
		return nil, err
	}
	if radiusKm < minRadiusKm {
		radiusKm = minRadiusKm
	}
	if radiusKm > maxRadiusKm {
		radiusKm = maxRadiusKm
	}

	latDelta, lngDelta := geo.BoundingDeltas(lat, radiusKm)
	rows, err := s.db.Query(ctx, `
		SELECT id, username, COALESCE(avatar_url,''), last_lat, last_lng, total_distance_km, xp
		FROM users
		WHERE is_public AND is_location_public
		  AND id <> $1
		  AND last_location_update > $2
		  AND last_lat BETWEEN $3 AND $4
		  AND last_lng BETWEEN $5 AND $6
	`, callerID, time.Now().Add(-locationFreshness),
		lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []NearbyUser
	for rows.Next() {
		var n NearbyUser
		var xp int
		if err := rows.Scan(&n.ID, &n.Username, &n.AvatarURL, &n.Lat, &n.Lng, &n.TotalDistanceKm, &xp); err != nil {
			return nil, err
		}
		d := geo.HaversineKm(lat, lng, n.Lat, n.Lng)
		if d > radiusKm {
			continue
		}
		n.DistanceKm = geo.RoundKm(d)
		n.Level = LevelForXP(xp)
		results = append(results, n)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
	return results, nil
}

// Leaderboard pages public users by lifetime distance, keyset on
// (total_distance_km, id) strictly below the cursor row. The first page is
// cached briefly in redis; paging consistency across fetches is weak.
func (s *Service) Leaderboard(ctx context.Context, page pagination.Page) ([]LeaderboardEntry, string, error) {
	page = pagination.Normalize(page)

	if page.Cursor == "" {
		if cached, ok := s.cachedLeaderboard(ctx, page.Limit); ok {
			next := pagination.NextCursor(cached, page.Limit, func(e LeaderboardEntry) string { return e.UserID })
			return cached, next, nil
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, username, COALESCE(avatar_url,''), total_distance_km, total_runs, xp
		FROM users
		WHERE is_public
		  AND ($1 = '' OR (total_distance_km, id) < (SELECT total_distance_km, id FROM users WHERE id=$1))
		ORDER BY total_distance_km DESC, id DESC
		LIMIT $2
	`, page.Cursor, page.Limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		var xp int
		if err := rows.Scan(&e.UserID, &e.Username, &e.AvatarURL, &e.TotalDistanceKm, &e.TotalRuns, &xp); err != nil {
			return nil, "", err
		}
		e.Level = LevelForXP(xp)
		entries = append(entries, e)
	}

	if page.Cursor == "" {
		s.cacheLeaderboard(ctx, page.Limit, entries)
	}
	next := pagination.NextCursor(entries, page.Limit, func(e LeaderboardEntry) string { return e.UserID })
	return entries, next, nil
}

func (s *Service) cachedLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, leaderboardKey(limit)).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (s *Service) cacheLeaderboard(ctx context.Context, limit int, entries []LeaderboardEntry) {
	if s.redis == nil || len(entries) == 0 {
		return
	}
	raw, _ := json.Marshal(entries)
	if err := s.redis.Set(ctx, leaderboardKey(limit), raw, leaderboardTTL).Err(); err != nil {
		log.Printf("leaderboard cache error: %v", err)
	}
}

func leaderboardKey(limit int) string {
	return fmt.Sprintf("leaderboard:distance:%d", limit)
}
