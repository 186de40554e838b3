package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"backend-stridehub/internal/db"
	"backend-stridehub/internal/pagination"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Emitter delivers fire-and-forget notifications. Failures are logged and
// swallowed so a lost notification never rolls back or blocks the operation
// that triggered it.
type Emitter struct {
	db    db.Querier
	redis *redis.Client
}

func NewEmitter(db db.Querier, redisClient *redis.Client) *Emitter {
	return &Emitter{db: db, redis: redisClient}
}

func (e *Emitter) Notify(ctx context.Context, userID, fromUserID, kind, title, body string, relatedIDs map[string]string) {
	n := Notification{
		ID:         uuid.NewString(),
		UserID:     userID,
		FromUserID: fromUserID,
		Type:       kind,
		Title:      title,
		Body:       body,
		RelatedIDs: relatedIDs,
		CreatedAt:  time.Now(),
	}

	related, _ := json.Marshal(n.RelatedIDs)
	if e.db != nil {
		_, err := e.db.Exec(ctx, `
			INSERT INTO notifications (id, user_id, from_user_id, type, title, body, related_ids, created_at)
			VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8)
		`, n.ID, n.UserID, n.FromUserID, n.Type, n.Title, n.Body, related, n.CreatedAt)
		if err != nil {
			log.Printf("notification insert error: %v", err)
		}
	}

	if e.redis != nil {
		payload, _ := json.Marshal(n)
		if err := e.redis.Publish(ctx, notifyChannel(userID), payload).Err(); err != nil {
			log.Printf("notification publish error: %v", err)
		}
	}
}

// List returns the user's notifications newest first, keyset-paged on
// (created_at, id) strictly before the cursor row.
func (e *Emitter) List(ctx context.Context, userID string, page pagination.Page) ([]Notification, string, error) {
	page = pagination.Normalize(page)
	rows, err := e.db.Query(ctx, `
		SELECT id, user_id, COALESCE(from_user_id,''), type, title, body, related_ids, created_at
		FROM notifications
		WHERE user_id=$1
		  AND ($2 = '' OR (created_at, id) < (SELECT created_at, id FROM notifications WHERE id=$2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, userID, page.Cursor, page.Limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var n Notification
		var related []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.FromUserID, &n.Type, &n.Title, &n.Body, &related, &n.CreatedAt); err != nil {
			return nil, "", err
		}
		if len(related) > 0 {
			_ = json.Unmarshal(related, &n.RelatedIDs)
		}
		items = append(items, n)
	}
	next := pagination.NextCursor(items, page.Limit, func(n Notification) string { return n.ID })
	return items, next, nil
}

func notifyChannel(userID string) string {
	return "notify:" + userID
}
