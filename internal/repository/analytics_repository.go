package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/adshield/fraud-service/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrNotFound = errors.New("not found")

// ActivityFilter narrows an activity listing to one entity and pages the
// result.
type ActivityFilter struct {
	EntityType models.EntityType // user, device or ip; empty for all
	EntityID   string
	Limit      int
	Offset     int
}

// AnalyticsRepository persists click events and suspicious activity records
// and serves the queries the engine and API need.
type AnalyticsRepository interface {
	SaveClick(ctx context.Context, click models.ClickEvent, fraudulent bool, score int) error
	ClicksByUser(ctx context.Context, userID string, since time.Time) ([]models.ClickStamp, error)
	CountClicksSince(ctx context.Context, since time.Time) (int64, error)

	SaveActivity(ctx context.Context, rec models.SuspiciousActivityRecord) error
	Activities(ctx context.Context, filter ActivityFilter) ([]models.SuspiciousActivityRecord, error)

	DeleteClicksBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
	DeleteActivitiesBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

type postgresAnalyticsRepository struct {
	db *sql.DB
}

// NewPostgresAnalyticsRepository wraps db with pool settings tuned for the
// click hot path.
func NewPostgresAnalyticsRepository(db *sql.DB) AnalyticsRepository {
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &postgresAnalyticsRepository{db: db}
}

func (r *postgresAnalyticsRepository) SaveClick(ctx context.Context, click models.ClickEvent, fraudulent bool, score int) error {
	const q = `
INSERT INTO click_events (user_id, device_id, ip, ad_id, ts, fraudulent, score)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, q,
		click.UserID, click.DeviceID, click.IP, click.AdID,
		click.Time(), fraudulent, score)
	return err
}

func (r *postgresAnalyticsRepository) ClicksByUser(ctx context.Context, userID string, since time.Time) ([]models.ClickStamp, error) {
	const q = `
SELECT ts FROM click_events
WHERE user_id = $1 AND ts >= $2
ORDER BY ts ASC`
	rows, err := r.db.QueryContext(ctx, q, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stamps []models.ClickStamp
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		stamps = append(stamps, models.ClickStamp{Timestamp: ts})
	}
	return stamps, rows.Err()
}

func (r *postgresAnalyticsRepository) CountClicksSince(ctx context.Context, since time.Time) (int64, error) {
	const q = `SELECT COUNT(*) FROM click_events WHERE ts >= $1`
	var count int64
	if err := r.db.QueryRowContext(ctx, q, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresAnalyticsRepository) SaveActivity(ctx context.Context, rec models.SuspiciousActivityRecord) error {
	const q = `
INSERT INTO suspicious_activities
  (id, activity_type, severity, user_id, device_id, ip, ad_id, score, reasons, details, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, q,
		id, string(rec.ActivityType), string(rec.Severity),
		rec.UserID, rec.DeviceID, rec.IP, rec.AdID,
		rec.Score, pq.Array(rec.Reasons), rec.Details,
		time.UnixMilli(rec.TimestampMillis))
	return err
}

func (r *postgresAnalyticsRepository) Activities(ctx context.Context, filter ActivityFilter) ([]models.SuspiciousActivityRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	const base = `
SELECT id, activity_type, severity, user_id, device_id, ip, ad_id, score, reasons, details, ts
FROM suspicious_activities`

	var (
		rows *sql.Rows
		err  error
	)
	switch filter.EntityType {
	case models.EntityUser:
		rows, err = r.db.QueryContext(ctx, base+` WHERE user_id = $1 ORDER BY ts DESC LIMIT $2 OFFSET $3`,
			filter.EntityID, limit, filter.Offset)
	case models.EntityDevice:
		rows, err = r.db.QueryContext(ctx, base+` WHERE device_id = $1 ORDER BY ts DESC LIMIT $2 OFFSET $3`,
			filter.EntityID, limit, filter.Offset)
	case models.EntityIP:
		rows, err = r.db.QueryContext(ctx, base+` WHERE ip = $1 ORDER BY ts DESC LIMIT $2 OFFSET $3`,
			filter.EntityID, limit, filter.Offset)
	default:
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY ts DESC LIMIT $1 OFFSET $2`,
			limit, filter.Offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.SuspiciousActivityRecord
	for rows.Next() {
		var (
			rec          models.SuspiciousActivityRecord
			activityType string
			severity     string
			details      sql.NullString
			ts           time.Time
		)
		if err := rows.Scan(&rec.ID, &activityType, &severity,
			&rec.UserID, &rec.DeviceID, &rec.IP, &rec.AdID,
			&rec.Score, pq.Array(&rec.Reasons), &details, &ts); err != nil {
			return nil, err
		}
		rec.ActivityType = models.ActivityType(activityType)
		rec.Severity = models.Severity(severity)
		rec.Details = details.String
		rec.TimestampMillis = ts.UnixMilli()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Batched deletes keep lock time and WAL churn bounded on large tables; the
// retention sweeper calls these in a loop until a short batch comes back.

func (r *postgresAnalyticsRepository) DeleteClicksBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	const q = `
DELETE FROM click_events
WHERE ctid IN (SELECT ctid FROM click_events WHERE ts < $1 LIMIT $2)`
	res, err := r.db.ExecContext(ctx, q, cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postgresAnalyticsRepository) DeleteActivitiesBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	const q = `
DELETE FROM suspicious_activities
WHERE ctid IN (SELECT ctid FROM suspicious_activities WHERE ts < $1 LIMIT $2)`
	res, err := r.db.ExecContext(ctx, q, cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
