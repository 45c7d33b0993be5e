package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

var _ models.Repository[*models.PushSubscription] = (*PushSubscriptionRepository)(nil)

const pushSubscriptionColumns = `id, sequence, user_id, endpoint, p256dh, auth, user_agent, created_at, updated_at`

// PushSubscriptionRepository implements [models.Repository] for [models.PushSubscription] persistence.
//
// Subscriptions are hard-deleted: an expired endpoint is never valid again.
type PushSubscriptionRepository struct {
	db *sql.DB
}

// NewPushSubscriptionRepository creates a new [PushSubscriptionRepository] with the given database connection
func NewPushSubscriptionRepository(db *sql.DB) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{db: db}
}

// Create inserts a new subscription. A duplicate endpoint returns [shared.ErrDuplicate].
func (r *PushSubscriptionRepository) Create(sub *models.PushSubscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "push_subscriptions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	sub.SetID(shared.GenerateID())
	sub.SetSequence(sequence)

	query := `
		INSERT INTO push_subscriptions (id, sequence, user_id, endpoint, p256dh, auth, user_agent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, sub.ID(), sequence, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.UserAgent,
		sub.CreatedAt(), sub.UpdatedAt())
	if err != nil {
		return wrapInsertErr("push subscription", err)
	}
	return nil
}

// Upsert registers sub, taking over an existing row with the same endpoint.
//
// Browsers rotate keys and can be handed to another account, so the owner and keys are refreshed.
func (r *PushSubscriptionRepository) Upsert(sub *models.PushSubscription) error {
	existing, err := r.GetByEndpoint(sub.Endpoint)
	if errors.Is(err, shared.ErrNotFound) {
		return r.Create(sub)
	}
	if err != nil {
		return err
	}

	sub.SetID(existing.ID())
	sub.SetSequence(existing.Sequence())
	sub.SetCreatedAt(existing.CreatedAt())
	return r.Update(sub)
}

// Get retrieves a subscription by ID
func (r *PushSubscriptionRepository) Get(id string) (*models.PushSubscription, error) {
	return r.queryOne(`SELECT `+pushSubscriptionColumns+` FROM push_subscriptions WHERE id = ?`, id)
}

// GetByEndpoint retrieves a subscription by its push service endpoint
func (r *PushSubscriptionRepository) GetByEndpoint(endpoint string) (*models.PushSubscription, error) {
	return r.queryOne(`SELECT `+pushSubscriptionColumns+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
}

// Update refreshes the owner, keys and user agent of a subscription
func (r *PushSubscriptionRepository) Update(sub *models.PushSubscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	sub.SetUpdatedAt(now)

	query := `UPDATE push_subscriptions SET user_id = ?, p256dh = ?, auth = ?, user_agent = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.Exec(query, sub.UserID, sub.P256dh, sub.Auth, sub.UserAgent, now, sub.ID())
	if err != nil {
		return fmt.Errorf("failed to update push subscription: %w", err)
	}
	return requireAffected(result, "push subscription", sub.ID())
}

// Delete removes a subscription by ID
func (r *PushSubscriptionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return requireAffected(result, "push subscription", id)
}

// DeleteByEndpoint removes the subscription for endpoint, scoped to userID when it is non-empty.
func (r *PushSubscriptionRepository) DeleteByEndpoint(userID, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE endpoint = ?`
	args := []any{endpoint}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return requireAffected(result, "push subscription", endpoint)
}

// List retrieves subscriptions oldest first.
//
// Supported criteria: "user_id" (string).
func (r *PushSubscriptionRepository) List(criteria map[string]any) ([]*models.PushSubscription, error) {
	query := `SELECT ` + pushSubscriptionColumns + ` FROM push_subscriptions`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.PushSubscription
	for rows.Next() {
		sub, err := scanPushSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return subs, nil
}

func (r *PushSubscriptionRepository) queryOne(query string, args ...any) (*models.PushSubscription, error) {
	sub, err := scanPushSubscription(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: push subscription", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscription: %w", err)
	}
	return sub, nil
}

func scanPushSubscription(row scanner) (*models.PushSubscription, error) {
	var (
		id, userID, endpoint, p256dh, auth, userAgent string
		sequence                                      int
		createdAt, updatedAt                          time.Time
	)

	if err := row.Scan(&id, &sequence, &userID, &endpoint, &p256dh, &auth, &userAgent, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	sub := models.NewPushSubscription(sequence, userID, endpoint, p256dh, auth)
	sub.UserAgent = userAgent
	sub.SetID(id)
	sub.SetCreatedAt(createdAt)
	sub.SetUpdatedAt(updatedAt)
	return sub, nil
}
