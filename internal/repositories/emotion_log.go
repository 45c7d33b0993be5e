package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

var _ models.Repository[*models.EmotionLog] = (*EmotionLogRepository)(nil)

const emotionLogColumns = `id, sequence, user_id, emotion, intensity, note, track_url, logged_at, created_at, updated_at, deleted_at`

// EmotionLogRepository implements [models.Repository] for [models.EmotionLog] persistence.
//
// Timestamps are always written in UTC so range filters compare correctly.
type EmotionLogRepository struct {
	db *sql.DB
}

// NewEmotionLogRepository creates a new [EmotionLogRepository] with the given database connection
func NewEmotionLogRepository(db *sql.DB) *EmotionLogRepository {
	return &EmotionLogRepository{db: db}
}

// Create inserts a new emotion log
func (r *EmotionLogRepository) Create(entry *models.EmotionLog) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "emotion_logs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	entry.SetID(shared.GenerateID())
	entry.SetSequence(sequence)
	entry.LoggedAt = entry.LoggedAt.UTC()

	query := `
		INSERT INTO emotion_logs (id, sequence, user_id, emotion, intensity, note, track_url, logged_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, entry.ID(), sequence, entry.UserID, string(entry.Emotion), entry.Intensity,
		entry.Note, entry.TrackURL, entry.LoggedAt, entry.CreatedAt(), entry.UpdatedAt())
	if err != nil {
		return wrapInsertErr("emotion log", err)
	}
	return nil
}

// Get retrieves an emotion log by ID, excluding soft-deleted entries
func (r *EmotionLogRepository) Get(id string) (*models.EmotionLog, error) {
	query := `SELECT ` + emotionLogColumns + ` FROM emotion_logs WHERE id = ? AND deleted_at IS NULL`

	entry, err := scanEmotionLog(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: emotion log %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query emotion log: %w", err)
	}
	return entry, nil
}

// Update modifies the emotion, intensity, note, track and logged time of an entry
func (r *EmotionLogRepository) Update(entry *models.EmotionLog) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	entry.SetUpdatedAt(now)

	query := `
		UPDATE emotion_logs SET emotion = ?, intensity = ?, note = ?, track_url = ?, logged_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.Exec(query, string(entry.Emotion), entry.Intensity, entry.Note, entry.TrackURL,
		entry.LoggedAt.UTC(), now, entry.ID())
	if err != nil {
		return fmt.Errorf("failed to update emotion log: %w", err)
	}
	return requireAffected(result, "emotion log", entry.ID())
}

// Delete soft-deletes an emotion log by ID
func (r *EmotionLogRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE emotion_logs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete emotion log: %w", err)
	}
	return requireAffected(result, "emotion log", id)
}

// List retrieves emotion logs newest first.
//
// Supported criteria: "user_id" (string), "emotion" ([models.Emotion] or string),
// "since" and "until" ([time.Time], half-open range), "limit" (int).
func (r *EmotionLogRepository) List(criteria map[string]any) ([]*models.EmotionLog, error) {
	query := `SELECT ` + emotionLogColumns + ` FROM emotion_logs WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	switch e := criteria["emotion"].(type) {
	case models.Emotion:
		query += " AND emotion = ?"
		args = append(args, string(e))
	case string:
		if e != "" {
			query += " AND emotion = ?"
			args = append(args, e)
		}
	}
	if since, ok := criteria["since"].(time.Time); ok && !since.IsZero() {
		query += " AND logged_at >= ?"
		args = append(args, since.UTC())
	}
	if until, ok := criteria["until"].(time.Time); ok && !until.IsZero() {
		query += " AND logged_at < ?"
		args = append(args, until.UTC())
	}
	query += " ORDER BY logged_at DESC, sequence DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query emotion logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.EmotionLog
	for rows.Next() {
		entry, err := scanEmotionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan emotion log: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// CountByEmotion tallies a user's entries per emotion. Emotions without entries are omitted.
func (r *EmotionLogRepository) CountByEmotion(userID string) (map[models.Emotion]int, error) {
	query := `
		SELECT emotion, COUNT(*) FROM emotion_logs
		WHERE user_id = ? AND deleted_at IS NULL
		GROUP BY emotion
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count emotion logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Emotion]int)
	for rows.Next() {
		var (
			emotion string
			count   int
		)
		if err := rows.Scan(&emotion, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Emotion(emotion)] = count
	}
	return counts, rows.Err()
}

// UsersWithoutLogSince lists active users who have not logged anything at or after since.
func (r *EmotionLogRepository) UsersWithoutLogSince(since time.Time) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + ` FROM users u
		WHERE u.deleted_at IS NULL AND NOT EXISTS (
			SELECT 1 FROM emotion_logs l
			WHERE l.user_id = u.id AND l.deleted_at IS NULL AND l.logged_at >= ?
		)
		ORDER BY u.sequence ASC
	`
	rows, err := r.db.Query(query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanEmotionLog(row scanner) (*models.EmotionLog, error) {
	var (
		id, userID, emotion, note, trackURL string
		sequence, intensity                 int
		loggedAt, createdAt, updatedAt      time.Time
		deletedAt                           sql.NullTime
	)

	err := row.Scan(&id, &sequence, &userID, &emotion, &intensity, &note, &trackURL, &loggedAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	entry := models.NewEmotionLog(sequence, userID, models.Emotion(emotion), intensity)
	entry.SetID(id)
	entry.Note = note
	entry.TrackURL = trackURL
	entry.LoggedAt = loggedAt
	entry.SetCreatedAt(createdAt)
	entry.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		entry.SetDeletedAt(&deletedAt.Time)
	}
	return entry, nil
}
