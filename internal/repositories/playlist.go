package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

var _ models.Repository[*models.Playlist] = (*PlaylistRepository)(nil)

const playlistColumns = `p.id, p.sequence, p.user_id, p.title, p.description, p.created_at, p.updated_at, p.deleted_at`

// PlaylistRepository implements [models.Repository] for [models.Playlist] persistence, including tags.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new [PlaylistRepository] with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a playlist and attaches any tags already set on it.
func (r *PlaylistRepository) Create(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	playlist.SetID(shared.GenerateID())
	playlist.SetSequence(sequence)

	query := `
		INSERT INTO playlists (id, sequence, user_id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, playlist.ID(), sequence, playlist.UserID, playlist.Title, playlist.Description,
		playlist.CreatedAt(), playlist.UpdatedAt())
	if err != nil {
		return wrapInsertErr("playlist", err)
	}

	if len(playlist.Tags) > 0 {
		tags, err := r.AddTags(playlist.ID(), playlist.TagNames()...)
		if err != nil {
			return err
		}
		playlist.Tags = tags
	}
	return nil
}

// Get retrieves a playlist with its tags, excluding soft-deleted playlists
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists p WHERE p.id = ? AND p.deleted_at IS NULL`

	playlist, err := scanPlaylist(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}

	if playlist.Tags, err = r.Tags(id); err != nil {
		return nil, err
	}
	return playlist, nil
}

// Update modifies title and description
func (r *PlaylistRepository) Update(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	playlist.SetUpdatedAt(now)

	query := `UPDATE playlists SET title = ?, description = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	result, err := r.db.Exec(query, playlist.Title, playlist.Description, now, playlist.ID())
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return requireAffected(result, "playlist", playlist.ID())
}

// Delete soft-deletes a playlist by ID
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE playlists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return requireAffected(result, "playlist", id)
}

// List retrieves playlists matching the given criteria, each with its tags.
//
// Supported criteria: "user_id" (string), "tag" (string, case-insensitive).
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists p WHERE p.deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND p.user_id = ?"
		args = append(args, userID)
	}
	if tag, ok := criteria["tag"].(string); ok && tag != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM playlist_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.playlist_id = p.id AND t.name = ?
		)`
		args = append(args, models.NormalizeTagName(tag))
	}
	query += " ORDER BY p.sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, p := range playlists {
		if p.Tags, err = r.Tags(p.ID()); err != nil {
			return nil, err
		}
	}
	return playlists, nil
}

// AddTags attaches tags by name, creating missing tags. Blank names are skipped and
// re-adding an attached tag is a no-op. Returns the playlist's full tag list.
func (r *PlaylistRepository) AddTags(playlistID string, names ...string) ([]models.Tag, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, raw := range names {
		name := models.NormalizeTagName(raw)
		if name == "" {
			continue
		}

		_, err := tx.Exec(`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
			shared.GenerateID(), name, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to insert tag: %w", err)
		}

		var tagID string
		if err := tx.QueryRow(`SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); err != nil {
			return nil, fmt.Errorf("failed to query tag: %w", err)
		}

		_, err = tx.Exec(`INSERT INTO playlist_tags (playlist_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, playlistID, tagID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
			}
			return nil, fmt.Errorf("failed to attach tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tags: %w", err)
	}
	return r.Tags(playlistID)
}

// RemoveTag detaches a tag by name. Tags themselves are kept for other playlists.
func (r *PlaylistRepository) RemoveTag(playlistID, name string) error {
	query := `DELETE FROM playlist_tags WHERE playlist_id = ? AND tag_id = (SELECT id FROM tags WHERE name = ?)`
	result, err := r.db.Exec(query, playlistID, models.NormalizeTagName(name))
	if err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	return requireAffected(result, "tag", name)
}

// Tags lists the tags attached to a playlist ordered by name.
func (r *PlaylistRepository) Tags(playlistID string) ([]models.Tag, error) {
	query := `
		SELECT t.id, t.name, t.created_at FROM tags t
		JOIN playlist_tags pt ON pt.tag_id = t.id
		WHERE pt.playlist_id = ?
		ORDER BY t.name COLLATE NOCASE ASC
	`
	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func scanPlaylist(row scanner) (*models.Playlist, error) {
	var (
		id, userID, title, description string
		sequence                       int
		createdAt, updatedAt           time.Time
		deletedAt                      sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &userID, &title, &description, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	playlist := models.NewPlaylist(sequence, userID, title, description)
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		playlist.SetDeletedAt(&deletedAt.Time)
	}
	return playlist, nil
}
