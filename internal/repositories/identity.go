package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

var _ models.Repository[*models.LinkedIdentity] = (*IdentityRepository)(nil)

const identityColumns = `id, sequence, user_id, provider, uid, nickname, access_token, refresh_token, expires_at, raw_info, created_at, updated_at, deleted_at`

// IdentityRepository implements [models.Repository] for [models.LinkedIdentity] persistence.
type IdentityRepository struct {
	db    *sql.DB
	users *UserRepository
}

// NewIdentityRepository creates a new [IdentityRepository] with the given database connection
func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db, users: NewUserRepository(db)}
}

// Create inserts a linked identity; (provider, uid) must be unique.
func (r *IdentityRepository) Create(identity *models.LinkedIdentity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "identities")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	identity.SetID(shared.GenerateID())
	identity.SetSequence(sequence)

	query := `
		INSERT INTO identities (id, sequence, user_id, provider, uid, nickname, access_token, refresh_token, expires_at, raw_info, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		identity.ID(), sequence, identity.UserID, identity.Provider, identity.UID, identity.Nickname,
		identity.AccessToken, identity.RefreshToken, nullTime(identity.ExpiresAt), rawInfo(identity.RawInfo),
		identity.CreatedAt(), identity.UpdatedAt(),
	)
	if err != nil {
		return wrapInsertErr("identity", err)
	}
	return nil
}

// Get retrieves an identity by ID, excluding soft-deleted rows
func (r *IdentityRepository) Get(id string) (*models.LinkedIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = ? AND deleted_at IS NULL`
	return r.queryOne(query, id)
}

// FindByProviderUID retrieves the identity a provider issued for uid.
func (r *IdentityRepository) FindByProviderUID(provider, uid string) (*models.LinkedIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE provider = ? AND uid = ? AND deleted_at IS NULL`
	return r.queryOne(query, provider, uid)
}

// Update stores refreshed profile fields and tokens.
func (r *IdentityRepository) Update(identity *models.LinkedIdentity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	identity.SetUpdatedAt(now)

	query := `
		UPDATE identities
		SET nickname = ?, access_token = ?, refresh_token = ?, expires_at = ?, raw_info = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		identity.Nickname, identity.AccessToken, identity.RefreshToken, nullTime(identity.ExpiresAt),
		rawInfo(identity.RawInfo), now, identity.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	return requireAffected(result, "identity", identity.ID())
}

// Delete soft-deletes an identity by ID
func (r *IdentityRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE identities SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return requireAffected(result, "identity", id)
}

// List retrieves identities matching the given criteria.
//
// Supported criteria: "user_id" (string), "provider" (string).
func (r *IdentityRepository) List(criteria map[string]any) ([]*models.LinkedIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if provider, ok := criteria["provider"].(string); ok && provider != "" {
		query += " AND provider = ?"
		args = append(args, provider)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var identities []*models.LinkedIdentity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return identities, nil
}

// LinkAccount resolves the user behind a provider identity, creating the user on first sign-in.
//
// An existing identity gets its tokens and profile refreshed. Providers that don't share an email
// address (SoundCloud) get a stable placeholder so the users.email uniqueness still holds.
// created reports whether a new user was inserted.
func (r *IdentityRepository) LinkAccount(identity models.Identity, creds models.Credentials, email string) (user *models.User, created bool, err error) {
	existing, err := r.FindByProviderUID(identity.Provider, identity.UID)
	switch {
	case err == nil:
		existing.Nickname = identity.Nickname
		existing.RawInfo = identity.RawInfo
		existing.Credentials = creds
		if err := r.Update(existing); err != nil {
			return nil, false, err
		}

		u, err := r.users.Get(existing.UserID)
		if err != nil {
			return nil, false, err
		}
		if identity.Image != "" && u.AvatarURL != identity.Image {
			u.AvatarURL = identity.Image
			if err := r.users.Update(u); err != nil {
				return nil, false, err
			}
		}
		return u, false, nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, false, err
	}

	if email == "" {
		email = PlaceholderEmail(identity.Provider, identity.UID)
	}
	name := identity.Name
	if name == "" {
		name = identity.Nickname
	}

	user = models.NewUser(0, email, name)
	user.AvatarURL = identity.Image
	if err := r.users.Create(user); err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	linked := models.NewLinkedIdentity(0, user.ID(), identity, creds)
	if err := r.Create(linked); err != nil {
		return nil, false, fmt.Errorf("failed to link identity: %w", err)
	}

	return user, true, nil
}

const placeholderDomain = "@users.noreply.moodtape.app"

// PlaceholderEmail returns the non-deliverable address used for users whose provider shares no email.
func PlaceholderEmail(provider, uid string) string {
	return fmt.Sprintf("%s-%s%s", provider, uid, placeholderDomain)
}

// IsPlaceholderEmail reports whether email was generated by [PlaceholderEmail].
func IsPlaceholderEmail(email string) bool {
	return strings.HasSuffix(strings.ToLower(email), placeholderDomain)
}

func (r *IdentityRepository) queryOne(query string, args ...any) (*models.LinkedIdentity, error) {
	identity, err := scanIdentity(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: identity", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}
	return identity, nil
}

func scanIdentity(row scanner) (*models.LinkedIdentity, error) {
	var (
		id, userID, provider, uid, nickname string
		accessToken, refreshToken, raw      string
		sequence                            int
		expiresAt, deletedAt                sql.NullTime
		createdAt, updatedAt                time.Time
	)

	err := row.Scan(&id, &sequence, &userID, &provider, &uid, &nickname, &accessToken, &refreshToken,
		&expiresAt, &raw, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	identity := models.NewLinkedIdentity(sequence, userID,
		models.Identity{Provider: provider, UID: uid, Nickname: nickname, RawInfo: raw},
		models.Credentials{AccessToken: accessToken, RefreshToken: refreshToken},
	)
	if expiresAt.Valid {
		identity.ExpiresAt = &expiresAt.Time
	}
	identity.SetID(id)
	identity.SetCreatedAt(createdAt)
	identity.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		identity.SetDeletedAt(&deletedAt.Time)
	}
	return identity, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func rawInfo(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
