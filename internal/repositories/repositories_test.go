package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()

	user := models.NewUser(0, email, "Test User")
	if err := NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		user := models.NewUser(0, "test@example.com", "Test User")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if user.ID() == "" {
			t.Error("user ID should be set after creation")
		}
		if user.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "test@example.com")

		got, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Email != user.Email || got.Name != user.Name {
			t.Errorf("expected %s/%s, got %s/%s", user.Email, user.Name, got.Email, got.Name)
		}
	})

	t.Run("GetByEmail", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")

		got, err := NewUserRepository(db).GetByEmail("test@example.com")
		if err != nil {
			t.Fatalf("failed to get user by email: %v", err)
		}
		if got.ID() != user.ID() {
			t.Errorf("expected ID %s, got %s", user.ID(), got.ID())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "test@example.com")

		user.Name = "Renamed"
		user.AvatarURL = "https://i1.sndcdn.com/avatars-large.jpg"
		if err := repo.Update(user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		got, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Name != "Renamed" || got.AvatarURL != user.AvatarURL {
			t.Errorf("update not persisted: %+v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "test@example.com")

		if err := repo.Delete(user.ID()); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if _, err := repo.Get(user.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		createUser(t, db, "a@example.com")
		createUser(t, db, "b@example.com")

		users, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}

		filtered, err := repo.List(map[string]any{"email": "b@example.com"})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(filtered) != 1 || filtered[0].Email != "b@example.com" {
			t.Errorf("expected only b@example.com, got %v", filtered)
		}
	})
}

func TestIdentityRepository(t *testing.T) {
	identity := models.Identity{
		Provider: "soundcloud",
		UID:      "12345",
		Name:     "Ada Lovelace",
		Nickname: "ada",
		Image:    "https://i1.sndcdn.com/avatars-ada.jpg",
		RawInfo:  `{"id":12345,"username":"ada"}`,
	}

	t.Run("LinkAccount creates user on first sign-in", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewIdentityRepository(db)

		user, created, err := repo.LinkAccount(identity, models.Credentials{AccessToken: "token-1"}, "")
		if err != nil {
			t.Fatalf("LinkAccount failed: %v", err)
		}
		if !created {
			t.Error("expected a new user to be created")
		}
		if user.Name != "Ada Lovelace" {
			t.Errorf("expected name from identity, got %q", user.Name)
		}
		if user.Email != PlaceholderEmail("soundcloud", "12345") || !IsPlaceholderEmail(user.Email) {
			t.Errorf("expected placeholder email, got %q", user.Email)
		}
		if IsPlaceholderEmail("ada@example.com") {
			t.Error("real address reported as placeholder")
		}
		if user.AvatarURL != identity.Image {
			t.Errorf("expected avatar %q, got %q", identity.Image, user.AvatarURL)
		}

		linked, err := repo.FindByProviderUID("soundcloud", "12345")
		if err != nil {
			t.Fatalf("FindByProviderUID failed: %v", err)
		}
		if linked.UserID != user.ID() || linked.AccessToken != "token-1" {
			t.Errorf("unexpected linked identity: %+v", linked)
		}
		if linked.RawInfo != identity.RawInfo {
			t.Errorf("expected raw info %q, got %q", identity.RawInfo, linked.RawInfo)
		}
	})

	t.Run("LinkAccount refreshes an existing identity", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewIdentityRepository(db)

		first, _, err := repo.LinkAccount(identity, models.Credentials{AccessToken: "token-1"}, "")
		if err != nil {
			t.Fatalf("LinkAccount failed: %v", err)
		}

		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		next := identity
		next.Image = "https://i1.sndcdn.com/avatars-new.jpg"
		second, created, err := repo.LinkAccount(next, models.Credentials{AccessToken: "token-2", RefreshToken: "refresh", ExpiresAt: &expires}, "")
		if err != nil {
			t.Fatalf("LinkAccount failed: %v", err)
		}
		if created {
			t.Error("expected existing user to be reused")
		}
		if second.ID() != first.ID() {
			t.Errorf("expected user %s, got %s", first.ID(), second.ID())
		}
		if second.AvatarURL != next.Image {
			t.Errorf("expected avatar refreshed, got %q", second.AvatarURL)
		}

		linked, err := repo.FindByProviderUID("soundcloud", "12345")
		if err != nil {
			t.Fatalf("FindByProviderUID failed: %v", err)
		}
		if linked.AccessToken != "token-2" || linked.RefreshToken != "refresh" {
			t.Errorf("tokens not refreshed: %+v", linked.Credentials)
		}
		if linked.ExpiresAt == nil || !linked.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, linked.ExpiresAt)
		}
	})

	t.Run("LinkAccount falls back to nickname", func(t *testing.T) {
		repo := NewIdentityRepository(setupTestDB(t))
		anon := models.Identity{Provider: "soundcloud", UID: "99", Nickname: "quiet"}

		user, _, err := repo.LinkAccount(anon, models.Credentials{}, "quiet@example.com")
		if err != nil {
			t.Fatalf("LinkAccount failed: %v", err)
		}
		if user.Name != "quiet" || user.Email != "quiet@example.com" {
			t.Errorf("unexpected user %s <%s>", user.Name, user.Email)
		}
	})

	t.Run("List by user", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewIdentityRepository(db)

		user, _, err := repo.LinkAccount(identity, models.Credentials{}, "")
		if err != nil {
			t.Fatalf("LinkAccount failed: %v", err)
		}

		identities, err := repo.List(map[string]any{"user_id": user.ID(), "provider": "soundcloud"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(identities) != 1 {
			t.Errorf("expected 1 identity, got %d", len(identities))
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	t.Run("Create with tags and Get", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")
		repo := NewPlaylistRepository(db)

		playlist := models.NewPlaylist(0, user.ID(), "Rainy Days", "for grey afternoons")
		playlist.Tags = []models.Tag{{Name: "#lofi"}, {Name: "Chill"}}
		if err := repo.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		got, err := repo.Get(playlist.ID())
		if err != nil {
			t.Fatalf("failed to get playlist: %v", err)
		}
		if got.Title != "Rainy Days" {
			t.Errorf("expected title Rainy Days, got %q", got.Title)
		}

		names := got.TagNames()
		if len(names) != 2 || names[0] != "Chill" || names[1] != "lofi" {
			t.Errorf("expected [Chill lofi], got %v", names)
		}
	})

	t.Run("AddTags is idempotent and case-insensitive", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")
		repo := NewPlaylistRepository(db)

		playlist := models.NewPlaylist(0, user.ID(), "Morning", "")
		if err := repo.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if _, err := repo.AddTags(playlist.ID(), "focus", " ", "FOCUS", "#focus"); err != nil {
			t.Fatalf("AddTags failed: %v", err)
		}
		tags, err := repo.AddTags(playlist.ID(), "energy")
		if err != nil {
			t.Fatalf("AddTags failed: %v", err)
		}
		if len(tags) != 2 {
			t.Errorf("expected 2 tags, got %v", tags)
		}
	})

	t.Run("AddTags unknown playlist", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))

		if _, err := repo.AddTags("missing", "focus"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RemoveTag", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")
		repo := NewPlaylistRepository(db)

		playlist := models.NewPlaylist(0, user.ID(), "Evening", "")
		playlist.Tags = []models.Tag{{Name: "calm"}}
		if err := repo.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		if err := repo.RemoveTag(playlist.ID(), "Calm"); err != nil {
			t.Fatalf("RemoveTag failed: %v", err)
		}
		if err := repo.RemoveTag(playlist.ID(), "calm"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second removal, got %v", err)
		}
	})

	t.Run("List by user and tag", func(t *testing.T) {
		db := setupTestDB(t)
		alice := createUser(t, db, "alice@example.com")
		bob := createUser(t, db, "bob@example.com")
		repo := NewPlaylistRepository(db)

		for _, p := range []struct {
			user  *models.User
			title string
			tag   string
		}{
			{alice, "One", "jazz"},
			{alice, "Two", "rock"},
			{bob, "Three", "jazz"},
		} {
			playlist := models.NewPlaylist(0, p.user.ID(), p.title, "")
			playlist.Tags = []models.Tag{{Name: p.tag}}
			if err := repo.Create(playlist); err != nil {
				t.Fatalf("failed to create playlist: %v", err)
			}
		}

		mine, err := repo.List(map[string]any{"user_id": alice.ID()})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(mine) != 2 {
			t.Errorf("expected 2 playlists for alice, got %d", len(mine))
		}

		jazz, err := repo.List(map[string]any{"tag": "#JAZZ"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(jazz) != 2 {
			t.Errorf("expected 2 jazz playlists, got %d", len(jazz))
		}
		for _, p := range jazz {
			if len(p.Tags) != 1 {
				t.Errorf("expected tags loaded on %s", p.Title)
			}
		}
	})

	t.Run("Update and Delete", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")
		repo := NewPlaylistRepository(db)

		playlist := models.NewPlaylist(0, user.ID(), "Draft", "")
		if err := repo.Create(playlist); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}

		playlist.Title = "Final"
		if err := repo.Update(playlist); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if err := repo.Delete(playlist.ID()); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(playlist.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestEmotionLogRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")
		repo := NewEmotionLogRepository(db)

		entry := models.NewEmotionLog(0, user.ID(), models.Nostalgia, 4)
		entry.Note = "summer 2009"
		entry.TrackURL = "https://soundcloud.com/artist/track"
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create emotion log: %v", err)
		}

		got, err := repo.Get(entry.ID())
		if err != nil {
			t.Fatalf("failed to get emotion log: %v", err)
		}
		if got.Emotion != models.Nostalgia || got.Intensity != 4 || got.Note != "summer 2009" {
			t.Errorf("unexpected entry %+v", got)
		}
		if !got.LoggedAt.Equal(entry.LoggedAt) {
			t.Errorf("expected logged_at %v, got %v", entry.LoggedAt, got.LoggedAt)
		}
	})

	t.Run("List filters", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")
		repo := NewEmotionLogRepository(db)

		base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		for i, e := range []models.Emotion{models.Joy, models.Calm, models.Joy} {
			entry := models.NewEmotionLog(0, user.ID(), e, 3)
			entry.LoggedAt = base.Add(time.Duration(i) * 24 * time.Hour)
			if err := repo.Create(entry); err != nil {
				t.Fatalf("failed to create emotion log: %v", err)
			}
		}

		tests := []struct {
			name     string
			criteria map[string]any
			want     int
		}{
			{"all", map[string]any{"user_id": user.ID()}, 3},
			{"by emotion", map[string]any{"emotion": models.Joy}, 2},
			{"by emotion string", map[string]any{"emotion": "calm"}, 1},
			{"since", map[string]any{"since": base.Add(24 * time.Hour)}, 2},
			{"range", map[string]any{"since": base, "until": base.Add(24 * time.Hour)}, 1},
			{"limit", map[string]any{"limit": 1}, 1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				entries, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("List failed: %v", err)
				}
				if len(entries) != tt.want {
					t.Errorf("expected %d entries, got %d", tt.want, len(entries))
				}
			})
		}

		entries, _ := repo.List(nil)
		if len(entries) > 1 && entries[0].LoggedAt.Before(entries[1].LoggedAt) {
			t.Error("expected newest entries first")
		}
	})

	t.Run("CountByEmotion", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")
		repo := NewEmotionLogRepository(db)

		for _, e := range []models.Emotion{models.Joy, models.Joy, models.Anger} {
			if err := repo.Create(models.NewEmotionLog(0, user.ID(), e, 2)); err != nil {
				t.Fatalf("failed to create emotion log: %v", err)
			}
		}

		counts, err := repo.CountByEmotion(user.ID())
		if err != nil {
			t.Fatalf("CountByEmotion failed: %v", err)
		}
		if counts[models.Joy] != 2 || counts[models.Anger] != 1 || len(counts) != 2 {
			t.Errorf("unexpected counts %v", counts)
		}
	})

	t.Run("UsersWithoutLogSince", func(t *testing.T) {
		db := setupTestDB(t)
		active := createUser(t, db, "active@example.com")
		idle := createUser(t, db, "idle@example.com")
		repo := NewEmotionLogRepository(db)

		since := time.Now().UTC().Add(-time.Hour)

		recent := models.NewEmotionLog(0, active.ID(), models.Calm, 1)
		if err := repo.Create(recent); err != nil {
			t.Fatalf("failed to create emotion log: %v", err)
		}
		old := models.NewEmotionLog(0, idle.ID(), models.Calm, 1)
		old.LoggedAt = since.Add(-24 * time.Hour)
		if err := repo.Create(old); err != nil {
			t.Fatalf("failed to create emotion log: %v", err)
		}

		users, err := repo.UsersWithoutLogSince(since)
		if err != nil {
			t.Fatalf("UsersWithoutLogSince failed: %v", err)
		}
		if len(users) != 1 || users[0].ID() != idle.ID() {
			t.Errorf("expected only idle user, got %v", users)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "test@example.com")
		repo := NewEmotionLogRepository(db)

		entry := models.NewEmotionLog(0, user.ID(), models.Fear, 5)
		if err := repo.Create(entry); err != nil {
			t.Fatalf("failed to create emotion log: %v", err)
		}
		if err := repo.Delete(entry.ID()); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		entries, err := repo.List(map[string]any{"user_id": user.ID()})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected deleted entries to be hidden, got %d", len(entries))
		}
	})
}

func TestPushSubscriptionRepository(t *testing.T) {
	const endpoint = "https://fcm.googleapis.com/fcm/send/abc123"

	t.Run("Upsert creates then takes over", func(t *testing.T) {
		db := setupTestDB(t)
		alice := createUser(t, db, "alice@example.com")
		bob := createUser(t, db, "bob@example.com")
		repo := NewPushSubscriptionRepository(db)

		first := models.NewPushSubscription(0, alice.ID(), endpoint, "p256dh-1", "auth-1")
		if err := repo.Upsert(first); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		second := models.NewPushSubscription(0, bob.ID(), endpoint, "p256dh-2", "auth-2")
		if err := repo.Upsert(second); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if second.ID() != first.ID() {
			t.Errorf("expected same row, got %s and %s", first.ID(), second.ID())
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 1 || all[0].UserID != bob.ID() || all[0].P256dh != "p256dh-2" {
			t.Errorf("unexpected subscriptions %+v", all)
		}
	})

	t.Run("DeleteByEndpoint scoped to user", func(t *testing.T) {
		db := setupTestDB(t)
		alice := createUser(t, db, "alice@example.com")
		bob := createUser(t, db, "bob@example.com")
		repo := NewPushSubscriptionRepository(db)

		if err := repo.Create(models.NewPushSubscription(0, alice.ID(), endpoint, "k", "a")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if err := repo.DeleteByEndpoint(bob.ID(), endpoint); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for another user, got %v", err)
		}
		if err := repo.DeleteByEndpoint(alice.ID(), endpoint); err != nil {
			t.Fatalf("DeleteByEndpoint failed: %v", err)
		}
		if _, err := repo.GetByEndpoint(endpoint); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("List by user", func(t *testing.T) {
		db := setupTestDB(t)
		alice := createUser(t, db, "alice@example.com")
		repo := NewPushSubscriptionRepository(db)

		for _, ep := range []string{endpoint, endpoint + "-2"} {
			if err := repo.Create(models.NewPushSubscription(0, alice.ID(), ep, "k", "a")); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}

		subs, err := repo.List(map[string]any{"user_id": alice.ID()})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(subs) != 2 {
			t.Errorf("expected 2 subscriptions, got %d", len(subs))
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "users")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for missing sequence table")
	}
}
