// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Repositories for journal data support soft deletes via deleted_at timestamps and exclude deleted records from queries by default;
// push subscriptions are hard-deleted because an expired endpoint is never revived.
//
// Key Implementations:
//   - [UserRepository] : User account persistence with email-based lookups
//   - [IdentityRepository] : Provider identities, token refresh, and first sign-in account linking
//   - [PlaylistRepository] : Playlists and their case-insensitive tags
//   - [EmotionLogRepository] : Journal entries with date-range and emotion filters
//   - [PushSubscriptionRepository] : Web Push endpoints keyed by endpoint URL
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, log #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
