// Package models defines domain entities and persistence interfaces for the moodtape journaling service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing SoundCloud data
//   - [Track] : Track metadata returned by search and resolve
//   - [Waveform] : Amplitude samples drawn by the player canvas
//   - [Identity] : Normalized OAuth identity (uid, name, avatar)
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Accounts created on first SoundCloud sign-in
//   - [LinkedIdentity] : Provider identities and tokens linked to a user
//   - [Playlist] : User playlists with [Tag] labels
//   - [EmotionLog] : Journal entries recording how a track felt
//   - [PushSubscription] : Web Push endpoints registered by browsers
//
// All persistent entities embed [Base] which provides the [Model] interface (ID, timestamps) and soft delete bookkeeping.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
