// Package tasks runs moodtape's background work with progress reporting.
//
// # Operations
//
//  1. [PushBroadcaster.Broadcast] : fan a notification out to push subscriptions
//     - A fixed pool of workers delivers payloads through a [push.Sender]
//     - A shared [rate.Limiter] paces deliveries across workers
//     - Subscriptions the push service reports as gone are deleted
//
//  2. [JournalExporter.BulkExport] : export emotion journals for many users
//     - Each worker renders one user's journal with the formatter package
//     - A manifest summarizes every export, including failures
//
//  3. [Reminders] : a cron schedule that nudges users who haven't logged today
//     - Users with push subscriptions get a notification
//     - Users with a real email address get the reminder mail
//
// # Progress Reporting
//
// Long-running operations accept a progress channel. The [ProgressUpdate] struct carries a phase, step
// counters and a message. Sends never block: an update is dropped when the channel is full or nil.
package tasks
