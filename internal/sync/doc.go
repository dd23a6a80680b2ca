// Package sync replays the offline queue against a remote server and
// applies remote changes locally.
//
// Push takes the entries that are still eligible (unsynced, under the retry
// ceiling) in replay order and sends them in batches. Entries for one
// entity are causally ordered: once an entry for an entity fails or is
// exhausted, later entries for that entity are held back until a later
// pass. Conflicts are settled by last-writer-wins on timestamps through
// the reconcile package.
//
// Pull fetches tasks changed since the stored cursor and writes them
// without queueing anything. A remote task is skipped when a pending local
// entry for it would win the conflict, since that entry will overwrite the
// remote copy on the next push.
//
// Sync failures never surface as errors: they are recorded on the queue
// entry (MarkFailed) and counted in the Report. Only storage failures are
// returned.
package sync
