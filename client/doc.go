// Package client implements the HTTP collaborator the notification engine
// talks to: paginated inbox fetches, mark-read commands, the server-side
// unread counter, and preference reads and saves.
//
// All calls are synchronous, side-effect free on reads, and return typed
// errors: read failures come back as *FetchError and command failures as
// *CommandError, so callers can pick the matching recovery path (keep the
// cache and show a banner, or roll back an optimistic mutation).
package client
