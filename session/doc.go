// Package session wires the notification engine together for one logged-in
// user: the store, the stream consumer, the toast queue, and the HTTP
// collaborator, constructed once and torn down together.
//
// A Session replaces ambient singletons. Presentation layers hold exactly one
// per login, subscribe to its store and toast queue, and drive everything
// through its action methods. Close releases the push connection and every
// subscription deterministically.
package session
