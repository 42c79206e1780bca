// Package core provides the domain contracts shared by gatemesh packages:
//
//   - Message (the user message envelope and its helper metadata)
//   - SessionEvent and Direction (session boundaries and traffic direction)
//   - KVStore (the shared key/value store with per-key expiry)
//   - Clock (injectable wall-clock time)
//   - Middleware (per-connector message processing units)
//   - Recorder (session and store measurements)
//
// Concrete stores live in the store packages and concrete middleware in the
// middleware package, so hosts depend only on these small interfaces and
// decide which implementation to wire in.
package core
