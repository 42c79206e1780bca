// Package store houses concrete implementations of core.KVStore. The
// interface lives in the core package; keeping only implementations here
// prevents middleware from depending on a concrete backend.
//
// InMemoryStore suits tests and single-process gateways. Shared deployments
// use the Redis backend in the redis sub-package; only the wiring layer
// decides which implementation to instantiate.
package store
