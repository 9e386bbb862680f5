// Package store defines checkpoint persistence for execution contexts.
//
// The engine's state manager writes checkpoints through the CheckpointStore
// interface; backends live in the subpackages memory, sqlite, redis, and
// postgres. Which triggers actually checkpoint is decided by the state
// manager's policy, not by the store.
package store
