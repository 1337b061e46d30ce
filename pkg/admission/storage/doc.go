// Package storage provides backends for sliding-window admission entries.
//
// A window entry records one admitted request for a subject at a point in
// time. Entries logically expire once older than the rolling window; pruning
// is lazy, performed on read and write, never scheduled.
//
// Two backends are provided: an in-memory backend for tests and
// single-instance development, and a SQLite backend for deployments that
// need entries to survive restarts.
package storage
