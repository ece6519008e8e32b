// Package store defines the contract for the remote, version-controlled file
// store the archive is written to. Every write is a full-content overwrite of
// one path; an optional version token (the "sha") turns it into an atomic
// replace-if-unchanged.
package store

import "context"

// File is the current committed state of one path.
type File struct {
	Path    string
	Content string
	// SHA is the version token of the committed blob.
	SHA string
	// DownloadURL points at the raw content when the store exposes one.
	DownloadURL string
}

// Store reads and writes whole files by path.
//
// Get returns ErrNotFound when nothing is committed at path.
// Put creates path when sha is empty and replaces it when sha matches the
// committed version; an existing path without sha, or a stale sha, yields
// ErrConflict. Put returns the new version token.
// Delete removes path; an empty sha means "look up the current one first".
type Store interface {
	Get(ctx context.Context, path string) (*File, error)
	Put(ctx context.Context, path, content, message, sha string) (string, error)
	Delete(ctx context.Context, path, message, sha string) error
}
