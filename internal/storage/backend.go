// Package storage persists project documents and provisions their directory
// trees.
//
// Paths handed to a Backend are relative, slash-separated and already
// sanitized (see the layout package). Two backends exist: a local one built
// on afero and an S3-compatible one built on minio-go. Object stores have no
// directories, so the minio backend represents an empty directory with a
// zero-byte ".gitkeep" object.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Storage errors.
var (
	// ErrFileExists is returned by exclusive writes when the target exists.
	ErrFileExists = errors.New("file already exists")

	// ErrNotFound indicates the requested file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrNotDirectory indicates a file occupies a path where a directory is needed.
	ErrNotDirectory = errors.New("path exists and is not a directory")

	// ErrUnresolvedOwner indicates an owner without a resolvable project.
	ErrUnresolvedOwner = errors.New("owner has no resolvable project")

	// ErrInvalidPolicy indicates an unknown collision policy.
	ErrInvalidPolicy = errors.New("invalid collision policy")

	// ErrTooManyCollisions is returned when rename attempts run out.
	ErrTooManyCollisions = errors.New("too many name collisions")
)

// KeepFile marks an otherwise empty directory on object stores.
const KeepFile = ".gitkeep"

// WriteMode selects how Write treats an existing target.
type WriteMode int

const (
	// WriteExclusive fails with ErrFileExists when the target exists.
	WriteExclusive WriteMode = iota

	// WriteOverwrite replaces the target.
	WriteOverwrite
)

// FileInfo describes a stored file.
type FileInfo struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Backend is the storage surface used by the provisioner, the saver and the
// download handler.
type Backend interface {
	// EnsureDir creates dir and its parents when missing. created is false
	// when dir already existed, including when a concurrent caller won the
	// race to create it.
	EnsureDir(ctx context.Context, dir string) (created bool, err error)

	// Exists reports whether a file exists at p.
	Exists(ctx context.Context, p string) (bool, error)

	// Write stores r at p, creating parent directories. With WriteExclusive
	// an existing target yields ErrFileExists before r is read.
	Write(ctx context.Context, p string, r io.Reader, size int64, contentType string, mode WriteMode) error

	// Open returns a reader for the file at p. Missing files yield ErrNotFound.
	Open(ctx context.Context, p string) (io.ReadCloser, FileInfo, error)

	// Remove deletes the file at p. Missing files yield ErrNotFound.
	Remove(ctx context.Context, p string) error

	// ListDirs returns the names of the immediate subdirectories of dir. A
	// missing dir yields an empty list.
	ListDirs(ctx context.Context, dir string) ([]string, error)
}
