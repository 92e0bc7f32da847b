// Package blobstore keeps the bytes of fetched resources on the file system, addressed
// by content digest. Fetches are staged under 'pulls' with a random name and renamed
// into 'blobs' once their digest is known, so a partially written resource is never
// visible under 'blobs'. The identifier to digest index is in memory only.
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/aceeric/imgpreload/impl/globals"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
)

// ErrNotFound is returned when an identifier has not been stored
var ErrNotFound = errors.New("blobstore: not found")

// Store is a content-addressed blob store rooted at a directory
type Store struct {
	mu    sync.Mutex
	dir   string
	index map[string]digest.Digest
	bytes int64
}

// New creates the store directories under 'dir' if they don't exist and returns a
// Store rooted there.
func New(dir string) (*Store, error) {
	for _, sub := range []string{globals.BlobsDir, globals.PullsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("unable to create cache directory %s: %w", filepath.Join(dir, sub), err)
		}
	}
	return &Store{
		dir:   dir,
		index: make(map[string]digest.Digest),
	}, nil
}

// Stage returns a unique path under the staging directory for a fetcher that needs
// a file path rather than a writer. The file is moved into the store by Commit.
func (s *Store) Stage() string {
	return filepath.Join(s.dir, globals.PullsDir, uuid.New().String())
}

// Put copies 'r' into the store and records it under 'identifier'. It returns the
// digest and the number of bytes written.
func (s *Store) Put(identifier string, r io.Reader) (digest.Digest, int64, error) {
	staged := s.Stage()
	f, err := os.Create(staged)
	if err != nil {
		return "", 0, err
	}
	digester := digest.Canonical.Digester()
	n, err := io.Copy(io.MultiWriter(f, digester.Hash()), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(staged)
		return "", 0, fmt.Errorf("error writing %s: %w", identifier, err)
	}
	d := digester.Digest()
	if err := s.commit(identifier, staged, d, n); err != nil {
		return "", 0, err
	}
	return d, n, nil
}

// Commit digests a file previously written to a path obtained from Stage and moves it
// into the store under 'identifier'.
func (s *Store) Commit(identifier string, staged string) (digest.Digest, int64, error) {
	f, err := os.Open(staged)
	if err != nil {
		return "", 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return "", 0, err
	}
	d, err := digest.FromReader(f)
	f.Close()
	if err != nil {
		return "", 0, err
	}
	if err := s.commit(identifier, staged, d, fi.Size()); err != nil {
		return "", 0, err
	}
	return d, fi.Size(), nil
}

// commit renames the staged file to its digest path. If identical content is already
// stored then the staged file is just removed and 'n' is not counted again.
func (s *Store) commit(identifier string, staged string, d digest.Digest, n int64) error {
	final := s.Path(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(final); err == nil {
		os.Remove(staged)
	} else if err := os.Rename(staged, final); err != nil {
		os.Remove(staged)
		return fmt.Errorf("unable to move %s into the cache: %w", identifier, err)
	} else {
		s.bytes += n
	}
	s.index[identifier] = d
	return nil
}

// Lookup returns the digest stored for 'identifier'
func (s *Store) Lookup(identifier string) (digest.Digest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.index[identifier]
	return d, ok
}

// Open opens the stored bytes for 'identifier'
func (s *Store) Open(identifier string) (*os.File, error) {
	d, ok := s.Lookup(identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}
	return os.Open(s.Path(d))
}

// Path returns the file system path of the blob with digest 'd'
func (s *Store) Path(d digest.Digest) string {
	return filepath.Join(s.dir, globals.BlobsDir, d.Encoded())
}

// Len returns the number of identifiers stored
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Bytes returns the size of the distinct blobs stored by this Store
func (s *Store) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}
