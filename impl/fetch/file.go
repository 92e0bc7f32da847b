package fetch

import (
	"context"
	"os"
	"strings"
)

// File fetches file identifiers: 'file:///abs/path' or a bare path
type File struct {
	sink Sink
}

// NewFile returns a File fetcher that puts what it reads into 'sink'. If 'sink' is
// nil the file is read and discarded.
func NewFile(sink Sink) *File {
	return &File{sink: sink}
}

func (f *File) Schemes() []string {
	return []string{"file"}
}

func (f *File) Fetch(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := identifier
	if Scheme(identifier) == "file" {
		if _, rest, found := strings.Cut(identifier, "://"); found {
			path = rest
		}
	}
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	_, err = store(f.sink, identifier, fh)
	return err
}
