// Package storage saves downloaded and converted documents, either to a local
// directory or to an object storage bucket.
package storage

import (
	"context"
	"io"
)

// Sink persists one file. Save must not leave a partial file behind when r
// fails mid-stream. size is -1 when unknown. The returned location is a
// path or URL the user can open.
type Sink interface {
	Save(ctx context.Context, name string, r io.Reader, size int64) (location string, err error)
}
