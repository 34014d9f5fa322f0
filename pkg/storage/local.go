package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalSink writes files into Dir. An existing file is never overwritten:
// "report.docx" becomes "report (1).docx" and so on.
type LocalSink struct {
	Dir string
}

func NewLocalSink(dir string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &LocalSink{Dir: dir}, nil
}

func (s *LocalSink) Save(ctx context.Context, name string, r io.Reader, _ int64) (string, error) {
	name = sanitize(name)

	tmp, err := os.CreateTemp(s.Dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	for i := 0; i < 1000; i++ {
		target := filepath.Join(s.Dir, numbered(name, i))
		// Link fails if target exists, so concurrent saves never clobber.
		if err := os.Link(tmp.Name(), target); err == nil {
			return target, nil
		} else if !errors.Is(err, os.ErrExist) {
			if err := os.Rename(tmp.Name(), target); err != nil {
				return "", fmt.Errorf("move %s into place: %w", name, err)
			}
			return target, nil
		}
	}
	return "", fmt.Errorf("too many files named %s", name)
}

func numbered(name string, i int) string {
	if i == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), i, ext)
}

// sanitize keeps only the base name and replaces path separators.
func sanitize(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "document"
	}
	return name
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
