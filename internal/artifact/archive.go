package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
)

// Archive is a jar, war or zip file.
type Archive struct {
	name   string
	r      *zip.Reader
	closer io.Closer
	opts   Options
	filter *filter
}

// OpenArchive opens a zip-format archive on disk.
func OpenArchive(path string, opts Options) (*Archive, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return &Archive{name: path, r: &rc.Reader, closer: rc, opts: opts, filter: f}, nil
}

// ReadArchive opens an in-memory archive.
func ReadArchive(name string, data []byte, opts Options) (*Archive, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}
	return readArchive(name, data, opts, f)
}

func readArchive(name string, data []byte, opts Options, f *filter) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, name, err)
	}
	return &Archive{name: name, r: r, opts: opts, filter: f}, nil
}

func (a *Archive) Name() string { return a.name }

func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Classes returns the archive's class entries. With Options.Nested, class
// entries of library jars under BOOT-INF/lib and WEB-INF/lib are included
// with paths of the form lib.jar!/pkg/A.class.
func (a *Archive) Classes(ctx context.Context) ([]ClassFile, error) {
	out, err := a.collect(ctx, "", a.opts.Nested)
	if err != nil {
		return nil, err
	}
	sortClasses(out)
	return out, nil
}

func (a *Archive) collect(ctx context.Context, prefix string, nested bool) ([]ClassFile, error) {
	var out []ClassFile
	for _, zf := range a.r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if zf.FileInfo().IsDir() {
			continue
		}
		name := zf.Name
		switch {
		case a.filter.class(name):
			data, err := a.readEntry(zf)
			out = append(out, ClassFile{Path: prefix + name, Data: data, Err: err})
		case nested && a.filter.nestedJar(name):
			data, err := a.readEntry(zf)
			if err != nil {
				out = append(out, ClassFile{Path: prefix + name, Err: err})
				continue
			}
			inner, err := readArchive(prefix+name, data, a.opts, a.filter)
			if err != nil {
				out = append(out, ClassFile{Path: prefix + name, Err: err})
				continue
			}
			classes, err := inner.collect(ctx, prefix+name+"!/", false)
			if err != nil {
				return nil, err
			}
			out = append(out, classes...)
		}
	}
	return out, nil
}

func (a *Archive) readEntry(zf *zip.File) ([]byte, error) {
	limit := a.opts.effectiveMax()
	if zf.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, zf.Name, zf.UncompressedSize64)
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", zf.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", zf.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, zf.Name)
	}
	return data, nil
}
