package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir is a directory tree of class files, such as a build output folder.
type Dir struct {
	root   string
	opts   Options
	filter *filter
}

// OpenDir opens a class directory.
func OpenDir(root string, opts Options) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s: not a directory", ErrUnreadable, root)
	}
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}
	return &Dir{root: root, opts: opts, filter: f}, nil
}

func (d *Dir) Name() string { return d.root }

func (d *Dir) Close() error { return nil }

// Classes walks the tree. Paths are slash-separated and relative to the
// root. With Options.Nested, archives found in the tree are expanded.
func (d *Dir) Classes(ctx context.Context) ([]ClassFile, error) {
	var out []ClassFile
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if e.IsDir() || e.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.filter.class(rel):
			data, err := d.readFile(p)
			out = append(out, ClassFile{Path: rel, Data: data, Err: err})
		case d.opts.Nested && isArchiveName(rel) && !d.filter.excluded(rel):
			data, err := d.readFile(p)
			if err != nil {
				out = append(out, ClassFile{Path: rel, Err: err})
				return nil
			}
			a, err := readArchive(rel, data, d.opts, d.filter)
			if err != nil {
				out = append(out, ClassFile{Path: rel, Err: err})
				return nil
			}
			classes, err := a.collect(ctx, rel+"!/", false)
			if err != nil {
				return err
			}
			out = append(out, classes...)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, d.root, err)
	}
	sortClasses(out)
	return out, nil
}

func (d *Dir) readFile(p string) ([]byte, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.Size() > d.opts.effectiveMax() {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, p, info.Size())
	}
	return os.ReadFile(p)
}
