// Package artifact opens compiled JVM artifacts and enumerates the class
// files they contain. Sources are jar/zip archives, directories of class
// files, and s3:// bucket prefixes.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

var (
	ErrUnreadable = errors.New("artifact: unreadable artifact")
	ErrBadRef     = errors.New("artifact: invalid reference")
	ErrTooLarge   = errors.New("artifact: entry exceeds size cap")
	ErrNoEndpoint = errors.New("artifact: s3 endpoint is required")
)

// DefaultMaxEntrySize caps a single archive entry or object.
const DefaultMaxEntrySize = 64 << 20

// ClassFile is one class container found in a source. Err is set when the
// entry was found but could not be read; such entries carry no data.
type ClassFile struct {
	Path string
	Data []byte
	Err  error
}

// Source enumerates the class files of one artifact.
type Source interface {
	Name() string
	// Classes returns every class file sorted by path.
	Classes(ctx context.Context) ([]ClassFile, error)
	Close() error
}

// Options controls which entries a source yields.
type Options struct {
	Exclude      []string // gitignore-style patterns matched against entry paths
	ExcludeFile  string   // file of additional patterns, one per line
	Nested       bool     // descend into BOOT-INF/lib and WEB-INF/lib jars
	Versioned    bool     // include META-INF/versions/N/ entries
	MaxEntrySize int64    // 0 = DefaultMaxEntrySize
	S3           BucketConfig
}

func (o Options) effectiveMax() int64 {
	if o.MaxEntrySize > 0 {
		return o.MaxEntrySize
	}
	return DefaultMaxEntrySize
}

// Resolve opens the source named by ref: an s3://bucket/prefix reference,
// an existing directory, or an archive file.
func Resolve(ctx context.Context, ref string, opts Options) (Source, error) {
	if strings.HasPrefix(ref, "s3://") {
		bucket, prefix, err := ParseBucketRef(ref)
		if err != nil {
			return nil, err
		}
		store, err := NewMinioStore(opts.S3)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, ref, err)
		}
		return OpenBucket(ctx, store, bucket, prefix, opts)
	}
	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		return OpenDir(ref, opts)
	}
	return OpenArchive(ref, opts)
}

func sortClasses(classes []ClassFile) {
	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].Path < classes[j].Path
	})
}
