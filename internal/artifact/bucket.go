package artifact

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketConfig holds S3-compatible endpoint settings.
type BucketConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ObjectStore is the subset of an object store a Bucket source needs.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Get(ctx context.Context, bucket, key string, limit int64) ([]byte, error)
}

// MinioStore is an ObjectStore backed by an S3-compatible endpoint.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore connects to the configured endpoint.
func NewMinioStore(cfg BucketConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	var creds *credentials.Credentials
	if access != "" || secret != "" {
		creds = credentials.NewStaticV4(access, secret, "")
	} else {
		creds = credentials.NewEnvAWS()
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: init s3 client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

func (s *MinioStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MinioStore) Get(ctx context.Context, bucket, key string, limit int64) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, key)
	}
	return data, nil
}

// ParseBucketRef splits s3://bucket/prefix into its parts.
func ParseBucketRef(ref string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrBadRef, ref)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %q: missing bucket", ErrBadRef, ref)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

// Bucket is a workspace of class files and archives stored under a bucket
// prefix.
type Bucket struct {
	store  ObjectStore
	bucket string
	prefix string
	keys   []string
	opts   Options
	filter *filter
}

// OpenBucket lists the workspace. A listing failure makes the artifact
// unreadable.
func OpenBucket(ctx context.Context, store ObjectStore, bucket, prefix string, opts Options) (*Bucket, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}
	keys, err := store.List(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: s3://%s/%s: %v", ErrUnreadable, bucket, prefix, err)
	}
	return &Bucket{store: store, bucket: bucket, prefix: prefix, keys: keys, opts: opts, filter: f}, nil
}

func (b *Bucket) Name() string { return "s3://" + b.bucket + "/" + b.prefix }

func (b *Bucket) Close() error { return nil }

// Classes fetches class objects, and expands archive objects, under the
// prefix. Paths are relative to the prefix.
func (b *Bucket) Classes(ctx context.Context) ([]ClassFile, error) {
	limit := b.opts.effectiveMax()
	var out []ClassFile
	for _, key := range b.keys {
		rel := strings.TrimPrefix(key, b.prefix)
		isClass := b.filter.class(rel)
		isJar := isArchiveName(path.Base(rel)) && !b.filter.excluded(rel)
		if !isClass && !isJar {
			continue
		}
		data, err := b.store.Get(ctx, b.bucket, key, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			out = append(out, ClassFile{Path: rel, Err: fmt.Errorf("artifact: get %s: %w", key, err)})
			continue
		}
		if isClass {
			out = append(out, ClassFile{Path: rel, Data: data})
			continue
		}
		a, err := readArchive(rel, data, b.opts, b.filter)
		if err != nil {
			out = append(out, ClassFile{Path: rel, Err: err})
			continue
		}
		classes, err := a.collect(ctx, rel+"!/", b.opts.Nested)
		if err != nil {
			return nil, err
		}
		out = append(out, classes...)
	}
	sortClasses(out)
	return out, nil
}
