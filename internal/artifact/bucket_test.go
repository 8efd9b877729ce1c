package artifact

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarcalls/internal/jvmtest"
)

type fakeStore struct {
	objects map[string][]byte
	listErr error
	getErr  map[string]error
}

func (f *fakeStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) Get(_ context.Context, bucket, key string, limit int64) ([]byte, error) {
	if err := f.getErr[key]; err != nil {
		return nil, err
	}
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

func TestParseBucketRef(t *testing.T) {
	tests := []struct {
		ref, bucket, prefix string
	}{
		{"s3://b", "b", ""},
		{"s3://b/", "b", ""},
		{"s3://b/builds/42", "b", "builds/42/"},
		{"s3://b/builds/42/", "b", "builds/42/"},
	}
	for _, tt := range tests {
		bucket, prefix, err := ParseBucketRef(tt.ref)
		require.NoError(t, err, tt.ref)
		assert.Equal(t, tt.bucket, bucket, tt.ref)
		assert.Equal(t, tt.prefix, prefix, tt.ref)
	}
	for _, ref := range []string{"s3://", "s3:///x", "gs://b/x"} {
		_, _, err := ParseBucketRef(ref)
		assert.ErrorIs(t, err, ErrBadRef, ref)
	}
}

func TestBucketClasses(t *testing.T) {
	lib, err := jvmtest.Jar(jvmtest.Entry{Name: "lib/L.class", Data: []byte{9}})
	require.NoError(t, err)
	store := &fakeStore{
		objects: map[string][]byte{
			"ws/run/pkg/B.class":   {1},
			"ws/run/pkg/A.class":   {2},
			"ws/run/README":        []byte("x"),
			"ws/run/deps/lib.jar":  lib,
			"ws/run/pkg/C.class":   {3},
			"ws/other/pkg/Z.class": {4},
		},
		getErr: map[string]error{"run/pkg/C.class": errors.New("AccessDenied")},
	}

	b, err := OpenBucket(context.Background(), store, "ws", "run/", Options{})
	require.NoError(t, err)
	assert.Equal(t, "s3://ws/run/", b.Name())

	classes, err := b.Classes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"deps/lib.jar!/lib/L.class", "pkg/A.class", "pkg/B.class", "pkg/C.class"}, paths(classes))
	assert.Equal(t, []byte{9}, classes[0].Data)
	assert.Error(t, classes[3].Err)
	assert.Nil(t, classes[3].Data)
}

func TestOpenBucketListFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}
	_, err := OpenBucket(context.Background(), store, "ws", "", Options{})
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestNewMinioStore(t *testing.T) {
	_, err := NewMinioStore(BucketConfig{Endpoint: "  "})
	assert.ErrorIs(t, err, ErrNoEndpoint)

	_, err = NewMinioStore(BucketConfig{Endpoint: "bad endpoint"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "artifact: init s3 client: "), err.Error())

	store, err := NewMinioStore(BucketConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.NotNil(t, store)
}
