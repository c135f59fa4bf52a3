package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/config"
)

func TestCleanKey(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "generated/conjugator/verb_conjugator.py", want: "generated/conjugator/verb_conjugator.py"},
		{in: "/usage_report.json", want: "usage_report.json"},
		{in: `generated\tests\test_conjugator.py`, want: "generated/tests/test_conjugator.py"},
		{in: "a/./b/../c.txt", want: "a/c.txt"},
		{in: "", wantErr: true},
		{in: "../outside.txt", wantErr: true},
		{in: "a/../../outside.txt", wantErr: true},
		{in: "/", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := cleanKey(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, store schemas.ArtifactStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.WriteText(ctx, "generated/conjugator/verb_conjugator.py", "v1"))
	require.NoError(t, store.WriteText(ctx, "generated/conjugator/verb_conjugator.py", "v2"))
	got, err := store.ReadText(ctx, "generated/conjugator/verb_conjugator.py")
	require.NoError(t, err)
	assert.Equal(t, "v2", got, "writes replace the whole object")

	report := schemas.UsageReport{TotalTokens: 9, Usage: map[string]schemas.UsageStats{"m": {NumAPICalls: 2, TotalTokens: 9}}}
	require.NoError(t, store.WriteStructured(ctx, "usage_report.json", report))
	raw, err := store.ReadText(ctx, "usage_report.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_tokens":9,"usage":{"m":{"numApiCalls":2,"totalTokens":9}}}`, raw)

	_, err = store.ReadText(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, schemas.ErrStorage)

	err = store.WriteText(ctx, "../escape.txt", "x")
	var storeErr *schemas.StorageError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "write", storeErr.Op)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.WriteText(cancelled, "late.txt", "x"), context.Canceled)
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, zaptest.NewLogger(t))
	require.NoError(t, err)
	exerciseStore(t, store)

	data, err := os.ReadFile(filepath.Join(root, "generated", "conjugator", "verb_conjugator.py"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "generated", "conjugator"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalStore_WriteFailure(t *testing.T) {
	root := t.TempDir()
	// A regular file where a directory is needed makes MkdirAll fail.
	require.NoError(t, os.WriteFile(filepath.Join(root, "generated"), []byte("x"), 0o644))
	store, err := NewLocalStore(root, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = store.WriteText(context.Background(), "generated/tests/test_conjugator.py", "import pytest")
	assert.ErrorIs(t, err, schemas.ErrStorage)
	assert.ErrorContains(t, err, "creating directory")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)
	assert.Equal(t, []string{"generated/conjugator/verb_conjugator.py", "usage_report.json"}, store.Keys())
}

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	fsStore, err := New(ctx, config.StorageConfig{Backend: config.StorageFS}, t.TempDir(), logger)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, fsStore)

	memStore, err := New(ctx, config.StorageConfig{Backend: config.StorageMemory}, "", logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, memStore)

	s3Store, err := New(ctx, config.StorageConfig{Backend: config.StorageS3, S3: config.S3Config{
		Endpoint: "localhost:9000", Bucket: "artifacts", AccessKey: "ak", SecretKey: "sk",
	}}, "", logger)
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, s3Store)

	_, err = New(ctx, config.StorageConfig{Backend: "tape"}, "", logger)
	assert.ErrorContains(t, err, `unsupported storage backend "tape"`)
}

func TestNewS3Store_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	valid := config.S3Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "ak", SecretKey: "sk"}

	testCases := []struct {
		name   string
		mutate func(*config.S3Config)
		errMsg string
	}{
		{"missing endpoint", func(c *config.S3Config) { c.Endpoint = " " }, "endpoint is required"},
		{"missing secret", func(c *config.S3Config) { c.SecretKey = "" }, "access key and secret key are required"},
		{"missing bucket", func(c *config.S3Config) { c.Bucket = "" }, "bucket is required"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			_, err := NewS3Store(context.Background(), cfg, logger)
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}

	store, err := NewS3Store(context.Background(), valid, logger)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", store.region, "region defaults")
}

// scriptedBuckets answers bucket checks from a queue of errors.
type scriptedBuckets struct {
	existsErrs []error
	exists     bool
	checks     int
	made       int
}

func (b *scriptedBuckets) BucketExists(context.Context, string) (bool, error) {
	b.checks++
	if len(b.existsErrs) > 0 {
		err := b.existsErrs[0]
		b.existsErrs = b.existsErrs[1:]
		if err != nil {
			return false, err
		}
	}
	return b.exists, nil
}

func (b *scriptedBuckets) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	b.made++
	b.exists = true
	return nil
}

func TestS3Store_EnsureBucketRetriesAfterFailure(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.S3Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "ak", SecretKey: "sk"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	buckets := &scriptedBuckets{existsErrs: []error{errors.New("connection reset")}}
	store.buckets = buckets
	ctx := context.Background()

	require.ErrorContains(t, store.ensureBucket(ctx), "connection reset")
	require.NoError(t, store.ensureBucket(ctx), "a transient failure must not stick")
	assert.Equal(t, 1, buckets.made, "missing bucket is created")

	require.NoError(t, store.ensureBucket(ctx))
	assert.Equal(t, 2, buckets.checks, "a ready bucket is not checked again")
}

func TestS3Store_EnsureBucketAfterCancelledContext(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.S3Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "ak", SecretKey: "sk"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	store.buckets = &scriptedBuckets{existsErrs: []error{context.Canceled}, exists: true}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.ensureBucket(cancelled), context.Canceled)
	assert.NoError(t, store.ensureBucket(context.Background()))
}
