package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

type testRecord struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// brokenRedis returns a client whose server has already gone away, so
// every call fails.
func brokenRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, client := setupTestRedis(t)
	mr.Close()
	return client
}

func quietLogger() *logging.Logger {
	return logging.New("error")
}

type countingObserver struct {
	ops map[string]int
}

func (o *countingObserver) ObserveStorageOp(store, op, backend string) {
	if o.ops == nil {
		o.ops = map[string]int{}
	}
	o.ops[store+"/"+op+"/"+backend]++
}

func newRecordStore(t *testing.T, rdb *redis.Client, ttl time.Duration) (*RecordStore[testRecord], *FSDir) {
	t.Helper()
	dir := NewFSDir(filepath.Join(t.TempDir(), "assets"))
	store := NewRecordStore[testRecord](rdb, RecordConfig{
		Name:      "assets",
		KeyPrefix: "test:asset:",
		TTL:       ttl,
		Dir:       dir,
		Logger:    quietLogger(),
	})
	return store, dir
}

func TestRecordStore_FilesystemRoundTrip(t *testing.T) {
	store, dir := newRecordStore(t, nil, 0)
	ctx := context.Background()

	rec := &testRecord{ID: "q-1", Value: "data:image/png;base64,AAAA"}
	assert.Equal(t, BackendFS, store.Put(ctx, "q-1", rec))

	got, backend := store.Get(ctx, "q-1")
	require.NotNil(t, got)
	assert.Equal(t, BackendFS, backend)
	assert.Equal(t, *rec, *got)

	again, _ := store.Get(ctx, "q-1")
	assert.Equal(t, got, again)

	path, err := dir.Path()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(path, "q-1.json"))
	assert.NoError(t, err)

	assert.True(t, store.Delete(ctx, "q-1"))
	missing, backend := store.Get(ctx, "q-1")
	assert.Nil(t, missing)
	assert.Equal(t, BackendNone, backend)
	assert.False(t, store.Delete(ctx, "q-1"))
}

func TestRecordStore_RemoteRoundTripWithTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	store, _ := newRecordStore(t, client, 7*24*time.Hour)
	ctx := context.Background()

	rec := &testRecord{ID: "q-2", Value: "https://example.com/bag.png"}
	assert.Equal(t, BackendKV, store.Put(ctx, "q-2", rec))
	assert.True(t, mr.Exists("test:asset:q-2"))
	assert.Equal(t, 7*24*time.Hour, mr.TTL("test:asset:q-2"))

	got, backend := store.Get(ctx, "q-2")
	require.NotNil(t, got)
	assert.Equal(t, BackendKV, backend)
	assert.Equal(t, *rec, *got)

	assert.True(t, store.Delete(ctx, "q-2"))
	assert.False(t, mr.Exists("test:asset:q-2"))
}

func TestRecordStore_FallsBackWhenRemoteFails(t *testing.T) {
	store, _ := newRecordStore(t, brokenRedis(t), time.Hour)
	ctx := context.Background()

	rec := &testRecord{ID: "q-3", Value: "v"}
	assert.Equal(t, BackendFS, store.Put(ctx, "q-3", rec))

	got, backend := store.Get(ctx, "q-3")
	require.NotNil(t, got)
	assert.Equal(t, BackendFS, backend)
	assert.Equal(t, "v", got.Value)

	assert.True(t, store.Delete(ctx, "q-3"))
	got, _ = store.Get(ctx, "q-3")
	assert.Nil(t, got)
}

func TestRecordStore_RemoteMissReadsFilesystem(t *testing.T) {
	_, client := setupTestRedis(t)
	store, dir := newRecordStore(t, client, 0)
	ctx := context.Background()

	// Simulate a record written while the remote tier was down.
	require.NoError(t, dir.WriteFile("q-4.json", []byte(`{"id":"q-4","value":"fs"}`)))

	got, backend := store.Get(ctx, "q-4")
	require.NotNil(t, got)
	assert.Equal(t, BackendFS, backend)

	assert.True(t, store.Delete(ctx, "q-4"))
	got, _ = store.Get(ctx, "q-4")
	assert.Nil(t, got, "remote delete should clear the filesystem copy too")
}

func TestRecordStore_FilesystemExpiry(t *testing.T) {
	store, _ := newRecordStore(t, nil, 7*24*time.Hour)
	ctx := context.Background()

	require.Equal(t, BackendFS, store.Put(ctx, "old", &testRecord{ID: "old"}))
	require.Equal(t, BackendFS, store.Put(ctx, "fresh", &testRecord{ID: "fresh"}))

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	store.cfg.Now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	got, _ := store.Get(ctx, "old")
	assert.Nil(t, got, "expired record must read as absent")

	removed, err = store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "fresh remains until sweep; old was removed on read")
}

func TestRecordStore_EmptyKeyIsSoftFailure(t *testing.T) {
	store, _ := newRecordStore(t, nil, 0)
	ctx := context.Background()
	assert.Equal(t, BackendNone, store.Put(ctx, "", &testRecord{}))
	got, backend := store.Get(ctx, "")
	assert.Nil(t, got)
	assert.Equal(t, BackendNone, backend)
	assert.False(t, store.Delete(ctx, ""))
}

func TestRecordStore_ReportsOperations(t *testing.T) {
	obs := &countingObserver{}
	store := NewRecordStore[testRecord](nil, RecordConfig{
		Name:     "assets",
		Dir:      NewFSDir(t.TempDir()),
		Logger:   quietLogger(),
		Observer: obs,
	})
	ctx := context.Background()
	store.Put(ctx, "a", &testRecord{ID: "a"})
	store.Get(ctx, "a")
	store.Get(ctx, "missing")

	assert.Equal(t, 1, obs.ops["assets/put/fs"])
	assert.Equal(t, 1, obs.ops["assets/get/fs"])
	assert.Equal(t, 1, obs.ops["assets/get/none"])
}

func TestFSDir_FallsBackToSecondCandidate(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	fallback := filepath.Join(root, "tmp", "assets")
	dir := NewFSDir(filepath.Join(blocker, "data"), fallback)

	path, err := dir.Path()
	require.NoError(t, err)
	assert.Equal(t, fallback, path)

	require.NoError(t, dir.WriteFile("k.json", []byte("{}")))
	_, err = os.Stat(filepath.Join(fallback, "k.json"))
	assert.NoError(t, err)
}

func TestFSDir_NoWritableCandidate(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	dir := NewFSDir(filepath.Join(blocker, "a"), filepath.Join(blocker, "b"))
	_, err := dir.Path()
	assert.ErrorIs(t, err, ErrNoWritableDir)
	assert.ErrorIs(t, dir.WriteFile("k.json", []byte("{}")), ErrNoWritableDir)

	store := NewRecordStore[testRecord](nil, RecordConfig{Name: "assets", Dir: dir, Logger: quietLogger()})
	assert.Equal(t, BackendNone, store.Put(context.Background(), "k", &testRecord{ID: "k"}))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c-d_e", SafeFilename("a/b.c-d e"))
	assert.Equal(t, "______etc_passwd", SafeFilename("../../etc/passwd"))
}
