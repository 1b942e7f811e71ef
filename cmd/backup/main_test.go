package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paper-portal/storage"
)

func TestBackupKey(t *testing.T) {
	at := time.Date(2025, 3, 10, 4, 5, 6, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, "portal-backup-2025-03-10T07-05-06Z.sql.gz", backupKey(at))
}

func TestCompress(t *testing.T) {
	data, err := compress(strings.NewReader("CREATE TABLE papers ();"))
	require.NoError(t, err)

	r, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE papers ();", string(plain))
}

func TestRotateBackups(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("http://backups.test")
	start := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	var keys []string
	for i := 0; i < 6; i++ {
		key, err := upload(ctx, store, []byte("dump"), start.AddDate(0, 0, 7*i))
		require.NoError(t, err)
		keys = append(keys, key)
	}
	_, err := store.Put(ctx, "papers/other.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	deleted, err := rotateBackups(ctx, store, 4, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	for i, key := range keys {
		_, ok := store.Get(key)
		assert.Equal(t, i >= 2, ok, key)
	}
	_, ok := store.Get("papers/other.pdf")
	assert.True(t, ok)

	deleted, err = rotateBackups(ctx, store, 4, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
