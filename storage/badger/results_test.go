package badger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) storage.ResultRepository {
	t.Helper()
	repo, err := NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func record(requestID, text string, insertedAt time.Time) *core.ResultRecord {
	return &core.ResultRecord{
		RequestID:    requestID,
		DocumentID:   core.IDFromContent([]byte(text)),
		MimeType:     "image/jpeg",
		DocumentType: core.DocumentTypeCheck,
		Text:         text,
		Payload:      `{"amount":"100.00"}`,
		Confidence:   0.9,
		Success:      true,
		InsertedAt:   insertedAt,
	}
}

func TestSaveAndGetResult(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	saved, err := repo.SaveResults(ctx, record("req-1", "PAY TO THE ORDER OF", time.Time{}))
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.NotZero(t, saved[0].Id)
	assert.False(t, saved[0].InsertedAt.IsZero())

	got, err := repo.GetResult(ctx, saved[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "PAY TO THE ORDER OF", got.Text)
	assert.Equal(t, saved[0].InsertedAt, got.InsertedAt)

	byRequest, err := repo.GetResultByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, saved[0].Id, byRequest.Id)
}

func TestSaveResults_LargeRecordRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	text := strings.Repeat("line item 4.99\n", 1000)
	saved, err := repo.SaveResults(ctx, record("big", text, time.Time{}))
	require.NoError(t, err)

	got, err := repo.GetResult(ctx, saved[0].Id)
	require.NoError(t, err)
	assert.Equal(t, text, got.Text)
}

func TestSaveResults_ReplacesExisting(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	saved, err := repo.SaveResults(ctx, record("req-1", "first", base))
	require.NoError(t, err)

	updated := *saved[0]
	updated.Text = "second"
	updated.InsertedAt = base.Add(time.Hour)
	_, err = repo.SaveResults(ctx, &updated)
	require.NoError(t, err)

	got, err := repo.GetResult(ctx, saved[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text)

	// The old date index entry is gone.
	old, err := repo.GetResultsByDateRange(ctx, base, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, old)

	recent, err := repo.GetRecentResults(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestGetResult_NotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.GetResult(ctx, core.ID(12345))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.GetResultByRequestID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.GetResultByRequestID(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestGetResultsByDateRange(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := repo.SaveResults(ctx, record(fmt.Sprintf("req-%d", i), fmt.Sprintf("doc %d", i), base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	results, err := repo.GetResultsByDateRange(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "req-1", results[0].RequestID)
	assert.Equal(t, "req-2", results[1].RequestID)

	_, err = repo.GetResultsByDateRange(ctx, base, base.Add(-time.Hour))
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestGetRecentResults(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := repo.SaveResults(ctx, record(fmt.Sprintf("req-%d", i), fmt.Sprintf("doc %d", i), base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	recent, err := repo.GetRecentResults(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "req-4", recent[0].RequestID)
	assert.Equal(t, "req-3", recent[1].RequestID)
	assert.Equal(t, "req-2", recent[2].RequestID)

	_, err = repo.GetRecentResults(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestDeleteResults(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	saved, err := repo.SaveResults(ctx, record("req-1", "doc", time.Time{}))
	require.NoError(t, err)
	id := saved[0].Id

	require.NoError(t, repo.DeleteResults(ctx, id))

	_, err = repo.GetResult(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetResultByRequestID(ctx, "req-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recent, err := repo.GetRecentResults(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	assert.ErrorIs(t, repo.DeleteResults(ctx, id), storage.ErrNotFound)
}

func TestDeleteResults_KeepsRequestIndexOfNewerRecord(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	older, err := repo.SaveResults(ctx, record("req-dup", "first scan", base))
	require.NoError(t, err)
	newer, err := repo.SaveResults(ctx, record("req-dup", "second scan", base.Add(time.Minute)))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteResults(ctx, older[0].Id))

	got, err := repo.GetResultByRequestID(ctx, "req-dup")
	require.NoError(t, err)
	assert.Equal(t, newer[0].Id, got.Id)
	assert.Equal(t, "second scan", got.Text)

	require.NoError(t, repo.DeleteResults(ctx, newer[0].Id))
	_, err = repo.GetResultByRequestID(ctx, "req-dup")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveResults_Invalid(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.SaveResults(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.SaveResults(ctx, record("req", "doc", time.Time{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveResults_Concurrent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan core.ID, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			saved, err := repo.SaveResults(ctx, record(fmt.Sprintf("req-%d", i), fmt.Sprintf("doc %d", i), time.Time{}))
			if assert.NoError(t, err) {
				ids <- saved[0].Id
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[core.ID]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, 20)
}

func TestRepositoryClosed(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	repo, err := NewResultRepository(backend)
	require.NoError(t, err)

	require.NoError(t, repo.Close())
	require.NoError(t, backend.Close())

	_, err = repo.GetResult(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
