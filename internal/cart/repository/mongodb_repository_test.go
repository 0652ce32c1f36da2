package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (*MongoRepository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestListLines_UnknownUser(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	lines, err := repo.ListLines(context.Background(), "nonexistent")

	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestAddItem_NewLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", 1, 3))

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "user123", lines[0].UserID)
	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, int64(1), lines[0].Version)
	assert.False(t, lines[0].CreatedAt.IsZero())
}

func TestAddItem_ExistingLine_AccumulatesQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", 1, 2))
	require.NoError(t, repo.AddItem(ctx, "user123", 1, 3))

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, int64(2), lines[0].Version)
}

func TestAddItem_ConcurrentAddsKeepOneLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AddItem(ctx, "user123", 9, 1))
		}()
	}
	wg.Wait()

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 10, lines[0].Quantity)
}

func TestListLines_CreationOrderAndUserScope(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", 5, 1))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, repo.AddItem(ctx, "user123", 2, 1))
	require.NoError(t, repo.AddItem(ctx, "other", 3, 1))

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(5), lines[0].ProductID)
	assert.Equal(t, int64(2), lines[1].ProductID)
}

func TestUpdateItemQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", 1, 2))
	require.NoError(t, repo.UpdateItemQuantity(ctx, "user123", 1, 10))

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, 10, lines[0].Quantity)
	assert.Equal(t, int64(2), lines[0].Version)
}

func TestUpdateItemQuantity_MissingLineCreatesNothing(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.UpdateItemQuantity(ctx, "user123", 1, 10)
	assert.ErrorIs(t, err, ErrItemNotFound)

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", 1, 2))
	require.NoError(t, repo.AddItem(ctx, "user123", 2, 3))

	require.NoError(t, repo.RemoveItem(ctx, "user123", 1))
	require.NoError(t, repo.RemoveItem(ctx, "user123", 1))

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)
}

func TestDeleteConsumed_SkipsChangedLines(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", 1, 1))
	require.NoError(t, repo.AddItem(ctx, "user123", 2, 1))
	snapshot, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)

	// Line 2 changes after the snapshot was taken.
	require.NoError(t, repo.AddItem(ctx, "user123", 2, 4))

	deleted, err := repo.DeleteConsumed(ctx, "user123", domain.Consumed(snapshot))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity)

	again, err := repo.DeleteConsumed(ctx, "user123", domain.Consumed(snapshot))
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestDeleteCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, "user123", 1, 2))
	require.NoError(t, repo.AddItem(ctx, "user123", 2, 2))

	require.NoError(t, repo.DeleteCart(ctx, "user123"))
	require.NoError(t, repo.DeleteCart(ctx, "user123"))

	lines, err := repo.ListLines(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)

	_, err := repo.ListLines(ctx, "user123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
