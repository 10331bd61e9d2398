package conversation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store backend must share.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("find missing", func(t *testing.T) {
		_, err := store.FindByOwner(ctx, "missing-"+uuid.NewString())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("insert then find", func(t *testing.T) {
		owner := "owner-" + uuid.NewString()
		conv := Conversation{
			OwnerID:   owner,
			Turns:     []Turn{{Content: Greeting, Sender: SenderBot, Timestamp: base}},
			CreatedAt: base,
			UpdatedAt: base,
		}
		require.NoError(t, store.Insert(ctx, conv))

		got, err := store.FindByOwner(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, owner, got.OwnerID)
		require.Len(t, got.Turns, 1)
		require.Equal(t, Greeting, got.Turns[0].Content)
		require.Equal(t, SenderBot, got.Turns[0].Sender)
		require.True(t, got.CreatedAt.Equal(base), "created_at = %s", got.CreatedAt)
	})

	t.Run("duplicate insert", func(t *testing.T) {
		owner := "owner-" + uuid.NewString()
		conv := Conversation{OwnerID: owner, Turns: []Turn{}, CreatedAt: base, UpdatedAt: base}
		require.NoError(t, store.Insert(ctx, conv))
		require.ErrorIs(t, store.Insert(ctx, conv), ErrConversationExists)
	})

	t.Run("append keeps order", func(t *testing.T) {
		owner := "owner-" + uuid.NewString()
		require.NoError(t, store.Insert(ctx, Conversation{OwnerID: owner, Turns: []Turn{}, CreatedAt: base, UpdatedAt: base}))

		contents := []string{"first", "second", "third"}
		for i, c := range contents {
			sender := SenderUser
			if i%2 == 1 {
				sender = SenderBot
			}
			ts := base.Add(time.Duration(i+1) * time.Second)
			require.NoError(t, store.AppendTurn(ctx, owner, Turn{Content: c, Sender: sender, Timestamp: ts}))
		}

		got, err := store.FindByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, got.Turns, len(contents))
		for i, c := range contents {
			require.Equal(t, c, got.Turns[i].Content)
		}
		require.Equal(t, SenderBot, got.Turns[1].Sender)
		require.True(t, got.UpdatedAt.Equal(base.Add(3*time.Second)), "updated_at = %s", got.UpdatedAt)
	})

	t.Run("append to missing", func(t *testing.T) {
		err := store.AppendTurn(ctx, "missing-"+uuid.NewString(), Turn{Content: "hi", Sender: SenderUser, Timestamp: base})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		owner := "owner-" + uuid.NewString()
		require.NoError(t, store.Insert(ctx, Conversation{
			OwnerID:   owner,
			Turns:     []Turn{{Content: Greeting, Sender: SenderBot, Timestamp: base}},
			CreatedAt: base,
			UpdatedAt: base,
		}))

		deleted, err := store.DeleteByOwner(ctx, owner)
		require.NoError(t, err)
		require.True(t, deleted)

		_, err = store.FindByOwner(ctx, owner)
		require.ErrorIs(t, err, ErrNotFound)

		deleted, err = store.DeleteByOwner(ctx, owner)
		require.NoError(t, err)
		require.False(t, deleted)

		// A recreated conversation must not inherit old turns.
		require.NoError(t, store.Insert(ctx, Conversation{OwnerID: owner, Turns: []Turn{}, CreatedAt: base, UpdatedAt: base}))
		got, err := store.FindByOwner(ctx, owner)
		require.NoError(t, err)
		require.Empty(t, got.Turns)
	})
}

func TestInMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewInMemoryStore())
}

func TestSQLiteStoreContract(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreContract(t, store)
}

func TestPostgresStoreContract(t *testing.T) {
	url := os.Getenv("REPOSE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("REPOSE_TEST_POSTGRES_URL not set")
	}
	store, err := NewPostgresStore(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreContract(t, store)
}

func TestMongoStoreContract(t *testing.T) {
	url := os.Getenv("REPOSE_TEST_MONGO_URL")
	if url == "" {
		t.Skip("REPOSE_TEST_MONGO_URL not set")
	}
	store, err := NewMongoStore(context.Background(), url, "repose-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreContract(t, store)
}

func TestRedisStoreContract(t *testing.T) {
	url := os.Getenv("REPOSE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("REPOSE_TEST_REDIS_URL not set")
	}
	store, err := NewRedisStore(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreContract(t, store)
}

func TestSQLiteDSN(t *testing.T) {
	dir := t.TempDir()
	dsn, err := SQLiteDSN("sqlite://" + filepath.Join(dir, "nested", "chat.db"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "nested", "chat.db")+"?_journal_mode=WAL&_busy_timeout=5000", dsn)

	info, err := os.Stat(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	dsn, err = SQLiteDSN("file:chat.db?cache=shared")
	require.NoError(t, err)
	require.Equal(t, "file:chat.db?cache=shared", dsn)

	_, err = SQLiteDSN("  ")
	require.Error(t, err)
}
