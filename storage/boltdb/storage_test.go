package boltdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisync/healthstore/models"
	"github.com/medisync/healthstore/storage"
)

// createTestStorage создает временное хранилище для тестов
func createTestStorage(t *testing.T) *Storage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	ctx := context.Background()
	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestStorage_RecordLifecycle(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	// Записи нет
	_, err := store.GetRecord(ctx, "Patient", "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Создаем запись внутри мутации
	err = store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		_, ok, err := tx.Record()
		require.NoError(t, err)
		require.False(t, ok)

		return tx.PutRecord([]byte(`{"gender":"male"}`))
	})
	require.NoError(t, err)

	content, err := store.GetRecord(ctx, "Patient", "p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"gender":"male"}`, string(content))

	// Перезаписываем и читаем изнутри транзакции
	err = store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		current, ok, err := tx.Record()
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"gender":"male"}`, string(current))

		return tx.PutRecord([]byte(`{"gender":"female"}`))
	})
	require.NoError(t, err)

	content, err = store.GetRecord(ctx, "Patient", "p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"gender":"female"}`, string(content))

	// Удаляем
	err = store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		return tx.DeleteRecord()
	})
	require.NoError(t, err)

	_, err = store.GetRecord(ctx, "Patient", "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_KeysDoNotCollide(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	// Одинаковые id разных типов не пересекаются
	err := store.Mutate(ctx, "Patient", "x", func(tx storage.Tx) error {
		return tx.PutRecord([]byte(`{"kind":"patient"}`))
	})
	require.NoError(t, err)

	err = store.Mutate(ctx, "Observation", "x", func(tx storage.Tx) error {
		return tx.PutRecord([]byte(`{"kind":"observation"}`))
	})
	require.NoError(t, err)

	content, err := store.GetRecord(ctx, "Patient", "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"patient"}`, string(content))
}

func TestStorage_Mutate_RollsBackOnError(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	boom := errors.New("boom")

	// Ошибка после записи и добавления в журнал откатывает обе операции
	err := store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		if err := tx.PutRecord([]byte(`{"gender":"male"}`)); err != nil {
			return err
		}
		if _, err := tx.Append(models.ChangeInsert, []byte(`{"gender":"male"}`)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetRecord(ctx, "Patient", "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	entries, err := store.AllLiveEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStorage_AppendAndLiveEntries(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	var seqs []uint64

	for _, key := range []struct{ typ, id string }{
		{"Patient", "p1"},
		{"Patient", "p2"},
		{"Patient", "p1"},
	} {
		err := store.Mutate(ctx, key.typ, key.id, func(tx storage.Tx) error {
			seq, err := tx.Append(models.ChangeInsert, []byte(`{}`))
			if err != nil {
				return err
			}
			seqs = append(seqs, seq)
			return nil
		})
		require.NoError(t, err)
	}

	// Sequence id строго растут
	require.Len(t, seqs, 3)
	assert.Less(t, seqs[0], seqs[1])
	assert.Less(t, seqs[1], seqs[2])

	// LiveEntries отдает строки только своего ключа, по порядку
	err := store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		entries, err := tx.LiveEntries()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, seqs[0], entries[0].SequenceID)
		assert.Equal(t, seqs[2], entries[1].SequenceID)
		return nil
	})
	require.NoError(t, err)

	// Глобальный снимок упорядочен по sequence id
	entries, err := store.AllLiveEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, seqs[0], entries[0].SequenceID)
	assert.Equal(t, seqs[1], entries[1].SequenceID)
	assert.Equal(t, seqs[2], entries[2].SequenceID)
	assert.Equal(t, "p2", entries[1].ResourceID)
}

func TestStorage_DeleteEntries_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	var seq uint64
	err := store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		var err error
		seq, err = tx.Append(models.ChangeDelete, nil)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteEntries(ctx, []uint64{seq}))

	entries, err := store.AllLiveEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Повторное удаление того же набора не является ошибкой
	require.NoError(t, store.DeleteEntries(ctx, []uint64{seq}))
}

func TestStorage_Purge(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	var first, second uint64
	err := store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		var err error
		if first, err = tx.Append(models.ChangeInsert, []byte(`{}`)); err != nil {
			return err
		}
		second, err = tx.Append(models.ChangeInsert, []byte(`{"a":1}`))
		return err
	})
	require.NoError(t, err)

	err = store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		return tx.Purge([]uint64{first, second})
	})
	require.NoError(t, err)

	entries, err := store.AllLiveEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStorage_Clear(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	err := store.Mutate(ctx, "Patient", "p1", func(tx storage.Tx) error {
		if err := tx.PutRecord([]byte(`{}`)); err != nil {
			return err
		}
		_, err := tx.Append(models.ChangeInsert, []byte(`{}`))
		return err
	})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))

	_, err = store.GetRecord(ctx, "Patient", "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	entries, err := store.AllLiveEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
