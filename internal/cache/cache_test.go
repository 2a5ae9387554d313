package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/cache"
	"github.com/pablotheshekpeking/payroll-system/internal/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Hit", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := cache.NewStore(client, "banks", logger.Discard())

		mock.ExpectGet("banks:nigeria").SetVal(`[{"name":"Access Bank","code":"044"}]`)

		var banks []bank
		require.True(t, store.Get(ctx, "nigeria", &banks))
		assert.Equal(t, []bank{{Name: "Access Bank", Code: "044"}}, banks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Miss", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := cache.NewStore(client, "banks", logger.Discard())

		mock.ExpectGet("banks:nigeria").RedisNil()

		var banks []bank
		assert.False(t, store.Get(ctx, "nigeria", &banks))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ErrorIsMiss", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := cache.NewStore(client, "banks", logger.Discard())

		mock.ExpectGet("banks:nigeria").SetErr(errors.New("connection refused"))

		var banks []bank
		assert.False(t, store.Get(ctx, "nigeria", &banks))
	})

	t.Run("CorruptValueIsMiss", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := cache.NewStore(client, "banks", logger.Discard())

		mock.ExpectGet("banks:nigeria").SetVal(`not json`)

		var banks []bank
		assert.False(t, store.Get(ctx, "nigeria", &banks))
	})

	t.Run("Set", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := cache.NewStore(client, "banks", logger.Discard())

		mock.ExpectSet("banks:nigeria", []byte(`[{"name":"Access Bank","code":"044"}]`), time.Hour).SetVal("OK")

		store.Set(ctx, "nigeria", []bank{{Name: "Access Bank", Code: "044"}}, time.Hour)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NilStore", func(t *testing.T) {
		var client *redis.Client
		store := cache.NewStore(client, "banks", logger.Discard())
		assert.Nil(t, store)

		var banks []bank
		assert.False(t, store.Get(ctx, "nigeria", &banks))
		store.Set(ctx, "nigeria", banks, time.Hour)
		assert.NoError(t, store.Ping(ctx))
	})
}
