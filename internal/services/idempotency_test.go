package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTTL         = 24 * time.Hour
	testFingerprint = "fp-1"
)

func TestIdempotencyStore_BeginClaims(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(client, testTTL)

	mock.ExpectSetNX("idempotency:banks:key-1", "pending:fp-1", testTTL).SetVal(true)

	stored, err := store.Begin(context.Background(), "banks", "key-1", testFingerprint)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_BeginReplays(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(client, testTTL)

	mock.ExpectSetNX("idempotency:banks:key-1", "pending:fp-1", testTTL).SetVal(false)
	mock.ExpectGet("idempotency:banks:key-1").SetVal(`{"fingerprint":"fp-1","status":200,"body":{"ok":true}}`)

	stored, err := store.Begin(context.Background(), "banks", "key-1", testFingerprint)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 200, stored.Status)
	assert.JSONEq(t, `{"ok":true}`, string(stored.Body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_BeginInFlight(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(client, testTTL)

	mock.ExpectSetNX("idempotency:banks:key-1", "pending:fp-1", testTTL).SetVal(false)
	mock.ExpectGet("idempotency:banks:key-1").SetVal("pending:fp-1")

	_, err := store.Begin(context.Background(), "banks", "key-1", testFingerprint)
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_BeginRejectsDifferentRequest(t *testing.T) {
	tests := []struct {
		name   string
		stored string
	}{
		{"completed", `{"fingerprint":"fp-other","status":200,"body":{"ok":true}}`},
		{"in flight", "pending:fp-other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			store := NewIdempotencyStore(client, testTTL)

			mock.ExpectSetNX("idempotency:banks:key-1", "pending:fp-1", testTTL).SetVal(false)
			mock.ExpectGet("idempotency:banks:key-1").SetVal(tt.stored)

			stored, err := store.Begin(context.Background(), "banks", "key-1", testFingerprint)
			assert.ErrorIs(t, err, ErrIdempotencyKeyReused)
			assert.Nil(t, stored)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIdempotencyStore_BeginRedisDown(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(client, testTTL)

	mock.ExpectSetNX("idempotency:banks:key-1", "pending:fp-1", testTTL).SetErr(errors.New("connection refused"))

	_, err := store.Begin(context.Background(), "banks", "key-1", testFingerprint)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRequestInFlight)
}

func TestIdempotencyStore_CompleteAndRelease(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(client, testTTL)

	resp := StoredResponse{Fingerprint: testFingerprint, Status: 200, Body: json.RawMessage(`{"ok":true}`)}
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	mock.ExpectSet("idempotency:banks:key-1", data, testTTL).SetVal("OK")
	mock.ExpectDel("idempotency:banks:key-2").SetVal(1)

	require.NoError(t, store.Complete(context.Background(), "banks", "key-1", resp))
	require.NoError(t, store.Release(context.Background(), "banks", "key-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_Disabled(t *testing.T) {
	store := NewIdempotencyStore(nil, testTTL)
	assert.False(t, store.Enabled())

	stored, err := store.Begin(context.Background(), "banks", "key-1", testFingerprint)
	assert.NoError(t, err)
	assert.Nil(t, stored)
	assert.NoError(t, store.Complete(context.Background(), "banks", "key-1", StoredResponse{Status: 200}))
	assert.NoError(t, store.Release(context.Background(), "banks", "key-1"))

	var nilStore *IdempotencyStore
	assert.False(t, nilStore.Enabled())
}

func TestRequestFingerprint(t *testing.T) {
	deposit := map[string]any{"kind": "deposit", "amount": "50"}
	withdrawal := map[string]any{"kind": "withdrawal", "amount": "80"}

	a, err := RequestFingerprint(deposit)
	require.NoError(t, err)
	b, err := RequestFingerprint(map[string]any{"amount": "50", "kind": "deposit"})
	require.NoError(t, err)
	c, err := RequestFingerprint(withdrawal)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
