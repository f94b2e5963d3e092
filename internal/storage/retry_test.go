package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/chronicle/pkg/types"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 4, MaxElapsed: time.Second, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(), func() error {
		calls++
		if calls < 3 {
			return &types.StorageError{Op: "begin", Err: errors.New("database is locked"), Transient: true}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	verr := &types.ValidationError{Chapter: 1}
	err := Retry(context.Background(), fastPolicy(), func() error {
		calls++
		return verr
	})
	assert.Equal(t, 1, calls)
	var got *types.ValidationError
	assert.True(t, errors.As(err, &got))
}

func TestRetry_GivesUpAfterMaxTries(t *testing.T) {
	calls := 0
	var notified int
	p := fastPolicy()
	p.OnRetry = func(error, time.Duration) { notified++ }
	err := Retry(context.Background(), p, func() error {
		calls++
		return &types.StorageError{Op: "commit", Err: errors.New("busy"), Transient: true}
	})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 4, calls)
	assert.Equal(t, 3, notified)
}

func TestGraphBounds_Normalize(t *testing.T) {
	var b GraphBounds
	b.Normalize()
	assert.Equal(t, 2, b.MaxHops)
	assert.Equal(t, 50, b.MaxNodes)
	assert.True(t, b.Allows("anything"))

	b = GraphBounds{MaxHops: 99, RelationshipTypes: []string{"ally"}}
	b.Normalize()
	assert.Equal(t, 6, b.MaxHops)
	assert.True(t, b.Allows("ally"))
	assert.False(t, b.Allows("rival"))
}
