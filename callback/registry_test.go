package callback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopChunk(context.Context, any) ([]byte, error) { return nil, nil }

func TestRegisterLookupUnregister(t *testing.T) {
	r := NewRegistry()
	var fn NextChunkFunc = noopChunk
	userData := &struct{ n int }{n: 3}

	reg, err := r.Register(Registration{ID: 42, Kind: KindNextChunk, Fn: fn, UserData: userData})
	require.NoError(t, err)
	assert.NotZero(t, reg.Generation)

	got, err := r.Lookup(42)
	require.NoError(t, err)
	assert.Same(t, userData, got.UserData)
	assert.NotNil(t, got.Fn.(NextChunkFunc))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Unregister(42))
	assert.False(t, r.Unregister(42))

	_, err = r.Lookup(42)
	require.ErrorIs(t, err, ErrUnknownCallbackID)
	var unknown *UnknownCallbackError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, int32(42), unknown.ID)
}

func TestLookupNeverRegistered(t *testing.T) {
	_, err := NewRegistry().Lookup(7)
	require.ErrorIs(t, err, ErrUnknownCallbackID)
}

func TestLiveIDCannotBeReused(t *testing.T) {
	r := NewRegistry()
	var fn NextChunkFunc = noopChunk

	first, err := r.Register(Registration{ID: 9, Kind: KindNextChunk, Fn: fn})
	require.NoError(t, err)

	_, err = r.Register(Registration{ID: 9, Kind: KindNextChunk, Fn: fn})
	require.ErrorIs(t, err, ErrCallbackIDInUse)

	r.Unregister(9)
	second, err := r.Register(Registration{ID: 9, Kind: KindNextChunk, Fn: fn})
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)
}

func TestStaleGenerationCannotUnregister(t *testing.T) {
	r := NewRegistry()
	var fn NextChunkFunc = noopChunk

	old, err := r.Register(Registration{ID: 9, Kind: KindNextChunk, Fn: fn})
	require.NoError(t, err)
	require.True(t, r.UnregisterGeneration(9, old.Generation))

	current, err := r.Register(Registration{ID: 9, Kind: KindNextChunk, Fn: fn})
	require.NoError(t, err)

	assert.False(t, r.UnregisterGeneration(9, old.Generation))
	got, err := r.Lookup(9)
	require.NoError(t, err)
	assert.Equal(t, current.Generation, got.Generation)

	assert.True(t, r.UnregisterGeneration(9, current.Generation))
	assert.False(t, r.UnregisterGeneration(9, current.Generation))
}

func TestRegisterValidates(t *testing.T) {
	r := NewRegistry()
	var chunk NextChunkFunc = noopChunk

	_, err := r.Register(Registration{ID: 0, Kind: KindNextChunk, Fn: chunk})
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = r.Register(Registration{ID: 1, Kind: KindAssetMissing, Fn: chunk})
	require.ErrorIs(t, err, ErrKindMismatch)

	_, err = r.Register(Registration{ID: 1, Kind: KindNextChunk, Fn: noopChunk})
	require.ErrorIs(t, err, ErrKindMismatch, "untyped func literal is not a NextChunkFunc")

	var nilFn NextChunkFunc
	_, err = r.Register(Registration{ID: 1, Kind: KindNextChunk, Fn: nilFn})
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestLookupWaitsForInflightRegistration(t *testing.T) {
	r := NewRegistry()
	end := r.Begin()

	result := make(chan error, 1)
	go func() {
		_, err := r.Lookup(5)
		result <- err
	}()

	select {
	case err := <-result:
		t.Fatalf("lookup returned before registration finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	var fn NextChunkFunc = noopChunk
	_, err := r.Register(Registration{ID: 5, Kind: KindNextChunk, Fn: fn})
	require.NoError(t, err)
	end()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lookup did not wake up")
	}
}

func TestFailedRegistrationReleasesWaiters(t *testing.T) {
	r := NewRegistry()
	end := r.Begin()

	result := make(chan error, 1)
	go func() {
		_, err := r.Lookup(5)
		result <- err
	}()

	end()
	end() // second call is a no-op

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrUnknownCallbackID)
	case <-time.After(time.Second):
		t.Fatal("lookup did not wake up")
	}
}

func TestClearClosesRegistry(t *testing.T) {
	r := NewRegistry()
	var fn NextChunkFunc = noopChunk
	_, err := r.Register(Registration{ID: 1, Kind: KindNextChunk, Fn: fn})
	require.NoError(t, err)

	r.Begin()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.Lookup(2)
		assert.ErrorIs(t, err, ErrUnknownCallbackID)
	}()

	r.Clear(true)
	<-done
	assert.Zero(t, r.Len())

	_, err = r.Register(Registration{ID: 3, Kind: KindNextChunk, Fn: fn})
	require.ErrorIs(t, err, ErrRegistryClosed)
}

func TestConcurrentRegistrations(t *testing.T) {
	r := NewRegistry()
	var fn NextChunkFunc = noopChunk

	var wg sync.WaitGroup
	for i := int32(1); i <= 64; i++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			end := r.Begin()
			defer end()
			_, err := r.Register(Registration{ID: id, Kind: KindNextChunk, Fn: fn})
			assert.NoError(t, err)
			_, err = r.Lookup(id)
			assert.NoError(t, err)
			assert.True(t, r.Unregister(id))
		}(i)
	}
	wg.Wait()
	assert.Zero(t, r.Len())
}
