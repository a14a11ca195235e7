package lazy

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet_ComputesOnce(t *testing.T) {
	calls := 0
	v := By(func() (int, error) {
		calls++
		return 42, nil
	})

	require.False(t, v.IsComputed())

	got, err := v.Get()
	require.NoError(t, err)
	require.Equal(t, 42, got)

	got, err = v.Get()
	require.NoError(t, err)
	require.Equal(t, 42, got)

	require.Equal(t, 1, calls)
	require.True(t, v.IsComputed())
	require.False(t, v.IsOverridden())
}

func TestGet_ErrorIsNotCached(t *testing.T) {
	calls := 0
	v := By(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	_, err := v.Get()
	require.EqualError(t, err, "boom")
	require.False(t, v.IsComputed())

	got, err := v.Get()
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 2, calls)
}

func TestSet_OverridesBeforeCompute(t *testing.T) {
	called := false
	v := By(func() ([]string, error) {
		called = true
		return []string{"computed"}, nil
	})

	v.Set([]string{})

	got, err := v.Get()
	require.NoError(t, err)
	require.Empty(t, got)
	require.NotNil(t, got)
	require.False(t, called)
	require.True(t, v.IsOverridden())
}

func TestSet_OverridesAfterCompute(t *testing.T) {
	v := By(func() (string, error) { return "main", nil })

	got, err := v.Get()
	require.NoError(t, err)
	require.Equal(t, "main", got)

	v.Set("release")

	got, err = v.Get()
	require.NoError(t, err)
	require.Equal(t, "release", got)
}

func TestReset_Recomputes(t *testing.T) {
	calls := 0
	v := By(func() (int, error) {
		calls++
		return calls, nil
	})

	first, err := v.Get()
	require.NoError(t, err)
	require.Equal(t, 1, first)

	v.Reset()
	require.False(t, v.IsComputed())

	second, err := v.Get()
	require.NoError(t, err)
	require.Equal(t, 2, second)
}

func TestReset_DropsOverride(t *testing.T) {
	v := By(func() (string, error) { return "computed", nil })
	v.Set("fixed")
	v.Reset()

	got, err := v.Get()
	require.NoError(t, err)
	require.Equal(t, "computed", got)
}

func TestGet_ConcurrentCallersComputeOnce(t *testing.T) {
	var calls atomic.Int32
	v := By(func() (int, error) {
		calls.Add(1)
		return 7, nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := v.Get()
			require.NoError(t, err)
			require.Equal(t, 7, got)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
}
