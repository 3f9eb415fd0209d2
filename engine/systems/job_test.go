package systems

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidates(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobCallbacksRunOnUpdate(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()

	var completed []int
	var failed []error
	for i := 0; i < 4; i++ {
		i := i
		require.NoError(t, js.Submit(JobTask{
			Name: "square",
			Run: func() (interface{}, error) {
				if i == 3 {
					return nil, errors.New("boom")
				}
				return i * i, nil
			},
			OnComplete: func(result interface{}) { completed = append(completed, result.(int)) },
			OnFailure:  func(err error) { failed = append(failed, err) },
		}))
	}

	delivered := 0
	require.Eventually(t, func() bool {
		delivered += js.Update()
		return delivered == 4
	}, time.Second, 5*time.Millisecond)

	assert.ElementsMatch(t, []int{0, 1, 4}, completed)
	require.Len(t, failed, 1)
	assert.EqualError(t, failed[0], "boom")
	assert.Zero(t, js.Pending())
}

func TestCallbacksWaitForUpdate(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	require.NoError(t, err)
	defer js.Shutdown()

	var called atomic.Bool
	require.NoError(t, js.Submit(JobTask{
		Run:        func() (interface{}, error) { return nil, nil },
		OnComplete: func(interface{}) { called.Store(true) },
	}))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, called.Load())
	assert.Equal(t, 1, js.Pending())
	assert.Equal(t, 1, js.Update())
	assert.True(t, called.Load())
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	err = js.Submit(JobTask{Run: func() (interface{}, error) { return nil, nil }})
	assert.ErrorIs(t, err, ErrJobSystemClosed)
	assert.Error(t, js.Submit(JobTask{Name: "empty"}))
}

func TestShutdownDrainsQueue(t *testing.T) {
	js, err := NewJobSystem(1, 8)
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 8; i++ {
		require.NoError(t, js.Submit(JobTask{Run: func() (interface{}, error) {
			ran.Add(1)
			return nil, nil
		}}))
	}
	require.NoError(t, js.Shutdown())
	assert.Equal(t, int32(8), ran.Load())
	assert.Zero(t, js.Update())
}
