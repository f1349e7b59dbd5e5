package taskmgr

import (
	"context"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() hclog.Logger {
	return hclog.NewNullLogger()
}

func TestRunOrdersByDependency(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) RunFunc {
		return func(ctx context.Context) (bool, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return false, nil
		}
	}

	m := New(testLogger())
	require.NoError(t, m.AddTask("a", nil, nil, record("a")))
	require.NoError(t, m.AddTask("b", []string{"a"}, nil, record("b")))
	require.NoError(t, m.AddTask("c", []string{"b"}, nil, record("c")))

	summary, err := m.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Ran)
	assert.Equal(t, 0, summary.Cached)
	assert.Equal(t, 0, summary.Skipped)
	assert.Nil(t, summary.Errors)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRunReportsCached(t *testing.T) {
	m := New(testLogger())
	require.NoError(t, m.AddTask("a", nil, nil, func(ctx context.Context) (bool, error) { return true, nil }))

	summary, err := m.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cached)
	assert.Equal(t, 0, summary.Ran)
}

func TestRunSkipsDependentsOfFailedTask(t *testing.T) {
	var ranC bool
	m := New(testLogger())
	require.NoError(t, m.AddTask("a", nil, nil, func(ctx context.Context) (bool, error) {
		return false, errors.New("boom")
	}))
	require.NoError(t, m.AddTask("b", []string{"a"}, nil, func(ctx context.Context) (bool, error) {
		return false, nil
	}))
	require.NoError(t, m.AddTask("c", []string{"b"}, nil, func(ctx context.Context) (bool, error) {
		ranC = true
		return false, nil
	}))

	summary, err := m.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 0, summary.Ran)
	assert.Equal(t, 2, summary.Skipped)
	assert.False(t, ranC)
	require.Error(t, summary.Errors)
	assert.Contains(t, summary.Errors.Error(), "boom")
}

func TestRunUnknownDepIsGraphError(t *testing.T) {
	m := New(testLogger())
	require.NoError(t, m.AddTask("a", []string{"missing"}, nil, func(ctx context.Context) (bool, error) { return false, nil }))

	_, err := m.Run(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestRunIndependentTasksAllComplete(t *testing.T) {
	m := New(testLogger())
	for _, name := range []string{"x", "y", "z"} {
		require.NoError(t, m.AddTask(name, nil, nil, func(ctx context.Context) (bool, error) { return false, nil }))
	}
	summary, err := m.Run(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Ran)
	assert.Equal(t, 0, summary.Skipped)
}

func TestAddTaskDuplicateProducerIsError(t *testing.T) {
	m := New(testLogger())
	require.NoError(t, m.AddTask("a", nil, []string{"build/pkg/out"}, func(ctx context.Context) (bool, error) { return false, nil }))
	err := m.AddTask("b", nil, []string{"build/pkg/out"}, func(ctx context.Context) (bool, error) { return false, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate producer")
}

func TestAddTaskDuplicateNameIsError(t *testing.T) {
	m := New(testLogger())
	require.NoError(t, m.AddTask("a", nil, nil, func(ctx context.Context) (bool, error) { return false, nil }))
	err := m.AddTask("a", nil, nil, func(ctx context.Context) (bool, error) { return false, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task name")
}
