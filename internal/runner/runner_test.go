package runner

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTotalCountInvariant(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	summary := Run(context.Background(), "test", items, Options[string]{
		Concurrency: 3,
		Skip:        func(item string) bool { return item == "b" },
	}, func(ctx context.Context, item string) (string, error) {
		if item == "d" {
			return "", eris.New("boom")
		}
		return strings.ToUpper(item), nil
	})

	assert.Equal(t, len(items), summary.Total(), "every item lands in exactly one bucket")
	assert.Len(t, summary.Succeeded, 3)
	assert.Len(t, summary.Failed, 1)
	assert.Len(t, summary.Skipped, 1)
	assert.Equal(t, "d", summary.Failed[0].Item)
	assert.Contains(t, summary.Failed[0].Err, "boom")
}

func TestRunSkipPredicateNotScheduled(t *testing.T) {
	var mu sync.Mutex
	ran := make(map[int]bool)

	summary := Run(context.Background(), "test", []int{1, 2, 3, 4}, Options[int]{
		Concurrency: 2,
		Skip:        func(item int) bool { return item%2 == 0 },
	}, func(ctx context.Context, item int) (int, error) {
		mu.Lock()
		ran[item] = true
		mu.Unlock()
		return item, nil
	})

	assert.ElementsMatch(t, []int{2, 4}, summary.Skipped)
	assert.False(t, ran[2])
	assert.False(t, ran[4])
	assert.True(t, ran[1])
	assert.True(t, ran[3])
}

func TestRunPanicBecomesFailure(t *testing.T) {
	summary := Run(context.Background(), "test", []string{"ok", "bad"}, Options[string]{
		Concurrency: 1,
	}, func(ctx context.Context, item string) (string, error) {
		if item == "bad" {
			panic("unexpected state")
		}
		return item, nil
	})

	assert.Equal(t, 2, summary.Total())
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "bad", summary.Failed[0].Item)
	assert.Contains(t, summary.Failed[0].Err, "panic")
}

func TestRunCanceledContextFailsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := Run(ctx, "test", []int{1, 2, 3}, Options[int]{Concurrency: 1},
		func(ctx context.Context, item int) (int, error) {
			return item, nil
		})

	assert.Equal(t, 3, summary.Total())
	assert.Len(t, summary.Failed, 3, "nothing scheduled after cancellation")
}

func TestRunSerialWhenConcurrencyUnset(t *testing.T) {
	summary := Run(context.Background(), "test", []int{1, 2}, Options[int]{},
		func(ctx context.Context, item int) (int, error) {
			return item * 10, nil
		})

	assert.ElementsMatch(t, []int{10, 20}, summary.Succeeded)
}

func TestRunEmptyItems(t *testing.T) {
	summary := Run(context.Background(), "test", nil, Options[string]{Concurrency: 4},
		func(ctx context.Context, item string) (string, error) {
			return item, nil
		})

	assert.Equal(t, 0, summary.Total())
}
