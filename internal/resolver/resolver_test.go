package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipedag/pipedag/internal/task"
)

func graphOf(edges map[string][]string) map[task.Key][]task.Key {
	graph := make(map[task.Key][]task.Key, len(edges))
	for key, deps := range edges {
		var depKeys []task.Key
		for _, d := range deps {
			depKeys = append(depKeys, task.Key(d))
		}
		graph[task.Key(key)] = depKeys
	}
	return graph
}

func keys(names ...string) []task.Key {
	out := make([]task.Key, len(names))
	for i, n := range names {
		out[i] = task.Key(n)
	}
	return out
}

func TestReady_RootsFirst(t *testing.T) {
	r, err := New(graphOf(map[string][]string{
		"a": nil,
		"b": nil,
		"c": {"a"},
		"d": {"b"},
	}))
	require.NoError(t, err)

	assert.Equal(t, keys("a", "b"), r.Ready())
	// In-flight tasks are not returned again.
	assert.Empty(t, r.Ready())
}

func TestMarkDone_UnblocksDependents(t *testing.T) {
	r, err := New(graphOf(map[string][]string{
		"a": nil,
		"b": nil,
		"c": {"a"},
		"d": {"b"},
	}))
	require.NoError(t, err)

	r.Ready()
	r.MarkDone("a")
	assert.Equal(t, keys("c"), r.Ready())

	r.MarkDone("b")
	assert.Equal(t, keys("d"), r.Ready())

	r.MarkDone("c")
	assert.False(t, r.Exhausted())
	r.MarkDone("d")
	assert.True(t, r.Exhausted())
}

func TestReady_FanInWaitsForAllDependencies(t *testing.T) {
	r, err := New(graphOf(map[string][]string{
		"a":    nil,
		"b":    nil,
		"join": {"a", "b"},
	}))
	require.NoError(t, err)

	r.Ready()
	r.MarkDone("a")
	assert.Empty(t, r.Ready(), "join must not release before all dependencies succeed")

	r.MarkDone("b")
	assert.Equal(t, keys("join"), r.Ready())
}

func TestReady_ReleasesEveryTaskExactlyOnce(t *testing.T) {
	r, err := New(graphOf(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
		"e": {"d"},
	}))
	require.NoError(t, err)

	seen := make(map[task.Key]int)
	for !r.Exhausted() {
		ready := r.Ready()
		require.NotEmpty(t, ready, "acyclic graph must always make progress")
		for _, k := range ready {
			seen[k]++
			r.MarkDone(k)
		}
	}

	require.Len(t, seen, 5)
	for key, count := range seen {
		assert.Equal(t, 1, count, "task %s released %d times", key, count)
	}
}

func TestNew_CycleFailsBeforeAnyRelease(t *testing.T) {
	_, err := New(graphOf(map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	}))
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Len(t, cycleErr.Keys, 4, "cycle members plus the closing repeat")
	assert.Contains(t, err.Error(), "dependency cycle detected")
}

func TestNew_SelfCycle(t *testing.T) {
	_, err := New(graphOf(map[string][]string{
		"a": {"a"},
	}))
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestNew_UnknownDependency(t *testing.T) {
	_, err := New(graphOf(map[string][]string{
		"a": {"ghost"},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the graph")
}

func TestMarkFailed_BlocksTransitiveDependentsOnly(t *testing.T) {
	// a -> c, b -> d, d -> e. Failing b must block d and e but leave the
	// sibling chain a/c untouched.
	r, err := New(graphOf(map[string][]string{
		"a": nil,
		"b": nil,
		"c": {"a"},
		"d": {"b"},
		"e": {"d"},
	}))
	require.NoError(t, err)

	r.Ready()
	blocked := r.MarkFailed("b")
	assert.Equal(t, keys("d", "e"), blocked)

	r.MarkDone("a")
	assert.Equal(t, keys("c"), r.Ready(), "sibling subgraph proceeds normally")
	r.MarkDone("c")
	assert.True(t, r.Exhausted())
}

func TestMarkFailed_DiamondBlocksOnce(t *testing.T) {
	r, err := New(graphOf(map[string][]string{
		"root":  nil,
		"left":  {"root"},
		"right": {"root"},
		"sink":  {"left", "right"},
	}))
	require.NoError(t, err)

	r.Ready()
	blocked := r.MarkFailed("root")
	assert.Equal(t, keys("left", "right", "sink"), blocked)
	assert.True(t, r.Exhausted())
	assert.Empty(t, r.Ready())
}

func TestHas(t *testing.T) {
	r, err := New(graphOf(map[string][]string{"a": nil}))
	require.NoError(t, err)
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
}
