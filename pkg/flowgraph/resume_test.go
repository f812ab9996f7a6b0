package flowgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/checkpoint"
)

// failingStore fails every Save.
type failingStore struct {
	*checkpoint.MemoryStore
}

func (failingStore) Save(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}

func threeStep(failAt string, failures *int) *CompiledGraph[Trail] {
	node := func(name string) NodeFunc[Trail] {
		return func(_ Context, s Trail) (Trail, error) {
			if name == failAt && *failures > 0 {
				*failures--
				return s, errors.New("crash")
			}
			s.Visited = append(s.Visited, name)
			return s, nil
		}
	}
	return mustCompile(NewGraph[Trail]().
		AddNode("a", node("a")).
		AddNode("b", node("b")).
		AddNode("c", node("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a"))
}

// TestRun_CheckpointingRequiresRunID tests that a store needs a run ID.
func TestRun_CheckpointingRequiresRunID(t *testing.T) {
	failures := 0
	_, err := threeStep("", &failures).Run(testCtx(), Trail{}, WithCheckpointing(checkpoint.NewMemoryStore()))
	assert.ErrorIs(t, err, ErrRunIDRequired)
}

// TestRun_SavesCheckpointPerNode tests one checkpoint per node.
func TestRun_SavesCheckpointPerNode(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	failures := 0

	_, err := threeStep("", &failures).Run(testCtx(), Trail{}, WithCheckpointing(store), WithRunID("run-1"))
	require.NoError(t, err)

	infos, err := store.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, infos, 3)

	data, err := store.Load(ctx, "run-1", "b")
	require.NoError(t, err)
	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "c", cp.NextNode)
	assert.Equal(t, "a", cp.PrevNodeID)
	assert.Equal(t, 2, cp.Sequence)
	assert.JSONEq(t, `{"Visited":["a","b"],"Loops":0,"Done":false}`, string(cp.State))
}

// TestResume_ContinuesAfterCrash tests resuming after a failed node.
func TestResume_ContinuesAfterCrash(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	failures := 1
	compiled := threeStep("c", &failures)

	_, err := compiled.Run(testCtx(), Trail{}, WithCheckpointing(store), WithRunID("run-1"))
	require.Error(t, err)

	result, err := compiled.Resume(testCtx(), store, "run-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.Visited)

	cp, err := loadCheckpoint(context.Background(), store, "run-1", "c")
	require.NoError(t, err)
	assert.Equal(t, 3, cp.Sequence)
	assert.Equal(t, END, cp.NextNode)
}

// TestResume_Errors tests resume with a nil context or no checkpoints.
func TestResume_Errors(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	failures := 0
	compiled := threeStep("", &failures)

	_, err := compiled.Resume(nil, store, "run-1")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = compiled.Resume(testCtx(), store, "missing")
	assert.ErrorIs(t, err, ErrNoCheckpoints)

	_, err = compiled.ResumeFrom(testCtx(), store, "missing", "a")
	assert.ErrorIs(t, err, ErrNoCheckpoints)

	require.NoError(t, store.Save(context.Background(), "garbage", "a", []byte("{")))
	_, err = compiled.Resume(testCtx(), store, "garbage")
	assert.ErrorIs(t, err, ErrDeserializeState)

	bogus, _ := checkpoint.New("bogus", "a", 1, []byte(`{}`), "ghost").Marshal()
	require.NoError(t, store.Save(context.Background(), "bogus", "a", bogus))
	_, err = compiled.Resume(testCtx(), store, "bogus")
	assert.ErrorIs(t, err, ErrInvalidResumeNode)
}

// TestResumeFrom_ReplayAndOverride tests resuming from a chosen node with a new state.
func TestResumeFrom_ReplayAndOverride(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	failures := 0
	compiled := threeStep("", &failures)

	_, err := compiled.Run(testCtx(), Trail{}, WithCheckpointing(store), WithRunID("run-1"))
	require.NoError(t, err)

	replayed, err := compiled.ResumeFrom(testCtx(), store, "run-1", "b", WithReplayNode())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "b", "c"}, replayed.Visited)

	overridden, err := compiled.ResumeFrom(testCtx(), store, "run-1", "a",
		WithStateOverride(func(s any) any {
			st := s.(Trail)
			st.Done = true
			return st
		}))
	require.NoError(t, err)
	assert.True(t, overridden.Done)
	assert.Equal(t, []string{"a", "b", "c"}, overridden.Visited)

	_, err = compiled.ResumeFrom(testCtx(), store, "run-1", "a",
		WithStateValidation(func(any) error { return errors.New("stale") }))
	assert.ErrorContains(t, err, "stale")
}

// TestResume_PassesRunOptions tests that run options apply on resume.
func TestResume_PassesRunOptions(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	compiled := mustCompile(NewGraph[Counter]().
		AddNode("inc", increment).
		AddConditionalEdge("inc", func(Context, Counter) string { return "inc" }).
		SetEntry("inc"))

	_, err := compiled.Run(testCtx(), Counter{}, WithCheckpointing(store), WithRunID("loop"), WithMaxIterations(2))
	require.ErrorIs(t, err, ErrMaxIterations)

	result, err := compiled.Resume(testCtx(), store, "loop", WithResumeRunOptions(WithMaxIterations(3)))
	require.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 5, result.Value)
}

// TestLatestState tests loading the newest checkpointed state.
func TestLatestState(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	failures := 0

	_, err := LatestState[Trail](ctx, store, "thread")
	assert.ErrorIs(t, err, ErrNoCheckpoints)

	_, err = threeStep("", &failures).Run(testCtx(), Trail{}, WithCheckpointing(store), WithRunID("thread"))
	require.NoError(t, err)

	state, err := LatestState[Trail](ctx, store, "thread")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, state.Visited)
}

// TestRun_ReusedRunIDContinuesSequence tests sequence numbers across runs.
func TestRun_ReusedRunIDContinuesSequence(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	failures := 0
	compiled := threeStep("", &failures)

	for i := 0; i < 2; i++ {
		_, err := compiled.Run(testCtx(), Trail{}, WithCheckpointing(store), WithRunID("thread"))
		require.NoError(t, err)
	}

	cp, err := latestCheckpoint(context.Background(), store, "thread")
	require.NoError(t, err)
	assert.Equal(t, "c", cp.NodeID)
	assert.Equal(t, 6, cp.Sequence)
}

// TestRun_CheckpointFailure tests a failing store.
func TestRun_CheckpointFailure(t *testing.T) {
	store := failingStore{checkpoint.NewMemoryStore()}
	failures := 0

	result, err := threeStep("", &failures).Run(testCtx(), Trail{}, WithCheckpointing(store), WithRunID("r"))
	require.NoError(t, err)
	assert.Len(t, result.Visited, 3)

	_, err = threeStep("", &failures).Run(testCtx(), Trail{},
		WithCheckpointing(store), WithRunID("r"), WithCheckpointFailureFatal(true))
	var cpErr *CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, "save", cpErr.Op)
	assert.Equal(t, "a", cpErr.NodeID)
}

// TestRun_CheckpointSerializeFailure tests a state that cannot be serialized.
func TestRun_CheckpointSerializeFailure(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	compiled := mustCompile(NewGraph[map[string]any]().
		AddNode("a", func(_ Context, s map[string]any) (map[string]any, error) {
			s["ch"] = make(chan int)
			return s, nil
		}).
		AddEdge("a", END).
		SetEntry("a"))

	_, err := compiled.Run(testCtx(), map[string]any{},
		WithCheckpointing(store), WithRunID("r"), WithCheckpointFailureFatal(true))
	assert.ErrorIs(t, err, ErrSerializeState)
}
