package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByStart(t *testing.T) {
	tasks := []Task{
		{Name: "b", Start: 30, Deadline: 60},
		{Name: "a", Start: 0, Deadline: 100},
		{Name: "c", Start: 30, Deadline: 120},
	}

	groups := GroupByStart(tasks)
	require.Len(t, groups, 2)

	assert.Equal(t, 0, groups[0].Start)
	assert.Equal(t, 100, groups[0].End)
	assert.Equal(t, []Task{{Name: "a", Start: 0, Deadline: 100}}, groups[0].Tasks)

	assert.Equal(t, 30, groups[1].Start)
	assert.Equal(t, 120, groups[1].Duration)
	assert.Equal(t, 150, groups[1].End)
	require.Len(t, groups[1].Tasks, 2)
	assert.Equal(t, "b", groups[1].Tasks[0].Name)
	assert.Equal(t, "c", groups[1].Tasks[1].Name)
}

func TestGroupByStartDeterministic(t *testing.T) {
	tasks := []Task{
		{Name: "x", Start: 10, Deadline: 5},
		{Name: "y", Start: 0, Deadline: 5},
		{Name: "z", Start: 10, Deadline: 5},
	}
	first := GroupByStart(tasks)
	second := GroupByStart(tasks)
	assert.Equal(t, first, second)
}

func TestMergeOverlapsSingleTask(t *testing.T) {
	groups := GroupByStart([]Task{{Name: "only", Start: 0, Deadline: 90}})
	merged, err := MergeOverlaps(groups)
	require.NoError(t, err)

	require.Len(t, merged, 1)
	assert.Equal(t, 90, merged[0].Duration)
	require.Len(t, merged[0].Members, 1)
	assert.Equal(t, 0, merged[0].Members[0].Suspend)
	assert.Equal(t, 90, PhaseDuration(merged))
}

func TestMergeOverlapsDisjointGroups(t *testing.T) {
	// Two groups separated by a gap stay separate; the gap does not
	// count toward the phase duration.
	groups := GroupByStart([]Task{
		{Name: "early", Start: 0, Deadline: 60},
		{Name: "late", Start: 120, Deadline: 30},
	})
	merged, err := MergeOverlaps(groups)
	require.NoError(t, err)

	require.Len(t, merged, 2)
	assert.Equal(t, 60, merged[0].Duration)
	assert.Equal(t, 30, merged[1].Duration)
	assert.Equal(t, 0, merged[1].Members[0].Suspend)
	assert.Equal(t, 90, PhaseDuration(merged))
}

func TestMergeOverlapsOverlappingChain(t *testing.T) {
	// Three groups where each overlaps the running window of the
	// previous ones collapse into one overlap group. The second extends
	// the window, the third ends inside it and adds nothing.
	groups := GroupByStart([]Task{
		{Name: "a", Start: 0, Deadline: 100},
		{Name: "b", Start: 50, Deadline: 100},
		{Name: "c", Start: 80, Deadline: 10},
	})
	merged, err := MergeOverlaps(groups)
	require.NoError(t, err)

	require.Len(t, merged, 1)
	og := merged[0]
	// 100 + (150 - 100) = 150 total window.
	assert.Equal(t, 150, og.Duration)
	require.Len(t, og.Members, 3)
	assert.Equal(t, 0, og.Members[0].Suspend)
	assert.Equal(t, 50, og.Members[1].Suspend)
	assert.Equal(t, 80, og.Members[2].Suspend)
}

func TestMergeOverlapsFirstGroupKeepsAbsoluteOffset(t *testing.T) {
	// A phase whose first task starts late suspends for that offset.
	groups := GroupByStart([]Task{{Name: "delayed", Start: 30, Deadline: 60}})
	merged, err := MergeOverlaps(groups)
	require.NoError(t, err)

	require.Len(t, merged, 1)
	assert.Equal(t, 30, merged[0].Members[0].Suspend)
	assert.Equal(t, 60, merged[0].Duration)
}

func TestMergeOverlapsBoundaryTouchIsNotOverlap(t *testing.T) {
	// A group starting exactly at the running end begins a new overlap
	// group.
	groups := GroupByStart([]Task{
		{Name: "a", Start: 0, Deadline: 60},
		{Name: "b", Start: 60, Deadline: 60},
	})
	merged, err := MergeOverlaps(groups)
	require.NoError(t, err)
	assert.Len(t, merged, 2)
}

func TestMergeOverlapsEmpty(t *testing.T) {
	_, err := MergeOverlaps(nil)
	assert.Error(t, err)
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()
	assert.Equal(t, "pre-validation-suspend", d.Name("pre-validation-suspend"))
	assert.Equal(t, "pre-validation-suspend2", d.Name("pre-validation-suspend"))
	assert.Equal(t, "pre-validation-suspend3", d.Name("pre-validation-suspend"))
	assert.Equal(t, "other", d.Name("other"))
}
