package schedule

import (
	"fmt"
	"sort"
)

// Task is one schedulable item of a phase: a unit test or a fault
// injection. Start is the grace period offset from the phase start and
// Deadline the time the task may run, both in seconds.
type Task struct {
	Name     string
	Start    int
	Deadline int
}

// ParallelGroup holds tasks that start at the same offset. Its duration
// is the longest member deadline.
type ParallelGroup struct {
	Start    int
	End      int
	Duration int
	Tasks    []Task
}

// OverlapMember is a parallel group placed inside an overlap group,
// with the suspend time to insert before it starts.
type OverlapMember struct {
	Suspend int
	Group   ParallelGroup
}

// OverlapGroup is a maximal run of time-overlapping parallel groups.
// Members are ordered by start; Duration covers the whole run.
type OverlapGroup struct {
	Duration int
	Members  []OverlapMember
}

// GroupByStart partitions tasks by start offset into parallel groups
// and returns them sorted by start. Input order is preserved within a
// group so the layout is deterministic.
func GroupByStart(tasks []Task) []ParallelGroup {
	order := make([]int, 0)
	byStart := make(map[int][]Task)
	for _, task := range tasks {
		if _, ok := byStart[task.Start]; !ok {
			order = append(order, task.Start)
		}
		byStart[task.Start] = append(byStart[task.Start], task)
	}
	sort.Ints(order)

	groups := make([]ParallelGroup, 0, len(order))
	for _, start := range order {
		members := byStart[start]
		maxDeadline := 0
		for _, task := range members {
			if task.Deadline > maxDeadline {
				maxDeadline = task.Deadline
			}
		}
		groups = append(groups, ParallelGroup{
			Start:    start,
			End:      start + maxDeadline,
			Duration: maxDeadline,
			Tasks:    members,
		})
	}
	return groups
}

// MergeOverlaps sweeps the sorted parallel groups and merges every run
// of time-overlapping groups into one overlap group. A group starting
// at or after the running end opens a new overlap group; gaps between
// overlap groups are discarded since overlap groups execute
// back-to-back. Within an overlap group each member carries the suspend
// time relative to the group start, except that the very first member
// of the first group keeps its absolute start offset.
func MergeOverlaps(groups []ParallelGroup) ([]OverlapGroup, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("no parallel groups to merge")
	}

	currentStart := groups[0].Start
	currentEnd := groups[0].End
	duration := groups[0].Duration
	members := []OverlapMember{{Suspend: groups[0].Start, Group: groups[0]}}

	var result []OverlapGroup
	for _, g := range groups[1:] {
		if g.Start < currentEnd {
			members = append(members, OverlapMember{Suspend: g.Start - currentStart, Group: g})
			if g.End > currentEnd {
				duration += g.End - currentEnd
				currentEnd = g.End
			}
		} else {
			result = append(result, OverlapGroup{Duration: duration, Members: members})
			currentStart = g.Start
			currentEnd = g.End
			duration = g.Duration
			members = []OverlapMember{{Suspend: 0, Group: g}}
		}
	}
	result = append(result, OverlapGroup{Duration: duration, Members: members})
	return result, nil
}

// PhaseDuration is the total runtime of a phase laid out as the given
// overlap groups executed back-to-back.
func PhaseDuration(groups []OverlapGroup) int {
	total := 0
	for _, g := range groups {
		total += g.Duration
	}
	return total
}

// Deduper hands out unique workflow template names by numbering
// repeats: X, X2, X3.
type Deduper struct {
	counts map[string]int
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{counts: make(map[string]int)}
}

// Name returns base on first use and base with a numeric suffix on
// every repeat.
func (d *Deduper) Name(base string) string {
	d.counts[base]++
	if d.counts[base] == 1 {
		return base
	}
	return fmt.Sprintf("%s%d", base, d.counts[base])
}
