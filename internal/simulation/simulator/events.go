package simulator

// Event is a pending task completion.
type Event struct {
	// Simulated time at which the task completes.
	time float64
	// Node on which the task is running. Events with equal time are ordered by
	// node id so that event ordering is deterministic.
	nodeId int
	// The assignment that produced this event.
	decision *AssignmentDecision
	// Maintained by the heap.Interface methods.
	index int
}

type EventLog []*Event

func (el EventLog) Len() int { return len(el) }

func (el EventLog) Less(i, j int) bool {
	if el[i].time == el[j].time {
		return el[i].nodeId < el[j].nodeId
	}
	return el[i].time < el[j].time
}

func (el EventLog) Swap(i, j int) {
	el[i], el[j] = el[j], el[i]
	el[i].index = i
	el[j].index = j
}

func (el *EventLog) Push(x any) {
	n := len(*el)
	item := x.(*Event)
	item.index = n
	*el = append(*el, item)
}

func (el *EventLog) Pop() any {
	old := *el
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*el = old[0 : n-1]
	return item
}
