package coordinator

// goalQueue keeps displaced goals in arrival order until they are promoted
// or flushed. It is not safe for concurrent use; the coordinator guards it
// with its inner mutex.
type goalQueue struct {
	items []GoalHandle
}

func (q *goalQueue) push(h GoalHandle) {
	q.items = append(q.items, h)
}

func (q *goalQueue) pop() GoalHandle {
	if len(q.items) == 0 {
		return nil
	}
	h := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return h
}

// drain empties the queue and returns the removed handles in order.
func (q *goalQueue) drain() []GoalHandle {
	items := q.items
	q.items = nil
	return items
}

func (q *goalQueue) size() int {
	return len(q.items)
}
