package kthread

import (
	"container/heap"
	"container/list"
)

// runQueues is component C3: the ready list, the all-threads registry,
// and the sleeping list. Every method assumes the caller already holds
// interrupts disabled (spec §4.2); runQueues itself does no locking.
type runQueues struct {
	ready    *list.List        // doubly-linked, descending effective priority, FIFO among equals (invariant 4)
	all      map[TID]*ThreadBlock // invariant: every live thread, iteration order irrelevant
	sleeping sleepHeap         // ascending wake_time (invariant 5)
}

func newRunQueues() *runQueues {
	return &runQueues{
		ready: list.New(),
		all:   make(map[TID]*ThreadBlock),
	}
}

// readyInsert inserts t into the ready list preserving invariant 4:
// ordered by descending effective priority, FIFO among equals (i.e. t is
// placed after every existing entry of equal priority, before the first
// of strictly lower priority).
func (q *runQueues) readyInsert(t *ThreadBlock) {
	for e := q.ready.Front(); e != nil; e = e.Next() {
		if e.Value.(*ThreadBlock).effectivePriority < t.effectivePriority {
			t.readyElem = q.ready.InsertBefore(t, e)
			return
		}
	}
	t.readyElem = q.ready.PushBack(t)
}

// readyRemove removes t from the ready list if present.
func (q *runQueues) readyRemove(t *ThreadBlock) {
	if t.readyElem != nil {
		q.ready.Remove(t.readyElem)
		t.readyElem = nil
	}
}

// readyPopFront pops and returns the highest-priority ready thread, or
// nil if the ready list is empty.
func (q *runQueues) readyPopFront() *ThreadBlock {
	e := q.ready.Front()
	if e == nil {
		return nil
	}
	q.ready.Remove(e)
	t := e.Value.(*ThreadBlock)
	t.readyElem = nil
	return t
}

// readyLen returns the number of ready threads.
func (q *runQueues) readyLen() int { return q.ready.Len() }

// readyReinsert re-sorts t's position after its effective priority has
// changed, preserving invariant 4. Used by refreshEffective and the MLFQS
// recompute pass.
func (q *runQueues) readyReinsert(t *ThreadBlock) {
	if t.readyElem == nil {
		return
	}
	q.ready.Remove(t.readyElem)
	t.readyElem = nil
	q.readyInsert(t)
}

// allAdd registers t in the all-threads list (spec §4.4: "Adds to
// ready queue" happens separately; this is the all-threads membership).
func (q *runQueues) allAdd(t *ThreadBlock) {
	q.all[t.tid] = t
}

// allRemove removes t from the all-threads list (on exit).
func (q *runQueues) allRemove(t *ThreadBlock) {
	delete(q.all, t.tid)
}

// allForeach iterates all-threads; iteration order is unspecified
// (spec §4.2: "irrelevant to correctness").
func (q *runQueues) allForeach(fn func(*ThreadBlock)) {
	for _, t := range q.all {
		fn(t)
	}
}

// sleepInsert inserts t into the sleeping list ordered by ascending
// wake_time (invariant 5). The list is a binary heap: popping its root
// while it is due releases threads in ascending wake_time order, stopping
// at the first future deadline. Among threads with equal wake_time the
// heap does not keep insertion order, so equal-deadline sleepers are
// released in an unspecified order (see SPEC_FULL.md's DOMAIN STACK note).
func (q *runQueues) sleepInsert(t *ThreadBlock) {
	heap.Push(&q.sleeping, t)
}

// sleepWake removes and returns every thread whose wake_time <= now, in
// ascending wake_time order, stopping at the first thread whose
// wake_time > now — spec §4.5 step 2.
func (q *runQueues) sleepWake(now uint64) []*ThreadBlock {
	var woken []*ThreadBlock
	for q.sleeping.Len() > 0 && q.sleeping[0].wakeTime <= now {
		t := heap.Pop(&q.sleeping).(*ThreadBlock)
		woken = append(woken, t)
	}
	return woken
}

// sleepingLen returns the number of sleeping threads.
func (q *runQueues) sleepingLen() int { return len(q.sleeping) }

// sleepHeap implements heap.Interface over *ThreadBlock ordered by
// ascending wakeTime, adapted from the teacher's timer min-heap.
type sleepHeap []*ThreadBlock

func (h sleepHeap) Len() int            { return len(h) }
func (h sleepHeap) Less(i, j int) bool  { return h[i].wakeTime < h[j].wakeTime }
func (h sleepHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *sleepHeap) Push(x any) {
	*h = append(*h, x.(*ThreadBlock))
}

func (h *sleepHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
