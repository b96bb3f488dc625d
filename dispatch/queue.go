// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package dispatch

import "sync"

// chunkSize is the number of work items per node in the workQueue linked
// list. 128 items * 8 bytes/item + overhead = ~1KB per chunk.
const chunkSize = 128

// workQueue is a chunked linked-list FIFO of pending work items.
//
// It is NOT safe for concurrent use; the Bridge mutex guards all access.
// Fixed-size chunks amortize allocations, and exhausted chunks are recycled
// through a pool so sustained producer bursts don't thrash the GC.
type workQueue struct {
	head   *chunk
	tail   *chunk
	length int
}

type chunk struct {
	items   [chunkSize]func()
	next    *chunk
	readPos int // first unread slot
	pos     int // first unused slot
}

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk clears all item slots before pooling, so the pool never
// retains references to work item closures.
func returnChunk(c *chunk) {
	for i := 0; i < c.pos; i++ {
		c.items[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	chunkPool.Put(c)
}

func (q *workQueue) push(item func()) {
	if q.tail == nil {
		q.tail = newChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.items) {
		next := newChunk()
		q.tail.next = next
		q.tail = next
	}

	q.tail.items[q.tail.pos] = item
	q.tail.pos++
	q.length++
}

// pop removes and returns the oldest work item, or false if the queue is
// empty.
func (q *workQueue) pop() (func(), bool) {
	if q.head == nil {
		return nil, false
	}

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			// Sole chunk drained - reset cursors for reuse.
			q.head.pos = 0
			q.head.readPos = 0
			return nil, false
		}
		old := q.head
		q.head = q.head.next
		returnChunk(old)
	}

	if q.head.readPos >= q.head.pos {
		return nil, false
	}

	item := q.head.items[q.head.readPos]
	q.head.items[q.head.readPos] = nil
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos && q.head != q.tail {
		old := q.head
		q.head = q.head.next
		returnChunk(old)
	}

	return item, true
}

func (q *workQueue) len() int {
	return q.length
}
