package dispatch

import (
	"container/heap"
	"context"
	"sync"

	"github.com/poiesic/docpipe/core"
)

// Prioritized is a document with a scheduling priority. Lower values are
// dispatched first.
type Prioritized struct {
	Document core.Document
	Priority int
}

// ProcessPrioritized dispatches documents under the global ceiling, always
// starting the waiting document with the lowest priority value next. Equal
// priorities keep arrival order. Results are annotated as in ProcessAnnotated.
func (d *Dispatcher) ProcessPrioritized(ctx context.Context, in <-chan Prioritized) <-chan Annotated {
	items := in
	out := make(chan Annotated)

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(out)
		}()

		slots := make(chan struct{}, d.maxConcurrency)
		waiting := &priorityQueue{}
		var seq uint64

		enqueue := func(p Prioritized) {
			heap.Push(waiting, &queued{item: p, seq: seq})
			seq++
		}

		for {
			if d.isClosed() {
				items = nil
			}

			// Take everything already waiting so the heap sees it before the
			// next slot is handed out.
		drain:
			for items != nil {
				select {
				case p, ok := <-items:
					if !ok {
						items = nil
						break drain
					}
					enqueue(p)
				default:
					break drain
				}
			}

			if items == nil && waiting.Len() == 0 {
				return
			}

			var acquire chan struct{}
			if waiting.Len() > 0 {
				acquire = slots
			}
			var closing <-chan struct{}
			if items != nil {
				closing = d.done
			}

			select {
			case <-ctx.Done():
				return
			case <-closing:
				items = nil
			case p, ok := <-items:
				if !ok {
					items = nil
					continue
				}
				enqueue(p)
			case acquire <- struct{}{}:
				next := heap.Pop(waiting).(*queued).item
				wg.Add(1)
				err := d.pool.Submit(func() {
					defer wg.Done()
					defer func() { <-slots }()
					a := d.annotate(ctx, next.Document)
					select {
					case out <- a:
					case <-ctx.Done():
					}
				})
				if err != nil {
					<-slots
					wg.Done()
					select {
					case out <- Annotated{Document: next.Document, Err: d.submitError(err)}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

type queued struct {
	item Prioritized
	seq  uint64
}

// priorityQueue is a min-heap on (Priority, arrival sequence).
type priorityQueue []*queued

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].item.Priority != q[j].item.Priority {
		return q[i].item.Priority < q[j].item.Priority
	}
	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) { *q = append(*q, x.(*queued)) }

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
