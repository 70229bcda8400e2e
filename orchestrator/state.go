package orchestrator

import (
	"sync/atomic"
	"time"

	"github.com/poiesic/docpipe/core"
)

// tracked is a request and its lifecycle state.
type tracked struct {
	req      *core.Request
	received time.Time
	state    atomic.Int32
}

func newTracked(req *core.Request, received time.Time) *tracked {
	t := &tracked{req: req, received: received}
	t.state.Store(int32(core.StateReceived))
	return t
}

// transition moves from one state to the next. Only one caller can win a
// given transition, which is what keeps terminal results single.
func (t *tracked) transition(from, to core.RequestState) bool {
	return t.state.CompareAndSwap(int32(from), int32(to))
}

func (t *tracked) State() core.RequestState {
	return core.RequestState(t.state.Load())
}
