package dispatch

import (
	"sync"

	"github.com/dop251/goja"

	"jsbridge/logger"
)

// pending is the single-fire completion of one dispatched task.
type pending struct {
	once  sync.Once
	owner Owner
	done  Done
}

func newPending(owner Owner, done Done) *pending {
	return &pending{owner: owner, done: done}
}

// complete hops to the owner's goroutine; every call after the first is ignored. A hop the
// owner drops still releases its pending count.
func (p *pending) complete(results []any, err error) {
	p.once.Do(func() {
		hop := func(vm *goja.Runtime) {
			defer p.owner.Pending().Done()
			defer func() {
				if v := recover(); v != nil {
					logger.Error("completion panicked", "value", v)
				}
			}()
			if p.done != nil {
				p.done(vm, results, err)
			}
		}
		if d, ok := p.owner.(DropOwner); ok {
			d.RunOnLoopOrDrop(hop, p.owner.Pending().Done)
			return
		}
		p.owner.RunOnLoop(hop)
	})
}
