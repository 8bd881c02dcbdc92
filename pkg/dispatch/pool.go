package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/axt-team/axtgate/pkg/bus"
	"github.com/axt-team/axtgate/pkg/logger"
)

// Pool runs a fixed set of workers consuming the inbound queue.
type Pool struct {
	bus        *bus.MessageBus
	dispatcher *Dispatcher
	size       int
}

func NewPool(mb *bus.MessageBus, d *Dispatcher, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{bus: mb, dispatcher: d, size: size}
}

// Run blocks until ctx is cancelled and all workers have drained their
// current event.
func (p *Pool) Run(ctx context.Context) {
	logger.InfoCF("dispatch", "Worker pool started", map[string]interface{}{
		"workers": p.size,
	})

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, worker int) {
	name := fmt.Sprintf("worker-%d", worker)
	for {
		item, ok := p.bus.ConsumeInbound(ctx)
		if !ok {
			logger.DebugC("dispatch", name+" stopped")
			return
		}
		start := time.Now()
		outcome := p.dispatcher.Dispatch(ctx, item.Event)
		logger.DebugCF("dispatch", "Event processed", map[string]interface{}{
			"worker":   name,
			"trace_id": item.TraceID,
			"kind":     item.Event.Kind.String(),
			"outcome":  outcome.String(),
			"took_ms":  time.Since(start).Milliseconds(),
		})
	}
}
