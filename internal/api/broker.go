package api

import (
	"sync"
	"time"
)

// SolveEvent is a progress or terminal notification for a running solve.
type SolveEvent struct {
	SolveID   string  `json:"solveId"`
	Type      string  `json:"type"`
	Iteration int     `json:"iteration,omitempty"`
	BestCost  float64 `json:"bestCost,omitempty"`
	Assigned  int     `json:"assigned,omitempty"`
	Status    string  `json:"status,omitempty"`
	TS        string  `json:"ts"`
}

const (
	EventProgress = "solve.progress"
	EventDone     = "solve.done"
)

type EventBroker interface {
	Publish(solveID string, evt SolveEvent)
	Subscribe(solveID string) (ch chan SolveEvent, unsubscribe func())
}

// Broker fans solve events out to websocket subscribers in-process.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SolveEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SolveEvent]struct{}{}}
}

func (b *Broker) Publish(solveID string, evt SolveEvent) {
	evt.SolveID = solveID
	if evt.TS == "" {
		evt.TS = time.Now().UTC().Format(time.RFC3339Nano)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[solveID] {
		select {
		case ch <- evt:
		default:
			// slow subscriber, drop
		}
	}
}

func (b *Broker) Subscribe(solveID string) (chan SolveEvent, func()) {
	ch := make(chan SolveEvent, 16)
	b.mu.Lock()
	if b.subs[solveID] == nil {
		b.subs[solveID] = map[chan SolveEvent]struct{}{}
	}
	b.subs[solveID][ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs[solveID], ch)
		if len(b.subs[solveID]) == 0 {
			delete(b.subs, solveID)
		}
		b.mu.Unlock()
		close(ch)
	}
}
