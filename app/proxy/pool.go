package proxy

import (
	"math/rand"
	"sort"
	"sync"
)

// Pool tracks the known web proxies and orders them by observed
// reliability. A proxy that keeps failing sinks to the back of the
// candidate list but is never removed; remote blocks come and go.
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	address   string
	successes int
	failures  int
}

func (e *entry) score() int {
	return e.successes - e.failures
}

func NewPool() *Pool {
	return &Pool{entries: make(map[string]*entry)}
}

// SetProxies replaces the candidate set. Stats carry over for addresses
// that survive the update.
func (p *Pool) SetProxies(addresses []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := make(map[string]*entry, len(addresses))
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		if e, ok := p.entries[addr]; ok {
			kept[addr] = e
			continue
		}
		kept[addr] = &entry{address: addr}
	}
	p.entries = kept
}

// Candidates returns up to n proxy addresses, best scoring first.
// Ties are broken randomly so equally ranked proxies share the load.
func (p *Pool) Candidates(n int) []string {
	p.mu.RLock()
	entries := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.RUnlock()

	if n <= 0 || len(entries) == 0 {
		return nil
	}

	rand.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score() > entries[j].score()
	})

	if n > len(entries) {
		n = len(entries)
	}
	addresses := make([]string, n)
	for i := 0; i < n; i++ {
		addresses[i] = entries[i].address
	}
	return addresses
}

// Report records the outcome of a fetch attempt through the given proxy.
// Unknown addresses are ignored.
func (p *Pool) Report(address string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, found := p.entries[address]
	if !found {
		return
	}
	if ok {
		e.successes++
	} else {
		e.failures++
	}
}

// Len reports how many proxies the pool knows about.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
