package pricebook

import (
	"sort"
	"sync"
	"time"
)

// Quote is the latest close seen for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"tf"`
	Price     float64   `json:"price"`
	Time      time.Time `json:"time"`
}

// Book holds the latest quote per symbol. One writer (the bar consumer),
// many readers (the API).
type Book struct {
	mu sync.RWMutex
	m  map[string]Quote
}

func New() *Book { return &Book{m: make(map[string]Quote)} }

// Update stores q unless a newer quote for the symbol is already held.
func (b *Book) Update(q Quote) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.m[q.Symbol]; ok && cur.Time.After(q.Time) {
		return false
	}
	b.m[q.Symbol] = q
	return true
}

func (b *Book) Get(symbol string) (Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.m[symbol]
	return q, ok
}

// Snapshot returns quotes for the given symbols (all when empty), sorted.
func (b *Book) Snapshot(symbols ...string) []Quote {
	b.mu.RLock()
	out := make([]Quote, 0, len(b.m))
	if len(symbols) == 0 {
		for _, q := range b.m {
			out = append(out, q)
		}
	} else {
		for _, s := range symbols {
			if q, ok := b.m[s]; ok {
				out = append(out, q)
			}
		}
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
