package pricebook

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateKeepsNewest(t *testing.T) {
	b := New()
	t0 := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	assert.True(t, b.Update(Quote{Symbol: "EURUSD", Price: 1.10, Time: t0}))
	assert.False(t, b.Update(Quote{Symbol: "EURUSD", Price: 1.09, Time: t0.Add(-time.Hour)}))
	assert.True(t, b.Update(Quote{Symbol: "EURUSD", Price: 1.11, Time: t0.Add(time.Hour)}))

	q, ok := b.Get("EURUSD")
	require.True(t, ok)
	assert.Equal(t, 1.11, q.Price)
}

func TestSnapshot(t *testing.T) {
	b := New()
	now := time.Now()
	for _, s := range []string{"USDJPY", "EURUSD", "GBPUSD"} {
		b.Update(Quote{Symbol: s, Price: 1, Time: now})
	}

	all := b.Snapshot()
	require.Len(t, all, 3)
	assert.Equal(t, "EURUSD", all[0].Symbol)

	some := b.Snapshot("USDJPY", "AUDUSD")
	require.Len(t, some, 1)
	assert.Equal(t, "USDJPY", some[0].Symbol)
}

func TestConcurrentReaders(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			b.Update(Quote{Symbol: "EURUSD", Price: float64(i), Time: time.Unix(int64(i), 0)})
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				b.Snapshot()
			}
		}()
	}
	wg.Wait()
	q, _ := b.Get("EURUSD")
	assert.Equal(t, 499.0, q.Price)
}
