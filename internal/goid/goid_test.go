package goid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ID
	}{
		{name: "running header", in: "goroutine 123 [running]:\nmain.main()", want: 123},
		{name: "single digit", in: "goroutine 7 [running]:", want: 7},
		{name: "empty", in: "", want: 0},
		{name: "wrong prefix", in: "thread 12 [running]", want: 0},
		{name: "no digits", in: "goroutine [running]", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parse([]byte(tt.in)))
		})
	}
}

func TestCurrentIsStableAndDistinct(t *testing.T) {
	self := Current()
	require.NotZero(t, self)
	assert.Equal(t, self, Current(), "id must be stable within a goroutine")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[ID]bool{self: true}
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := Current()
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, ids[id], "goroutine id %d seen twice", id)
			ids[id] = true
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 9)
}
