package physmem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"ukern/machine"
	"ukern/serr"
)

func TestAllocFree(t *testing.T) {
	p := NewPool(machine.NewMemory(4, 128))
	assert.Equal(t, 4, p.NFree())
	ppn, err := p.Alloc()
	assert.Nil(t, err)
	assert.Equal(t, 3, p.NFree())
	p.Free(ppn)
	assert.Equal(t, 4, p.NFree())
	assert.Panics(t, func() { p.Free(ppn) })
	assert.Panics(t, func() { p.Free(4) })
}

func TestAllocNAllOrNothing(t *testing.T) {
	p := NewPool(machine.NewMemory(4, 128))
	ppns, err := p.AllocN(5)
	assert.NotNil(t, err)
	assert.True(t, serr.IsErrCode(err, serr.TErrNoMem))
	assert.Nil(t, ppns)
	assert.Equal(t, 4, p.NFree())

	ppns, err = p.AllocN(4)
	assert.Nil(t, err)
	assert.Equal(t, 4, len(ppns))
	_, err = p.Alloc()
	assert.NotNil(t, err)
	for _, ppn := range ppns {
		p.Free(ppn)
	}
	assert.Equal(t, 4, p.NFree())
}

func TestConcurrentAlloc(t *testing.T) {
	const NPAGE = 64
	p := NewPool(machine.NewMemory(NPAGE, 64))
	var mu sync.Mutex
	owned := make(map[int]bool)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ppns, err := p.AllocN(4)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, ppn := range ppns {
				assert.False(t, owned[ppn], "page %d handed out twice", ppn)
				owned[ppn] = true
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, NPAGE, len(owned))
	assert.Equal(t, 0, p.NFree())
}
