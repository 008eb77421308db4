package communicator

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ukern/kthread"
)

func TestOneWord(t *testing.T) {
	c := NewCommunicator("test")
	th := kthread.Fork("speaker", func() {
		c.Speak(32)
	})
	assert.Equal(t, int32(32), c.Listen())
	th.Join()
}

func TestSpeakWaitsForListener(t *testing.T) {
	c := NewCommunicator("test")
	spoke := make(chan bool, 1)
	th := kthread.Fork("speaker", func() {
		c.Speak(1)
		spoke <- true
	})
	for c.SpeakersWaiting() != 1 {
		time.Sleep(time.Millisecond)
	}
	select {
	case <-spoke:
		assert.Fail(t, "speak returned without a listener")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, int32(1), c.Listen())
	th.Join()
	assert.True(t, <-spoke)
	assert.Equal(t, 0, c.SpeakersWaiting())
}

func TestListenWaitsForSpeaker(t *testing.T) {
	c := NewCommunicator("test")
	heard := make(chan int32, 1)
	th := kthread.Fork("listener", func() {
		heard <- c.Listen()
	})
	for c.ListenersWaiting() != 1 {
		time.Sleep(time.Millisecond)
	}
	select {
	case <-heard:
		assert.Fail(t, "listen returned without a speaker")
	case <-time.After(20 * time.Millisecond):
	}
	c.Speak(7)
	th.Join()
	assert.Equal(t, int32(7), <-heard)
	assert.Equal(t, 0, c.ListenersWaiting())
}

func TestSpeakersFirst(t *testing.T) {
	const N = 5
	c := NewCommunicator("test")
	var wg sync.WaitGroup
	for i := 1; i <= N; i++ {
		wg.Add(1)
		w := int32(i)
		kthread.Fork("speaker", func() {
			defer wg.Done()
			c.Speak(w)
		})
	}
	for c.SpeakersWaiting() != N {
		time.Sleep(time.Millisecond)
	}
	got := make([]int, 0, N)
	for i := 0; i < N; i++ {
		got = append(got, int(c.Listen()))
	}
	wg.Wait()
	sort.Ints(got)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestListenersFirst(t *testing.T) {
	const N = 5
	c := NewCommunicator("test")
	ch := make(chan int32, N)
	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(1)
		kthread.Fork("listener", func() {
			defer wg.Done()
			ch <- c.Listen()
		})
	}
	for c.ListenersWaiting() != N {
		time.Sleep(time.Millisecond)
	}
	for i := 6; i <= 10; i++ {
		c.Speak(int32(i))
	}
	wg.Wait()
	close(ch)
	got := make([]int, 0, N)
	for w := range ch {
		got = append(got, int(w))
	}
	sort.Ints(got)
	assert.Equal(t, []int{6, 7, 8, 9, 10}, got)
}

// Many speakers and listeners interleaved: every word is delivered
// exactly once.
func TestManyToMany(t *testing.T) {
	const NSPEAKER = 8
	const NWORD = 200
	c := NewCommunicator("test")
	var wg sync.WaitGroup
	for s := 0; s < NSPEAKER; s++ {
		wg.Add(1)
		base := int32(s * NWORD)
		kthread.Fork("speaker", func() {
			defer wg.Done()
			for i := int32(0); i < NWORD; i++ {
				c.Speak(base + i)
			}
		})
	}
	ch := make(chan int32, NSPEAKER*NWORD)
	var lwg sync.WaitGroup
	for l := 0; l < NSPEAKER; l++ {
		lwg.Add(1)
		kthread.Fork("listener", func() {
			defer lwg.Done()
			for i := 0; i < NWORD; i++ {
				ch <- c.Listen()
			}
		})
	}
	wg.Wait()
	lwg.Wait()
	close(ch)
	seen := make(map[int32]bool)
	for w := range ch {
		assert.False(t, seen[w], "word %d delivered twice", w)
		seen[w] = true
	}
	assert.Equal(t, NSPEAKER*NWORD, len(seen))
	assert.Equal(t, 0, c.SpeakersWaiting())
	assert.Equal(t, 0, c.ListenersWaiting())
}
