package communicator

import (
	"fmt"

	"ukern/cond"
	db "ukern/debug"
	"ukern/lock"
)

//
// A communicator lets threads exchange 32-bit words synchronously.
// Any number of threads may wait to speak and any number may wait to
// listen; each word goes to exactly one listener and Speak returns
// only after its word was taken.
//
// The slot is busy from the moment a speaker deposits a word until
// that speaker has seen the word was read. Other speakers wait on
// speaker while the slot is busy, listeners wait on listener while it
// is empty, and the speaker in flight waits on reader for the
// acknowledgment.
//

type Communicator struct {
	lk        *lock.Lock
	speaker   *cond.Cond
	listener  *cond.Cond
	reader    *cond.Cond
	word      int32
	full      bool // slot holds an unread word
	busy      bool // a speaker's word is in flight
	read      bool // the word in flight was taken
	speakers  int
	listeners int
}

func NewCommunicator(name string) *Communicator {
	c := &Communicator{lk: lock.NewLock(name)}
	c.speaker = cond.NewCond(c.lk)
	c.listener = cond.NewCond(c.lk)
	c.reader = cond.NewCond(c.lk)
	return c
}

// Wait for a listener and hand it word.
func (c *Communicator) Speak(word int32) {
	c.lk.Lock()
	defer c.lk.Unlock()

	c.speakers++
	for c.busy {
		c.speaker.Sleep()
	}
	c.busy = true
	c.word = word
	c.full = true
	c.listener.Wake()

	for !c.read {
		c.reader.Sleep()
	}
	c.read = false
	c.busy = false
	c.speakers--
	db.DPrintf(db.COMM, "%v: speak %d done", c.lk.Name(), word)
	c.speaker.Wake()
}

// Wait for a speaker and return its word.
func (c *Communicator) Listen() int32 {
	c.lk.Lock()
	defer c.lk.Unlock()

	c.listeners++
	for !c.full {
		c.listener.Sleep()
	}
	word := c.word
	c.full = false
	c.read = true
	c.listeners--
	c.reader.Wake()
	db.DPrintf(db.COMM, "%v: listen %d", c.lk.Name(), word)
	return word
}

// Number of speakers that have not yet returned.
func (c *Communicator) SpeakersWaiting() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.speakers
}

// Number of listeners that have not yet received a word.
func (c *Communicator) ListenersWaiting() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.listeners
}

func (c *Communicator) String() string {
	return fmt.Sprintf("&{ %v speakers:%d listeners:%d }", c.lk.Name(), c.SpeakersWaiting(), c.ListenersWaiting())
}
