package main

import (
	"log"
	"time"
)

type timerPurpose int

const (
	timerForcedReveal timerPurpose = iota
	timerHideAnswer
	timerAutoAdvance
)

// roomTimers holds the pending timer per purpose for one room. Arming a
// purpose always cancels the previous handle first, and every callback
// carries the generation it was armed with, so a callback that lost a
// cancel/rearm race sees a stale generation and returns without firing.
// All methods assume the owning room's mutex is held.
type roomTimers struct {
	handles map[timerPurpose]*time.Timer
	gens    map[timerPurpose]uint64
}

func newRoomTimers() roomTimers {
	return roomTimers{
		handles: make(map[timerPurpose]*time.Timer),
		gens:    make(map[timerPurpose]uint64),
	}
}

func (t *roomTimers) armLocked(purpose timerPurpose, d time.Duration, fire func(gen uint64)) {
	t.cancelLocked(purpose)

	t.gens[purpose]++
	gen := t.gens[purpose]

	t.handles[purpose] = time.AfterFunc(d, func() {
		// A panic here would otherwise kill the process: AfterFunc
		// callbacks run on their own goroutine with no recovery above.
		defer func() {
			if r := recover(); r != nil {
				log.Printf("%s | PANIC: room timer: %v", time.Now().Format(logDate), r)
			}
		}()

		fire(gen)
	})
}

func (t *roomTimers) cancelLocked(purpose timerPurpose) {
	if handle, ok := t.handles[purpose]; ok {
		handle.Stop()
		delete(t.handles, purpose)
	}
	t.gens[purpose]++
}

func (t *roomTimers) cancelAllLocked() {
	for purpose := range t.handles {
		t.cancelLocked(purpose)
	}
}

// liveLocked reports whether a callback armed with gen is still current.
func (t *roomTimers) liveLocked(purpose timerPurpose, gen uint64) bool {
	return t.gens[purpose] == gen
}
