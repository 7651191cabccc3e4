package gridbot

import (
	"log"
	"time"
)

// statusTracker deduplicates per-slot status lines so a quiet market does not
// fill the log with identical output every cycle.
type statusSlot struct {
	msg    string
	lastAt time.Time
}

type statusTracker struct {
	minInterval time.Duration
	slots       map[string]statusSlot
}

func newStatusTracker(minInterval time.Duration) statusTracker {
	if minInterval < 0 {
		minInterval = 0
	}
	return statusTracker{
		minInterval: minInterval,
		slots:       make(map[string]statusSlot),
	}
}

func (s *statusTracker) Set(slot, msg string) {
	if s == nil || slot == "" || msg == "" {
		return
	}
	if s.slots == nil {
		s.slots = make(map[string]statusSlot)
	}
	now := time.Now()
	prev := s.slots[slot]
	if prev.msg == msg && !prev.lastAt.IsZero() && now.Sub(prev.lastAt) < s.minInterval {
		return
	}
	s.slots[slot] = statusSlot{msg: msg, lastAt: now}
	log.Printf("[%s] %s", slot, msg)
}
