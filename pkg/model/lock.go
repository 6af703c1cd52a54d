package model

import (
	"runtime"
	"sync"
	"sync/atomic"
)

var tokens atomic.Uint64

// nextToken returns a fresh change token. 0 is reserved for "unchanged".
func nextToken() uint64 {
	return tokens.Add(1)
}

// goroutineID parses the current goroutine id from the stack header
// "goroutine <id> [...]".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// reentrantLock is a mutex the owning goroutine may acquire repeatedly.
type reentrantLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	depth int
}

func (l *reentrantLock) Lock() {
	gid := goroutineID()

	l.mu.Lock()
	if l.cond == nil {
		l.cond = sync.NewCond(&l.mu)
	}
	for l.depth > 0 && l.owner != gid {
		l.cond.Wait()
	}
	l.owner = gid
	l.depth++
	l.mu.Unlock()
}

func (l *reentrantLock) Unlock() {
	l.mu.Lock()
	l.depth--
	if l.depth == 0 {
		l.owner = 0
		if l.cond != nil {
			l.cond.Broadcast()
		}
	}
	l.mu.Unlock()
}
