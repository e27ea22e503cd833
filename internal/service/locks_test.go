package service

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := newKeyedMutex()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(accountKey("alice"))
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutexDisjointKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock(accountKey("alice"))
	// Must not block while alice is held.
	unlockB := k.Lock(accountKey("bob"))
	assert.Equal(t, 2, k.size())

	unlockB()
	unlockA()
	assert.Equal(t, 0, k.size())
}

func TestLockKeysDoNotCollide(t *testing.T) {
	assert.NotEqual(t, accountKey("x"), scheduleKey("x"))
}
