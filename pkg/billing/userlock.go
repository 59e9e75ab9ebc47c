package billing

import "sync"

// userLocks serializes verify and sync for the same user so neither
// overwrites the other's period fields. Locks are process-local; the
// verifier's transactional terminal transition is the durable guard.
type userLocks struct {
	locks sync.Map // uint -> *sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{}
}

// lock acquires the user's mutex and returns the unlock func
func (u *userLocks) lock(userID uint) func() {
	v, _ := u.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
