package engine

// DeferFree queues release to run later. With free-queue-length N > 0 the
// last N releases are held back and the oldest runs once the queue is
// full; this keeps freed memory out of circulation for a while so
// use-after-free accesses still hit the dead object. With N == 0 release
// runs immediately.
//
// Releases always run outside the runtime lock, so they may unregister
// objects.
func (r *Runtime) DeferFree(release func()) {
	if release == nil {
		return
	}

	r.freeMu.Lock()
	size := len(r.freeQueue)
	if size == 0 {
		r.freeMu.Unlock()
		release()
		return
	}

	var oldest func()
	if r.freeLen == size {
		oldest = r.freeQueue[r.freeHead]
		r.freeQueue[r.freeHead] = release
		r.freeHead = (r.freeHead + 1) % size
	} else {
		r.freeQueue[(r.freeHead+r.freeLen)%size] = release
		r.freeLen++
	}
	r.freeMu.Unlock()

	if oldest != nil {
		oldest()
	}
}

// FlushFrees runs every queued release, oldest first.
func (r *Runtime) FlushFrees() {
	r.freeMu.Lock()
	pending := make([]func(), 0, r.freeLen)
	for i := 0; i < r.freeLen; i++ {
		idx := (r.freeHead + i) % len(r.freeQueue)
		pending = append(pending, r.freeQueue[idx])
		r.freeQueue[idx] = nil
	}
	r.freeHead, r.freeLen = 0, 0
	r.freeMu.Unlock()

	for _, release := range pending {
		release()
	}
}

// PendingFrees returns the number of queued releases.
func (r *Runtime) PendingFrees() int {
	r.freeMu.Lock()
	defer r.freeMu.Unlock()
	return r.freeLen
}
