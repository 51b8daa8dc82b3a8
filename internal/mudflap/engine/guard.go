package engine

// enter acquires the runtime for the calling goroutine. It returns false,
// without locking, when the goroutine is already inside this runtime (for
// example a violation hook that checks memory); the nested call must then
// return immediately.
func (r *Runtime) enter() bool {
	gid := goroutineID()
	if gid != 0 && r.owner.Load() == gid {
		r.reentered.Inc()
		return false
	}
	r.mu.Lock()
	r.owner.Store(gid)
	return true
}

// leave releases the runtime acquired by enter.
func (r *Runtime) leave() {
	r.owner.Store(0)
	r.mu.Unlock()
}
