package orchestrator

// Subscriber receives a full state snapshot after every engine mutation.
// It runs synchronously on the engine's goroutine, so it must return
// promptly and must not call StartWorkflow or RunSingleAgent itself.
// Reading State() from a subscriber is safe.
type Subscriber func(State)

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent.
func (e *Engine) Subscribe(fn Subscriber) (unsubscribe func()) {
	e.subMu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subscribers, id)
		e.subMu.Unlock()
	}
}

// update applies fn to the state under the state lock, then delivers the
// new snapshot to every subscriber. notifyMu is held across both so
// deliveries arrive in mutation order; the state lock is released before
// delivery, so subscribers may call State.
func (e *Engine) update(fn func(s *State)) State {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	fn(&e.state)
	e.state.Active = append(append([]string(nil), e.stepActive...), e.adhocActive...)
	snap := e.state.clone()
	e.mu.Unlock()

	e.subMu.RLock()
	subs := make([]Subscriber, 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.subMu.RUnlock()

	for _, sub := range subs {
		sub(snap.clone())
	}
	return snap
}
