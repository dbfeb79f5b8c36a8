package filesystem

// lockContext tracks the tree locks held by one structural edit.
// Calling Close() unwinds all unlocking callbacks in reverse order.
//
// NOTE: lockContext itself is **not** thread-safe meaning references
// to it should not be shared between goroutines
type lockContext struct {
	held     map[ID]bool
	closeFns []func()
}

func newLockContext() *lockContext {
	return &lockContext{held: make(map[ID]bool, 2)}
}

// lock write-locks n's tree lock unless this context already holds it.
func (ctx *lockContext) lock(n *node) {
	if ctx.held[n.id] {
		return
	}
	n.mu.Lock()
	ctx.held[n.id] = true
	ctx.AddClose(n.mu.Unlock)
}

// holds reports whether the context already locked id.
func (ctx *lockContext) holds(id ID) bool {
	return ctx.held[id]
}

// AddClose pushes a cleanup callback (e.g., unlock) onto the end of the stack.
func (ctx *lockContext) AddClose(fn func()) {
	ctx.closeFns = append(ctx.closeFns, fn)
}

// Close unwinds all cleanup callbacks in reverse order.
// Safe to call even if ctx is nil or no locks were acquired; it is
// a no-op in those cases, so you can `defer ctx.Close()` unconditionally.
//
// Example:
//
//	ctx := newLockContext()
//	defer ctx.Close()
//	ctx.lock(parent)
func (ctx *lockContext) Close() {
	if ctx == nil {
		return
	}
	for i := len(ctx.closeFns) - 1; i >= 0; i-- {
		ctx.closeFns[i]()
	}
	ctx.closeFns = nil
	clear(ctx.held)
}
