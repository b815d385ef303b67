package machine

// DefaultGCHeapGrowFactor is the multiplier applied to bytesAllocated to
// compute the next collection threshold.
const DefaultGCHeapGrowFactor = 2

// DefaultGCInitialThreshold is the byte count that must accumulate before
// the very first collection can run.
const DefaultGCInitialThreshold = 1 << 20

// gc tracks the VM's managed heap: every live object on an intrusive list,
// the accounting that decides when to collect, and the stress knob that
// forces a collection on every allocation. Go already reclaims the actual
// memory once an object is unreferenced; gc reproduces the mark-sweep
// bookkeeping on top of that — the object list, the byte accounting, the
// intern-table eviction of dead strings — so that observable behavior such
// as string-interning identity stays exact no matter when collections fire.
type gc struct {
	vm *VM

	objects        Obj
	bytesAllocated int64
	nextGC         int64
	growFactor     int64
	stressGC       bool

	gray []Obj
}

func newGC(vm *VM) *gc {
	return &gc{vm: vm, nextGC: DefaultGCInitialThreshold, growFactor: DefaultGCHeapGrowFactor}
}

// objectSize is a rough per-type accounting weight, used only to decide
// when to collect; it does not need to match Go's actual allocation size.
func objectSize(o Obj) int64 {
	switch o.(type) {
	case *ObjString:
		return 32
	case *ObjFunction:
		return 64
	case *ObjClosure:
		return 48
	case *ObjNative:
		return 32
	case *ObjUpvalue:
		return 24
	default:
		return 16
	}
}

// track registers a newly allocated object on the intrusive object list.
// Any collection triggered by this allocation runs before o is linked, so
// an object can never be swept during its own creation; callers must make
// sure every *other* transiently held object is reachable from a root
// (typically by pushing it on the value stack) before allocating.
func (g *gc) track(o Obj) {
	if g.stressGC || g.bytesAllocated+objectSize(o) > g.nextGC {
		g.collect()
	}
	o.Header().Next = g.objects
	g.objects = o
	g.bytesAllocated += objectSize(o)
}

func (g *gc) markValue(v Value) {
	if o, ok := v.(Obj); ok {
		g.markObject(o)
	}
}

// markObject marks o reachable and, if it wasn't already, pushes it on the
// gray worklist for later blackening.
func (g *gc) markObject(o Obj) {
	if o == nil {
		return
	}
	h := o.Header()
	if h.Marked {
		return
	}
	h.Marked = true
	g.gray = append(g.gray, o)
}

// blacken visits a gray object's own references, marking each of them (and
// thereby turning them gray in turn) before the object itself is
// considered fully processed ("black").
func (g *gc) blacken(o Obj) {
	switch o := o.(type) {
	case *ObjClosure:
		g.markObject(o.Fn)
		for _, uv := range o.Upvalues {
			// slots not yet filled while OP_CLOSURE is capturing are nil
			if uv != nil {
				g.markObject(uv)
			}
		}
	case *ObjFunction:
		for _, c := range o.Constants {
			g.markValue(c)
		}
	case *ObjUpvalue:
		g.markValue(o.value())
	case *ObjString, *ObjNative:
		// no outgoing references
	}
}

// collect runs one full stop-the-world mark-sweep cycle: mark every root,
// drain the gray worklist, evict unmarked interned strings so the intern
// table never holds a dangling key, then sweep the object list.
func (g *gc) collect() {
	g.markRoots()
	for len(g.gray) > 0 {
		o := g.gray[len(g.gray)-1]
		g.gray = g.gray[:len(g.gray)-1]
		g.blacken(o)
	}
	g.vm.strings.removeWhite()
	g.sweep()

	g.nextGC = g.bytesAllocated * g.growFactor
}

func (g *gc) markRoots() {
	vm := g.vm
	for _, v := range vm.stack[:vm.stackTop] {
		g.markValue(v)
	}
	for i := 0; i < vm.frameCount; i++ {
		g.markObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.Next {
		g.markObject(uv)
	}
	for i := range vm.globals.entries {
		e := &vm.globals.entries[i]
		if e.key != nil {
			g.markObject(e.key)
			g.markValue(e.value)
		}
	}
}

// sweep walks the intrusive object list, dropping every unmarked object and
// clearing the mark bit on every survivor for the next cycle.
func (g *gc) sweep() {
	var prev Obj
	obj := g.objects

	for obj != nil {
		h := obj.Header()
		if h.Marked {
			h.Marked = false
			prev = obj
			obj = h.Next
			continue
		}

		unreached := obj
		obj = h.Next
		if prev != nil {
			prev.Header().Next = obj
		} else {
			g.objects = obj
		}
		g.bytesAllocated -= objectSize(unreached)
	}
}
