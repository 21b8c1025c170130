package monitor

// recent is a fixed-size set of the last seen signatures.
type recent struct {
	ring []string
	next int
	set  map[string]struct{}
}

func newRecent(size int) *recent {
	if size <= 0 {
		size = 4096
	}
	return &recent{ring: make([]string, size), set: make(map[string]struct{}, size)}
}

// add records sig and reports whether it was new.
func (r *recent) add(sig string) bool {
	if _, ok := r.set[sig]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ring[r.next] = sig
	r.set[sig] = struct{}{}
	r.next = (r.next + 1) % len(r.ring)
	return true
}
