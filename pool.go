package awscore

import "sync"

// newPooledAllocator returns an allocator that rounds n up to a
// power-of-two size class of at least 64 bytes and returns a slice of
// length n from that class's sync.Pool. Buffers are never put back into
// a pool, so every call allocates a new buffer of the full class size.
func newPooledAllocator() func(int) []byte {
	var pools sync.Map // int (size class) -> *sync.Pool

	classFor := func(n int) int {
		c := 64
		for c < n {
			c <<= 1
		}
		return c
	}

	return func(n int) []byte {
		if n <= 0 {
			return nil
		}
		class := classFor(n)
		v, ok := pools.Load(class)
		if !ok {
			p := &sync.Pool{New: func() any { return make([]byte, class) }}
			v, _ = pools.LoadOrStore(class, p)
		}
		buf := v.(*sync.Pool).Get().([]byte)
		return buf[:n]
	}
}
