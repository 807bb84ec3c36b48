package gpu

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrNotHostAccessible is returned by the host views of device memory.
var ErrNotHostAccessible = errors.New("device memory is not host accessible")

// Buffer is a memory allocation made through a Backend.
type Buffer struct {
	kind MemoryType
	size uint64

	// ptr is the native address handed out by the driver (or malloc for
	// heap memory). It is nil for emulated buffers.
	ptr unsafe.Pointer

	// Emulated buffers get their backing store on first touch.
	once    sync.Once
	backing []uint64
	freed   bool
	// pending counts emulated submissions that still reference the buffer.
	pending atomic.Int32
}

func (b *Buffer) Kind() MemoryType { return b.kind }
func (b *Buffer) Size() uint64     { return b.size }

// raw returns the bytes behind the buffer regardless of its kind. Only the
// emulator may read device memory through it.
func (b *Buffer) raw() []byte {
	if b.size == 0 {
		return nil
	}
	if b.ptr != nil {
		return unsafe.Slice((*byte)(b.ptr), b.size)
	}
	b.once.Do(func() {
		b.backing = make([]uint64, (b.size+7)/8)
	})
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.backing[0])), b.size)
}

// Bytes returns a host view of the whole buffer.
func (b *Buffer) Bytes() ([]byte, error) {
	if b.kind == Device {
		return nil, ErrNotHostAccessible
	}
	if b.freed {
		return nil, errors.New("buffer already freed")
	}
	return b.raw(), nil
}

func (b *Buffer) Float32s() ([]float32, error) {
	raw, err := b.Bytes()
	if err != nil || len(raw) < 4 {
		return nil, err
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), len(raw)/4), nil
}

func (b *Buffer) Int32s() ([]int32, error) {
	raw, err := b.Bytes()
	if err != nil || len(raw) < 4 {
		return nil, err
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&raw[0])), len(raw)/4), nil
}

func (b *Buffer) Uint64s() ([]uint64, error) {
	raw, err := b.Bytes()
	if err != nil || len(raw) < 8 {
		return nil, err
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&raw[0])), len(raw)/8), nil
}
