package debugger

import (
	"context"

	"github.com/wnxd/memdbg/encoding"
)

// Region is a block of scratch memory reserved inside the target. The
// caller owns it and must Free it; detaching does not.
type Region struct {
	Addr, Size uint64
}

func (r Region) End() uint64 {
	return r.Addr + r.Size
}

type MemoryManager interface {
	Read(ctx context.Context, typ encoding.Type, addr uint64) (encoding.Value, error)
	Write(ctx context.Context, typ encoding.Type, addr uint64, val encoding.Value) error
	ReadBuffer(ctx context.Context, addr, length uint64) ([]byte, error)
	WriteBuffer(ctx context.Context, addr uint64, data []byte) error
	Alloc(ctx context.Context, size uint64) (Region, error)
	Free(ctx context.Context, addr, size uint64) error
	MemExtract(ctx context.Context, addr uint64, val any) error
	MemStore(ctx context.Context, addr uint64, val any) error
	Address(ctx context.Context, origin Origin, offsets ...int64) (uint64, error)
	Memory(ctx context.Context, origin Origin, offsets ...int64) (Pointer, uint64, error)
	ToPointer(addr uint64) Pointer
}
