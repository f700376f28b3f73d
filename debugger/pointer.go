package debugger

import (
	"context"

	"github.com/wnxd/memdbg/encoding"
)

// Pointer is a resolved address bound to the memory it lives in. It has one
// getter and setter per memory type so call sites name the type once.
// The zero Pointer is unbound and fails every access with ErrAddressInvalid.
type Pointer struct {
	mem  MemoryManager
	addr uint64
}

func NewPointer(mem MemoryManager, addr uint64) Pointer {
	return Pointer{mem, addr}
}

func (p Pointer) IsNil() bool {
	return p.addr == 0
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset int64) Pointer {
	return Pointer{p.mem, p.addr + uint64(offset)}
}

func (p Pointer) Get(ctx context.Context, typ encoding.Type) (encoding.Value, error) {
	if p.mem == nil {
		return encoding.Value{}, ErrAddressInvalid
	}
	return p.mem.Read(ctx, typ, p.addr)
}

func (p Pointer) Set(ctx context.Context, typ encoding.Type, val encoding.Value) error {
	if p.mem == nil {
		return ErrAddressInvalid
	}
	return p.mem.Write(ctx, typ, p.addr, val)
}

func (p Pointer) Byte(ctx context.Context) (uint8, error) {
	v, err := p.Get(ctx, encoding.TYPE_BYTE)
	return Convert[uint8](v), err
}

func (p Pointer) SetByte(ctx context.Context, b uint8) error {
	return p.Set(ctx, encoding.TYPE_BYTE, encoding.Uint(encoding.TYPE_BYTE, uint64(b)))
}

func (p Pointer) Byte2(ctx context.Context) (uint16, error) {
	v, err := p.Get(ctx, encoding.TYPE_BYTE2)
	return Convert[uint16](v), err
}

func (p Pointer) SetByte2(ctx context.Context, n uint16) error {
	return p.Set(ctx, encoding.TYPE_BYTE2, encoding.Uint(encoding.TYPE_BYTE2, uint64(n)))
}

func (p Pointer) Byte4(ctx context.Context) (uint32, error) {
	v, err := p.Get(ctx, encoding.TYPE_BYTE4)
	return Convert[uint32](v), err
}

func (p Pointer) SetByte4(ctx context.Context, n uint32) error {
	return p.Set(ctx, encoding.TYPE_BYTE4, encoding.Uint(encoding.TYPE_BYTE4, uint64(n)))
}

func (p Pointer) Byte8(ctx context.Context) (uint64, error) {
	v, err := p.Get(ctx, encoding.TYPE_BYTE8)
	return Convert[uint64](v), err
}

func (p Pointer) SetByte8(ctx context.Context, n uint64) error {
	return p.Set(ctx, encoding.TYPE_BYTE8, encoding.Uint(encoding.TYPE_BYTE8, n))
}

// Ptr reads a target pointer-width value.
func (p Pointer) Ptr(ctx context.Context) (uint64, error) {
	v, err := p.Get(ctx, encoding.TYPE_POINTER)
	return Convert[uint64](v), err
}

func (p Pointer) SetPtr(ctx context.Context, addr uint64) error {
	return p.Set(ctx, encoding.TYPE_POINTER, encoding.Uint(encoding.TYPE_POINTER, addr))
}

// Deref follows the pointer stored at p.
func (p Pointer) Deref(ctx context.Context) (Pointer, error) {
	addr, err := p.Ptr(ctx)
	if err != nil {
		return Pointer{}, err
	}
	return Pointer{p.mem, addr}, nil
}

func (p Pointer) Float(ctx context.Context) (float32, error) {
	v, err := p.Get(ctx, encoding.TYPE_FLOAT)
	return Convert[float32](v), err
}

func (p Pointer) SetFloat(ctx context.Context, f float32) error {
	return p.Set(ctx, encoding.TYPE_FLOAT, encoding.Float(encoding.TYPE_FLOAT, float64(f)))
}

func (p Pointer) Double(ctx context.Context) (float64, error) {
	v, err := p.Get(ctx, encoding.TYPE_DOUBLE)
	return Convert[float64](v), err
}

func (p Pointer) SetDouble(ctx context.Context, f float64) error {
	return p.Set(ctx, encoding.TYPE_DOUBLE, encoding.Float(encoding.TYPE_DOUBLE, f))
}

func (p Pointer) Ascii(ctx context.Context) (string, error) {
	v, err := p.Get(ctx, encoding.TYPE_ASCII)
	return v.Str(), err
}

func (p Pointer) SetAscii(ctx context.Context, s string) error {
	return p.Set(ctx, encoding.TYPE_ASCII, encoding.Text(encoding.TYPE_ASCII, s))
}

func (p Pointer) Unicode(ctx context.Context) (string, error) {
	v, err := p.Get(ctx, encoding.TYPE_UNICODE)
	return v.Str(), err
}

func (p Pointer) SetUnicode(ctx context.Context, s string) error {
	return p.Set(ctx, encoding.TYPE_UNICODE, encoding.Text(encoding.TYPE_UNICODE, s))
}

func (p Pointer) ReadBuffer(ctx context.Context, length uint64) ([]byte, error) {
	if p.mem == nil {
		return nil, ErrAddressInvalid
	}
	return p.mem.ReadBuffer(ctx, p.addr, length)
}

func (p Pointer) WriteBuffer(ctx context.Context, data []byte) error {
	if p.mem == nil {
		return ErrAddressInvalid
	}
	return p.mem.WriteBuffer(ctx, p.addr, data)
}

func (p Pointer) Extract(ctx context.Context, val any) error {
	if p.mem == nil {
		return ErrAddressInvalid
	}
	return p.mem.MemExtract(ctx, p.addr, val)
}

func (p Pointer) Store(ctx context.Context, val any) error {
	if p.mem == nil {
		return ErrAddressInvalid
	}
	return p.mem.MemStore(ctx, p.addr, val)
}
