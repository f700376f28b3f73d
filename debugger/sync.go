package debugger

import (
	"context"
	"io"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/encoding"
)

// SyncDebugger offers the Debugger operations to callers that cannot wait
// on a context. Calls return once the debugger answered; two calls never
// overlap on one session.
type SyncDebugger interface {
	io.Closer
	ProcessName() string
	PID() int
	Arch() console.Arch
	PointerSize() uint64
	Exec(cmd console.Command) (string, error)
	Read(typ encoding.Type, addr uint64) (encoding.Value, error)
	Write(typ encoding.Type, addr uint64, val encoding.Value) error
	ReadBuffer(addr, length uint64) ([]byte, error)
	WriteBuffer(addr uint64, data []byte) error
	Alloc(size uint64) (Region, error)
	Free(addr, size uint64) error
	MemExtract(addr uint64, val any) error
	MemStore(addr uint64, val any) error
	Modules() ([]Module, error)
	FindModule(name string) (Module, error)
	BaseAddress(name string) (uint64, error)
	Address(origin Origin, offsets ...int64) (uint64, error)
	Memory(origin Origin, offsets ...int64) (SyncPointer, uint64, error)
	ToPointer(addr uint64) SyncPointer
}

// SyncPointer is the context free form of Pointer.
type SyncPointer struct {
	Pointer
}

func (p SyncPointer) Add(offset int64) SyncPointer {
	return SyncPointer{p.Pointer.Add(offset)}
}

func (p SyncPointer) Get(typ encoding.Type) (encoding.Value, error) {
	return p.Pointer.Get(context.Background(), typ)
}

func (p SyncPointer) Set(typ encoding.Type, val encoding.Value) error {
	return p.Pointer.Set(context.Background(), typ, val)
}

func (p SyncPointer) Byte() (uint8, error) {
	return p.Pointer.Byte(context.Background())
}

func (p SyncPointer) SetByte(b uint8) error {
	return p.Pointer.SetByte(context.Background(), b)
}

func (p SyncPointer) Byte2() (uint16, error) {
	return p.Pointer.Byte2(context.Background())
}

func (p SyncPointer) SetByte2(n uint16) error {
	return p.Pointer.SetByte2(context.Background(), n)
}

func (p SyncPointer) Byte4() (uint32, error) {
	return p.Pointer.Byte4(context.Background())
}

func (p SyncPointer) SetByte4(n uint32) error {
	return p.Pointer.SetByte4(context.Background(), n)
}

func (p SyncPointer) Byte8() (uint64, error) {
	return p.Pointer.Byte8(context.Background())
}

func (p SyncPointer) SetByte8(n uint64) error {
	return p.Pointer.SetByte8(context.Background(), n)
}

func (p SyncPointer) Ptr() (uint64, error) {
	return p.Pointer.Ptr(context.Background())
}

func (p SyncPointer) SetPtr(addr uint64) error {
	return p.Pointer.SetPtr(context.Background(), addr)
}

func (p SyncPointer) Deref() (SyncPointer, error) {
	ptr, err := p.Pointer.Deref(context.Background())
	return SyncPointer{ptr}, err
}

func (p SyncPointer) Float() (float32, error) {
	return p.Pointer.Float(context.Background())
}

func (p SyncPointer) SetFloat(f float32) error {
	return p.Pointer.SetFloat(context.Background(), f)
}

func (p SyncPointer) Double() (float64, error) {
	return p.Pointer.Double(context.Background())
}

func (p SyncPointer) SetDouble(f float64) error {
	return p.Pointer.SetDouble(context.Background(), f)
}

func (p SyncPointer) Ascii() (string, error) {
	return p.Pointer.Ascii(context.Background())
}

func (p SyncPointer) SetAscii(s string) error {
	return p.Pointer.SetAscii(context.Background(), s)
}

func (p SyncPointer) Unicode() (string, error) {
	return p.Pointer.Unicode(context.Background())
}

func (p SyncPointer) SetUnicode(s string) error {
	return p.Pointer.SetUnicode(context.Background(), s)
}

func (p SyncPointer) ReadBuffer(length uint64) ([]byte, error) {
	return p.Pointer.ReadBuffer(context.Background(), length)
}

func (p SyncPointer) WriteBuffer(data []byte) error {
	return p.Pointer.WriteBuffer(context.Background(), data)
}

func (p SyncPointer) Extract(val any) error {
	return p.Pointer.Extract(context.Background(), val)
}

func (p SyncPointer) Store(val any) error {
	return p.Pointer.Store(context.Background(), val)
}
