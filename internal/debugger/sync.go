package debugger

import (
	"context"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/debugger"
	"github.com/wnxd/memdbg/encoding"
)

// syncDbg drops the contexts of a Debugger. Its console is normally a
// bridge, so each call returns once the host goroutine has answered.
type syncDbg struct {
	dbg debugger.Debugger
}

func NewSync(dbg debugger.Debugger) debugger.SyncDebugger {
	return &syncDbg{dbg}
}

func (s *syncDbg) Close() error {
	return s.dbg.Close()
}

func (s *syncDbg) ProcessName() string {
	return s.dbg.ProcessName()
}

func (s *syncDbg) PID() int {
	return s.dbg.PID()
}

func (s *syncDbg) Arch() console.Arch {
	return s.dbg.Arch()
}

func (s *syncDbg) PointerSize() uint64 {
	return s.dbg.PointerSize()
}

func (s *syncDbg) Exec(cmd console.Command) (string, error) {
	return s.dbg.Exec(context.Background(), cmd)
}

func (s *syncDbg) Read(typ encoding.Type, addr uint64) (encoding.Value, error) {
	return s.dbg.Read(context.Background(), typ, addr)
}

func (s *syncDbg) Write(typ encoding.Type, addr uint64, val encoding.Value) error {
	return s.dbg.Write(context.Background(), typ, addr, val)
}

func (s *syncDbg) ReadBuffer(addr, length uint64) ([]byte, error) {
	return s.dbg.ReadBuffer(context.Background(), addr, length)
}

func (s *syncDbg) WriteBuffer(addr uint64, data []byte) error {
	return s.dbg.WriteBuffer(context.Background(), addr, data)
}

func (s *syncDbg) Alloc(size uint64) (debugger.Region, error) {
	return s.dbg.Alloc(context.Background(), size)
}

func (s *syncDbg) Free(addr, size uint64) error {
	return s.dbg.Free(context.Background(), addr, size)
}

func (s *syncDbg) MemExtract(addr uint64, val any) error {
	return s.dbg.MemExtract(context.Background(), addr, val)
}

func (s *syncDbg) MemStore(addr uint64, val any) error {
	return s.dbg.MemStore(context.Background(), addr, val)
}

func (s *syncDbg) Modules() ([]debugger.Module, error) {
	return s.dbg.Modules(context.Background())
}

func (s *syncDbg) FindModule(name string) (debugger.Module, error) {
	return s.dbg.FindModule(context.Background(), name)
}

func (s *syncDbg) BaseAddress(name string) (uint64, error) {
	return s.dbg.BaseAddress(context.Background(), name)
}

func (s *syncDbg) Address(origin debugger.Origin, offsets ...int64) (uint64, error) {
	return s.dbg.Address(context.Background(), origin, offsets...)
}

func (s *syncDbg) Memory(origin debugger.Origin, offsets ...int64) (debugger.SyncPointer, uint64, error) {
	ptr, addr, err := s.dbg.Memory(context.Background(), origin, offsets...)
	return debugger.SyncPointer{Pointer: ptr}, addr, err
}

func (s *syncDbg) ToPointer(addr uint64) debugger.SyncPointer {
	return debugger.SyncPointer{Pointer: s.dbg.ToPointer(addr)}
}
