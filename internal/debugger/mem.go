package debugger

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/wnxd/memdbg/debugger"
	"github.com/wnxd/memdbg/encoding"
)

const (
	// dump replies grow by roughly 90 bytes per 16 bytes read; 4 KiB keeps
	// one reply well inside a bridge region
	dumpBlock  = 0x1000
	writeBlock = 0x100
)

type memoryManager struct {
	mu   sync.Mutex
	live map[uint64]uint64
}

func (mm *memoryManager) ctor() {
	mm.live = make(map[uint64]uint64)
}

func (mm *memoryManager) dtor(dbg *Dbg) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, addr := range slices.Sorted(maps.Keys(mm.live)) {
		dbg.log.Warnf("region %x (%x bytes) left allocated", addr, mm.live[addr])
	}
	clear(mm.live)
}

func (dbg *Dbg) typeCode(typ encoding.Type) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("%w: %d", encoding.ErrUnknownType, typ)
	}
	code, ok := dbg.dialect.TypeCode(typ.String())
	if !ok {
		return "", fmt.Errorf("%w: %s has no %s code", encoding.ErrUnsupported, dbg.dialect.Name, typ)
	}
	return code, nil
}

func (dbg *Dbg) Read(ctx context.Context, typ encoding.Type, addr uint64) (encoding.Value, error) {
	code, err := dbg.typeCode(typ)
	if err != nil {
		return encoding.Value{}, err
	}
	hexAddr := encoding.FormatAddr(addr)
	reply, err := dbg.exec(ctx, dbg.dialect.Read(code, hexAddr), hexAddr, dbg.dialect.Prompt)
	if err != nil {
		return encoding.Value{}, err
	}
	val, err := dbg.codec.Decode(typ, addr, reply)
	if err != nil && dbg.opts.Permissive {
		dbg.log.Warn(err)
		return val, nil
	}
	return val, err
}

// Write stores val without reading it back.
func (dbg *Dbg) Write(ctx context.Context, typ encoding.Type, addr uint64, val encoding.Value) error {
	code, err := dbg.typeCode(typ)
	if err != nil {
		return err
	}
	text, err := dbg.codec.Encode(typ, val)
	if err != nil {
		return err
	}
	_, err = dbg.execChecked(ctx, dbg.dialect.Write(code, encoding.FormatAddr(addr), text))
	return err
}

func (dbg *Dbg) ReadBuffer(ctx context.Context, addr, length uint64) ([]byte, error) {
	data := make([]byte, 0, length)
	for off := uint64(0); off < length; off += dumpBlock {
		n := min(dumpBlock, length-off)
		reply, err := dbg.exec(ctx, dbg.dialect.Dump(encoding.FormatAddr(addr+off), n))
		if err != nil {
			return nil, err
		}
		block, err := encoding.DecodeDump(addr+off, reply, n)
		if err != nil {
			return nil, err
		}
		data = append(data, block...)
	}
	return data, nil
}

func (dbg *Dbg) WriteBuffer(ctx context.Context, addr uint64, data []byte) error {
	for off := 0; off < len(data); off += writeBlock {
		end := min(off+writeBlock, len(data))
		text := dbg.dialect.WriteBytes(encoding.FormatAddr(addr+uint64(off)), encoding.EncodeBytes(data[off:end]))
		if _, err := dbg.execChecked(ctx, text); err != nil {
			return err
		}
	}
	return nil
}

// Alloc reserves scratch memory in the target. A zero size asks for the
// configured default.
func (dbg *Dbg) Alloc(ctx context.Context, size uint64) (debugger.Region, error) {
	if size == 0 {
		size = dbg.opts.AllocSize
	}
	reply, err := dbg.execChecked(ctx, dbg.dialect.Alloc(size))
	if err != nil {
		return debugger.Region{}, err
	}
	addr, err := encoding.ParseAlloc(reply, dbg.alloc)
	if err != nil {
		return debugger.Region{}, err
	}
	dbg.mu.Lock()
	dbg.live[addr] = size
	dbg.mu.Unlock()
	return debugger.Region{Addr: addr, Size: size}, nil
}

func (dbg *Dbg) Free(ctx context.Context, addr, size uint64) error {
	if size == 0 {
		dbg.mu.Lock()
		size = dbg.live[addr]
		dbg.mu.Unlock()
		if size == 0 {
			size = dbg.opts.AllocSize
		}
	}
	if _, err := dbg.execChecked(ctx, dbg.dialect.Free(encoding.FormatAddr(addr), size)); err != nil {
		return err
	}
	dbg.mu.Lock()
	delete(dbg.live, addr)
	dbg.mu.Unlock()
	return nil
}

// MemExtract fills the fixed layout value val points to from target memory.
func (dbg *Dbg) MemExtract(ctx context.Context, addr uint64, val any) error {
	if v := reflect.ValueOf(val); v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: need non-nil pointer, got %T", debugger.ErrArgumentInvalid, val)
	}
	size, err := encoding.Sizeof(int(dbg.PointerSize()), val)
	if err != nil {
		return fmt.Errorf("%w: %w", debugger.ErrArgumentInvalid, err)
	}
	data, err := dbg.ReadBuffer(ctx, addr, uint64(size))
	if err != nil {
		return err
	}
	return encoding.Unmarshal(data, int(dbg.PointerSize()), val)
}

func (dbg *Dbg) MemStore(ctx context.Context, addr uint64, val any) error {
	data, err := encoding.Marshal(int(dbg.PointerSize()), val)
	if err != nil {
		return fmt.Errorf("%w: %w", debugger.ErrArgumentInvalid, err)
	}
	return dbg.WriteBuffer(ctx, addr, data)
}

func (dbg *Dbg) ToPointer(addr uint64) debugger.Pointer {
	return debugger.NewPointer(dbg, addr)
}

