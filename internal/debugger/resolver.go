package debugger

import (
	"context"
	"errors"

	"github.com/wnxd/memdbg/debugger"
	"github.com/wnxd/memdbg/encoding"
)

// Address walks a pointer chain. Every offset but the last is added and
// then dereferenced at pointer width; the last is only added. Addresses
// are not validated along the way.
func (dbg *Dbg) Address(ctx context.Context, origin debugger.Origin, offsets ...int64) (uint64, error) {
	var addr uint64
	if origin.IsModule() {
		base, err := dbg.BaseAddress(ctx, origin.Module)
		switch {
		case err == nil:
			addr = base
		case errors.Is(err, debugger.ErrModuleNotFound) && !dbg.opts.StrictModules:
			dbg.log.Warnf("%v, chain starts at 0", err)
		default:
			return 0, err
		}
	} else {
		addr = origin.Addr
	}
	for i, off := range offsets {
		addr += uint64(off)
		if i == len(offsets)-1 {
			break
		}
		val, err := dbg.Read(ctx, encoding.TYPE_POINTER, addr)
		if err != nil {
			return 0, err
		}
		addr = val.Uint()
	}
	return addr, nil
}

// Memory resolves the chain once and returns an accessor bound to the
// result.
func (dbg *Dbg) Memory(ctx context.Context, origin debugger.Origin, offsets ...int64) (debugger.Pointer, uint64, error) {
	addr, err := dbg.Address(ctx, origin, offsets...)
	if err != nil {
		return debugger.Pointer{}, 0, err
	}
	return dbg.ToPointer(addr), addr, nil
}
