package debugger

import (
	"context"
	"fmt"
)

// Module is one entry of the debugger's module listing.
type Module struct {
	// Name is the image name, e.g. game.exe.
	Name string
	// Module is the debugger's short module name, e.g. game.
	Module string
	Base   uint64
	End    uint64
}

func (m Module) Size() uint64 {
	return m.End - m.Base
}

func (m Module) Contains(addr uint64) bool {
	return addr >= m.Base && addr < m.End
}

func (m Module) String() string {
	return fmt.Sprintf("%016X-%016X %s (%s)", m.Base, m.End, m.Name, m.Module)
}

type ModuleManager interface {
	// Modules lists the loaded modules in the order the debugger reports
	// them. The list is fetched fresh on every call.
	Modules(ctx context.Context) ([]Module, error)
	// FindModule matches name exactly against the image name ("ntdll.dll"),
	// then against the short module name ("ntdll"). Case is significant. An
	// empty name means the attached process itself.
	FindModule(ctx context.Context, name string) (Module, error)
	BaseAddress(ctx context.Context, name string) (uint64, error)
}
