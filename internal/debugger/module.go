package debugger

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/debugger"
)

const unloadedSection = "Unloaded modules:"

var moduleLine = regexp.MustCompile(`^([0-9a-fA-F]{6,16})\s+([0-9a-fA-F]{8,16})\s+(\S+)\s+(.+?)\s*$`)

// parseModules reads "<base> <end> <module> <image>" lines in order and
// stops at the unloaded section. Lines that do not fit, such as the
// header, are skipped.
func parseModules(text string) []debugger.Module {
	var modules []debugger.Module
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), unloadedSection) {
			break
		}
		m := moduleLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		base, err1 := strconv.ParseUint(m[1], 16, 64)
		end, err2 := strconv.ParseUint(m[2], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		modules = append(modules, debugger.Module{Name: m[4], Module: m[3], Base: base, End: end})
	}
	return modules
}

func (dbg *Dbg) Modules(ctx context.Context) ([]debugger.Module, error) {
	reply, err := dbg.Exec(ctx, console.Command{
		Text:       dbg.dialect.ModulesCmd,
		Expect:     dbg.dialect.ModulesExpect,
		Accumulate: true,
	})
	if err != nil {
		return nil, err
	}
	return parseModules(reply), nil
}

// FindModule matches the image name first, then falls back to the short
// module name, so "ntdll" finds ntdll.dll. Both comparisons are case
// sensitive.
func (dbg *Dbg) FindModule(ctx context.Context, name string) (debugger.Module, error) {
	if name == "" {
		name = dbg.con.ProcessName()
	}
	modules, err := dbg.Modules(ctx)
	if err != nil {
		return debugger.Module{}, err
	}
	for _, module := range modules {
		if module.Name == name {
			return module, nil
		}
	}
	for _, module := range modules {
		if module.Module == name {
			return module, nil
		}
	}
	return debugger.Module{}, fmt.Errorf("%w: %s", debugger.ErrModuleNotFound, name)
}

func (dbg *Dbg) BaseAddress(ctx context.Context, name string) (uint64, error) {
	module, err := dbg.FindModule(ctx, name)
	if err != nil {
		return 0, err
	}
	return module.Base, nil
}
