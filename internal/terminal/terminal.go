package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/go-delve/liner"

	"github.com/wnxd/memdbg/debugger"
)

const historyLimit = 500

type Term struct {
	dbg    debugger.SyncDebugger
	cmds   *Commands
	line   *liner.State
	stdout io.Writer
	// dialect prompt, trimmed from raw replies
	dprompt string
}

func New(dbg debugger.SyncDebugger, dialectPrompt string) *Term {
	return &Term{
		dbg:     dbg,
		cmds:    DebugCommands(),
		stdout:  os.Stdout,
		dprompt: dialectPrompt,
	}
}

func (t *Term) prompt() string {
	return t.dprompt
}

// Run reads commands until exit or end of input, then detaches.
func (t *Term) Run() error {
	t.line = liner.NewLiner()
	defer t.line.Close()
	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(t.cmds.completions)

	fmt.Fprintf(t.stdout, "Attached to %s (pid %d, %d-bit). Type 'help' for list of commands.\n",
		t.dbg.ProcessName(), t.dbg.PID(), t.dbg.PointerSize()*8)
	prompt := fmt.Sprintf("(%s) ", t.dbg.ProcessName())
	for {
		l, err := t.line.Prompt(prompt)
		if err != nil {
			if err == io.EOF || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(t.stdout, "exit")
				return t.dbg.Close()
			}
			return err
		}
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if len(l) < historyLimit {
			t.line.AppendHistory(l)
		}
		if err := t.cmds.Call(l, t); err != nil {
			if errors.Is(err, errExit) {
				return t.dbg.Close()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// PrintModules writes a module table.
func PrintModules(w io.Writer, modules []debugger.Module) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "base\tend\tmodule\tname")
	for _, m := range modules {
		fmt.Fprintf(tw, "%016x\t%016x\t%s\t%s\n", m.Base, m.End, m.Module, m.Name)
	}
	tw.Flush()
}
