// Package terminal implements the interactive memdbg console.
package terminal

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/debugger"
	"github.com/wnxd/memdbg/encoding"
)

type cmdfunc func(t *Term, args []string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

// Commands dispatches console lines. Names may be abbreviated to any
// unambiguous prefix.
type Commands struct {
	cmds  []command
	names *trie.Trie
	types *trie.Trie
}

var (
	errNoCmd     = errors.New("command not available")
	errAmbiguous = errors.New("ambiguous abbreviation")
	errExit      = errors.New("exit")
	errUsage     = errors.New("wrong number of arguments")
)

func DebugCommands() *Commands {
	c := &Commands{names: trie.New(), types: trie.New()}
	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]`},
		{aliases: []string{"read", "r"}, cmdFn: read, helpMsg: `Reads one typed value at the end of a pointer chain.

	read <type> <origin> [offsets...]

Types: byte byte2 byte4 byte8 pointer float double ascii unicode.
Origin is a module name or a 0x prefixed address. Every offset but the last is dereferenced.`},
		{aliases: []string{"write", "w"}, cmdFn: write, helpMsg: `Writes one typed value.

	write <type> <value> <origin> [offsets...]`},
		{aliases: []string{"dump", "db"}, cmdFn: dump, helpMsg: `Prints a hex dump.

	dump <origin> <length> [offsets...]`},
		{aliases: []string{"address", "addr"}, cmdFn: address, helpMsg: `Resolves a pointer chain without reading the final address.

	address <origin> [offsets...]`},
		{aliases: []string{"modules", "lm"}, cmdFn: modules, helpMsg: "Lists the loaded modules."},
		{aliases: []string{"alloc"}, cmdFn: alloc, helpMsg: `Reserves memory in the target.

	alloc [size]`},
		{aliases: []string{"free"}, cmdFn: free, helpMsg: `Releases memory obtained with alloc.

	free <address> [size]`},
		{aliases: []string{"exec", "!"}, cmdFn: exec, helpMsg: `Sends a raw debugger command and prints the reply.

	exec <text>`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: "Detaches and exits."},
	}
	for i, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			c.names.Add(alias, i)
		}
	}
	for _, typ := range encoding.Types() {
		c.types.Add(typ.String(), typ)
	}
	return c
}

// resolve finds the entry for an exact key or a unique prefix.
func resolve(t *trie.Trie, key string) (any, error) {
	if node, ok := t.Find(key); ok {
		return node.Meta(), nil
	}
	matches := t.PrefixSearch(key)
	switch len(matches) {
	case 0:
		return nil, errNoCmd
	case 1:
		node, _ := t.Find(matches[0])
		return node.Meta(), nil
	}
	sort.Strings(matches)
	return nil, fmt.Errorf("%w %q: %s", errAmbiguous, key, strings.Join(matches, ", "))
}

func (c *Commands) find(name string) (*command, error) {
	meta, err := resolve(c.names, strings.ToLower(name))
	if err != nil {
		return nil, err
	}
	return &c.cmds[meta.(int)], nil
}

func (c *Commands) Find(name string) (cmdfunc, error) {
	cmd, err := c.find(name)
	if err != nil {
		return nil, err
	}
	return cmd.cmdFn, nil
}

func (c *Commands) parseType(name string) (encoding.Type, error) {
	if typ, err := encoding.ParseType(name); err == nil {
		return typ, nil
	}
	meta, err := resolve(c.types, strings.ToLower(name))
	if err != nil {
		return 0, fmt.Errorf("type %q: %w", name, err)
	}
	return meta.(encoding.Type), nil
}

// Call splits a console line and runs the command it names.
func (c *Commands) Call(line string, t *Term) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	name, rest, _ := strings.Cut(line, " ")
	cmd, err := c.find(name)
	if err != nil {
		return err
	}
	rest = strings.TrimSpace(rest)
	if cmd.aliases[0] == "exec" {
		return cmd.cmdFn(t, []string{rest})
	}
	if rest == "" {
		return cmd.cmdFn(t, nil)
	}
	v, err := argv.Argv(rest,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return err
	}
	var args []string
	for _, w := range v {
		args = append(args, w...)
	}
	return cmd.cmdFn(t, args)
}

// completions lists the aliases starting with prefix.
func (c *Commands) completions(prefix string) []string {
	out := c.names.PrefixSearch(strings.ToLower(prefix))
	sort.Strings(out)
	return out
}

func (c *Commands) help(t *Term, args []string) error {
	if len(args) > 0 {
		cmd, err := c.find(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(t.stdout, cmd.helpMsg)
		return nil
	}
	w := tabwriter.NewWriter(t.stdout, 0, 8, 2, ' ', 0)
	for _, cmd := range c.cmds {
		short, _, _ := strings.Cut(cmd.helpMsg, "\n")
		fmt.Fprintf(w, "  %s\t%s\t%s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], ", "), short)
	}
	return w.Flush()
}

// ParseOffsets reads a list of signed decimal or 0x hex offsets.
func ParseOffsets(args []string) ([]int64, error) {
	offsets := make([]int64, 0, len(args))
	for _, arg := range args {
		n, err := parseInt(arg)
		if err != nil {
			return nil, fmt.Errorf("offset %q: %w", arg, err)
		}
		offsets = append(offsets, n)
	}
	return offsets, nil
}

// parseInt accepts decimal, 0x hex and a leading minus sign.
func parseInt(s string) (int64, error) {
	neg := strings.HasPrefix(s, "-")
	u, err := strconv.ParseUint(strings.TrimPrefix(s, "-"), 0, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(u), nil
	}
	return int64(u), nil
}

func parseValue(typ encoding.Type, s string) (encoding.Value, error) {
	switch typ.Category() {
	case encoding.CATEGORY_HEX:
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			i, ierr := strconv.ParseInt(s, 0, 64)
			if ierr != nil {
				return encoding.Value{}, err
			}
			n = uint64(i)
		}
		return encoding.Uint(typ, n), nil
	case encoding.CATEGORY_DECIMAL:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return encoding.Value{}, err
		}
		return encoding.Float(typ, f), nil
	}
	return encoding.Text(typ, s), nil
}

func read(t *Term, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	typ, err := t.cmds.parseType(args[0])
	if err != nil {
		return err
	}
	offsets, err := ParseOffsets(args[2:])
	if err != nil {
		return err
	}
	ptr, addr, err := t.dbg.Memory(debugger.ParseOrigin(args[1]), offsets...)
	if err != nil {
		return err
	}
	v, err := ptr.Get(typ)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%#x %s = %s\n", addr, typ, v)
	return nil
}

func write(t *Term, args []string) error {
	if len(args) < 3 {
		return errUsage
	}
	typ, err := t.cmds.parseType(args[0])
	if err != nil {
		return err
	}
	v, err := parseValue(typ, args[1])
	if err != nil {
		return err
	}
	offsets, err := ParseOffsets(args[3:])
	if err != nil {
		return err
	}
	ptr, addr, err := t.dbg.Memory(debugger.ParseOrigin(args[2]), offsets...)
	if err != nil {
		return err
	}
	if err = ptr.Set(typ, v); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%#x %s <- %s\n", addr, typ, v)
	return nil
}

func dump(t *Term, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	length, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return err
	}
	offsets, err := ParseOffsets(args[2:])
	if err != nil {
		return err
	}
	addr, err := t.dbg.Address(debugger.ParseOrigin(args[0]), offsets...)
	if err != nil {
		return err
	}
	data, err := t.dbg.ReadBuffer(addr, length)
	if err != nil {
		return err
	}
	for off := 0; off < len(data); off += encoding.DumpBytesPerLine {
		end := min(off+encoding.DumpBytesPerLine, len(data))
		fmt.Fprintf(t.stdout, "%016x  %-47s  %s\n", addr+uint64(off), encoding.EncodeBytes(data[off:end]), printable(data[off:end]))
	}
	return nil
}

func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c >= 0x7f {
			c = '.'
		}
		out[i] = c
	}
	return string(out)
}

func address(t *Term, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	offsets, err := ParseOffsets(args[1:])
	if err != nil {
		return err
	}
	addr, err := t.dbg.Address(debugger.ParseOrigin(args[0]), offsets...)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%#x\n", addr)
	return nil
}

func modules(t *Term, args []string) error {
	list, err := t.dbg.Modules()
	if err != nil {
		return err
	}
	PrintModules(t.stdout, list)
	return nil
}

func alloc(t *Term, args []string) error {
	var size uint64
	if len(args) > 0 {
		n, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return err
		}
		size = n
	}
	region, err := t.dbg.Alloc(size)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%#x-%#x\n", region.Addr, region.End())
	return nil
}

func free(t *Term, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return err
	}
	var size uint64
	if len(args) > 1 {
		if size, err = strconv.ParseUint(args[1], 0, 64); err != nil {
			return err
		}
	}
	return t.dbg.Free(addr, size)
}

func exec(t *Term, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return errUsage
	}
	reply, err := t.dbg.Exec(console.Command{Text: args[0]})
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(reply), t.prompt())))
	return nil
}

func exitCommand(t *Term, args []string) error {
	return errExit
}
