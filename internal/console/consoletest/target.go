// Package consoletest simulates the cdb console over a sparse memory image
// so sessions can be exercised without Windows.
package consoletest

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf16"
)

const Prompt = "0:000> "

const Banner = "Microsoft (R) Windows Debugger Version 10.0.22621.1 AMD64\r\n" +
	"Copyright (c) Microsoft Corporation. All rights reserved.\r\n\r\n" +
	"*** wait with pending attach\r\n"

type Module struct {
	Base, End    uint64
	Module, Name string
}

type Target struct {
	// PointerSize is 8 unless set to 4.
	PointerSize int
	Modules     []Module
	Unloaded    []Module
	// ChunkSize splits every reply into writes of at most this many bytes.
	ChunkSize int
	// Delay is slept before every reply write.
	Delay time.Duration
	// Hang suppresses the startup prompt.
	Hang bool
	// Fail prints this message at startup and exits instead of prompting.
	Fail string

	mu        sync.Mutex
	mem       map[uint64]byte
	regions   []Module
	nextAlloc uint64
	history   []string

	busy     atomic.Bool
	overlaps atomic.Int32
	detached atomic.Bool
}

func New() *Target {
	return &Target{PointerSize: 8, mem: make(map[uint64]byte), nextAlloc: 0x00000000_00a10000}
}

// Map makes [addr, addr+size) readable and writable.
func (t *Target) Map(addr, size uint64) {
	t.mu.Lock()
	t.regions = append(t.regions, Module{Base: addr, End: addr + size})
	t.mu.Unlock()
}

// AddModule maps the module image and lists it.
func (t *Target) AddModule(name string, base, size uint64) {
	short := strings.TrimSuffix(strings.TrimSuffix(name, ".exe"), ".dll")
	t.Modules = append(t.Modules, Module{Base: base, End: base + size, Module: short, Name: name})
	t.Map(base, size)
}

func (t *Target) Poke(addr uint64, data []byte) {
	t.mu.Lock()
	for i, b := range data {
		t.mem[addr+uint64(i)] = b
	}
	t.mu.Unlock()
}

func (t *Target) Peek(addr uint64, n int) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	data := make([]byte, n)
	for i := range data {
		data[i] = t.mem[addr+uint64(i)]
	}
	return data
}

func (t *Target) PokeUint(addr uint64, size int, n uint64) {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(n >> (8 * i))
	}
	t.Poke(addr, data)
}

// History returns every command line received so far.
func (t *Target) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.history...)
}

// Count returns how many received commands start with prefix.
func (t *Target) Count(prefix string) int {
	n := 0
	for _, h := range t.History() {
		if strings.HasPrefix(h, prefix) {
			n++
		}
	}
	return n
}

// Overlaps counts commands that arrived while a reply was still being
// written.
func (t *Target) Overlaps() int {
	return int(t.overlaps.Load())
}

func (t *Target) Detached() bool {
	return t.detached.Load()
}

// Serve starts the simulated debugger. The returned reader is its output
// and the writer its input; closing the writer ends the debugger.
func (t *Target) Serve() (io.Reader, io.WriteCloser) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(inR)
		for scanner.Scan() {
			if t.busy.Load() {
				t.overlaps.Add(1)
			}
			lines <- scanner.Text()
		}
	}()
	go t.serve(lines, outW)
	return outR, inW
}

func (t *Target) serve(lines <-chan string, w *io.PipeWriter) {
	defer w.Close()
	t.send(w, Banner)
	if t.Fail != "" {
		t.send(w, t.Fail+"\r\n")
		return
	}
	if t.Hang {
		for range lines {
		}
		return
	}
	t.send(w, Prompt)
	for line := range lines {
		line = strings.TrimSpace(line)
		t.mu.Lock()
		t.history = append(t.history, line)
		t.mu.Unlock()
		t.busy.Store(true)
		reply, quit := t.execute(line)
		if reply != "" {
			t.send(w, reply)
		}
		t.busy.Store(false)
		if quit {
			t.detached.Store(true)
			return
		}
		t.send(w, Prompt)
	}
}

func (t *Target) send(w io.Writer, text string) {
	size := t.ChunkSize
	if size <= 0 {
		size = len(text)
	}
	for len(text) > 0 {
		n := min(size, len(text))
		if t.Delay > 0 {
			time.Sleep(t.Delay)
		}
		if _, err := io.WriteString(w, text[:n]); err != nil {
			return
		}
		text = text[n:]
	}
}

func (t *Target) execute(line string) (string, bool) {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch {
	case name == "qd":
		return "quit:\r\n", true
	case name == "lmn":
		return t.listModules(), false
	case name == ".dvalloc":
		return t.alloc(rest)
	case name == ".dvfree":
		return t.free(rest)
	case name == "db" && strings.Contains(rest, " L "):
		return t.dump(rest), false
	case len(name) == 2 && name[0] == 'd':
		return t.display(name[1], rest), false
	case len(name) == 2 && name[0] == 'e':
		return t.edit(name[1], rest), false
	}
	return syntaxError(line), false
}

func syntaxError(line string) string {
	return fmt.Sprintf("       ^ Syntax error in '%s'\r\n", line)
}

func (t *Target) formatAddr(addr uint64) string {
	if t.PointerSize == 4 {
		return fmt.Sprintf("%08x", uint32(addr))
	}
	return fmt.Sprintf("%08x`%08x", addr>>32, addr&0xffffffff)
}

func parseAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(s, "`", ""), "0x")
	return strconv.ParseUint(s, 16, 64)
}

func (t *Target) readable(addr uint64, n int) bool {
	for _, r := range t.regions {
		if addr >= r.Base && addr+uint64(n) <= r.End {
			return true
		}
	}
	return false
}

func (t *Target) load(addr uint64, size int) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.readable(addr, size) {
		return 0, false
	}
	var n uint64
	for i := 0; i < size; i++ {
		n |= uint64(t.mem[addr+uint64(i)]) << (8 * i)
	}
	return n, true
}

func (t *Target) store(addr uint64, data []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.readable(addr, len(data)) {
		return false
	}
	for i, b := range data {
		t.mem[addr+uint64(i)] = b
	}
	return true
}

func (t *Target) width(code byte) int {
	switch code {
	case 'b':
		return 1
	case 'w':
		return 2
	case 'd', 'f':
		return 4
	case 'q', 'D':
		return 8
	case 'p':
		return t.PointerSize
	}
	return 0
}

func (t *Target) display(code byte, rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return syntaxError("d" + string(code))
	}
	addr, err := parseAddr(fields[0])
	if err != nil {
		return syntaxError(rest)
	}
	prefix := t.formatAddr(addr) + "  "
	switch code {
	case 'a', 'u':
		s, ok := t.loadString(addr, code == 'u')
		if !ok {
			return prefix + "????\r\n"
		}
		return prefix + `"` + s + `"` + "\r\n"
	}
	size := t.width(code)
	if size == 0 {
		return syntaxError("d" + string(code))
	}
	n, ok := t.load(addr, size)
	if !ok {
		return prefix + strings.Repeat("?", size*2) + "\r\n"
	}
	var val string
	switch code {
	case 'f':
		val = strconv.FormatFloat(float64(math.Float32frombits(uint32(n))), 'g', -1, 32)
	case 'D':
		val = strconv.FormatFloat(math.Float64frombits(n), 'g', -1, 64)
	default:
		if size == 8 {
			val = fmt.Sprintf("%08x`%08x", n>>32, n&0xffffffff)
		} else {
			val = fmt.Sprintf("%0*x", size*2, n)
		}
	}
	return prefix + val + "\r\n"
}

func (t *Target) loadString(addr uint64, wide bool) (string, bool) {
	step := 1
	if wide {
		step = 2
	}
	var units []uint16
	for i := 0; i < 256; i++ {
		n, ok := t.load(addr+uint64(i*step), step)
		if !ok {
			return "", i > 0
		}
		if n == 0 {
			break
		}
		units = append(units, uint16(n))
	}
	if wide {
		return string(utf16.Decode(units)), true
	}
	b := make([]byte, len(units))
	for i, u := range units {
		b[i] = byte(u)
	}
	return string(b), true
}

func (t *Target) edit(code byte, rest string) string {
	addrText, value, _ := strings.Cut(rest, " ")
	addr, err := parseAddr(addrText)
	if err != nil {
		return syntaxError(rest)
	}
	value = strings.TrimSpace(value)
	var data []byte
	switch code {
	case 'a', 'u':
		s := strings.TrimSuffix(strings.TrimPrefix(value, `"`), `"`)
		if code == 'a' {
			data = []byte(s)
		} else {
			for _, u := range utf16.Encode([]rune(s)) {
				data = append(data, byte(u), byte(u>>8))
			}
		}
	case 'b':
		for _, tok := range strings.Fields(value) {
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				return syntaxError(rest)
			}
			data = append(data, byte(b))
		}
	case 'f', 'D':
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return syntaxError(rest)
		}
		if code == 'f' {
			data = le(uint64(math.Float32bits(float32(f))), 4)
		} else {
			data = le(math.Float64bits(f), 8)
		}
	default:
		size := t.width(code)
		n, err := strconv.ParseUint(strings.ReplaceAll(value, "`", ""), 16, 64)
		if size == 0 || err != nil {
			return syntaxError(rest)
		}
		data = le(n, size)
	}
	if !t.store(addr, data) {
		return fmt.Sprintf("Memory access error at '%s'\r\n", rest)
	}
	return ""
}

func le(n uint64, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(n >> (8 * i))
	}
	return data
}

func (t *Target) dump(rest string) string {
	addrText, lenText, _ := strings.Cut(rest, " L ")
	addr, err1 := parseAddr(addrText)
	length, err2 := strconv.ParseUint(strings.TrimSpace(lenText), 16, 64)
	if err1 != nil || err2 != nil {
		return syntaxError(rest)
	}
	var sb strings.Builder
	for off := uint64(0); off < length; off += 16 {
		n := min(16, length-off)
		sb.WriteString(t.formatAddr(addr + off))
		sb.WriteString("  ")
		var hex, ascii strings.Builder
		for i := uint64(0); i < 16; i++ {
			switch {
			case i == 8 && i < n:
				hex.WriteByte('-')
			case i > 0:
				hex.WriteByte(' ')
			}
			if i >= n {
				hex.WriteString("  ")
				continue
			}
			b, ok := t.load(addr+off+i, 1)
			if !ok {
				hex.WriteString("??")
				ascii.WriteByte('?')
				continue
			}
			fmt.Fprintf(&hex, "%02x", b)
			if b >= 0x20 && b < 0x7f {
				ascii.WriteByte(byte(b))
			} else {
				ascii.WriteByte('.')
			}
		}
		sb.WriteString(hex.String())
		sb.WriteString("  ")
		sb.WriteString(ascii.String())
		sb.WriteString("\r\n")
	}
	return sb.String()
}

func (t *Target) listModules() string {
	var sb strings.Builder
	sb.WriteString("start             end                 module name\r\n")
	for _, m := range t.Modules {
		fmt.Fprintf(&sb, "%s %s   %-10s %s\r\n", t.formatAddr(m.Base), t.formatAddr(m.End), m.Module, m.Name)
	}
	if len(t.Unloaded) > 0 {
		sb.WriteString("\r\nUnloaded modules:\r\n")
		for _, m := range t.Unloaded {
			fmt.Fprintf(&sb, "%s %s   %s\r\n", t.formatAddr(m.Base), t.formatAddr(m.End), m.Name)
		}
	}
	return sb.String()
}

func (t *Target) alloc(rest string) (string, bool) {
	size, err := strconv.ParseUint(rest, 16, 64)
	if err != nil || size == 0 {
		return syntaxError(".dvalloc " + rest), false
	}
	t.mu.Lock()
	addr := t.nextAlloc
	t.nextAlloc += (size + 0xffff) &^ 0xffff
	t.regions = append(t.regions, Module{Base: addr, End: addr + size})
	t.mu.Unlock()
	return fmt.Sprintf("Allocated %x bytes starting at %s\r\n", size, t.formatAddr(addr)), false
}

func (t *Target) free(rest string) (string, bool) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return syntaxError(".dvfree " + rest), false
	}
	addr, err := parseAddr(fields[0])
	if err != nil {
		return syntaxError(".dvfree " + rest), false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.regions {
		if r.Base == addr {
			t.regions = append(t.regions[:i], t.regions[i+1:]...)
			return fmt.Sprintf("Freed %x bytes starting at %s\r\n", r.End-r.Base, t.formatAddr(addr)), false
		}
	}
	return fmt.Sprintf("Unable to free memory at %s\r\n", t.formatAddr(addr)), false
}
