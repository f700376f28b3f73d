package console

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Normalizer rewrites raw debugger output before it is matched or parsed.
type Normalizer struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

// Dialect holds every string that is specific to one debugger tool: its
// prompt, binaries and command vocabulary. Command formats are fmt verbs;
// addresses are passed already rendered as hex strings.
type Dialect struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`

	Binary32   string `yaml:"binary32"`
	Binary64   string `yaml:"binary64"`
	Args       string `yaml:"args"`
	Lister     string `yaml:"lister"`
	ListerArgs string `yaml:"lister-args"`

	// TypeCodes maps memory type names (byte, byte2, ... unicode) to the
	// one letter code used by typed dump and edit commands.
	TypeCodes map[string]string `yaml:"type-codes"`
	Quote     string            `yaml:"quote"`

	// %[1]s type code, %[2]s hex address
	ReadCmd string `yaml:"read"`
	// %[1]s type code, %[2]s hex address, %[3]s encoded value
	WriteCmd string `yaml:"write"`
	// %[1]s hex address, %[2]x length
	DumpCmd string `yaml:"dump"`
	// %[1]s hex address, %[2]s space separated hex bytes
	WriteBytesCmd string `yaml:"write-bytes"`
	ModulesCmd    string   `yaml:"modules"`
	ModulesExpect []string `yaml:"modules-expect"`
	// %[1]x size
	AllocCmd     string `yaml:"alloc"`
	AllocPattern string `yaml:"alloc-pattern"`
	// %[1]s hex address, %[2]x size
	FreeCmd   string `yaml:"free"`
	DetachCmd string `yaml:"detach"`
	// Failures are substrings that mark a reply as a rejected command.
	Failures []string `yaml:"failures"`

	Normalizers []Normalizer `yaml:"normalize"`

	once  sync.Once
	norms []*regexp.Regexp
	err   error
}

// DefaultDialect returns the vocabulary of the Windows console debugger cdb.
func DefaultDialect() *Dialect {
	return &Dialect{
		Name:       "cdb",
		Prompt:     "0:000>",
		Binary32:   "cdb32.exe",
		Binary64:   "cdb64.exe",
		Args:       "-pvr -pn",
		Lister:     "tlist.exe",
		ListerArgs: "-w",
		TypeCodes: map[string]string{
			"byte":    "b",
			"byte2":   "w",
			"byte4":   "d",
			"byte8":   "q",
			"pointer": "p",
			"float":   "f",
			"double":  "D",
			"ascii":   "a",
			"unicode": "u",
		},
		Quote:         `"`,
		ReadCmd:       "d%[1]s %[2]s L 1",
		WriteCmd:      "e%[1]s %[2]s %[3]s",
		DumpCmd:       "db %[1]s L %[2]x",
		WriteBytesCmd: "eb %[1]s %[2]s",
		ModulesCmd:    "lmn",
		ModulesExpect: []string{"start"},
		AllocCmd:      ".dvalloc %[1]x",
		AllocPattern:  `starting at ([0-9a-fA-F]+)`,
		FreeCmd:       ".dvfree %[1]s %[2]x",
		DetachCmd:     "qd",
		Failures:      []string{"Memory access error", "Syntax error", "Unable to"},
		Normalizers: []Normalizer{
			{Pattern: "(?i)([0-9a-f]{8})`([0-9a-f]{8})", Replace: "${1}${2}"},
		},
	}
}

// LoadDialect reads a YAML dialect file. Keys missing from the file keep
// the cdb defaults.
func LoadDialect(path string) (*Dialect, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDialectNotFound, path)
	} else if err != nil {
		return nil, err
	}
	d := DefaultDialect()
	if err = yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decode dialect %s: %w", path, err)
	}
	return d, d.Validate()
}

func (d *Dialect) Validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("dialect: missing name")
	case d.Prompt == "":
		return fmt.Errorf("dialect %s: missing prompt", d.Name)
	}
	if _, err := regexp.Compile(d.AllocPattern); err != nil {
		return fmt.Errorf("dialect %s: alloc-pattern: %w", d.Name, err)
	}
	return d.compile()
}

func (d *Dialect) compile() error {
	d.once.Do(func() {
		for _, n := range d.Normalizers {
			re, err := regexp.Compile(n.Pattern)
			if err != nil {
				d.err = fmt.Errorf("dialect %s: normalize %q: %w", d.Name, n.Pattern, err)
				return
			}
			d.norms = append(d.norms, re)
		}
	})
	return d.err
}

// Normalize applies the dialect rewrites to a chunk of output.
func (d *Dialect) Normalize(text string) string {
	if d.compile() != nil {
		return text
	}
	for i, re := range d.norms {
		text = re.ReplaceAllString(text, d.Normalizers[i].Replace)
	}
	return text
}

func (d *Dialect) TypeCode(name string) (string, bool) {
	code, ok := d.TypeCodes[name]
	return code, ok
}

// Binary returns the debugger executable matching the target word size.
func (d *Dialect) Binary(arch Arch) string {
	if arch == ARCH_X86_64 {
		return d.Binary64
	}
	return d.Binary32
}

func (d *Dialect) Read(code, addr string) string {
	return fmt.Sprintf(d.ReadCmd, code, addr)
}

func (d *Dialect) Write(code, addr, value string) string {
	return fmt.Sprintf(d.WriteCmd, code, addr, value)
}

func (d *Dialect) Dump(addr string, length uint64) string {
	return fmt.Sprintf(d.DumpCmd, addr, length)
}

func (d *Dialect) WriteBytes(addr string, data string) string {
	return fmt.Sprintf(d.WriteBytesCmd, addr, data)
}

func (d *Dialect) Alloc(size uint64) string {
	return fmt.Sprintf(d.AllocCmd, size)
}

func (d *Dialect) Free(addr string, size uint64) string {
	return fmt.Sprintf(d.FreeCmd, addr, size)
}

// Failed returns the first reply line that carries a failure marker.
func (d *Dialect) Failed(reply string) (string, bool) {
	for _, line := range strings.Split(reply, "\n") {
		for _, f := range d.Failures {
			if strings.Contains(line, f) {
				return strings.TrimSpace(line), true
			}
		}
	}
	return "", false
}
