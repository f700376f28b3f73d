package encoding

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

const (
	DumpBytesPerLine = 16
	// width of the hex column of a byte dump line: 16 pairs, 15 separators
	dumpColumnWidth = DumpBytesPerLine*3 - 1

	defaultPatternCache = 256
)

var groupSeparators = strings.NewReplacer("`", "", "'", "", "_", "")

// Codec translates typed values to command fragments and debugger replies
// back to values. It is safe for concurrent use.
type Codec struct {
	ptrSize  uint64
	quote    string
	patterns *lru.Cache
}

func NewCodec(ptrSize uint64, quote string) *Codec {
	if ptrSize == 0 {
		ptrSize = 8
	}
	cache, _ := lru.New(defaultPatternCache)
	return &Codec{ptrSize: ptrSize, quote: quote, patterns: cache}
}

func (c *Codec) PointerSize() uint64 {
	return c.ptrSize
}

// FormatAddr renders an address the way it is placed in commands.
func FormatAddr(addr uint64) string {
	return strconv.FormatUint(addr, 16)
}

func (c *Codec) mask(typ Type) uint64 {
	size := typ.Size(c.ptrSize)
	if size >= 8 {
		return math.MaxUint64
	}
	return 1<<(size*8) - 1
}

// Encode renders v as the value fragment of an edit command.
func (c *Codec) Encode(typ Type, v Value) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
	switch typ.Category() {
	case CATEGORY_HEX:
		return strconv.FormatUint(v.Uint()&c.mask(typ), 16), nil
	case CATEGORY_DECIMAL:
		bits := 64
		if typ == TYPE_FLOAT {
			bits = 32
		}
		return strconv.FormatFloat(v.Float(), 'g', -1, bits), nil
	}
	return c.quote + v.Str() + c.quote, nil
}

func (c *Codec) pattern(typ Type, hexAddr string) *regexp.Regexp {
	cat := typ.Category()
	key := cat.String() + ":" + hexAddr
	if re, ok := c.patterns.Get(key); ok {
		return re.(*regexp.Regexp)
	}
	var re *regexp.Regexp
	prefix := `(?im)(?:^|[^0-9a-f])0*` + regexp.QuoteMeta(hexAddr)
	if cat == CATEGORY_STRING {
		re = regexp.MustCompile(prefix + `[ \t]+(.*?)[ \t\r]*$`)
	} else {
		re = regexp.MustCompile(prefix + `\s+(\S+)(?:\s|$)`)
	}
	c.patterns.Add(key, re)
	return re
}

// Decode finds the value token that follows the echoed address in reply.
func (c *Codec) Decode(typ Type, addr uint64, reply string) (Value, error) {
	if !typ.Valid() {
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
	m := c.pattern(typ, FormatAddr(addr)).FindStringSubmatch(reply)
	if m == nil {
		return Value{typ: typ}, &DecodeError{Type: typ, Addr: addr, Reason: "address not echoed", Reply: reply}
	}
	token := m[1]
	switch typ.Category() {
	case CATEGORY_HEX:
		n, err := strconv.ParseUint(groupSeparators.Replace(token), 16, 64)
		if err != nil {
			return Value{typ: typ}, &DecodeError{Type: typ, Addr: addr, Reason: err.Error(), Reply: reply}
		}
		return Value{typ: typ, num: n}, nil
	case CATEGORY_DECIMAL:
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return Value{typ: typ}, &DecodeError{Type: typ, Addr: addr, Reason: err.Error(), Reply: reply}
		}
		return Value{typ: typ, flt: f}, nil
	}
	if c.quote != "" {
		token = strings.TrimPrefix(token, c.quote)
		token = strings.TrimSuffix(token, c.quote)
	}
	return Value{typ: typ, str: token}, nil
}

// EncodeBytes renders data as space separated hex pairs.
func EncodeBytes(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}

// DecodeDump extracts the bytes of a multi-line hex dump. Each line is an
// address column, two spaces, a fixed width hex column and an ASCII preview.
func DecodeDump(addr uint64, text string, length uint64) ([]byte, error) {
	data := make([]byte, 0, length)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		col, rest, ok := strings.Cut(line, "  ")
		if !ok || len(col) < 8 || !isHex(col) {
			continue
		}
		if len(rest) > dumpColumnWidth {
			rest = rest[:dumpColumnWidth]
		}
		for _, tok := range strings.FieldsFunc(rest, func(r rune) bool { return r == ' ' || r == '-' }) {
			if tok == "??" {
				return nil, &DecodeError{Type: TYPE_BYTE, Addr: addr + uint64(len(data)), Reason: "memory not readable", Reply: line}
			}
			if len(tok) != 2 {
				break
			}
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				break
			}
			data = append(data, byte(b))
		}
	}
	if uint64(len(data)) < length {
		return nil, &DecodeError{Type: TYPE_BYTE, Addr: addr, Reason: fmt.Sprintf("dump has %d of %d bytes", len(data), length), Reply: text}
	}
	return data[:length], nil
}

// ParseAlloc extracts the base address from an allocation confirmation.
func ParseAlloc(text string, pattern *regexp.Regexp) (uint64, error) {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, &DecodeError{Type: TYPE_POINTER, Reason: "no allocation confirmation", Reply: text}
	}
	addr, err := strconv.ParseUint(groupSeparators.Replace(m[1]), 16, 64)
	if err != nil {
		return 0, &DecodeError{Type: TYPE_POINTER, Reason: err.Error(), Reply: text}
	}
	return addr, nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return s != ""
}
