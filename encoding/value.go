package encoding

import (
	"math"
	"strconv"
)

// Value is a decoded memory element. Numeric hex types keep the raw bits,
// float and double keep the decimal value and strings keep the text.
type Value struct {
	typ Type
	num uint64
	flt float64
	str string
}

func Uint(typ Type, v uint64) Value {
	switch typ.Category() {
	case CATEGORY_DECIMAL:
		return Value{typ: typ, flt: float64(v)}
	case CATEGORY_STRING:
		return Value{typ: typ, str: strconv.FormatUint(v, 10)}
	}
	return Value{typ: typ, num: v}
}

func Float(typ Type, f float64) Value {
	switch typ.Category() {
	case CATEGORY_HEX:
		return Value{typ: typ, num: uint64(int64(f))}
	case CATEGORY_STRING:
		return Value{typ: typ, str: strconv.FormatFloat(f, 'g', -1, 64)}
	}
	return Value{typ: typ, flt: f}
}

func Text(typ Type, s string) Value {
	return Value{typ: typ, str: s}
}

func (v Value) Type() Type {
	return v.typ
}

func (v Value) Uint() uint64 {
	switch v.typ.Category() {
	case CATEGORY_DECIMAL:
		return uint64(int64(v.flt))
	case CATEGORY_STRING:
		n, _ := strconv.ParseUint(v.str, 0, 64)
		return n
	}
	return v.num
}

// Int sign-extends the value from the width of its type.
func (v Value) Int() int64 {
	if v.typ.Category() != CATEGORY_HEX {
		return int64(v.Uint())
	}
	switch v.typ {
	case TYPE_BYTE:
		return int64(int8(v.num))
	case TYPE_BYTE2:
		return int64(int16(v.num))
	case TYPE_BYTE4:
		return int64(int32(v.num))
	}
	return int64(v.num)
}

func (v Value) Float() float64 {
	switch v.typ.Category() {
	case CATEGORY_HEX:
		return float64(v.num)
	case CATEGORY_STRING:
		f, _ := strconv.ParseFloat(v.str, 64)
		return f
	}
	if v.typ == TYPE_FLOAT {
		return float64(float32(v.flt))
	}
	return v.flt
}

func (v Value) Str() string {
	if v.typ.Category() == CATEGORY_STRING {
		return v.str
	}
	return v.String()
}

func (v Value) IsZero() bool {
	return v.num == 0 && v.flt == 0 && v.str == ""
}

func (v Value) String() string {
	switch v.typ.Category() {
	case CATEGORY_DECIMAL:
		bits := 64
		if v.typ == TYPE_FLOAT {
			bits = 32
		}
		if math.IsNaN(v.flt) {
			return "NaN"
		}
		return strconv.FormatFloat(v.flt, 'g', -1, bits)
	case CATEGORY_STRING:
		return strconv.Quote(v.str)
	}
	return "0x" + strconv.FormatUint(v.num, 16)
}
