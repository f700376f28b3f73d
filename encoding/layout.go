package encoding

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type handler func(b []byte, ptr unsafe.Pointer)

// layout describes how a fixed size Go type maps onto target memory.
type layout struct {
	size   int
	align  int
	decode handler
	encode handler
}

var layoutProcess sync.Map

// Sizeof returns the number of target bytes occupied by val.
func Sizeof(ptrSize int, val any) (int, error) {
	if val == nil {
		return 0, fmt.Errorf("%w: nil", ErrUnsupported)
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() == reflect.Pointer {
		typ = typ.(reflect2.PtrType).Elem()
	}
	l, err := getLayout(typ, ptrSize)
	if err != nil {
		return 0, err
	}
	return l.size, nil
}

// Unmarshal fills the value pointed to by val from little endian target
// memory laid out with natural alignment.
func Unmarshal(data []byte, ptrSize int, val any) error {
	if val == nil || reflect2.TypeOf(val).Kind() != reflect.Pointer || reflect2.IsNil(val) {
		return fmt.Errorf("%w: need non-nil pointer, got %T", ErrUnsupported, val)
	}
	l, err := getLayout(reflect2.TypeOf(val).(reflect2.PtrType).Elem(), ptrSize)
	if err != nil {
		return err
	}
	if len(data) < l.size {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(data), l.size)
	}
	l.decode(data, reflect2.PtrOf(val))
	return nil
}

// Marshal renders val (or the value it points to) as target memory.
func Marshal(ptrSize int, val any) ([]byte, error) {
	if val == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnsupported)
	}
	typ := reflect2.TypeOf(val)
	var ptr unsafe.Pointer
	if typ.Kind() == reflect.Pointer {
		if reflect2.IsNil(val) {
			return nil, fmt.Errorf("%w: nil pointer", ErrUnsupported)
		}
		typ = typ.(reflect2.PtrType).Elem()
		ptr = reflect2.PtrOf(val)
	} else {
		// a value held in an interface is not addressable; work on a copy
		v := reflect.New(typ.Type1())
		v.Elem().Set(reflect.ValueOf(val))
		ptr = v.UnsafePointer()
	}
	l, err := getLayout(typ, ptrSize)
	if err != nil {
		return nil, err
	}
	data := make([]byte, l.size)
	l.encode(data, ptr)
	return data, nil
}

func getLayout(typ reflect2.Type, ptrSize int) (*layout, error) {
	key := [2]uintptr{uintptr(ptrSize), typ.RType()}
	if v, ok := layoutProcess.Load(key); ok {
		return v.(*layout), nil
	}
	l, err := build(typ, ptrSize)
	if err != nil {
		return nil, err
	}
	layoutProcess.Store(key, l)
	return l, nil
}

func build(typ reflect2.Type, ptrSize int) (*layout, error) {
	goSize := int(typ.Type1().Size())
	switch typ.Kind() {
	case reflect.Bool:
		return &layout{1, 1, func(b []byte, ptr unsafe.Pointer) {
			*(*bool)(ptr) = b[0] != 0
		}, func(b []byte, ptr unsafe.Pointer) {
			if *(*bool)(ptr) {
				b[0] = 1
			}
		}}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intLayout(goSize, goSize), nil
	case reflect.Int:
		return intLayout(ptrSize, goSize), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintLayout(goSize, goSize), nil
	case reflect.Uint, reflect.Uintptr, reflect.UnsafePointer:
		return uintLayout(ptrSize, goSize), nil
	case reflect.Float32:
		return &layout{4, 4, func(b []byte, ptr unsafe.Pointer) {
			*(*float32)(ptr) = math.Float32frombits(binary.LittleEndian.Uint32(b))
		}, func(b []byte, ptr unsafe.Pointer) {
			binary.LittleEndian.PutUint32(b, math.Float32bits(*(*float32)(ptr)))
		}}, nil
	case reflect.Float64:
		return &layout{8, 8, func(b []byte, ptr unsafe.Pointer) {
			*(*float64)(ptr) = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}, func(b []byte, ptr unsafe.Pointer) {
			binary.LittleEndian.PutUint64(b, math.Float64bits(*(*float64)(ptr)))
		}}, nil
	case reflect.Array:
		return buildArray(typ.(reflect2.ArrayType), ptrSize)
	case reflect.Struct:
		return buildStruct(typ.(reflect2.StructType), ptrSize)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupported, typ)
}

// intLayout maps a target integer of size bytes onto a Go integer of
// goSize bytes, sign extending on the way in.
func intLayout(size, goSize int) *layout {
	return &layout{size, size, func(b []byte, ptr unsafe.Pointer) {
		storeUint(ptr, goSize, uint64(signExtend(readUint(b, size), size)))
	}, func(b []byte, ptr unsafe.Pointer) {
		writeUint(b, size, loadUint(ptr, goSize))
	}}
}

func uintLayout(size, goSize int) *layout {
	return &layout{size, size, func(b []byte, ptr unsafe.Pointer) {
		storeUint(ptr, goSize, readUint(b, size))
	}, func(b []byte, ptr unsafe.Pointer) {
		writeUint(b, size, loadUint(ptr, goSize))
	}}
}

func buildArray(typ reflect2.ArrayType, ptrSize int) (*layout, error) {
	elem, err := getLayout(typ.Elem(), ptrSize)
	if err != nil {
		return nil, err
	}
	count := typ.Len()
	return &layout{elem.size * count, elem.align, func(b []byte, ptr unsafe.Pointer) {
		for i := 0; i < count; i++ {
			elem.decode(b[i*elem.size:], typ.UnsafeGetIndex(ptr, i))
		}
	}, func(b []byte, ptr unsafe.Pointer) {
		for i := 0; i < count; i++ {
			elem.encode(b[i*elem.size:], typ.UnsafeGetIndex(ptr, i))
		}
	}}, nil
}

type fieldLayout struct {
	*layout
	field  reflect2.StructField
	offset int
}

func buildStruct(typ reflect2.StructType, ptrSize int) (*layout, error) {
	var (
		fields   []fieldLayout
		offset   int
		maxAlign = 1
	)
	for field := range rangeField(typ) {
		if field.Tag().Get("encoding") == "ignore" {
			continue
		}
		l, err := getLayout(field.Type(), ptrSize)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", typ.Type1().Name(), field.Name(), err)
		}
		offset = Align(offset, l.align)
		fields = append(fields, fieldLayout{l, field, offset})
		offset += l.size
		maxAlign = max(maxAlign, l.align)
	}
	return &layout{Align(offset, maxAlign), maxAlign, func(b []byte, ptr unsafe.Pointer) {
		for _, f := range fields {
			f.decode(b[f.offset:], f.field.UnsafeGet(ptr))
		}
	}, func(b []byte, ptr unsafe.Pointer) {
		for _, f := range fields {
			f.encode(b[f.offset:], f.field.UnsafeGet(ptr))
		}
	}}, nil
}

func rangeField(typ reflect2.StructType) iter.Seq[reflect2.StructField] {
	return func(yield func(reflect2.StructField) bool) {
		count := typ.NumField()
		for i := 0; i < count; i++ {
			if !yield(typ.Field(i)) {
				break
			}
		}
	}
}

func loadUint(ptr unsafe.Pointer, size int) uint64 {
	switch size {
	case 1:
		return uint64(*(*uint8)(ptr))
	case 2:
		return uint64(*(*uint16)(ptr))
	case 4:
		return uint64(*(*uint32)(ptr))
	}
	return *(*uint64)(ptr)
}

func storeUint(ptr unsafe.Pointer, size int, n uint64) {
	switch size {
	case 1:
		*(*uint8)(ptr) = uint8(n)
	case 2:
		*(*uint16)(ptr) = uint16(n)
	case 4:
		*(*uint32)(ptr) = uint32(n)
	default:
		*(*uint64)(ptr) = n
	}
}

func readUint(b []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}

func writeUint(b []byte, size int, n uint64) {
	switch size {
	case 1:
		b[0] = byte(n)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(n))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(n))
	default:
		binary.LittleEndian.PutUint64(b, n)
	}
}

func signExtend(n uint64, size int) int64 {
	shift := 64 - size*8
	return int64(n<<shift) >> shift
}
