package opencl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/text/encoding/charmap"

	"github.com/gogpu/opencl/driver"
)

// infoFunc is one native info query following the size-probe protocol.
type infoFunc func(dst []byte) (int, driver.Status)

// queryInfo runs the two-phase query: a nil destination learns the size,
// then a buffer of exactly that size is filled.
func queryInfo(op string, fn infoFunc) ([]byte, error) {
	n, status := fn(nil)
	if err := check(op, status); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, status := fn(buf); !status.OK() {
		return nil, &Error{Op: op, Status: status}
	}
	return buf, nil
}

func sizeError(op string, b []byte, want int) error {
	return fmt.Errorf("opencl: %s: info value is %d bytes, want %d", op, len(b), want)
}

// decodeString interprets a NUL-terminated char[] value. Drivers that
// report Latin-1 names are decoded rather than producing invalid UTF-8.
func decodeString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("\uFFFD")))
	}
	return string(s)
}

func decodeUint32(op string, b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, sizeError(op, b, 4)
	}
	return binary.NativeEndian.Uint32(b), nil
}

func decodeUint64(op string, b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, sizeError(op, b, 8)
	}
	return binary.NativeEndian.Uint64(b), nil
}

// decodeSize interprets a size_t value of the host word size.
func decodeSize(op string, b []byte) (uintptr, error) {
	switch unsafe.Sizeof(uintptr(0)) {
	case 8:
		v, err := decodeUint64(op, b)
		return uintptr(v), err
	default:
		v, err := decodeUint32(op, b)
		return uintptr(v), err
	}
}

// decodeBool interprets a cl_bool.
func decodeBool(op string, b []byte) (bool, error) {
	v, err := decodeUint32(op, b)
	return v != 0, err
}

// decodeHandles interprets an array of object handles.
func decodeHandles(op string, b []byte) ([]driver.Handle, error) {
	word := int(unsafe.Sizeof(uintptr(0)))
	if len(b)%word != 0 {
		return nil, sizeError(op, b, len(b)/word*word)
	}
	out := make([]driver.Handle, 0, len(b)/word)
	for off := 0; off < len(b); off += word {
		v, err := decodeSize(op, b[off:off+word])
		if err != nil {
			return nil, err
		}
		out = append(out, driver.Handle(v))
	}
	return out, nil
}

func queryString(op string, fn infoFunc) (string, error) {
	b, err := queryInfo(op, fn)
	if err != nil {
		return "", err
	}
	return decodeString(b), nil
}

func queryUint32(op string, fn infoFunc) (uint32, error) {
	b, err := queryInfo(op, fn)
	if err != nil {
		return 0, err
	}
	return decodeUint32(op, b)
}

func queryUint64(op string, fn infoFunc) (uint64, error) {
	b, err := queryInfo(op, fn)
	if err != nil {
		return 0, err
	}
	return decodeUint64(op, b)
}

func querySize(op string, fn infoFunc) (uintptr, error) {
	b, err := queryInfo(op, fn)
	if err != nil {
		return 0, err
	}
	return decodeSize(op, b)
}

func queryBool(op string, fn infoFunc) (bool, error) {
	b, err := queryInfo(op, fn)
	if err != nil {
		return false, err
	}
	return decodeBool(op, b)
}

// lazy caches a property after its first successful load. Failed loads
// are retried on the next call.
type lazy[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
}

func (l *lazy[T]) get(load func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.value, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	l.value, l.loaded = v, true
	return v, nil
}
