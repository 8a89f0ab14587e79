package infra

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
// If future releases of Go add new predeclared unsigned integer types,
// this constraint will be modified to include them.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Integer is a constraint that permits any integer type.
type Integer interface {
	Signed | Unsigned
}

// MaxOf returns the max value could be represented by the unsigned type N.
func MaxOf[N Unsigned]() N {
	var zero N
	return ^zero
}

// FitsIn reports whether the non-negative integer v could be represented by N.
func FitsIn[N Unsigned, I Integer](v I) bool {
	if v < 0 {
		return false
	}
	return uint64(v) <= uint64(MaxOf[N]())
}
