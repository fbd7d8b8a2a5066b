package marketmath

import (
	"errors"
	"math"
)

// ErrOverflow 表示带检查的整数运算发生了上溢/下溢。
//
// 账本里的所有金额都是最小单位（u64）的整数，任何一次加减乘
// 都必须显式检查：溢出既可能是真实的数值溢出，也可能意味着
// 记账逻辑出了 bug（例如 locked 余额被减成负数），两种情况都
// 必须让整个操作失败，绝不允许回绕或饱和。
var ErrOverflow = errors.New("marketmath: checked arithmetic overflow")

// Add 带检查的 uint64 加法。
func Add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub 带检查的 uint64 减法（b > a 时返回 ErrOverflow）。
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// Mul 带检查的 uint64 乘法。
func Mul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// Min 返回两个 uint64 中较小的一个。
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
