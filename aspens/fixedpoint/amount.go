package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount 定点金额：任意精度的非负整数 magnitude 加上十进制小数位数 scale。
// 实际值为 magnitude / 10^scale。构造后不可变，Rescale 总是返回新实例。
//
// magnitude 上限为 2^256-1（链上 uint256），所有运算显式检查溢出，
// 绝不允许静默回绕或截断到 64 位。
type Amount struct {
	magnitude *big.Int
	scale     uint8
}

// maxMagnitudeBits magnitude 允许的最大位宽（uint256）
const maxMagnitudeBits = 256

// ParseError 人类输入无法解析为金额
type ParseError struct {
	Input  string // 原始输入
	Reason string // 失败原因
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("无效的金额 %q: %s", e.Input, e.Reason)
}

// OverflowError 运算结果超出 uint256 可表示范围
type OverflowError struct {
	Op    string // 触发溢出的操作，例如 "rescale" / "notional"
	Scale uint8  // 目标 scale
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("金额溢出: %s 结果超出 256 位上限 (scale=%d)", e.Op, e.Scale)
}

// Zero 返回指定 scale 的零值金额
func Zero(scale uint8) Amount {
	return Amount{magnitude: new(big.Int), scale: scale}
}

// FromHuman 将人类可读的十进制字符串转换为指定 scale 的定点金额。
//
// magnitude = trunc(value * 10^scale)：超出 scale 的小数位向零截断，
// 绝不四舍五入——缩小精度的损耗必须是确定性的 floor 语义。
// 非数字、多个小数点、负数均返回 *ParseError。
func FromHuman(value string, scale uint8) (Amount, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Amount{}, &ParseError{Input: value, Reason: "金额不能为空"}
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Amount{}, &ParseError{Input: value, Reason: "无法解析为十进制数"}
	}
	if d.Sign() < 0 {
		return Amount{}, &ParseError{Input: value, Reason: "金额不能为负数"}
	}

	// Shift 是精确的十进制移位，BigInt 取整数部分（向零截断）。
	// 整个转换过程不经过任何浮点表示。
	mag := d.Shift(int32(scale)).BigInt()
	if mag.BitLen() > maxMagnitudeBits {
		return Amount{}, &OverflowError{Op: "from_human", Scale: scale}
	}

	return Amount{magnitude: mag, scale: scale}, nil
}

// FromRaw 由链上原始整数和已知 scale 构造金额（例如 balanceOf 的返回值）
func FromRaw(raw *big.Int, scale uint8) (Amount, error) {
	if raw == nil {
		return Amount{}, &ParseError{Input: "<nil>", Reason: "原始整数不能为 nil"}
	}
	if raw.Sign() < 0 {
		return Amount{}, &ParseError{Input: raw.String(), Reason: "原始整数不能为负数"}
	}
	if raw.BitLen() > maxMagnitudeBits {
		return Amount{}, &OverflowError{Op: "from_raw", Scale: scale}
	}
	return Amount{magnitude: new(big.Int).Set(raw), scale: scale}, nil
}

// FromRawString 解析 wire 格式的十进制整数字符串（RawString 的逆操作）
func FromRawString(raw string, scale uint8) (Amount, error) {
	mag, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return Amount{}, &ParseError{Input: raw, Reason: "无法解析为十进制整数"}
	}
	return FromRaw(mag, scale)
}

// Rescale 把金额转换到新的 scale，返回新实例。
//
// 放大（newScale >= scale）：magnitude 精确乘以 10^diff，无精度损失，
// 结果超出 256 位时返回 *OverflowError。
// 缩小（newScale < scale）：整数除以 10^diff，向零截断——这是文档化的
// 有损路径。截断到零是合法结果（表示目标精度下无法表达的微小金额），
// 调用方通过 IsZero 自行判断，不作为错误处理。
func (a Amount) Rescale(newScale uint8) (Amount, error) {
	mag := a.mag()
	if newScale == a.scale {
		return Amount{magnitude: mag, scale: newScale}, nil
	}

	if newScale > a.scale {
		factor := pow10(uint32(newScale - a.scale))
		mag.Mul(mag, factor)
		if mag.BitLen() > maxMagnitudeBits {
			return Amount{}, &OverflowError{Op: "rescale", Scale: newScale}
		}
		return Amount{magnitude: mag, scale: newScale}, nil
	}

	factor := pow10(uint32(a.scale - newScale))
	mag.Quo(mag, factor)
	return Amount{magnitude: mag, scale: newScale}, nil
}

// Notional 计算名义金额 qty × price（两者必须处于同一 pair scale）。
//
// 结果 scale 为 2×p：乘法完整保留在 pair 定点域内，截断只发生在
// 之后对结果的一次 Rescale——先各自缩放再相乘会叠加两次独立的截断误差。
func Notional(qty, price Amount) (Amount, error) {
	if qty.scale != price.scale {
		return Amount{}, fmt.Errorf("名义金额计算要求同一 scale: quantity scale=%d, price scale=%d", qty.scale, price.scale)
	}
	doubled := uint32(qty.scale) * 2
	if doubled > 255 {
		return Amount{}, &OverflowError{Op: "notional", Scale: qty.scale}
	}

	product := new(big.Int).Mul(qty.magnitude, price.magnitude)
	if product.BitLen() > maxMagnitudeBits {
		return Amount{}, &OverflowError{Op: "notional", Scale: uint8(doubled)}
	}
	return Amount{magnitude: product, scale: uint8(doubled)}, nil
}

// Add 同一 scale 下的两个金额相加，结果超出 256 位时返回 *OverflowError
func (a Amount) Add(other Amount) (Amount, error) {
	if a.scale != other.scale {
		return Amount{}, fmt.Errorf("金额相加要求同一 scale: %d != %d", a.scale, other.scale)
	}
	sum := new(big.Int).Add(a.mag(), other.mag())
	if sum.BitLen() > maxMagnitudeBits {
		return Amount{}, &OverflowError{Op: "add", Scale: a.scale}
	}
	return Amount{magnitude: sum, scale: a.scale}, nil
}

// Human 渲染为人类可读的十进制字符串（不经过浮点数）
func (a Amount) Human() string {
	return decimal.NewFromBigInt(a.mag(), -int32(a.scale)).String()
}

// RawString 返回 magnitude 的十进制字符串（wire 格式，无前导零）
func (a Amount) RawString() string {
	return a.mag().String()
}

// Magnitude 返回 magnitude 的副本
func (a Amount) Magnitude() *big.Int {
	return a.mag()
}

// Scale 返回小数位数
func (a Amount) Scale() uint8 {
	return a.scale
}

// IsZero 判断金额是否为零（调用方用它检测截断到零的结果）
func (a Amount) IsZero() bool {
	return a.magnitude == nil || a.magnitude.Sign() == 0
}

// Equal 判断两个金额是否完全相等（magnitude 和 scale 都相同）
func (a Amount) Equal(other Amount) bool {
	return a.scale == other.scale && a.mag().Cmp(other.mag()) == 0
}

// Cmp 比较同一 scale 下的两个金额，语义同 big.Int.Cmp
func (a Amount) Cmp(other Amount) (int, error) {
	if a.scale != other.scale {
		return 0, fmt.Errorf("金额比较要求同一 scale: %d != %d", a.scale, other.scale)
	}
	return a.mag().Cmp(other.mag()), nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%s (scale=%d)", a.Human(), a.scale)
}

func (a Amount) mag() *big.Int {
	if a.magnitude == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.magnitude)
}

var bigTen = big.NewInt(10)

// pow10 返回 10^n
func pow10(n uint32) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(n)), nil)
}
