package derive

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// CoinsPerFamily 每帮助一个家庭所需的 coins
	CoinsPerFamily = 50
	// DefaultAxisMax 没有数据时的图表上限
	DefaultAxisMax = 10.0
)

// FamiliesHelped 累计捐赠 coins 可帮助的家庭数
// coins <= 0 时为 0；否则按每 50 coins 一个家庭向上取整，任何正数捐赠至少计 1 个家庭。
// 超出 int 范围（包括 +Inf）时饱和为 math.MaxInt，保持单调。
func FamiliesHelped(totalCoins float64) int {
	if math.IsNaN(totalCoins) || totalCoins <= 0 {
		return 0
	}
	families := math.Ceil(totalCoins / CoinsPerFamily)
	if families >= math.MaxInt {
		return math.MaxInt
	}
	if families < 1 {
		return 1
	}
	return int(families)
}

// PercentChange 环比变化百分比
// 约定：previous 为 0 时，current > 0 返回 100，否则返回 0（这是展示约定，不是数学恒等式）。
func PercentChange(current, previous float64) float64 {
	if math.IsNaN(current) || math.IsNaN(previous) {
		return 0
	}
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	change := (current - previous) / math.Abs(previous) * 100
	if math.IsInf(change, 0) || math.IsNaN(change) {
		return 0
	}
	return change
}

// Coverage 积分抵扣账单的结果
type Coverage struct {
	CreditValue decimal.Decimal `json:"creditValue"` // 积分折合金额（两位小数）
	BillAmount  decimal.Decimal `json:"billAmount"`
	Percent     float64         `json:"percent"` // 覆盖比例，限制在 [0, 100]
	Defined     bool            `json:"defined"` // false 表示账单金额为 0 或输入非法，Percent 无意义
	Capped      bool            `json:"capped"`  // 原始比例超过 100% 被截断
}

// ConversionRate 将积分按汇率折算后，计算其覆盖账单的百分比
// 账单为 0、负数或输入为 NaN/Inf 时不做除法，返回 Defined=false，避免 NaN/Inf 流入展示层。
func ConversionRate(creditsCoins, coinToCurrency, billAmount float64) Coverage {
	if !finite(creditsCoins) || !finite(coinToCurrency) || creditsCoins < 0 || coinToCurrency < 0 {
		return Coverage{CreditValue: decimal.Zero, BillAmount: decimalOrZero(billAmount)}
	}

	value := decimal.NewFromFloat(creditsCoins).Mul(decimal.NewFromFloat(coinToCurrency)).Round(2)
	coverage := Coverage{CreditValue: value, BillAmount: decimalOrZero(billAmount)}
	if !finite(billAmount) || billAmount <= 0 {
		return coverage
	}

	bill := decimal.NewFromFloat(billAmount)
	percent, _ := value.Div(bill).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	coverage.Defined = true
	if percent > 100 {
		percent = 100
		coverage.Capped = true
	}
	coverage.Percent = percent
	return coverage
}

// NiceAxisMax 按 1/2/5/10 每数量级的规则取不小于 v 的图表上限
// 结果不会是 Inf：超出 float64 范围时取 math.MaxFloat64，保证可以 JSON 编码。
func NiceAxisMax(maxObservedValue float64) float64 {
	v := maxObservedValue
	if math.IsNaN(v) || v <= 0 {
		return DefaultAxisMax
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}

	magnitude := math.Pow(10, math.Floor(math.Log10(v)))
	nice := 20 * magnitude
	for _, step := range []float64{1, 2, 5, 10} {
		if candidate := step * magnitude; candidate >= v {
			nice = candidate
			break
		}
	}
	if math.IsInf(nice, 1) {
		return math.MaxFloat64
	}
	return nice
}

// AxisTicks 从 0 到 niceMax 的 segments+1 个刻度，间隔为 niceMax/segments
func AxisTicks(niceMax float64, segments int) []float64 {
	if segments <= 0 {
		return []float64{0, niceMax}
	}
	step := niceMax / float64(segments)
	ticks := make([]float64, segments+1)
	for i := range ticks {
		ticks[i] = step * float64(i)
	}
	ticks[segments] = niceMax
	return ticks
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func decimalOrZero(f float64) decimal.Decimal {
	if !finite(f) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
