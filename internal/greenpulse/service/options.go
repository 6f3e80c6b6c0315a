package service

import (
	"time"

	"greenpulse/internal/metrics"
)

// 默认参数
const (
	DefaultChartMonths    = 6
	MaxChartMonths        = 24
	DefaultCoinToCurrency = 0.10
	DefaultDonationMin    = 1
	DefaultDonationMax    = 1000
	DefaultAxisSegments   = 5
)

// Options 服务参数
type Options struct {
	ChartMonths    int
	CoinToCurrency float64
	DonationMin    float64
	DonationMax    float64
	StoreTimeout   time.Duration
	Location       *time.Location
	Metrics        *metrics.Pipeline
	Now            func() time.Time // 测试注入时钟
}

func (o Options) withDefaults() Options {
	if o.ChartMonths <= 0 {
		o.ChartMonths = DefaultChartMonths
	}
	if o.ChartMonths > MaxChartMonths {
		o.ChartMonths = MaxChartMonths
	}
	if o.CoinToCurrency <= 0 {
		o.CoinToCurrency = DefaultCoinToCurrency
	}
	if o.DonationMin <= 0 {
		o.DonationMin = DefaultDonationMin
	}
	if o.DonationMax < o.DonationMin {
		o.DonationMax = DefaultDonationMax
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
