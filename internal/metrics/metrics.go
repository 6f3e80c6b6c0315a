// Package metrics 派生管线与捐赠写入的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 捐赠提交结果标签
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected" // 校验失败
	OutcomeBusy      = "busy"
	OutcomeFailed    = "failed"
)

// BeneficiaryInvalid 未知受益方式统一使用的标签值
const BeneficiaryInvalid = "invalid"

// Pipeline 管线指标；nil 接收者上的方法都是空操作
type Pipeline struct {
	normalizationErrors *prometheus.CounterVec
	consistencyWarnings prometheus.Counter
	submissions         *prometheus.CounterVec
	storeLatency        *prometheus.HistogramVec
}

// New 创建并注册指标；registerer 为 nil 时使用默认注册表
func New(registerer prometheus.Registerer) *Pipeline {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	p := &Pipeline{
		normalizationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "normalization_errors_total",
			Help:      "Raw documents skipped because they could not be normalized.",
		}, []string{"kind"}),
		consistencyWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "credit_consistency_warnings_total",
			Help:      "Credit aggregates whose cached total disagreed with their history.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenpulse",
			Name:      "donation_submissions_total",
			Help:      "Donation submissions by outcome.",
		}, []string{"outcome", "beneficiary_type"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "greenpulse",
			Name:      "store_operation_seconds",
			Help:      "Latency of document store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registerer.MustRegister(
		p.normalizationErrors,
		p.consistencyWarnings,
		p.submissions,
		p.storeLatency,
	)
	return p
}

// NormalizationSkipped 记录被跳过的原始文档
func (p *Pipeline) NormalizationSkipped(kind string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.normalizationErrors.WithLabelValues(kind).Add(float64(n))
}

// ConsistencyWarning 记录一次积分不一致
func (p *Pipeline) ConsistencyWarning() {
	if p == nil {
		return
	}
	p.consistencyWarnings.Inc()
}

// Submission 记录一次捐赠提交结果
func (p *Pipeline) Submission(outcome, beneficiaryType string) {
	if p == nil {
		return
	}
	p.submissions.WithLabelValues(outcome, beneficiaryType).Inc()
}

// ObserveStore 记录存储操作耗时
func (p *Pipeline) ObserveStore(operation string, started time.Time) {
	if p == nil {
		return
	}
	p.storeLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
