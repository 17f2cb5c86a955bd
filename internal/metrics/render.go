package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cardsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "cards_total",
			Help:      "卡片渲染次数（按类别与结果状态）。",
		},
		[]string{"category", "state"},
	)

	fieldFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "field_failures_total",
			Help:      "单个字段渲染失败次数（二维码、照片、背景图）。",
		},
		[]string{"kind"},
	)

	sheetCardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "print",
			Name:      "sheet_cards_total",
			Help:      "排入打印纸的卡片总数。",
		},
	)
)

// ObserveRender 记录一次卡片渲染。
func ObserveRender(category, state string) {
	cardsRenderedTotal.WithLabelValues(category, state).Inc()
}

// ObserveFieldFailure 记录一次字段级失败。
func ObserveFieldFailure(kind string) {
	fieldFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveSheet 记录一张打印纸上的卡片数。
func ObserveSheet(cards int) {
	sheetCardsTotal.Add(float64(cards))
}
