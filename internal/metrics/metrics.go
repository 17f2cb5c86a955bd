// Package metrics 汇总 API 与 worker 暴露的 Prometheus 指标。
package metrics

const namespace = "academy_cards"
