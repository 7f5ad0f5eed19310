// Package metrics はtrustgateのPrometheusメトリクスを提供する。
//
// ゲートの判定件数（gate, outcome別）と、HTTPリクエストの件数・レイテンシを記録する。
// MetricsはmiddlewareパッケージのDecisionRecorderを満たす。
package metrics
