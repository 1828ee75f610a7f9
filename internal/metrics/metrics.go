// Package metrics はPrometheus形式のメトリクスを提供する
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livecam"

// Metrics はアプリケーションのメトリクスと、それを登録したレジストリを保持する
type Metrics struct {
	registry *prometheus.Registry

	FramesServed      *prometheus.CounterVec // エンドポイント別の配信フレーム数
	FramesUnavailable prometheus.Counter     // 配信可能なフレームが無かったリクエスト数
	FramesDeleted     prometheus.Counter     // 保持ポリシーで削除したフレーム数
	FramesStored      prometheus.Gauge       // 直近のクリーンアップで観測したフレーム数
	RetentionErrors   *prometheus.CounterVec // 操作別のクリーンアップエラー数
	RequestPanics     prometheus.Counter     // リクエスト処理中に発生したpanic数
}

// New は新しいレジストリにメトリクスを登録して返す
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_served_total",
			Help:      "Number of frames written to HTTP clients.",
		}, []string{"endpoint"}),
		FramesUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_unavailable_total",
			Help:      "Number of frame requests answered without a frame.",
		}),
		FramesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_deleted_total",
			Help:      "Number of frames removed by the retention loop.",
		}),
		FramesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames_stored",
			Help:      "Number of frames seen in the frame directory by the last retention pass.",
		}),
		RetentionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_errors_total",
			Help:      "Number of retention errors by operation.",
		}, []string{"op"}),
		RequestPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_panics_total",
			Help:      "Number of panics recovered while handling requests.",
		}),
	}

	m.registry.MustRegister(
		m.FramesServed,
		m.FramesUnavailable,
		m.FramesDeleted,
		m.FramesStored,
		m.RetentionErrors,
		m.RequestPanics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry は内部のレジストリを返す
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用の http.Handler を返す
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
