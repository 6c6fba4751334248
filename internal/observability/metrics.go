package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	MailSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_mail_send_total", Help: "Mail transport outcomes"},
		[]string{"result"},
	)
	MailLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "campaign_mail_send_latency_seconds", Help: "Mail transport latency"},
	)
	DeliverPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_deliver_passes_total", Help: "Deliver pass outcomes"},
		[]string{"result"},
	)
	Fires = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_fires_total", Help: "Recurring/scheduled fire outcomes"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, MailSend, MailLatency, DeliverPasses, Fires)
}
