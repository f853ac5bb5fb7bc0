// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectedClients tracks currently connected TCP clients.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiznet_connected_clients",
		Help: "Currently connected TCP clients.",
	})

	// ActiveSessions tracks sessions currently in the table.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiznet_active_sessions",
		Help: "Sessions currently registered, waiting or playing.",
	})

	// SessionsCreated counts sessions created since process start.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiznet_sessions_created_total",
		Help: "Sessions created since start.",
	})

	// QuestionsSent counts question dispatches.
	QuestionsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiznet_questions_sent_total",
		Help: "Questions dispatched to playing sessions.",
	})

	// AnswersReceived counts answer submissions that reached the engine.
	AnswersReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiznet_answers_received_total",
		Help: "Well-formed answer submissions forwarded to the engine, late and duplicate ones included.",
	})

	// SendQueueDrops counts messages dropped on client send-queue overflow.
	SendQueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiznet_send_queue_drops_total",
		Help: "Messages dropped because a client send queue was full.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
