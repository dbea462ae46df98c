package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for the trading loop. Registered at init; Serve
// exposes them when a metrics port is configured.

var (
	LoopIterations = newCounter("drbot_loop_iterations_total", "Polling loop iterations")
	FetchErrors    = newCounter("drbot_fetch_errors_total", "Bar fetch failures")
	OrdersAccepted = newCounter("drbot_orders_accepted_total", "Orders accepted by the broker")
	OrdersFailed   = newCounter("drbot_orders_failed_total", "Order submissions that failed")

	ExitsByReason = newCounterVec("drbot_exits_total", "Position exits by reason", []string{"reason"})

	DailyPnL      = newGauge("drbot_daily_pnl_dollars", "Realized P&L for the current day")
	OpenPositions = newGauge("drbot_open_positions", "Currently open positions")
)

// Serve starts the metrics endpoint in the background.
func Serve(port int) {
	go func() {
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), promhttp.Handler())
	}()
}

func newCounter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	prometheus.MustRegister(c)
	return c
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	prometheus.MustRegister(c)
	return c
}

func newGauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	prometheus.MustRegister(g)
	return g
}
