package monitoring

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware records request counts and durations. Paths are labelled by
// route pattern so usernames and ids do not blow up cardinality.
func Middleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		m.ActiveConnections.Inc()
		defer m.ActiveConnections.Dec()

		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		m.HTTPRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
		m.HTTPRequestsTotal.WithLabelValues(path, strconv.Itoa(statusOf(c, err))).Inc()
		return err
	}
}

// Handler exposes the collectors of g in the prometheus text format.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// statusOf predicts the status the error handler will write for err.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
