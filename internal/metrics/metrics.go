// Package metrics collects and exposes Prometheus counters for the
// authentication and friendship workflows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registrations  prometheus.Counter
	logins         prometheus.Counter
	friendRequests prometheus.Counter
	friendAccepts  prometheus.Counter
	emailsSent     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "social_registrations_total",
			Help: "Total number of registered users.",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "social_logins_total",
			Help: "Total number of successful logins.",
		}),
		friendRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "social_friend_requests_total",
			Help: "Total number of friend requests sent.",
		}),
		friendAccepts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "social_friend_accepts_total",
			Help: "Total number of accepted friend requests.",
		}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_emails_published_total",
			Help: "Total number of email messages handed to the publisher, by purpose.",
		}, []string{"purpose"}),
	}

	reg.MustRegister(c.registrations, c.logins, c.friendRequests, c.friendAccepts, c.emailsSent)

	return c
}

func (c *Collector) RecordRegistration() { c.registrations.Inc() }
func (c *Collector) RecordLogin()        { c.logins.Inc() }
func (c *Collector) RecordFriendRequest() {
	c.friendRequests.Inc()
}
func (c *Collector) RecordFriendAccept() { c.friendAccepts.Inc() }
func (c *Collector) RecordEmailPublished(purpose string) {
	c.emailsSent.WithLabelValues(purpose).Inc()
}

// Handler exposes the registry for scraping.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
