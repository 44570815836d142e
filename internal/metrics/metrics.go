// Package metrics exposes the portal's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the small observer interfaces of the account, live and
// dashboard packages on top of Prometheus collectors.
type Recorder struct {
	loginOutcomes *prometheus.CounterVec
	registrations *prometheus.CounterVec
	liveConns     prometheus.Gauge
	pointsAwarded prometheus.Counter
	avatarUploads *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// serve them from promhttp.Handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		loginOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_login_outcomes_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_registrations_total",
			Help: "Profiles created by role.",
		}, []string{"role"}),
		liveConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "portal_live_connections",
			Help: "Open dashboard websocket connections.",
		}),
		pointsAwarded: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_points_awarded_total",
			Help: "Points granted to students.",
		}),
		avatarUploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_avatar_uploads_total",
			Help: "Avatar upload jobs by result.",
		}, []string{"result"}),
	}
}

func (r *Recorder) LoginOutcome(outcome string) { r.loginOutcomes.WithLabelValues(outcome).Inc() }

func (r *Recorder) Registered(role string) { r.registrations.WithLabelValues(role).Inc() }

func (r *Recorder) LiveConnections(delta int) { r.liveConns.Add(float64(delta)) }

func (r *Recorder) PointsAwarded(n int) { r.pointsAwarded.Add(float64(n)) }

func (r *Recorder) AvatarUpload(result string) { r.avatarUploads.WithLabelValues(result).Inc() }
