package activitypub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activitiesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stegofed_activities_dispatched_total",
	Help: "Number of activities dispatched, by direction, type and outcome",
}, []string{"direction", "type", "outcome"})

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stegofed_deliveries_total",
	Help: "Number of outbound deliveries, by activity type and result",
}, []string{"type", "result"})

var supervisedTasks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stegofed_supervised_tasks_total",
	Help: "Number of background tasks run by the supervisor, by result",
}, []string{"result"})

var supervisedTasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "stegofed_supervised_tasks_in_flight",
	Help: "Number of background tasks currently running or waiting for a slot",
})

var profileCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stegofed_profile_cache_lookups_total",
	Help: "Number of profile cache lookups, by result",
}, []string{"result"})
