package models

import "time"

// WatcherStatus is the lifecycle state of a watcher. Only the first two are
// owned by this service; later states (pause, archive) live elsewhere and are
// carried opaquely.
type WatcherStatus string

const (
	StatusPendingSchedule WatcherStatus = "pending_schedule"
	StatusScheduled       WatcherStatus = "scheduled"
)

// ObservationType says whether every candidate of a watcher shares one cadence
// or may be customized individually.
type ObservationType string

const (
	ObservationUniform ObservationType = "uniform"
	ObservationVaried  ObservationType = "varied"
)

// EntityType classifies a discovered candidate. Only HTTP endpoints support
// active reachability probing.
type EntityType string

const (
	EntityHTTPEndpoint       EntityType = "http_endpoint"
	EntityCronJob            EntityType = "cron_job"
	EntityQueueWorker        EntityType = "queue_worker"
	EntityServerlessFunction EntityType = "serverless_function"
	EntityWebsocket          EntityType = "websocket"
	EntityGRPCService        EntityType = "grpc_service"
	EntityGraphQLResolver    EntityType = "graphql_resolver"
)

// ValidEntityType reports whether t belongs to the closed entity type set.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityHTTPEndpoint, EntityCronJob, EntityQueueWorker,
		EntityServerlessFunction, EntityWebsocket, EntityGRPCService,
		EntityGraphQLResolver:
		return true
	}
	return false
}

// ObservabilitySource describes one configured observability integration,
// keyed by source name on the watcher.
type ObservabilitySource struct {
	Type         string `json:"type"`
	DashboardURL string `json:"dashboardUrl,omitempty"`
}

// Watcher is a monitored repository/application and its scheduling
// configuration.
type Watcher struct {
	ID                   string                         `json:"id"`
	Name                 string                         `json:"name"`
	Status               WatcherStatus                  `json:"status"`
	ObservationType      ObservationType                `json:"observationType,omitempty"`
	ApplicationURL       string                         `json:"applicationUrl,omitempty"`
	ObservabilitySources map[string]ObservabilitySource `json:"observabilitySources,omitempty"`
	ScanFrequencyMinutes *int                           `json:"scanFrequencyMinutes,omitempty"`
	AnalysisPeriodDays   *int                           `json:"analysisPeriodDays,omitempty"`
	NextObservationAt    *time.Time                     `json:"nextObservationAt,omitempty"`
	CreatedAt            time.Time                      `json:"createdAt"`
}

// Candidate is one discovered service unit owned by a watcher. Nil frequency
// or period means "inherit from the watcher".
type Candidate struct {
	ID                   int64      `json:"id"`
	WatcherID            string     `json:"-"`
	EntityType           EntityType `json:"entityType"`
	Name                 string     `json:"name"`
	RoutePath            string     `json:"routePath,omitempty"`
	Method               string     `json:"method,omitempty"`
	ScanFrequencyMinutes *int       `json:"scanFrequencyMinutes,omitempty"`
	AnalysisPeriodDays   *int       `json:"analysisPeriodDays,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// HealthCheckResult is the verdict for a single candidate in one batch
// invocation. It is produced fresh on every call and never persisted.
type HealthCheckResult struct {
	CandidateID          int64    `json:"candidateId"`
	Healthy              bool     `json:"healthy"`
	Reachable            bool     `json:"reachable"`
	Tracked              bool     `json:"tracked"`
	Message              string   `json:"message"`
	StatusCode           *int     `json:"statusCode,omitempty"`
	ResponseTimeMs       *int64   `json:"responseTimeMs,omitempty"`
	ObservabilitySources []string `json:"observabilitySources,omitempty"`
}

// BatchSummary aggregates one batch's results. Each count must equal the fold
// of the individual results.
type BatchSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Tracked   int `json:"tracked"`
	Reachable int `json:"reachable"`
}
