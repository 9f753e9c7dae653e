package types

type HealthStatus string

const HealthStatusOK HealthStatus = "ok"

// Health represents the health of the API
type Health struct {
	Status HealthStatus `json:"status"`
}
