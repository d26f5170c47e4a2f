package api

// ConnectionDTO describes the managed Redis connection
type ConnectionDTO struct {
	Name     string `json:"name"`
	Topology string `json:"topology"`
	Status   string `json:"status"`
}

// ReadinessDTO is the /readyz body
type ReadinessDTO struct {
	Status     string `json:"status"`
	Connection string `json:"connection"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
