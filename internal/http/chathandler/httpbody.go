package chathandler

type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type GroupUsersResponse struct {
	GroupID string   `json:"group_id"`
	Users   []string `json:"users"`
}
