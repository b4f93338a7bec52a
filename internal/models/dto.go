package models

// ==================== User API DTOs ====================

// CreateInstanceRequest is sent by a user to create a new assistant instance
type CreateInstanceRequest struct {
	Name          string `json:"name" binding:"required"`
	Model         string `json:"model"`
	ModelType     string `json:"model_type"`
	TelegramToken string `json:"telegram_token"`
	APIKey        string `json:"api_key"`
}

// UpdateInstanceRequest carries either a power action or settings fields
type UpdateInstanceRequest struct {
	Action        string `json:"action"` // start / stop
	Name          string `json:"name"`
	TelegramToken string `json:"telegram_token"`
	APIKey        string `json:"api_key"`
}

// InstanceResponse is the user-facing view of an instance
type InstanceResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Subdomain     string  `json:"subdomain"`
	Status        string  `json:"status"`
	StatusMessage *string `json:"status_message,omitempty"`
	Model         string  `json:"model"`
	ModelType     string  `json:"model_type"`
	HasTelegram   bool    `json:"has_telegram"`
	IPAddress     *string `json:"ip_address,omitempty"`
	LastHeartbeat *string `json:"last_heartbeat,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// ==================== Orchestrator DTOs ====================

// JobResult is the per-job outcome of one orchestrator batch run
type JobResult struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	IP     string `json:"ip,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ==================== Billing DTOs ====================

// CheckoutRequest starts a subscription checkout
type CheckoutRequest struct {
	Plan     string `json:"plan" binding:"required"`
	Currency string `json:"currency"` // mxn (default) or usd
}

// CheckoutResponse carries the hosted checkout URL
type CheckoutResponse struct {
	URL string `json:"url"`
}

// ==================== Callback DTOs ====================

// HeartbeatRequest is sent by a provisioned VM to report liveness
type HeartbeatRequest struct {
	Subdomain    string `json:"subdomain" binding:"required"`
	GatewayToken string `json:"gateway_token" binding:"required"`
}
