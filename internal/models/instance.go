package models

import (
	"time"
)

// Instance status constants
const (
	InstanceStatusProvisioning = "provisioning" // 等待编排器创建 VM
	InstanceStatusRunning      = "running"      // VM 正常运行
	InstanceStatusStopped      = "stopped"      // 用户主动停止
	InstanceStatusError        = "error"        // 创建失败
)

// Model type constants
const (
	ModelTypeBYOK       = "byok"
	ModelTypeOllama     = "ollama"
	ModelTypeOpenRouter = "openrouter"
)

// InstanceConfig holds the assistant configuration stored as JSONB on the instance
type InstanceConfig struct {
	Model         string `json:"model"`
	ModelType     string `json:"model_type"`
	TelegramToken string `json:"telegram_token,omitempty"`
	// APIKey is the user's model provider key (BYOK), AES-GCM encrypted at rest
	APIKey string `json:"api_key,omitempty"`
}

// UseOllama reports whether this configuration requires a local inference engine
func (c *InstanceConfig) UseOllama() bool {
	return c.ModelType == ModelTypeOllama
}

// Instance represents a user's assistant deployment
type Instance struct {
	ID            string
	UserID        string
	HostID        *string
	Name          string
	Subdomain     string
	Status        string
	StatusMessage *string
	Config        InstanceConfig
	GatewayToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}
