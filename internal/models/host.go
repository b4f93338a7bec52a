package models

import (
	"time"
)

// Host status constants
const (
	HostStatusProvisioning = "provisioning"
	HostStatusAvailable    = "available"
	HostStatusFull         = "full"
	HostStatusError        = "error"
)

// Cloud provider constants
const (
	ProviderHetzner = "hetzner"
)

// HostSpecs describes the hardware of a leased VM
type HostSpecs struct {
	VCPU   int `json:"vcpu"`
	RAMGB  int `json:"ram_gb"`
	DiskGB int `json:"disk_gb"`
}

// Host represents a leased VM backing one instance
type Host struct {
	ID         string
	Provider   string
	ExternalID string
	IPAddress  string
	Specs      HostSpecs
	Status     string
	Region     string
	CreatedAt  time.Time
}
