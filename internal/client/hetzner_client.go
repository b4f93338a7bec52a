package client

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const hetznerAPI = "https://api.hetzner.cloud/v1"

// Server type constants. The larger class carries a local inference engine.
const (
	ServerTypeSmall = "cx22" // 2 vCPU, 4 GB RAM, 40 GB disk
	ServerTypeLarge = "cx32" // 4 vCPU, 8 GB RAM, 80 GB disk
)

// HetznerClient is a thin wrapper over the Hetzner Cloud server API
type HetznerClient struct {
	http *resty.Client
}

// NewHetznerClient creates a Hetzner client with bearer authentication
func NewHetznerClient(token string) *HetznerClient {
	httpClient := resty.New().
		SetBaseURL(hetznerAPI).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	return &HetznerClient{http: httpClient}
}

// NewHetznerClientWithBaseURL is used by tests to point at a stub API
func NewHetznerClientWithBaseURL(token, baseURL string) *HetznerClient {
	c := NewHetznerClient(token)
	c.http.SetBaseURL(baseURL)
	return c
}

// Server is the subset of Hetzner's server object this service consumes
type Server struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	PublicIP string `json:"-"`
}

type serverEnvelope struct {
	Server struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		Status    string `json:"status"`
		PublicNet struct {
			IPv4 struct {
				IP string `json:"ip"`
			} `json:"ipv4"`
		} `json:"public_net"`
	} `json:"server"`
}

func (e *serverEnvelope) toServer() *Server {
	return &Server{
		ID:       e.Server.ID,
		Name:     e.Server.Name,
		Status:   e.Server.Status,
		PublicIP: e.Server.PublicNet.IPv4.IP,
	}
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// message surfaces the provider's message, or an HTTP-status fallback
func (e *apiError) message(statusCode int) string {
	if e.Error.Message != "" {
		return e.Error.Message
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}

// CreateServerRequest describes the VM to lease
type CreateServerRequest struct {
	Name       string `json:"name"`
	ServerType string `json:"server_type"`
	Location   string `json:"location"`
	Image      string `json:"image"`
	UserData   string `json:"user_data,omitempty"`
}

// CreateServer leases a new VM. The user_data payload runs on first boot.
func (c *HetznerClient) CreateServer(ctx context.Context, req *CreateServerRequest) (*Server, error) {
	// 日志脱敏: user_data 含机器人 token，不记录
	log.Printf("[HetznerClient] Creating server %s (type: %s, location: %s)", req.Name, req.ServerType, req.Location)

	var envelope serverEnvelope
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&envelope).
		SetError(&apiErr).
		Post("/servers")

	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create server: %s", apiErr.message(resp.StatusCode()))
	}

	server := envelope.toServer()
	log.Printf("[HetznerClient] Server created: %d (status: %s, ip: %s)", server.ID, server.Status, server.PublicIP)
	return server, nil
}

// GetServer retrieves a server's current state
func (c *HetznerClient) GetServer(ctx context.Context, id int64) (*Server, error) {
	var envelope serverEnvelope
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&envelope).
		SetError(&apiErr).
		Get(fmt.Sprintf("/servers/%d", id))

	if err != nil {
		return nil, fmt.Errorf("get server: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get server %d: %s", id, apiErr.message(resp.StatusCode()))
	}

	return envelope.toServer(), nil
}

// DeleteServer releases a VM. Deleting an already-deleted server is not an
// error, so callers can safely retry cleanup.
func (c *HetznerClient) DeleteServer(ctx context.Context, id int64) error {
	log.Printf("[HetznerClient] Deleting server: %d", id)

	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Delete(fmt.Sprintf("/servers/%d", id))

	if err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("delete server %d: %s", id, apiErr.message(resp.StatusCode()))
	}

	return nil
}

// Power action constants
const (
	PowerActionOn       = "poweron"
	PowerActionShutdown = "shutdown"
)

// PowerAction triggers a power state change on a server
func (c *HetznerClient) PowerAction(ctx context.Context, id int64, action string) error {
	log.Printf("[HetznerClient] Power action %s on server %d", action, id)

	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Post(fmt.Sprintf("/servers/%d/actions/%s", id, action))

	if err != nil {
		return fmt.Errorf("%s server: %w", action, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s server %d: %s", action, id, apiErr.message(resp.StatusCode()))
	}

	return nil
}
