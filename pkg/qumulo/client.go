package qumulo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	agenterrors "github.com/mabott/snmp-agent-app/internal/errors"
	"github.com/mabott/snmp-agent-app/pkg/tlsutil"
)

// Client is a Qumulo REST API client scoped to the calls the health agent
// needs: session login, node status, and drive status.
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     ClientConfig

	mu          sync.Mutex
	bearerToken string
}

// ClientConfig holds configuration for the Qumulo client.
type ClientConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	Fingerprint string
	VerifySSL   bool
	Timeout     time.Duration
}

// NodeInfo describes one cluster node as reported by the REST API.
type NodeInfo struct {
	ID     int    `json:"id"`
	Name   string `json:"node_name"`
	Status string `json:"node_status"`
}

// DriveInfo describes one drive slot as reported by the REST API.
type DriveInfo struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	DiskType string `json:"disk_type"`
}

const (
	nodeStatusOnline  = "online"
	driveStateHealthy = "healthy"
)

// NewClient creates a Qumulo REST client. It does not log in; the caller
// drives authentication so that connectivity loss can be observed and
// retried per poll tick.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("qumulo: host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 8000
	}

	host := cfg.Host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    fmt.Sprintf("%s:%d/v1", strings.TrimSuffix(host, "/"), cfg.Port),
		httpClient: tlsutil.CreateHTTPClientWithTimeout(cfg.VerifySSL, cfg.Fingerprint, timeout),
		config:     cfg,
	}, nil
}

// IsAuthenticated reports whether the client holds a session token. The
// token is dropped whenever the API answers 401 or a request fails at the
// transport level, so a stale session and an unreachable cluster both show
// up as "not authenticated" on the next tick.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bearerToken != ""
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.bearerToken = ""
	c.mu.Unlock()
}

// Login obtains a bearer token from /session/login.
func (c *Client) Login(ctx context.Context) error {
	payload := map[string]string{
		"username": c.config.Username,
		"password": c.config.Password,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return agenterrors.WrapConnectivity("login", c.config.Host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session/login", bytes.NewReader(body))
	if err != nil {
		return agenterrors.WrapConnectivity("login", c.config.Host, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agenterrors.WrapConnectivity("login", c.config.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("login failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		return agenterrors.New(agenterrors.ErrorTypeConnectivity, "login", c.config.Host, err).
			WithStatusCode(resp.StatusCode)
	}

	var result struct {
		BearerToken string `json:"bearer_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return agenterrors.WrapConnectivity("login", c.config.Host, err)
	}
	if result.BearerToken == "" {
		return agenterrors.WrapConnectivity("login", c.config.Host, fmt.Errorf("login response carried no bearer token"))
	}

	c.mu.Lock()
	c.bearerToken = result.BearerToken
	c.mu.Unlock()

	log.Debug().Str("host", c.config.Host).Msg("Authenticated to Qumulo REST API")
	return nil
}

// ListOfflineNodes returns the nodes whose status is anything but online.
func (c *Client) ListOfflineNodes(ctx context.Context) ([]NodeInfo, error) {
	var nodes []NodeInfo
	if err := c.getJSON(ctx, "/cluster/nodes/", &nodes); err != nil {
		return nil, err
	}

	offline := make([]NodeInfo, 0)
	for _, node := range nodes {
		if node.Status != nodeStatusOnline {
			offline = append(offline, node)
		}
	}
	return offline, nil
}

// ListDeadDrives returns the drive slots whose state is anything but healthy.
func (c *Client) ListDeadDrives(ctx context.Context) ([]DriveInfo, error) {
	var slots []DriveInfo
	if err := c.getJSON(ctx, "/cluster/slots/", &slots); err != nil {
		return nil, err
	}

	dead := make([]DriveInfo, 0)
	for _, slot := range slots {
		if slot.State != driveStateHealthy {
			dead = append(dead, slot)
		}
	}
	return dead, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	c.mu.Lock()
	token := c.bearerToken
	c.mu.Unlock()

	if token == "" {
		return agenterrors.New(agenterrors.ErrorTypeConnectivity, "get "+path, c.config.Host, agenterrors.ErrUnauthorized)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return agenterrors.WrapConnectivity("get "+path, c.config.Host, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A transport failure means the cluster is unreachable; drop the
		// session so the next tick observes the connectivity loss and
		// retries login, the same as a revoked token.
		c.dropToken()
		return agenterrors.WrapConnectivity("get "+path, c.config.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Session expired or was revoked; drop the token so the next tick
		// observes the connectivity loss and retries login.
		c.dropToken()

		return agenterrors.New(agenterrors.ErrorTypeConnectivity, "get "+path, c.config.Host, agenterrors.ErrUnauthorized).
			WithStatusCode(resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		return agenterrors.New(agenterrors.ErrorTypeConnectivity, "get "+path, c.config.Host, err).
			WithStatusCode(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return agenterrors.WrapConnectivity("get "+path, c.config.Host, err)
	}
	return nil
}
