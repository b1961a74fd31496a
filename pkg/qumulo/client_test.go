package qumulo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agenterrors "github.com/mabott/snmp-agent-app/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := &Client{
		baseURL:    server.URL + "/v1",
		httpClient: server.Client(),
		config:     ClientConfig{Host: "test", Username: "admin", Password: "pw"},
	}
	return client
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"bearer_token": "token-1"})
	})
	mux.HandleFunc("/v1/cluster/nodes/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]NodeInfo{
			{ID: 1, Name: "qcluster-1", Status: "online"},
			{ID: 2, Name: "qcluster-2", Status: "offline"},
			{ID: 3, Name: "qcluster-3", Status: "unreachable"},
		})
	})
	mux.HandleFunc("/v1/cluster/slots/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]DriveInfo{
			{ID: "1.1", State: "healthy", DiskType: "HDD"},
			{ID: "1.2", State: "dead", DiskType: "SSD"},
		})
	})
	return mux
}

func TestLoginStoresToken(t *testing.T) {
	client := newTestClient(t, testHandler(t))
	assert.False(t, client.IsAuthenticated())

	require.NoError(t, client.Login(context.Background()))
	assert.True(t, client.IsAuthenticated())
}

func TestLoginRejectedIsConnectivityError(t *testing.T) {
	client := newTestClient(t, testHandler(t))
	client.config.Password = "wrong"

	err := client.Login(context.Background())
	require.Error(t, err)
	assert.True(t, agenterrors.IsAuthError(err))
	assert.False(t, client.IsAuthenticated())
}

func TestListOfflineNodesFiltersOnline(t *testing.T) {
	client := newTestClient(t, testHandler(t))
	require.NoError(t, client.Login(context.Background()))

	offline, err := client.ListOfflineNodes(context.Background())
	require.NoError(t, err)
	require.Len(t, offline, 2)
	assert.Equal(t, "qcluster-2", offline[0].Name)
	assert.Equal(t, "qcluster-3", offline[1].Name)
}

func TestListDeadDrivesFiltersHealthy(t *testing.T) {
	client := newTestClient(t, testHandler(t))
	require.NoError(t, client.Login(context.Background()))

	dead, err := client.ListDeadDrives(context.Background())
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "1.2", dead[0].ID)
	assert.Equal(t, "SSD", dead[0].DiskType)
}

func TestUnauthorizedResponseDropsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/cluster/nodes/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client := newTestClient(t, mux)
	client.bearerToken = "stale"

	_, err := client.ListOfflineNodes(context.Background())
	require.Error(t, err)
	assert.True(t, agenterrors.IsAuthError(err))
	assert.False(t, client.IsAuthenticated(), "401 must invalidate the session")
}

func TestTransportErrorDropsToken(t *testing.T) {
	server := httptest.NewServer(testHandler(t))
	client := &Client{
		baseURL:    server.URL + "/v1",
		httpClient: server.Client(),
		config:     ClientConfig{Host: "test", Username: "admin", Password: "pw"},
	}

	require.NoError(t, client.Login(context.Background()))
	require.True(t, client.IsAuthenticated())

	// The cluster becomes completely unreachable after a healthy session.
	server.Close()

	_, err := client.ListOfflineNodes(context.Background())
	require.Error(t, err)
	assert.False(t, client.IsAuthenticated(),
		"an unreachable cluster must read as a connectivity loss, not a healthy session")
}

func TestQueriesWithoutTokenFailFast(t *testing.T) {
	client := newTestClient(t, testHandler(t))

	_, err := client.ListOfflineNodes(context.Background())
	require.Error(t, err)
	assert.True(t, agenterrors.IsAuthError(err))
}
