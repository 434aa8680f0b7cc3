package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"duxwatch/pkg/config"
	"duxwatch/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := fn()

	_ = w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out), runErr
}

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	cfg := config.Default()
	cfg.APIBaseURL = apiURL
	cfg.LogLevel = "error"
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envFile := filepath.Join(t.TempDir(), "missing.env")
	root := newRootCmd()
	root.SetArgs(append(args, "--env-file", envFile))
	return captureStdout(t, root.Execute)
}

func TestCheckCommandJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"node_id":"n1","did":"did:dux:abc","is_online":true,"peers_count":3}`))
	})
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dht":{"total_entries":12},"escrow":{"total_contracts":2},"tasks":{"total_tasks":5}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := writeConfig(t, srv.URL+"/api")
	out, err := runCLI(t, "check", "--json", "--config", path)
	require.NoError(t, err)

	var report models.CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.OK)
	assert.Equal(t, path, report.ConfigPath)
	require.NotNil(t, report.Status)
	assert.Equal(t, "did:dux:abc", report.Status.DID)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 12, report.Stats.DHT.TotalEntries)
	assert.Empty(t, report.Errors)
}

func TestCheckCommandNodeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := writeConfig(t, srv.URL+"/api")
	out, err := runCLI(t, "check", "--json", "--config", path)
	assert.True(t, errors.Is(err, errCheckFailed))

	var report models.CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.OK)
	assert.Nil(t, report.Status)
	assert.Len(t, report.Errors, 2)
}

func TestCheckCommandInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"api_base_url":"ftp://nowhere"}`), 0644))

	out, err := runCLI(t, "check", "--json", "--config", path)
	assert.True(t, errors.Is(err, errCheckFailed))

	var report models.CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.OK)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "api_base_url")
}

func TestConfigRestoreCommand(t *testing.T) {
	path := writeConfig(t, "http://first.example/api")
	cfg := config.Default()
	cfg.APIBaseURL = "http://second.example/api"
	require.NoError(t, config.SaveConfig(cfg, path))

	_, err := runCLI(t, "config", "restore", "--config", path)
	require.NoError(t, err)

	restored, err := config.LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://first.example/api", restored.APIBaseURL)
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "check")
	assert.Contains(t, names, "config")
	for _, n := range []string{"wallet", "services", "tasks", "escrow", "reputation"} {
		assert.Contains(t, names, n)
	}
	assert.Equal(t, Version, root.Version)
}

// fakeNode answers the node API under /api and records each request body
// by path.
type fakeNode struct {
	mu     sync.Mutex
	bodies map[string]map[string]interface{}
	srv    *httptest.Server
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{bodies: make(map[string]map[string]interface{})}
	replies := map[string]string{
		"/api/wallet/info":            `{"success":true,"wallet":{"did":"did:dux:abc","public_key":"pk-123","addresses":{"BTC":"bc1qxyz","ETH":"0xabc"},"balances":{"BTC":"1.5 BTC"},"total_transactions":4}}`,
		"/api/wallet/transaction/tx1": `{"success":true,"transaction":{"id":"tx1","from":"bc1qfrom","to":"bc1qto","amount":150000000,"fee":1000,"currency":"BTC","status":"confirmed","timestamp":1700000000,"confirmations":6,"memo":"rent"}}`,
		"/api/wallet/backup":          `{"success":true,"backup_data":"b64-backup"}`,
		"/api/wallet/restore":         `{"success":true,"message":"Wallet restored"}`,
		"/api/services/search":        `{"success":true,"services":[{"id":"svc1","name":"GPU render","description":"d","price":250000000,"currency":"BTC","provider_did":"did:dux:p","reputation_score":0.9}]}`,
		"/api/services/register":      `{"success":true,"service_id":"svc9"}`,
		"/api/tasks/submit":           `{"success":true,"task_id":"task7"}`,
		"/api/escrow/create":          `{"success":false,"message":"Insufficient funds"}`,
		"/api/reputation/did:dux:p":   `{"success":true,"reputation":0.87}`,
	}
	n.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply, ok := replies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodPost {
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			n.mu.Lock()
			n.bodies[r.URL.Path] = body
			n.mu.Unlock()
		}
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *fakeNode) body(path string) map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bodies[path]
}

func (n *fakeNode) config(t *testing.T) string {
	return writeConfig(t, n.srv.URL+"/api")
}

func TestWalletInfoCommand(t *testing.T) {
	node := newFakeNode(t)
	out, err := runCLI(t, "wallet", "info", "--config", node.config(t))
	require.NoError(t, err)
	assert.Contains(t, out, "did:dux:abc")
	assert.Contains(t, out, "pk-123")
	assert.Contains(t, out, "Transactions:  4")
	assert.Less(t, strings.Index(out, "bc1qxyz"), strings.Index(out, "0xabc"))
	assert.Contains(t, out, "1.5 BTC")
}

func TestWalletTxCommand(t *testing.T) {
	node := newFakeNode(t)
	out, err := runCLI(t, "wallet", "tx", "tx1", "--config", node.config(t))
	require.NoError(t, err)
	assert.Contains(t, out, "confirmed")
	assert.Contains(t, out, "1.50000000 BTC")
	assert.Contains(t, out, "0.00001000 BTC")
	assert.Contains(t, out, "Confirmations: 6")
	assert.Contains(t, out, "Memo:          rent")

	_, err = runCLI(t, "wallet", "tx", "missing", "--config", node.config(t))
	assert.Error(t, err)
}

func TestWalletBackupAndRestoreCommands(t *testing.T) {
	node := newFakeNode(t)
	path := node.config(t)

	out, err := runCLI(t, "wallet", "backup", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "b64-backup")

	file := filepath.Join(t.TempDir(), "wallet.bak")
	_, err = runCLI(t, "wallet", "backup", "-o", file, "--config", path)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "b64-backup", string(data))

	out, err = runCLI(t, "wallet", "restore", file, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet restored")
	assert.Equal(t, "b64-backup", node.body("/api/wallet/restore")["backup_data"])

	empty := filepath.Join(t.TempDir(), "empty.bak")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	_, err = runCLI(t, "wallet", "restore", empty, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup data is required")
}

func TestServicesCommands(t *testing.T) {
	node := newFakeNode(t)
	path := node.config(t)

	out, err := runCLI(t, "services", "search", "gpu", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "svc1")
	assert.Contains(t, out, "2.50000000 BTC")
	assert.Contains(t, out, "Found 1 services")
	assert.Equal(t, "gpu", node.body("/api/services/search")["query"])

	out, err = runCLI(t, "services", "register", "--name", "GPU", "--description", "renders",
		"--price", "1.5", "--currency", "btc", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Service ID: svc9")
	body := node.body("/api/services/register")
	assert.Equal(t, float64(150000000), body["price"])
	assert.Equal(t, "BTC", body["currency"])

	_, err = runCLI(t, "services", "register", "--name", "GPU", "--description", "renders",
		"--price", "0", "--currency", "BTC", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price must be greater than zero")
}

func TestTasksSubmitCommand(t *testing.T) {
	node := newFakeNode(t)
	out, err := runCLI(t, "tasks", "submit", "--service", "svc1", "--payload", "render frame 1",
		"--cpu", "4", "--config", node.config(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Task ID: task7")
	body := node.body("/api/tasks/submit")
	assert.Equal(t, float64(4), body["cpu_cores"])
	assert.Equal(t, float64(512), body["memory_mb"])
}

func TestEscrowCreateCommand(t *testing.T) {
	node := newFakeNode(t)
	path := node.config(t)

	_, err := runCLI(t, "escrow", "create", "--service", "svc1", "--seller", "did:dux:p",
		"--amount", "0.1", "--currency", "ETH", "--config", path)
	require.Error(t, err)
	assert.Equal(t, "Insufficient funds", err.Error())
	assert.Equal(t, "100000000000000000", jsonNumber(node.body("/api/escrow/create")["amount"]))

	_, err = runCLI(t, "escrow", "create", "--service", "svc1", "--seller", "bob",
		"--amount", "0.1", "--currency", "ETH", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a DID")
}

func TestReputationCommand(t *testing.T) {
	node := newFakeNode(t)
	out, err := runCLI(t, "reputation", "did:dux:p", "--config", node.config(t))
	require.NoError(t, err)
	assert.Contains(t, out, "did:dux:p reputation 0.87")

	_, err = runCLI(t, "reputation", "bob", "--config", node.config(t))
	assert.Error(t, err)
}

// jsonNumber renders a decoded JSON number without float formatting.
func jsonNumber(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
