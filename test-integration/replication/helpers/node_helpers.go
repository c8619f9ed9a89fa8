// Package helpers starts replication nodes and prepares fixtures for the
// integration suite.
package helpers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	"github.com/stacklok/toolhive-replication-server/internal/app"
	"github.com/stacklok/toolhive-replication-server/internal/auth"
	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/httpclient"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// SigningKey is shared by every node of the suite
const SigningKey = "integration-signing-key-0123456789"

// NodeTestHelper manages the lifecycle of one in-process node
type NodeTestHelper struct {
	ctx        context.Context
	cfg        *config.Config
	listener   net.Listener
	baseURL    string
	httpClient *http.Client
	app        *app.ReplicationApp
}

// NodeOptions describes the node to start
type NodeOptions struct {
	Name        string
	Role        config.Role
	PrimaryURL  string
	Resources   []resource.Key
	Secondaries []string
}

// NewNodeTestHelper reserves a loopback port and builds the node configuration
func NewNodeTestHelper(ctx context.Context, dir string, opts NodeOptions) *NodeTestHelper {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	gomega.Expect(os.MkdirAll(dir, 0o750)).To(gomega.Succeed())
	keyFile := filepath.Join(dir, "signing.key")
	gomega.Expect(os.WriteFile(keyFile, []byte(SigningKey), 0600)).To(gomega.Succeed())

	cfg := &config.Config{
		Node: config.NodeConfig{
			Name:               opts.Name,
			Role:               opts.Role,
			PrimaryURL:         opts.PrimaryURL,
			SigningKeyFile:     keyFile,
			StatusPushInterval: "1s",
		},
		Storage: config.StorageConfig{Type: config.StorageTypeFile, DataDir: filepath.Join(dir, "data")},
		Sync:    config.SyncConfig{PollInterval: "1s", BaseRetryDelay: "1s"},
	}
	for _, key := range opts.Resources {
		cfg.Resources = append(cfg.Resources, config.ResourceConfig{Type: key.Type, ID: key.ID})
	}
	for _, name := range opts.Secondaries {
		cfg.Secondaries = append(cfg.Secondaries, config.SecondaryConfig{Name: name})
	}

	return &NodeTestHelper{
		ctx:        ctx,
		cfg:        cfg,
		listener:   listener,
		baseURL:    "http://" + listener.Addr().String(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Config returns the node configuration so tests can prepare its data directory
func (n *NodeTestHelper) Config() *config.Config {
	return n.cfg
}

// BaseURL returns the URL the node serves on
func (n *NodeTestHelper) BaseURL() string {
	return n.baseURL
}

// Start builds the node and serves it on the reserved listener
func (n *NodeTestHelper) Start() error {
	replicationApp, err := app.NewReplicationApp(n.ctx,
		app.WithConfig(n.cfg),
		app.WithAddress(n.listener.Addr().String()),
	)
	if err != nil {
		return fmt.Errorf("failed to build node %s: %w", n.cfg.Node.Name, err)
	}
	n.app = replicationApp

	go func() {
		if err := replicationApp.Serve(n.listener); err != nil {
			fmt.Fprintf(os.Stderr, "Node %s failed: %v\n", n.cfg.Node.Name, err)
		}
	}()
	return nil
}

// Stop shuts the node down
func (n *NodeTestHelper) Stop() error {
	if n.app != nil {
		return n.app.Stop(5 * time.Second)
	}
	return n.listener.Close()
}

// WaitForReady waits until the node answers its health check
func (n *NodeTestHelper) WaitForReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := n.Get("/health")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("node returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 200*time.Millisecond).Should(gomega.Succeed(), "Node should be ready")
}

// Get makes an unauthenticated GET request to the node
func (n *NodeTestHelper) Get(path string) (*http.Response, error) {
	return n.httpClient.Get(n.baseURL + path)
}

// Client returns an API client that signs requests as caller
func (n *NodeTestHelper) Client(caller string) *httpclient.Client {
	issuer, err := auth.NewJWTIssuer([]byte(SigningKey), caller)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	client, err := httpclient.NewClient(n.baseURL, caller, issuer,
		httpclient.WithHTTPClient(n.httpClient),
		httpclient.WithMaxTries(1),
	)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return client
}
