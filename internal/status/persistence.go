// Package status collects, persists and aggregates node replication status.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_persistence.go -package=mocks github.com/stacklok/toolhive-replication-server/internal/status Persistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// Persistence stores the last status reported by each node
type Persistence interface {
	// SaveStatus saves the status reported by a node
	SaveStatus(ctx context.Context, node string, status *NodeStatus) error

	// LoadStatus loads the status of a node
	// Returns nil if the node never reported
	LoadStatus(ctx context.Context, node string) (*NodeStatus, error)

	// LoadAllStatus loads the status of every node that reported
	LoadAllStatus(ctx context.Context) (map[string]*NodeStatus, error)
}

// filePersistence implements Persistence using local filesystem
type filePersistence struct {
	basePath string
}

// NewFilePersistence creates a new file-based status persistence
// basePath is the base directory where per-node status files will be stored
func NewFilePersistence(basePath string) Persistence {
	return &filePersistence{
		basePath: basePath,
	}
}

// SaveStatus saves the status to a JSON file in a node-specific directory
func (f *filePersistence) SaveStatus(_ context.Context, node string, status *NodeStatus) error {
	if !filepath.IsLocal(node) || filepath.Base(node) != node {
		return fmt.Errorf("invalid node name '%s'", node)
	}

	nodeDir := filepath.Join(f.basePath, node)
	if err := os.MkdirAll(nodeDir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for node '%s': %w", node, err)
	}

	filePath := filepath.Join(nodeDir, StatusFileName)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for node '%s': %w", node, err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for node '%s': %w", node, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for node '%s': %w", node, err)
	}

	return nil
}

// LoadStatus loads the status of a node from its JSON file
func (f *filePersistence) LoadStatus(_ context.Context, node string) (*NodeStatus, error) {
	filePath := filepath.Join(f.basePath, node, StatusFileName)

	// #nosec G304 -- filePath is built from basePath and a node name checked on save
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status file for node '%s': %w", node, err)
	}

	var status NodeStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for node '%s': %w", node, err)
	}

	return &status, nil
}

// LoadAllStatus loads the status of every node below basePath
func (f *filePersistence) LoadAllStatus(ctx context.Context) (map[string]*NodeStatus, error) {
	result := make(map[string]*NodeStatus)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		node := entry.Name()
		status, err := f.LoadStatus(ctx, node)
		if err != nil {
			// Partial results are better than none
			slog.WarnContext(ctx, "Skipping unreadable node status", "node", node, "error", err)
			continue
		}
		if status != nil {
			result[node] = status
		}
	}

	return result, nil
}
