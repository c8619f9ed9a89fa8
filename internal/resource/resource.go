// Package resource defines the replicated units tracked by the replication server.
package resource

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Type identifies the kind of replicated resource.
// The set of types is closed: every Type value must be one of the constants below.
type Type string

const (
	// TypeRepository is a primary source code repository
	TypeRepository Type = "repository"

	// TypeWiki is the wiki repository attached to a project
	TypeWiki Type = "wiki"
)

// Types lists every supported resource type, in a stable order.
var Types = []Type{TypeRepository, TypeWiki}

// ParseType converts a string into a Type, rejecting unknown values.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeRepository:
		return TypeRepository, nil
	case TypeWiki:
		return TypeWiki, nil
	default:
		return "", fmt.Errorf("unknown resource type: %q", s)
	}
}

// Valid reports whether t is a known resource type.
func (t Type) Valid() bool {
	return t == TypeRepository || t == TypeWiki
}

func (t Type) String() string {
	return string(t)
}

// repositorySuffix is the on-disk and remote suffix for each type.
func (t Type) repositorySuffix() string {
	if t == TypeWiki {
		return ".wiki.git"
	}
	return ".git"
}

// Key uniquely identifies a replicated resource.
type Key struct {
	Type Type   `json:"type" yaml:"type"`
	ID   string `json:"id" yaml:"id"`
}

// NewKey builds a Key and validates it.
func NewKey(t Type, id string) (Key, error) {
	k := Key{Type: t, ID: id}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Validate checks that the key is usable as a registry and lease identifier.
func (k Key) Validate() error {
	if !k.Type.Valid() {
		return fmt.Errorf("unknown resource type: %q", k.Type)
	}
	if k.ID == "" {
		return fmt.Errorf("resource id is required")
	}
	clean := path.Clean(k.ID)
	if clean != k.ID || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("resource id %q must be a clean relative path", k.ID)
	}
	// Would share the disk path and remote URL of the wiki with the id minus the suffix
	if k.Type == TypeRepository && strings.HasSuffix(k.ID, ".wiki") {
		return fmt.Errorf("repository id %q must not end in .wiki", k.ID)
	}
	return nil
}

func (k Key) String() string {
	return string(k.Type) + ":" + k.ID
}

// LeaseKey returns the key used to guard sync and verification of this resource.
func (k Key) LeaseKey() string {
	return "replication:" + k.String()
}

// DiskPath returns where the local copy of the resource lives under root.
func (k Key) DiskPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(k.ID)+k.Type.repositorySuffix())
}

// RemoteURL returns the clone URL of the resource on the primary.
func (k Key) RemoteURL(primaryURL string) (string, error) {
	if primaryURL == "" {
		return "", fmt.Errorf("primary URL is not configured")
	}
	base, err := url.Parse(primaryURL)
	if err != nil {
		return "", fmt.Errorf("invalid primary URL %q: %w", primaryURL, err)
	}
	return base.JoinPath("git", k.ID+k.Type.repositorySuffix()).String(), nil
}
