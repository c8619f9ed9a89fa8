package common

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// ResourceKeyParams extracts a resource key from a route declared as
// ".../{type}/*", where the wildcard holds the resource id.
// The id may span several path segments and is validated as a clean relative path.
func ResourceKeyParams(r *http.Request) (resource.Key, error) {
	rawType, err := urlParam(r, "type")
	if err != nil {
		return resource.Key{}, err
	}
	rawID, err := urlParam(r, "*")
	if err != nil {
		return resource.Key{}, fmt.Errorf("resource id: %w", err)
	}

	key := resource.Key{Type: resource.Type(rawType), ID: strings.TrimSuffix(rawID, "/")}
	if err := key.Validate(); err != nil {
		return resource.Key{}, err
	}
	return key, nil
}

// urlParam extracts and decodes a chi URL parameter.
// Empty values and values containing whitespace are rejected.
func urlParam(r *http.Request, name string) (string, error) {
	decoded, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return "", fmt.Errorf("invalid URL encoding in %s", name)
	}
	if strings.TrimSpace(decoded) == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}
	if strings.ContainsAny(decoded, " \t\n\r") {
		return "", fmt.Errorf("%s cannot contain whitespace", name)
	}
	return decoded, nil
}
