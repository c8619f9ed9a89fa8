package transfer

import (
	"net/http"

	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// headerAuth sends a prebuilt Authorization header on git HTTP requests
type headerAuth struct {
	header string
}

var _ githttp.AuthMethod = (*headerAuth)(nil)

func newHeaderAuth(header string) githttp.AuthMethod {
	if header == "" {
		return nil
	}
	return &headerAuth{header: header}
}

func (a *headerAuth) SetAuth(r *http.Request) {
	if a == nil {
		return
	}
	r.Header.Set("Authorization", a.header)
}

func (*headerAuth) Name() string {
	return "http-authorization-header"
}

// String never exposes the credential
func (a *headerAuth) String() string {
	return a.Name() + " - <redacted>"
}
