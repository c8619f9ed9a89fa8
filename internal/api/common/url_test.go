package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

func TestResourceKeyParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		want       resource.Key
		wantErrMsg string
	}{
		{
			name: "single segment id",
			path: "/checksums/repository/project",
			want: resource.Key{Type: resource.TypeRepository, ID: "project"},
		},
		{
			name: "nested id",
			path: "/checksums/wiki/group/subgroup/project",
			want: resource.Key{Type: resource.TypeWiki, ID: "group/subgroup/project"},
		},
		{
			name: "encoded id",
			path: "/checksums/repository/group%2Fproject",
			want: resource.Key{Type: resource.TypeRepository, ID: "group/project"},
		},
		{
			name:       "unknown type",
			path:       "/checksums/snippet/project",
			wantErrMsg: "unknown resource type",
		},
		{
			name:       "missing id",
			path:       "/checksums/repository/",
			wantErrMsg: "cannot be empty",
		},
		{
			name:       "whitespace in id",
			path:       "/checksums/repository/my%20project",
			wantErrMsg: "cannot contain whitespace",
		},
		{
			name:       "traversal",
			path:       "/checksums/repository/group/../../etc",
			wantErrMsg: "clean relative path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got resource.Key
			var gotErr error
			router := chi.NewRouter()
			router.Get("/checksums/{type}/*", func(_ http.ResponseWriter, r *http.Request) {
				got, gotErr = ResourceKeyParams(r)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			router.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantErrMsg != "" {
				require.Error(t, gotErr)
				assert.Contains(t, gotErr.Error(), tt.wantErrMsg)
				return
			}
			require.NoError(t, gotErr)
			assert.Equal(t, tt.want, got)
		})
	}
}
