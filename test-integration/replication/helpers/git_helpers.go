package helpers

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/onsi/gomega"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// CreateRepository creates the copy of key below repoRoot with one commit
func CreateRepository(repoRoot string, key resource.Key) string {
	dir := key.DiskPath(repoRoot)
	gomega.Expect(os.MkdirAll(dir, 0750)).To(gomega.Succeed())

	repo, err := git.PlainInit(dir, false)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	wt, err := repo.Worktree()
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	gomega.Expect(os.WriteFile(filepath.Join(dir, "README.md"), []byte("# "+key.ID+"\n"), 0600)).To(gomega.Succeed())
	_, err = wt.Add("README.md")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	_, err = wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Integration", Email: "integration@example.com", When: time.Now()},
	})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return dir
}
