package integration

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/toolhive-replication-server/internal/app"
	"github.com/stacklok/toolhive-replication-server/internal/app/storage"
	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/httpclient"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
	"github.com/stacklok/toolhive-replication-server/test-integration/replication/helpers"
)

var _ = Describe("Primary and secondary", Label("replication"), func() {
	var (
		tempDir   string
		key       resource.Key
		checksum  string
		primary   *helpers.NodeTestHelper
		secondary *helpers.NodeTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("replication-test-")
		key = resource.Key{Type: resource.TypeRepository, ID: "group/project"}

		primary = helpers.NewNodeTestHelper(ctx, filepath.Join(tempDir, "primary"), helpers.NodeOptions{
			Name:        "primary",
			Role:        config.RolePrimary,
			Resources:   []resource.Key{key},
			Secondaries: []string{"secondary-1"},
		})

		repoDir := helpers.CreateRepository(primary.Config().GetRepositoriesDir(), key)
		var err error
		checksum, err = verification.NewGitCalculator().Checksum(ctx, repoDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(primary.Start()).To(Succeed())
		primary.WaitForReady(10 * time.Second)

		secondary = helpers.NewNodeTestHelper(ctx, filepath.Join(tempDir, "secondary"), helpers.NodeOptions{
			Name:       "secondary-1",
			Role:       config.RoleSecondary,
			PrimaryURL: primary.BaseURL(),
			Resources:  []resource.Key{key},
		})
		Expect(secondary.Start()).To(Succeed())
		secondary.WaitForReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(secondary.Stop()).To(Succeed())
		Expect(primary.Stop()).To(Succeed())
		Expect(os.RemoveAll(tempDir)).To(Succeed())
	})

	It("keeps health endpoints public and rejects unauthenticated calls", func() {
		for _, path := range []string{"/health", "/readiness", "/version"} {
			resp, err := primary.Get(path)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK), path)
		}

		resp, err := primary.Get("/status")
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("aggregates the status pushed by the secondary", func() {
		client := primary.Client("operator")

		Eventually(func() []string {
			resp, err := client.GetStatus(ctx)
			if err != nil {
				return nil
			}
			names := make([]string, 0, len(resp.Secondaries))
			for _, st := range resp.Secondaries {
				if st.Health != status.HealthUnknown {
					names = append(names, st.Node)
				}
			}
			return names
		}, 15*time.Second, 500*time.Millisecond).Should(ContainElement("secondary-1"))

		resp, err := client.GetStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Node).To(Equal("primary"))
		Expect(resp.Role).To(Equal(string(config.RolePrimary)))
	})

	It("rejects statuses from unknown nodes", func() {
		_, err := primary.Client("intruder").PushStatus(ctx, &status.NodeStatus{
			Node:       "intruder",
			Role:       string(config.RoleSecondary),
			ReportedAt: time.Now(),
		})
		Expect(err).To(HaveOccurred())
	})

	It("serves the checksum recorded for a tracked resource", func() {
		client := primary.Client("secondary-1")

		Eventually(func() (string, error) {
			return client.PrimaryChecksum(ctx, key)
		}, 15*time.Second, 500*time.Millisecond).Should(Equal(checksum))

		unknown := resource.Key{Type: resource.TypeWiki, ID: "group/project"}
		_, err := client.PrimaryChecksum(ctx, unknown)
		Expect(errors.Is(err, verification.ErrMissingOnPrimary) || errors.Is(err, verification.ErrNotRecorded)).
			To(BeTrue(), "unexpected error: %v", err)
	})

	It("announces recorded resources through the event log", func() {
		client := primary.Client("operator")

		Eventually(func() []eventlog.Event {
			events, _, err := client.Drain(ctx, 0, 100)
			if err != nil {
				return nil
			}
			return events
		}, 15*time.Second, 500*time.Millisecond).Should(ContainElement(SatisfyAll(
			HaveField("Type", eventlog.TypeRepositoryCreated),
			HaveField("Resource", key),
		)))
	})

	It("serves events appended by a separate process", func() {
		factory, err := storage.NewFileFactory(primary.Config())
		Expect(err).NotTo(HaveOccurred())
		id, err := app.AppendEvent(ctx, primary.Config(), factory, eventlog.TypeCacheInvalidated, key, nil)
		Expect(err).NotTo(HaveOccurred())

		events, _, err := primary.Client("operator").Drain(ctx, id-1, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(ContainElement(SatisfyAll(
			HaveField("ID", id),
			HaveField("Type", eventlog.TypeCacheInvalidated),
			HaveField("Resource", key),
		)))
	})

	It("refuses to serve events from a secondary", func() {
		_, _, err := secondary.Client("operator").Drain(ctx, 0, 10)

		var httpErr *httpclient.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue(), "unexpected error: %v", err)
		Expect(httpErr.StatusCode).To(Equal(http.StatusMisdirectedRequest))
	})
})
