package scenarios

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/redhat/cloudkitty-tests/test/framework"
	"github.com/redhat/cloudkitty-tests/test/framework/config"
	"github.com/redhat/cloudkitty-tests/test/framework/dataframe"
)

func fastConfig() *config.Config {
	cfg := config.Default().
		WithCollectTimeout(2*time.Second).
		WithPollIntervals(10*time.Millisecond, 50*time.Millisecond).
		WithVolumeReadyTimeout(2*time.Second, 10*time.Millisecond)
	cfg.CleanupTimeout = 2 * time.Second
	return cfg
}

func newFakeFramework(cloud *fakeCloud, cfg *config.Config) *framework.Framework {
	fw, err := framework.New(context.Background(),
		framework.WithLogger(slog.New(slog.NewTextHandler(GinkgoWriter, nil))),
		framework.WithConfig(cfg),
		framework.WithVolumeClient(cloud.VolumeClient()),
		framework.WithRatingClient(cloud.RatingClient()),
		framework.WithIdentity("proj-1", "user-1"),
	)
	Expect(err).NotTo(HaveOccurred())
	return fw
}

var _ = Describe("Dataframe collection", func() {
	var (
		cloud *fakeCloud
		cfg   *config.Config
	)

	BeforeEach(func() {
		cloud = newFakeCloud()
		DeferCleanup(cloud.Close)
		cfg = fastConfig()
	})

	Context("against a rating API that collects the volume", func() {
		It("rates the volume and deletes everything in reverse order", func(ctx SpecContext) {
			fw := newFakeFramework(cloud, cfg)

			prereqs, err := fw.CheckPrerequisites(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(prereqs.AllMet).To(BeTrue(), prereqs.String())

			result, err := fw.RunScenario(ctx, "collect-dataframe")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed()).To(BeTrue())

			Expect(result.Record).NotTo(BeNil())
			Expect(result.Record.Rating).To(Equal(dataframe.Amount("4")))
			Expect(result.Record.Desc.ID).To(Equal("vol-1"))
			Expect(result.Resources.ServiceID).To(Equal("svc-1"))
			Expect(result.Resources.MappingID).To(Equal("map-1"))
			Expect(cloud.DataframeRequests()).To(BeNumerically(">=", 2), "an empty page should be polled again")

			Expect(cloud.Deleted()).To(Equal([]string{"mapping", "service", "volume"}))

			GinkgoWriter.Printf("Scenario %s passed in %s\n", result.Name, result.Duration())
			for _, stage := range result.Stages {
				GinkgoWriter.Printf("  %-20s %s\n", stage.Name, stage.Duration)
			}
		})

		It("checks the rating against an exact expectation", func(ctx SpecContext) {
			fw := newFakeFramework(cloud, cfg.WithExpectedRating(4, 0.001))

			result, err := fw.RunScenario(ctx, "collect-dataframe-exact")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed()).To(BeTrue())
		})

		It("still cleans up when the mapping cannot be deleted", func(ctx SpecContext) {
			cloud.FailMappingDelete(http.StatusInternalServerError)
			fw := newFakeFramework(cloud, cfg)

			result, err := fw.RunScenario(ctx, "collect-dataframe")
			Expect(err).To(HaveOccurred())
			Expect(result.Passed()).To(BeTrue(), "stages passed, only cleanup failed")

			var ce *framework.CleanupError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Errs).To(HaveLen(1))
			Expect(cloud.Deleted()).To(Equal([]string{"mapping", "service", "volume"}))
		})

		It("treats an already deleted mapping as cleaned up", func(ctx SpecContext) {
			cloud.FailMappingDelete(http.StatusNotFound)
			fw := newFakeFramework(cloud, cfg)

			_, err := fw.RunScenario(ctx, "collect-dataframe")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("when no record matches the provisioned volume", func() {
		It("times out instead of validating another resource", func(ctx SpecContext) {
			cloud.ServeDataframes(otherVolumeJSON)
			fw := newFakeFramework(cloud, cfg.WithCollectTimeout(200*time.Millisecond))

			result, err := fw.RunScenario(ctx, "collect-dataframe")
			Expect(err).To(HaveOccurred())
			Expect(framework.IsTimeout(err)).To(BeTrue(), err.Error())
			Expect(result.Record).To(BeNil())
			Expect(err.Error()).To(ContainSubstring("with 1 records"))
			Expect(cloud.Deleted()).To(Equal([]string{"mapping", "service", "volume"}))
		})
	})

	Context("when the volume is rated at zero", func() {
		It("fails validation", func(ctx SpecContext) {
			cloud.ServeDataframes(fmt.Sprintf(ratedVolumeJSON, "0"))
			fw := newFakeFramework(cloud, cfg)

			result, err := fw.RunScenario(ctx, "collect-dataframe")
			Expect(err).To(MatchError(dataframe.ErrInvalidRecord))
			Expect(result.Passed()).To(BeFalse())
			Expect(result.Report().Status).To(Equal("failed"))
		})
	})

	Context("against a live cloud", Label("live"), func() {
		BeforeEach(func() {
			if os.Getenv("OS_AUTH_URL") == "" {
				Skip("OS_AUTH_URL not set")
			}
		})

		It("collects a rated dataframe for a new volume", func(ctx SpecContext) {
			fw, err := framework.New(ctx, framework.WithLogger(slog.New(slog.NewTextHandler(GinkgoWriter, nil))))
			Expect(err).NotTo(HaveOccurred())

			prereqs, err := fw.CheckPrerequisites(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(prereqs.AllMet).To(BeTrue(), prereqs.String())

			result, err := fw.RunScenario(ctx, "collect-dataframe")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed()).To(BeTrue())
			GinkgoWriter.Printf("Volume %s rated %s\n", result.Resources.Volume.ID, result.Record.Rating)
		}, NodeTimeout(30*time.Minute))
	})
})
