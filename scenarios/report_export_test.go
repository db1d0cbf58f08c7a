package scenarios

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/redhat/cloudkitty-tests/test/framework"
	"github.com/redhat/cloudkitty-tests/test/framework/metrics"
	"github.com/redhat/cloudkitty-tests/test/framework/profile"
)

var _ = Describe("Scenario reports", func() {
	var (
		cloud   *fakeCloud
		fw      *framework.Framework
		results []*framework.ScenarioResult
	)

	BeforeEach(func(ctx SpecContext) {
		cloud = newFakeCloud()
		DeferCleanup(cloud.Close)
		fw = newFakeFramework(cloud, fastConfig())

		results = nil
		passed, err := fw.RunScenario(ctx, "rated")
		Expect(err).NotTo(HaveOccurred())
		results = append(results, passed)

		cloud.ServeDataframes(fmt.Sprintf(ratedVolumeJSON, "0"))
		failed, err := fw.RunProfile(ctx, &profile.Profile{Name: "unrated", Description: "zero rating"})
		Expect(err).To(HaveOccurred())
		results = append(results, failed)
	})

	It("exports a JSON summary", func() {
		path := filepath.Join(GinkgoT().TempDir(), "report.json")
		Expect(fw.ExportReports(results, path, metrics.FormatJSON)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())

		var doc metrics.JSONExportReport
		Expect(json.Unmarshal(data, &doc)).To(Succeed())
		Expect(doc.Total).To(Equal(2))
		Expect(doc.Passed).To(Equal(1))
		Expect(doc.Failed).To(Equal(1))

		Expect(doc.Reports[0].Scenario).To(Equal("rated"))
		Expect(doc.Reports[0].Rating).To(Equal("4"))
		Expect(doc.Reports[0].VolumeID).To(Equal("vol-1"))
		Expect(doc.Reports[1].Status).To(Equal(metrics.StatusFailed))
		Expect(doc.Reports[1].Error).To(ContainSubstring("dataframe field rating"))
	})

	It("exports one CSV row per scenario", func() {
		path := filepath.Join(GinkgoT().TempDir(), "report.csv")
		Expect(fw.ExportReports(results, path, "")).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("rated,passed"))
		Expect(string(data)).To(ContainSubstring("unrated,failed"))
	})
})
