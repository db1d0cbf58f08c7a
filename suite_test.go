package test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/redhat/cloudkitty-tests/test/framework"
)

func TestCloudKittyRating(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CloudKitty Rating Tests Suite")
}

var fw *framework.Framework

var _ = BeforeSuite(func() {
	if os.Getenv("OS_AUTH_URL") == "" {
		return
	}

	var err error
	fw, err = framework.New(context.Background(),
		framework.WithLogger(slog.New(slog.NewTextHandler(GinkgoWriter, nil))))
	Expect(err).NotTo(HaveOccurred())
})

var _ = Describe("Rating API", func() {
	BeforeEach(func() {
		if fw == nil {
			Skip("OS_AUTH_URL not set")
		}
	})

	It("reports the hashmap module", func(ctx SpecContext) {
		prereqs, err := fw.CheckPrerequisites(ctx)
		Expect(err).NotTo(HaveOccurred())
		GinkgoWriter.Println(prereqs.String())
		Expect(prereqs.RatingAPI.Installed).To(BeTrue(), prereqs.RatingAPI.Message)
	})
})
