package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvjit/config"
	"github.com/sarchlab/rvjit/insts"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	Describe("Default", func() {
		It("should be valid", func() {
			Expect(config.Default().Validate()).To(Succeed())
		})

		It("should compile explicitly and fuse within eight instructions", func() {
			c := config.Default()

			Expect(c.HotThreshold).To(BeZero())
			Expect(c.FusionWindow).To(Equal(8))
			Expect(c.Fusion).To(BeTrue())
		})

		It("should enable the M extension", func() {
			ext, err := config.Default().ISA()

			Expect(err).ToNot(HaveOccurred())
			Expect(ext).To(Equal(insts.ExtM))
		})
	})

	DescribeTable("Validate",
		func(mutate func(c *config.Config), msg string) {
			c := config.Default()
			mutate(c)

			Expect(c.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("zero trace length", func(c *config.Config) { c.MaxTraceLength = 0 }, "max_trace_length"),
		Entry("tiny fusion window", func(c *config.Config) { c.FusionWindow = 1 }, "fusion_window"),
		Entry("odd line size", func(c *config.Config) { c.CodeLineSize = 48 }, "code_line_size"),
		Entry("no sets", func(c *config.Config) { c.CodeSets = 0 }, "code_sets"),
		Entry("no ways", func(c *config.Config) { c.CodeWays = 0 }, "code_ways"),
		Entry("unknown extension", func(c *config.Config) { c.Extensions = "rv64imf" }, "unsupported extension"),
	)

	It("should clone without sharing", func() {
		c := config.Default()
		clone := c.Clone()
		clone.HotThreshold = 10

		Expect(c.HotThreshold).To(BeZero())
	})

	Describe("Load", func() {
		It("should return defaults without a file", func() {
			c, err := config.Load("")

			Expect(err).ToNot(HaveOccurred())
			Expect(c).To(Equal(config.Default()))
		})

		It("should round-trip through Save", func() {
			path := filepath.Join(dir, "rvjit.json")
			c := config.Default()
			c.HotThreshold = 3
			c.Extensions = "rv64imc"
			Expect(c.Save(path)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(loaded).To(Equal(c))
		})

		It("should read YAML and keep defaults for missing keys", func() {
			path := filepath.Join(dir, "rvjit.yaml")
			Expect(os.WriteFile(path, []byte("max_trace_length: 16\nfusion: false\n"), 0644)).To(Succeed())

			c, err := config.Load(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.MaxTraceLength).To(Equal(16))
			Expect(c.Fusion).To(BeFalse())
			Expect(c.FusionWindow).To(Equal(8))
		})

		It("should apply environment overrides", func() {
			Expect(os.Setenv("RVJIT_HOT_THRESHOLD", "5")).To(Succeed())
			DeferCleanup(os.Unsetenv, "RVJIT_HOT_THRESHOLD")

			c, err := config.Load("")
			Expect(err).ToNot(HaveOccurred())
			Expect(c.HotThreshold).To(Equal(uint64(5)))
		})

		It("should reject invalid values", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte(`{"code_ways": 0}`), 0644)).To(Succeed())

			_, err := config.Load(path)
			Expect(err).To(HaveOccurred())
		})

		It("should fail on a missing file", func() {
			_, err := config.Load(filepath.Join(dir, "missing.json"))
			Expect(err).To(HaveOccurred())
		})
	})
})
