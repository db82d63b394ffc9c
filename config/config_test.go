package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/ab-router/config"
)

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tempDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tempDir)
		os.Unsetenv("ASSIGNMENT_POLICY")
		os.Unsetenv("DIRECTORY_URL")
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				configContent := `
server:
  address: ":8080"
  environment: "dev"

admin:
  address: "127.0.0.1:9191"

directory:
  url: "http://localhost:8081/api/variants"
  cache_ttl: "10m"

assignment:
  policy: "random"

cookie:
  max_age: "24h"

logging:
  level: "debug"
`
				err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should parse the directory section", func() {
				cfg, _ := config.Load()
				Expect(cfg.Directory.URL).To(Equal("http://localhost:8081/api/variants"))
				Expect(cfg.Durations().DirectoryCacheTTL).To(Equal(10 * time.Minute))
			})

			It("should parse the assignment policy", func() {
				cfg, _ := config.Load()
				Expect(cfg.Assignment.Policy).To(Equal(config.PolicyRandom))
			})

			It("should keep defaults for omitted sections", func() {
				cfg, _ := config.Load()
				Expect(cfg.Cache.MaxAge).To(Equal("30m"))
				Expect(cfg.Durations().CookieMaxAge).To(Equal(24 * time.Hour))
				Expect(cfg.Metrics.BufferSize).To(Equal(1024))
			})
		})

		Context("with invalid config file", func() {
			BeforeEach(func() {
				configContent := `
assignment:
  policy: "round-robin"
`
				err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should reject an unknown policy", func() {
				cfg, err := config.Load()
				Expect(err).To(HaveOccurred())
				Expect(cfg).To(BeNil())
			})
		})

		Context("without a config file", func() {
			It("should use defaults", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Directory.URL).To(Equal(config.DefaultDirectoryURL))
				Expect(cfg.Assignment.Policy).To(Equal(config.PolicyLeastAssigned))
				Expect(cfg.Durations().CookieMaxAge).To(Equal(14 * 24 * time.Hour))
				Expect(cfg.Durations().CacheMaxAge).To(Equal(30 * time.Minute))
			})

			It("should let environment variables override defaults", func() {
				os.Setenv("ASSIGNMENT_POLICY", "random")
				os.Setenv("DIRECTORY_URL", "https://variants.example.com/list")

				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Assignment.Policy).To(Equal(config.PolicyRandom))
				Expect(cfg.Directory.URL).To(Equal("https://variants.example.com/list"))
			})
		})
	})

	Describe("Validate", func() {
		var cfg *config.Config

		BeforeEach(func() {
			var err error
			cfg, err = config.Load()
			Expect(err).NotTo(HaveOccurred())
		})

		It("should accept the defaults", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject a non-http directory URL", func() {
			cfg.Directory.URL = "ftp://example.com/variants"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a zero cache lifetime", func() {
			cfg.Cache.MaxAge = "0s"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a malformed admin address", func() {
			cfg.Admin.Address = "invalid:host:port"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an unknown environment", func() {
			cfg.Server.Environment = "qa"
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})
})
