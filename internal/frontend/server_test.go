package frontend_test

import (
	"context"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"irriflow.dev/dashboard/internal/frontend"
	"irriflow.dev/dashboard/internal/views/mock"
	"irriflow.dev/dashboard/pkg/logger"
)

var _ = Describe("Frontend Server", func() {
	var (
		log         *slog.Logger
		energyAPI   *mock.Energy
		waterAPI    *mock.Water
		validConfig func() *frontend.ServerConfig
	)

	BeforeEach(func() {
		log = logger.Discard()
		energyAPI = mock.NewEnergy(nil, nil)
		waterAPI = mock.NewWater(nil, nil, nil)
		validConfig = func() *frontend.ServerConfig {
			return &frontend.ServerConfig{
				Logger:   log,
				HTTPPort: 8080,
				Energy:   energyAPI,
				Water:    waterAPI,
			}
		}
	})

	Describe("NewServer", func() {
		Context("with valid configuration", func() {
			It("should create a server", func() {
				server, err := frontend.NewServer(validConfig())
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
				Expect(server.Handler()).NotTo(BeNil())
			})

			It("should create server with different HTTP ports", func() {
				for _, port := range []int{8080, 8081, 3000} {
					cfg := validConfig()
					cfg.HTTPPort = port

					server, err := frontend.NewServer(cfg)
					Expect(err).NotTo(HaveOccurred())
					Expect(server).NotTo(BeNil())
				}
			})

			It("should accept explicit proxy upstreams", func() {
				cfg := validConfig()
				cfg.EnergyProxy = "http://energy:8081"
				cfg.WaterProxy = "http://water:8082"

				server, err := frontend.NewServer(cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
			})
		})

		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				server, err := frontend.NewServer(nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(server).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				cfg := validConfig()
				cfg.Logger = nil

				server, err := frontend.NewServer(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(server).To(BeNil())
			})

			It("should return error when HTTP port is not positive", func() {
				for _, port := range []int{0, -1} {
					cfg := validConfig()
					cfg.HTTPPort = port

					server, err := frontend.NewServer(cfg)
					Expect(err).To(HaveOccurred())
					Expect(err.Error()).To(ContainSubstring("HTTP port"))
					Expect(server).To(BeNil())
				}
			})

			It("should return error when a backend client is missing", func() {
				cfg := validConfig()
				cfg.Energy = nil
				_, err := frontend.NewServer(cfg)
				Expect(err).To(MatchError(ContainSubstring("energy client")))

				cfg = validConfig()
				cfg.Water = nil
				_, err = frontend.NewServer(cfg)
				Expect(err).To(MatchError(ContainSubstring("water client")))
			})

			It("should return error when a proxy upstream is not absolute", func() {
				cfg := validConfig()
				cfg.WaterProxy = "water-service"

				server, err := frontend.NewServer(cfg)
				Expect(err).To(MatchError(ContainSubstring("/water-service")))
				Expect(server).To(BeNil())
			})
		})
	})

	Describe("RefreshMounted", func() {
		It("returns zero when no view is mounted", func() {
			server, err := frontend.NewServer(validConfig())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(server.Close)

			Expect(server.RefreshMounted(context.Background(), "dashboard", "alerts")).To(BeZero())
		})
	})

	Describe("Shutdown", func() {
		It("completes without a running listener", func() {
			cfg := validConfig()
			cfg.LiveGrace = 10 * time.Millisecond

			server, err := frontend.NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Shutdown()).To(Succeed())
		})
	})
})
