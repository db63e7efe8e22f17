package frontend_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/xuri/excelize/v2"

	"irriflow.dev/dashboard/internal/export"
	"irriflow.dev/dashboard/internal/frontend"
	"irriflow.dev/dashboard/internal/views/mock"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/logger"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/rest"
	"irriflow.dev/dashboard/pkg/water"
)

var mountPattern = regexp.MustCompile(`data-mount="([^"]+)"`)

// browser keeps the session cookie and does not follow redirects.
type browser struct {
	base   string
	jar    http.CookieJar
	client *http.Client
}

func newBrowser(base string) *browser {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &browser{
		base: base,
		jar:  jar,
		client: &http.Client{
			Jar:     jar,
			Timeout: 5 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) read(resp *http.Response, err error) (*http.Response, string) {
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	return b.read(b.client.Get(b.base + path))
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	return b.read(b.client.PostForm(b.base+path, form))
}

// follow loads the page a 303 points to.
func (b *browser) follow(resp *http.Response) (*http.Response, string) {
	Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
	return b.get(resp.Header.Get("Location"))
}

func mountOf(body string) string {
	m := mountPattern.FindStringSubmatch(body)
	Expect(m).To(HaveLen(2), "page has no mounted view")
	return m[1]
}

var _ = Describe("Handlers", func() {
	var (
		energyAPI *mock.Energy
		waterAPI  *mock.Water
		cfg       *frontend.ServerConfig
		server    *frontend.Server
		ts        *httptest.Server
		b         *browser
		now       time.Time
	)

	BeforeEach(func() {
		commissioned, err := rest.ParseDate("2023-03-15")
		Expect(err).NotTo(HaveOccurred())
		now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		value := 320.0

		energyAPI = mock.NewEnergy(
			[]energy.Pump{
				{ID: 1, Reference: "P-001", PowerWatts: 1500, Status: energy.StatusActive, CommissionedOn: commissioned},
				{ID: 2, Reference: "P-002", PowerWatts: 750, Status: energy.StatusMaintenance},
			},
			[]energy.ConsumptionRecord{
				{ID: 10, PumpID: 1, EnergyKWh: 100, DurationHours: 2, MeasuredAt: rest.NewTimestamp(now)},
			},
		)
		waterAPI = mock.NewWater(
			[]water.Reservoir{{ID: 1, Name: "North", CapacityLiters: 10000, VolumeLiters: 7500, Location: "Field A"}},
			[]water.FlowRecord{{ID: 20, PumpID: 1, Rate: 42.5, Unit: water.LitersPerMinute, MeasuredAt: rest.NewTimestamp(now)}},
			[]water.Alert{
				{ID: 30, Type: "SURCONSOMMATION", PumpID: 1, Message: "Consumption above threshold", Value: &value},
				{ID: 31, Type: "SURCONSOMMATION", PumpID: 2, Message: "Back to normal", Resolved: true},
			},
		)
		cfg = &frontend.ServerConfig{
			Logger:    logger.Discard(),
			HTTPPort:  8080,
			Energy:    energyAPI,
			Water:     waterAPI,
			Location:  time.UTC,
			LiveGrace: 50 * time.Millisecond,
			Now:       func() time.Time { return now },
		}
	})

	JustBeforeEach(func() {
		var err error
		server, err = frontend.NewServer(cfg)
		Expect(err).NotTo(HaveOccurred())
		ts = httptest.NewServer(server.Handler())
		b = newBrowser(ts.URL)
		DeferCleanup(func() {
			ts.Close()
			server.Close()
		})
	})

	Describe("health", func() {
		It("reports ok", func() {
			resp, body := b.get("/health")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(body).To(MatchJSON(`{"status":"ok"}`))
		})
	})

	Describe("dashboard", func() {
		It("renders every collection with derived figures", func() {
			resp, body := b.get("/")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("<title>Irrigation overview - IrriFlow</title>"))
			Expect(body).To(ContainSubstring("1 / 2"))
			Expect(body).To(ContainSubstring("75%"))
			Expect(body).To(ContainSubstring("100.0 kWh"))
			Expect(body).To(ContainSubstring("Over-consumption - Pump 1"))
			Expect(body).To(ContainSubstring(`href="/" class="active"`))
		})

		It("still renders when a service is down", func() {
			waterAPI.Fail("ListReservoirs", errors.New("connection refused"))

			resp, body := b.get("/")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("No reservoir registered"))
			Expect(body).To(ContainSubstring("P-001"))
		})
	})

	Describe("mounts", func() {
		It("reuses the mounted view without fetching again", func() {
			_, body := b.get("/energy")
			id := mountOf(body)
			calls := energyAPI.Calls("ListPumps")

			_, body = b.get("/energy?mount=" + id)
			Expect(mountOf(body)).To(Equal(id))
			Expect(energyAPI.Calls("ListPumps")).To(Equal(calls))
		})

		It("mounts a fresh view for a new visit", func() {
			_, body := b.get("/energy")
			first := mountOf(body)

			_, body = b.get("/energy")
			Expect(mountOf(body)).NotTo(Equal(first))
		})

		It("mounts a fresh view for an unknown mount id", func() {
			calls := energyAPI.Calls("ListPumps")
			_, body := b.get("/energy?mount=unknown")
			Expect(mountOf(body)).NotTo(Equal("unknown"))
			Expect(energyAPI.Calls("ListPumps")).To(Equal(calls + 1))
		})
	})

	Describe("pump form", func() {
		It("creates a pump, closes the form and shows the new row", func() {
			_, body := b.get("/energy?form=pump")
			Expect(body).To(ContainSubstring(`role="dialog"`))
			Expect(body).To(ContainSubstring(`<option value="ACTIVE" selected>`))

			resp, _ := b.post("/energy/pumps", url.Values{
				"reference":       {"P-009"},
				"power":           {"900"},
				"status":          {"inactive"},
				"commissioned_on": {"2024-04-01"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(resp.Header.Get("Location")).To(HavePrefix("/energy?mount="))

			_, body = b.follow(resp)
			Expect(body).To(ContainSubstring("P-009"))
			Expect(body).To(ContainSubstring("Pump created successfully"))
			Expect(body).NotTo(ContainSubstring(`role="dialog"`))
			Expect(energyAPI.Calls("CreatePump")).To(Equal(1))

			pumps, err := energyAPI.ListPumps(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(pumps).To(ContainElement(HaveField("Status", energy.StatusInactive)))
		})

		It("keeps the form open and sends nothing when required fields are blank", func() {
			resp, body := b.post("/energy/pumps", url.Values{"reference": {"P-009"}})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(body).To(ContainSubstring(`role="dialog"`))
			Expect(body).To(ContainSubstring("Required"))
			Expect(body).To(ContainSubstring(`value="P-009"`))
			Expect(energyAPI.Calls("CreatePump")).To(BeZero())
		})

		It("keeps what was typed when the service fails", func() {
			energyAPI.Fail("CreatePump", errors.New("boom"))

			resp, body := b.post("/energy/pumps", url.Values{"reference": {"P-009"}, "power": {"900"}})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(body).To(ContainSubstring("Error while saving"))
			Expect(body).To(ContainSubstring(`value="P-009"`))
			Expect(body).To(ContainSubstring(`role="dialog"`))
		})

		It("prefills the edit form and updates the pump", func() {
			_, body := b.get("/energy?form=pump&edit=1")
			Expect(body).To(ContainSubstring("Edit pump"))
			Expect(body).To(ContainSubstring(`value="P-001"`))
			Expect(body).To(ContainSubstring(`action="/energy/pumps/1"`))

			resp, _ := b.post("/energy/pumps/1", url.Values{"reference": {"P-001b"}, "power": {"1600"}, "status": {"ACTIVE"}})
			_, body = b.follow(resp)
			Expect(body).To(ContainSubstring("P-001b"))
			Expect(body).To(ContainSubstring("Pump updated successfully"))
			Expect(energyAPI.Calls("UpdatePump")).To(Equal(1))
		})

		It("answers 404 when editing an unknown pump", func() {
			resp, _ := b.get("/energy?form=pump&edit=99")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("deleting a pump", func() {
		It("asks for confirmation first", func() {
			_, _ = b.get("/energy")
			resp, body := b.get("/energy/pumps/1/delete")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("Are you sure you want to delete pump P-001?"))
			Expect(energyAPI.Calls("DeletePump")).To(BeZero())
		})

		It("issues no call when declined", func() {
			resp, _ := b.post("/energy/pumps/1/delete", url.Values{"confirm": {"no"}})
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(energyAPI.Calls("DeletePump")).To(BeZero())
		})

		It("deletes when confirmed", func() {
			resp, _ := b.post("/energy/pumps/2/delete", url.Values{"confirm": {"yes"}})
			_, body := b.follow(resp)
			Expect(energyAPI.Calls("DeletePump")).To(Equal(1))
			Expect(body).To(ContainSubstring("Pump deleted"))
			Expect(body).NotTo(ContainSubstring("P-002"))
		})
	})

	Describe("consumption", func() {
		It("records a measurement stamped with the current time", func() {
			resp, body := b.post("/energy/consumption", url.Values{"pump_id": {"2"}, "energy": {"12,5"}, "duration": {"1.5"}})
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther), body)

			records, err := energyAPI.ListConsumptionByPump(context.Background(), 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].EnergyKWh).To(Equal(12.5))
			Expect(records[0].MeasuredAt.Time).To(BeTemporally("==", now))
		})
	})

	Describe("pump detail", func() {
		It("shows what both services know", func() {
			resp, body := b.get("/energy/pumps/1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("P-001"))
			Expect(body).To(ContainSubstring("42.5"))
		})

		It("answers 404 for an unknown pump", func() {
			resp, body := b.get("/energy/pumps/99")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(ContainSubstring("Page not found"))
		})

		It("answers 404 for a malformed id", func() {
			resp, _ := b.get("/energy/pumps/abc")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("water", func() {
		It("creates a reservoir", func() {
			resp, _ := b.post("/water/reservoirs", url.Values{
				"name": {"East"}, "capacity": {"5000"}, "volume": {"1000"}, "location": {"Field C"},
			})
			_, body := b.follow(resp)
			Expect(body).To(ContainSubstring("East"))
			Expect(body).To(ContainSubstring("Reservoir created successfully"))
		})

		It("shows the reported fill level of a reservoir", func() {
			resp, body := b.get("/water/reservoirs/1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("North"))
		})

		It("answers 404 for an unknown reservoir", func() {
			resp, _ := b.get("/water/reservoirs/99")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("deletes a reservoir once confirmed", func() {
			resp, _ := b.post("/water/reservoirs/1/delete", url.Values{"confirm": {"yes"}})
			_, body := b.follow(resp)
			Expect(waterAPI.Calls("DeleteReservoir")).To(Equal(1))
			Expect(body).To(ContainSubstring("Reservoir deleted"))
		})
	})

	Describe("starting a pump", func() {
		It("shows the refusal of the water service on the page it came from", func() {
			waterAPI.Start = func(int64) water.StartPumpResult {
				return water.StartPumpResult{Success: false, Message: "Reservoir level too low"}
			}

			resp, _ := b.post("/water/pumps/1/start?back=/energy/pumps/1", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(resp.Header.Get("Location")).To(Equal("/energy/pumps/1"))

			_, body := b.follow(resp)
			Expect(body).To(ContainSubstring("Reservoir level too low"))
		})

		DescribeTable("does not redirect off-site",
			func(target string) {
				resp, _ := b.post("/water/pumps/1/start?back="+url.QueryEscape(target), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
				Expect(resp.Header.Get("Location")).To(Equal("/water"))
			},
			Entry("protocol-relative", "//example.com"),
			Entry("backslash host", `/\evil.example/x`),
			Entry("absolute URL", "https://evil.example/energy"),
			Entry("scheme without slashes", "javascript:alert(1)"),
			Entry("unknown page", "/settings"),
			Entry("non-numeric detail", "/energy/pumps/abc"),
		)

		It("returns to a known view", func() {
			resp, _ := b.post("/water/pumps/1/start?back="+url.QueryEscape("/alerts"), nil)
			Expect(resp.Header.Get("Location")).To(Equal("/alerts"))
		})

		It("reports an unreachable service", func() {
			waterAPI.Fail("StartPump", errors.New("connection refused"))

			resp, _ := b.post("/water/pumps/1/start", nil)
			_, body := b.follow(resp)
			Expect(body).To(ContainSubstring("Could not reach the energy service"))
		})
	})

	Describe("alerts", func() {
		It("filters by state and counts every alert", func() {
			_, body := b.get("/alerts?filter=pending")
			Expect(body).To(ContainSubstring(`/alerts/30/resolve`))
			Expect(body).NotTo(ContainSubstring(`id="alert-31"`))
			Expect(body).To(ContainSubstring("(2)"))

			_, body = b.get("/alerts?filter=resolved")
			Expect(body).To(ContainSubstring(`id="alert-31"`))
			Expect(body).NotTo(ContainSubstring(`id="alert-30"`))
		})

		It("keeps the filter across the mount", func() {
			_, body := b.get("/alerts?filter=resolved")
			resp, _ := b.post("/alerts/30/resolve", nil)
			Expect(resp.Header.Get("Location")).To(Equal("/alerts?mount=" + mountOf(body)))

			_, body = b.follow(resp)
			Expect(body).To(ContainSubstring("Alert marked as handled"))
			Expect(body).To(ContainSubstring(`id="alert-30"`))
			Expect(waterAPI.Calls("ResolveAlert")).To(Equal(1))
		})

		It("refreshes mounted alert views on demand", func() {
			_, body := b.get("/alerts")
			id := mountOf(body)
			waterAPI.AddAlert(water.Alert{ID: 40, PumpID: 2, Message: "Pushed from the feed"})

			Expect(server.RefreshMounted(context.Background(), "alerts", "dashboard")).To(Equal(1))

			_, body = b.get("/alerts?mount=" + id)
			Expect(body).To(ContainSubstring("Pushed from the feed"))
		})
	})

	Describe("export", func() {
		It("downloads the energy workbook", func() {
			resp, body := b.get("/energy/export.xlsx")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(export.ContentType))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("irriflow-energy-20240501-090000.xlsx"))

			book, err := excelize.OpenReader(bytes.NewReader([]byte(body)))
			Expect(err).NotTo(HaveOccurred())
			defer book.Close()
			ref, err := book.GetCellValue(export.SheetPumps, "B2")
			Expect(err).NotTo(HaveOccurred())
			Expect(ref).To(Equal("P-001"))
		})

		It("downloads the water workbook", func() {
			resp, _ := b.get("/water/export.xlsx")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(export.ContentType))
		})

		It("downloads the alerts report for the chosen filter", func() {
			_, page := b.get("/alerts?filter=pending")
			Expect(page).To(ContainSubstring(`href="/alerts/report.pdf?filter=pending"`))

			resp, body := b.get("/alerts/report.pdf?filter=pending")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(export.PDFContentType))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("irriflow-alerts-20240501-090000.pdf"))
			Expect(body).To(HavePrefix("%PDF-"))
		})

		It("answers 502 when the backend is unreachable", func() {
			waterAPI.Fail("ListAlerts", errors.New("connection refused"))
			resp, _ := b.get("/alerts/report.pdf")
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("markup from the services", func() {
		BeforeEach(func() {
			cfg.Energy = mock.NewEnergy(
				[]energy.Pump{{ID: 1, Reference: "<script>alert(1)</script>", Status: energy.PumpStatus(`"><b>on</b>`)}},
				nil,
			)
			cfg.Water = mock.NewWater(
				[]water.Reservoir{{ID: 1, Name: "<img src=x>", CapacityLiters: 100}},
				[]water.FlowRecord{{ID: 20, PumpID: 1, Rate: 1, Unit: water.FlowUnit("<u>L</u>"), MeasuredAt: rest.NewTimestamp(now)}},
				nil,
			)
			cfg.Metrics = metrics.NewFrontendMetrics(prometheus.NewRegistry(), "test")
		})

		It("is escaped on the energy page", func() {
			resp, body := b.get("/energy")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("&lt;script&gt;alert(1)&lt;/script&gt;"))
			Expect(body).To(ContainSubstring("&#34;&gt;&lt;b&gt;on&lt;/b&gt;"))
			Expect(body).NotTo(ContainSubstring("<script>alert"))
			Expect(body).NotTo(ContainSubstring("<b>on"))
		})

		It("is escaped on the water page", func() {
			_, body := b.get("/water")
			Expect(body).To(ContainSubstring("&lt;img src=x&gt;"))
			Expect(body).To(ContainSubstring("&lt;u&gt;L&lt;/u&gt;"))
			Expect(body).NotTo(ContainSubstring("<img"))
			Expect(body).NotTo(ContainSubstring("<u>"))
		})

		It("times every page render", func() {
			b.get("/water")
			Expect(testutil.CollectAndCount(cfg.Metrics.TemplateRenderTime)).To(BeNumerically(">=", 1))
			Expect(testutil.ToFloat64(cfg.Metrics.TemplateRenderErrors.WithLabelValues("water"))).To(BeZero())
		})
	})

	Describe("not found", func() {
		It("serves the 404 page with the navigation", func() {
			resp, body := b.get("/irrigation/schedule")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(ContainSubstring("Page not found"))
			Expect(body).To(ContainSubstring(`href="/water"`))
		})
	})

	Describe("backend proxy", func() {
		var upstream *httptest.Server

		BeforeEach(func() {
			upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, r.URL.Path)
			}))
			DeferCleanup(upstream.Close)
			cfg.EnergyProxy = upstream.URL
		})

		It("forwards service paths unchanged", func() {
			resp, body := b.get("/energy-service/api/pompes")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(Equal("/energy-service/api/pompes"))
		})

		It("does not mount an unconfigured service", func() {
			resp, _ := b.get("/water-service/api/reservoirs")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		Context("with allowed origins", func() {
			BeforeEach(func() {
				cfg.ProxyCORSOrigins = []string{"https://ops.example"}
			})

			It("answers cross-origin calls from them", func() {
				req, err := http.NewRequest(http.MethodGet, ts.URL+"/energy-service/api/pompes", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Origin", "https://ops.example")
				resp, _ := b.read(b.client.Do(req))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("https://ops.example"))
			})

			It("does not allow other origins", func() {
				req, err := http.NewRequest(http.MethodGet, ts.URL+"/energy-service/api/pompes", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Origin", "https://elsewhere.example")
				resp, _ := b.read(b.client.Do(req))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(BeEmpty())
			})
		})

		Context("when forwarding is disabled", func() {
			BeforeEach(func() {
				cfg.NoProxy = true
			})

			It("serves the not found page", func() {
				resp, _ := b.get("/energy-service/api/pompes")
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("live view", func() {
		type message struct {
			Type string `json:"type"`
			HTML string `json:"html"`
		}

		dial := func(id string) *websocket.Conn {
			u, err := url.Parse(ts.URL)
			Expect(err).NotTo(HaveOccurred())
			header := http.Header{}
			for _, c := range b.jar.Cookies(u) {
				header.Add("Cookie", c.String())
			}
			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/live/"+id, header)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(conn.Close)
			return conn
		}

		It("pushes the refreshed view and the status after a mutation", func() {
			_, body := b.get("/energy")
			conn := dial(mountOf(body))

			var (
				mu       sync.Mutex
				received []message
			)
			go func() {
				for {
					var m message
					if err := conn.ReadJSON(&m); err != nil {
						return
					}
					mu.Lock()
					received = append(received, m)
					mu.Unlock()
				}
			}()
			messages := func() []message {
				mu.Lock()
				defer mu.Unlock()
				return append([]message(nil), received...)
			}

			resp, _ := b.post("/energy/pumps", url.Values{"reference": {"P-LIVE"}, "power": {"500"}})
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))

			Eventually(messages).Should(ContainElement(SatisfyAll(
				HaveField("Type", "view"),
				HaveField("HTML", ContainSubstring("P-LIVE")),
			)))
			Eventually(messages).Should(ContainElement(SatisfyAll(
				HaveField("Type", "status"),
				HaveField("HTML", ContainSubstring("Pump created successfully")),
			)))
		})

		It("rejects unknown mounts", func() {
			_, _ = b.get("/energy")
			u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live/unknown"
			_, resp, err := websocket.DefaultDialer.Dial(u, nil)
			Expect(err).To(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
