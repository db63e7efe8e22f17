package water_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"irriflow.dev/dashboard/pkg/rest"
	"irriflow.dev/dashboard/pkg/water"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

var _ = Describe("Client", func() {
	var (
		mu       sync.Mutex
		requests []recorded
		reply    string
		status   int
		client   *water.Client
		ctx      context.Context
	)

	last := func() recorded {
		mu.Lock()
		defer mu.Unlock()
		Expect(requests).NotTo(BeEmpty())
		return requests[len(requests)-1]
	}

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		reply = ""
		status = http.StatusOK

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recorded{Method: r.Method, Path: r.URL.Path}
			if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
				_ = json.Unmarshal(raw, &rec.Body)
			}
			mu.Lock()
			requests = append(requests, rec)
			mu.Unlock()
			w.WriteHeader(status)
			_, _ = io.WriteString(w, reply)
		}))
		DeferCleanup(srv.Close)

		var err error
		client, err = water.NewClient(srv.URL + water.DefaultBasePath)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("reservoirs", func() {
		It("lists reservoirs", func() {
			reply = `[{"id":1,"nom":"Nord","capaciteTotale":10000,"volumeActuel":7500,"localisation":"Parcelle A"}]`
			reservoirs, err := client.ListReservoirs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last()).To(Equal(recorded{Method: http.MethodGet, Path: "/water-service/api/reservoirs"}))
			Expect(reservoirs).To(Equal([]water.Reservoir{{
				ID: 1, Name: "Nord", CapacityLiters: 10000, VolumeLiters: 7500, Location: "Parcelle A",
			}}))
		})

		It("creates, updates and deletes", func() {
			reply = `{"id":2,"nom":"Sud","capaciteTotale":5000,"volumeActuel":0,"localisation":""}`
			in := water.ReservoirInput{Name: "Sud", CapacityLiters: 5000}

			_, err := client.CreateReservoir(ctx, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(last().Method).To(Equal(http.MethodPost))
			Expect(last().Body).To(Equal(map[string]any{
				"nom": "Sud", "capaciteTotale": 5000.0, "volumeActuel": 0.0, "localisation": "",
			}))

			_, err = client.UpdateReservoir(ctx, 2, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(last().Method).To(Equal(http.MethodPut))
			Expect(last().Path).To(Equal("/water-service/api/reservoirs/2"))

			reply = ""
			Expect(client.DeleteReservoir(ctx, 2)).To(Succeed())
			Expect(last()).To(Equal(recorded{Method: http.MethodDelete, Path: "/water-service/api/reservoirs/2"}))
		})

		It("reads one reservoir and its fill level", func() {
			reply = `{"id":4,"nom":"Est","capaciteTotale":200,"volumeActuel":50}`
			r, err := client.GetReservoir(ctx, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Name).To(Equal("Est"))
			Expect(last().Path).To(Equal("/water-service/api/reservoirs/4"))

			reply = `25`
			level, err := client.FillLevel(ctx, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(level).To(Equal(25.0))
			Expect(last().Path).To(Equal("/water-service/api/reservoirs/4/niveau"))
		})
	})

	Describe("flows", func() {
		It("lists, filters and averages", func() {
			reply = `[{"id":1,"pompeId":3,"debit":120,"unite":"m³/h","dateMesure":"2024-05-01T06:00:00"}]`
			flows, err := client.ListFlows(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last().Path).To(Equal("/water-service/api/debits"))
			Expect(flows[0].Unit).To(Equal(water.CubicMetersPerHour))
			Expect(flows[0].Unit.Valid()).To(BeTrue())

			_, err = client.ListFlowsByPump(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(last().Path).To(Equal("/water-service/api/debits/pompe/3"))

			reply = `87.5`
			avg, err := client.AverageFlow(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(avg).To(Equal(87.5))
			Expect(last().Path).To(Equal("/water-service/api/debits/pompe/3/moyenne"))
		})

		It("records a flow", func() {
			reply = `{"id":5,"pompeId":3,"debit":40,"unite":"L/min"}`
			_, err := client.CreateFlow(ctx, water.FlowInput{PumpID: 3, Rate: 40, Unit: water.LitersPerMinute})
			Expect(err).NotTo(HaveOccurred())
			Expect(last().Method).To(Equal(http.MethodPost))
			Expect(last().Body).To(HaveKeyWithValue("unite", "L/min"))
			Expect(last().Body).To(HaveKeyWithValue("dateMesure", BeNil()))
		})
	})

	Describe("alerts", func() {
		It("lists all and unresolved alerts", func() {
			reply = `[{"id":1,"type":"SURCONSOMMATION","pompeId":2,"message":"Seuil dépassé","valeur":152.4,"dateAlerte":"2024-05-01T06:00:00","traitee":false},
				{"id":2,"type":"SURCONSOMMATION","pompeId":2,"message":"Seuil dépassé","valeur":null,"traitee":true}]`
			alerts, err := client.ListAlerts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last().Path).To(Equal("/water-service/api/alertes"))
			Expect(alerts).To(HaveLen(2))
			Expect(*alerts[0].Value).To(Equal(152.4))
			Expect(alerts[1].Value).To(BeNil())
			Expect(alerts[1].Resolved).To(BeTrue())

			_, err = client.ListUnresolvedAlerts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last().Path).To(Equal("/water-service/api/alertes/non-traitees"))
		})

		It("resolves an alert with or without a response body", func() {
			reply = `{"id":1,"traitee":true}`
			alert, err := client.ResolveAlert(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(alert.Resolved).To(BeTrue())
			Expect(last()).To(Equal(recorded{Method: http.MethodPut, Path: "/water-service/api/alertes/1/traiter"}))

			reply = ""
			alert, err = client.ResolveAlert(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(alert).To(BeNil())
		})
	})

	Describe("StartPump", func() {
		It("returns the service verdict", func() {
			reply = `{"success":false,"message":"Pompe en maintenance"}`
			result, err := client.StartPump(ctx, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(water.StartPumpResult{Success: false, Message: "Pompe en maintenance"}))
			Expect(last()).To(Equal(recorded{Method: http.MethodPost, Path: "/water-service/api/water/demarrer-pompe/7"}))
		})

		It("surfaces transport-level failures as errors", func() {
			status = http.StatusServiceUnavailable
			_, err := client.StartPump(ctx, 7)
			Expect(rest.StatusCode(err)).To(Equal(http.StatusServiceUnavailable))
		})
	})
})
