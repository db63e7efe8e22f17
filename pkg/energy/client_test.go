package energy_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/rest"
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
		client   *energy.Client
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
		client, err = energy.NewClient(srv.URL + energy.DefaultBasePath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lists pumps", func() {
		reply = `[{"id":1,"reference":"POMPE-001","puissance":1500,"statut":"ACTIVE","dateMiseEnService":"2023-04-02"},
			{"id":2,"reference":"POMPE-002","puissance":750.5,"statut":"MAINTENANCE","dateMiseEnService":null}]`

		pumps, err := client.ListPumps(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(last()).To(Equal(recorded{Method: http.MethodGet, Path: "/energy-service/api/pompes"}))
		Expect(pumps).To(HaveLen(2))
		Expect(pumps[0].Active()).To(BeTrue())
		Expect(pumps[0].CommissionedOn.String()).To(Equal("2023-04-02"))
		Expect(pumps[1].Status).To(Equal(energy.StatusMaintenance))
		Expect(pumps[1].PowerWatts).To(Equal(750.5))
		Expect(pumps[1].CommissionedOn.IsZero()).To(BeTrue())
	})

	It("creates a pump with the backend attribute names", func() {
		reply = `{"id":3,"reference":"POMPE-003","puissance":2200,"statut":"INACTIVE"}`
		day, err := rest.ParseDate("2024-01-10")
		Expect(err).NotTo(HaveOccurred())

		pump, err := client.CreatePump(ctx, energy.PumpInput{
			Reference:      "POMPE-003",
			PowerWatts:     2200,
			Status:         energy.StatusInactive,
			CommissionedOn: day,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(pump.ID).To(Equal(int64(3)))

		req := last()
		Expect(req.Method).To(Equal(http.MethodPost))
		Expect(req.Path).To(Equal("/energy-service/api/pompes"))
		Expect(req.Body).To(Equal(map[string]any{
			"reference":         "POMPE-003",
			"puissance":         2200.0,
			"statut":            "INACTIVE",
			"dateMiseEnService": "2024-01-10",
		}))
	})

	It("replaces a pump by id", func() {
		reply = `{"id":3,"reference":"POMPE-003","puissance":1000,"statut":"ACTIVE"}`
		_, err := client.UpdatePump(ctx, 3, energy.PumpInput{Reference: "POMPE-003", PowerWatts: 1000, Status: energy.StatusActive})
		Expect(err).NotTo(HaveOccurred())
		Expect(last().Method).To(Equal(http.MethodPut))
		Expect(last().Path).To(Equal("/energy-service/api/pompes/3"))
	})

	It("deletes a pump", func() {
		status = http.StatusNoContent
		Expect(client.DeletePump(ctx, 8)).To(Succeed())
		Expect(last()).To(Equal(recorded{Method: http.MethodDelete, Path: "/energy-service/api/pompes/8"}))
	})

	It("maps a missing pump to ErrNotFound", func() {
		status = http.StatusNotFound
		_, err := client.GetPump(ctx, 42)
		Expect(errors.Is(err, rest.ErrNotFound)).To(BeTrue())
		Expect(last().Path).To(Equal("/energy-service/api/pompes/42"))
	})

	It("checks availability", func() {
		reply = `true`
		ok, err := client.CheckAvailability(ctx, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(last().Path).To(Equal("/energy-service/api/energy/disponibilite/5"))
	})

	It("lists and filters consumption", func() {
		reply = `[{"id":1,"pompeId":5,"energieUtilisee":12.5,"duree":2,"dateMesure":"2024-05-01T06:00:00"}]`

		all, err := client.ListConsumption(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(last().Path).To(Equal("/energy-service/api/consommations"))
		Expect(all[0].EnergyKWh).To(Equal(12.5))
		Expect(all[0].MeasuredAt.Equal(time.Date(2024, 5, 1, 6, 0, 0, 0, rest.LocalZone()))).To(BeTrue())

		_, err = client.ListConsumptionByPump(ctx, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(last().Path).To(Equal("/energy-service/api/consommations/pompe/5"))
	})

	It("records a consumption measurement", func() {
		reply = `{"id":11,"pompeId":5,"energieUtilisee":3,"duree":0.5,"dateMesure":"2024-05-01T06:00:00Z"}`
		at := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

		rec, err := client.CreateConsumption(ctx, energy.ConsumptionInput{
			PumpID: 5, EnergyKWh: 3, DurationHours: 0.5, MeasuredAt: rest.NewTimestamp(at),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.ID).To(Equal(int64(11)))
		Expect(last().Body).To(Equal(map[string]any{
			"pompeId":         5.0,
			"energieUtilisee": 3.0,
			"duree":           0.5,
			"dateMesure":      "2024-05-01T06:00:00.000Z",
		}))
	})

	It("reads the service-side total", func() {
		reply = `180.25`
		total, err := client.TotalConsumption(ctx, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(180.25))
		Expect(last().Path).To(Equal("/energy-service/api/consommations/pompe/5/total"))
	})

	It("returns the status error of a failing list", func() {
		status = http.StatusBadGateway
		pumps, err := client.ListPumps(ctx)
		Expect(pumps).To(BeNil())
		Expect(rest.StatusCode(err)).To(Equal(http.StatusBadGateway))
	})

	DescribeTable("status validity",
		func(s energy.PumpStatus, valid bool) {
			Expect(s.Valid()).To(Equal(valid))
		},
		Entry("active", energy.StatusActive, true),
		Entry("inactive", energy.StatusInactive, true),
		Entry("maintenance", energy.StatusMaintenance, true),
		Entry("unknown", energy.PumpStatus("BROKEN"), false),
		Entry("empty", energy.PumpStatus(""), false),
	)
})
