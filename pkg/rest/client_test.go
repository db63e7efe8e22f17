package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/rest"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"nom"`
}

var _ = Describe("Client", func() {
	var (
		srv     *httptest.Server
		handler http.HandlerFunc
		client  *rest.Client
		m       *metrics.ClientMetrics
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, r *http.Request) {}
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		DeferCleanup(srv.Close)

		m = metrics.NewClientMetrics(prometheus.NewRegistry(), "test")
		var err error
		client, err = rest.NewClient("water", srv.URL+"/water-service/api/", rest.WithMetrics(m))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewClient", func() {
		It("trims the trailing slash", func() {
			Expect(client.BaseURL()).To(Equal(srv.URL + "/water-service/api"))
			Expect(client.Service()).To(Equal("water"))
		})

		DescribeTable("rejects unusable base URLs",
			func(base string) {
				_, err := rest.NewClient("energy", base)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(HavePrefix("energy:"))
			},
			Entry("empty", ""),
			Entry("no scheme", "localhost:8080/energy-service/api"),
			Entry("unsupported scheme", "ftp://host/api"),
		)
	})

	Describe("Get", func() {
		It("decodes the JSON body", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodGet))
				Expect(r.URL.Path).To(Equal("/water-service/api/reservoirs"))
				Expect(r.Header.Get("Accept")).To(Equal("application/json"))
				_, _ = io.WriteString(w, `[{"id":1,"nom":"Nord"},{"id":2,"nom":"Sud"}]`)
			}

			var out []item
			Expect(client.Get(context.Background(), "ListReservoirs", "/reservoirs", &out)).To(Succeed())
			Expect(out).To(Equal([]item{{ID: 1, Name: "Nord"}, {ID: 2, Name: "Sud"}}))
			Expect(testutil.ToFloat64(m.Calls.WithLabelValues("water", "ListReservoirs", "success"))).To(Equal(1.0))
		})

		It("accepts an empty body", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}
			var out []item
			Expect(client.Get(context.Background(), "ListReservoirs", "/reservoirs", &out)).To(Succeed())
			Expect(out).To(BeEmpty())
		})

		It("reports malformed JSON", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"id":`)
			}
			var out item
			err := client.Get(context.Background(), "GetReservoir", "/reservoirs/1", &out)
			Expect(err).To(MatchError(ContainSubstring("decode GetReservoir response")))
		})
	})

	Describe("Post", func() {
		It("sends the body as JSON", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				var in item
				Expect(json.NewDecoder(r.Body).Decode(&in)).To(Succeed())
				Expect(in.Name).To(Equal("Est"))
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, `{"id":9,"nom":"Est"}`)
			}

			var out item
			Expect(client.Post(context.Background(), "CreateReservoir", "/reservoirs", item{Name: "Est"}, &out)).To(Succeed())
			Expect(out.ID).To(Equal(int64(9)))
		})
	})

	Describe("error statuses", func() {
		It("maps 404 to ErrNotFound", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "missing", http.StatusNotFound)
			}

			err := client.Delete(context.Background(), "DeleteReservoir", "/reservoirs/4")
			Expect(errors.Is(err, rest.ErrNotFound)).To(BeTrue())
			Expect(rest.StatusCode(err)).To(Equal(http.StatusNotFound))
			Expect(testutil.ToFloat64(m.Calls.WithLabelValues("water", "DeleteReservoir", "error"))).To(Equal(1.0))
		})

		It("keeps the status and body of other failures", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}

			err := client.Put(context.Background(), "UpdateReservoir", "/reservoirs/4", item{}, nil)
			var se *rest.StatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(se.Body).To(Equal("boom"))
			Expect(se.Error()).To(Equal("water: PUT /reservoirs/4: http 500"))
			Expect(errors.Is(err, rest.ErrNotFound)).To(BeFalse())
		})

		It("returns 0 for errors without a status", func() {
			Expect(rest.StatusCode(errors.New("plain"))).To(BeZero())
		})
	})

	Describe("transport", func() {
		It("honors context cancellation", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			}
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			var out []item
			err := client.Get(ctx, "ListReservoirs", "/reservoirs", &out)
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})

		It("applies an explicit timeout", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			}
			slow, err := rest.NewClient("water", srv.URL, rest.WithTimeout(50*time.Millisecond))
			Expect(err).NotTo(HaveOccurred())

			Expect(slow.Get(context.Background(), "ListReservoirs", "/reservoirs", nil)).To(HaveOccurred())
		})
	})
})
