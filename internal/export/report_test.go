package export_test

import (
	"bytes"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"irriflow.dev/dashboard/internal/export"
	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/internal/views"
	"irriflow.dev/dashboard/pkg/rest"
	"irriflow.dev/dashboard/pkg/water"
)

var _ = Describe("AlertsReport", func() {
	var (
		exp   *export.Exporter
		state views.AlertsState
		now   time.Time
	)

	BeforeEach(func() {
		exp = export.New(time.UTC)
		now = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
		state = views.AlertsState{Alerts: poll.Result[water.Alert]{Items: []water.Alert{
			{ID: 30, Type: "SURCONSOMMATION", PumpID: 1, Message: "Consommation élevée", RaisedAt: rest.NewTimestamp(now)},
			{ID: 31, Type: "SURCONSOMMATION", PumpID: 2, Message: strings.Repeat("long message ", 10), Resolved: true},
		}}}
	})

	It("writes a PDF document", func() {
		var buf bytes.Buffer
		Expect(exp.AlertsReport(&buf, state, views.FilterAll, now)).To(Succeed())
		Expect(buf.String()).To(HavePrefix("%PDF-"))
		Expect(strings.TrimSpace(buf.String())).To(HaveSuffix("%%EOF"))
	})

	It("writes a document for an empty selection", func() {
		var buf bytes.Buffer
		Expect(exp.AlertsReport(&buf, views.AlertsState{}, views.FilterPending, now)).To(Succeed())
		Expect(buf.String()).To(HavePrefix("%PDF-"))
	})
})
