package workflow_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"irriflow.dev/dashboard/internal/workflow"
)

var _ = Describe("StatusSlot", func() {
	var slot *workflow.StatusSlot

	BeforeEach(func() {
		slot = workflow.NewStatusSlot(200 * time.Millisecond)
		DeferCleanup(slot.Close)
	})

	It("defaults the lifetime", func() {
		Expect(workflow.NewStatusSlot(0).TTL()).To(Equal(workflow.DefaultStatusTTL))
		Expect(workflow.DefaultStatusTTL).To(Equal(3 * time.Second))
	})

	It("starts empty", func() {
		_, ok := slot.Current()
		Expect(ok).To(BeFalse())
	})

	It("clears a message after its lifetime", func() {
		slot.Success("Pump created")
		status, ok := slot.Current()
		Expect(ok).To(BeTrue())
		Expect(status.Text).To(Equal("Pump created"))
		Expect(status.Level).To(Equal(workflow.LevelSuccess))

		Eventually(func() bool {
			_, ok := slot.Current()
			return ok
		}).Should(BeFalse())
	})

	It("replaces the current message and restarts the lifetime", func() {
		slot.Success("first")
		time.Sleep(120 * time.Millisecond)
		slot.Error("second")

		// The first message's expiry would have fired by now.
		time.Sleep(120 * time.Millisecond)
		status, ok := slot.Current()
		Expect(ok).To(BeTrue())
		Expect(status.Text).To(Equal("second"))
		Expect(status.Level).To(Equal(workflow.LevelError))
	})

	It("clears on demand", func() {
		slot.Error("oops")
		slot.Clear()
		_, ok := slot.Current()
		Expect(ok).To(BeFalse())
	})

	It("notifies subscribers of every change", func() {
		changes, cancel := slot.Subscribe()
		defer cancel()

		slot.Success("saved")
		Eventually(changes).Should(Receive())
		Eventually(changes).Should(Receive(), "expiry is a change too")
	})

	It("closes subscriptions on cancel and on Close", func() {
		changes, cancel := slot.Subscribe()
		cancel()
		cancel()
		Eventually(changes).Should(BeClosed())

		other, _ := slot.Subscribe()
		slot.Close()
		Eventually(other).Should(BeClosed())

		late, _ := slot.Subscribe()
		Eventually(late).Should(BeClosed())

		slot.Success("ignored")
		_, ok := slot.Current()
		Expect(ok).To(BeFalse())
	})
})
