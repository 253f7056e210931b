//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/usecase"
	"github.com/eliteGoblin/focusd/focusflow/test/fixtures"
)

var _ = Describe("Timer daemon", func() {
	var (
		tmpDir string
		clock  *fixtures.Clock
		stack  *fixtures.Stack
		ctx    context.Context
	)

	status := func() domain.StatusReport {
		report, err := stack.Client.Status(ctx)
		Expect(err).NotTo(HaveOccurred())
		return report
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "focusflow-integration-*")
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		clock = fixtures.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
		stack, err = fixtures.StartStack(tmpDir, clock, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if stack != nil {
			Expect(stack.Stop()).To(Succeed())
		}
		os.RemoveAll(tmpDir)
	})

	Describe("first run", func() {
		It("should initialize every record with defaults", func() {
			Eventually(func() bool {
				_, found, err := stack.Store.Get(ctx, domain.KeySettings)
				return err == nil && found
			}).WithTimeout(3 * time.Second).Should(BeTrue())

			settings, err := stack.RemoteRecords().Settings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(settings.FocusTime).To(Equal(25))
			Expect(settings.ShortBreak).To(Equal(5))
			Expect(settings.LongBreak).To(Equal(15))
			Expect(settings.Whitelist).To(BeEmpty())
		})
	})

	Describe("a focus session", func() {
		Context("when the clock passes endTime", func() {
			It("should complete exactly once on the next wake-up", func() {
				state, err := stack.Client.Start(ctx, domain.StatusFocus)
				Expect(err).NotTo(HaveOccurred())
				Expect(state.Status).To(Equal(domain.StatusFocus))
				Expect(status().Badge).To(Equal("25m"))

				clock.Advance(26 * time.Minute)

				Eventually(func() domain.TimerStatus {
					return status().State.Status
				}).WithTimeout(5 * time.Second).Should(Equal(domain.StatusIdle))

				report := status()
				Expect(report.SessionsCompleted).To(Equal(1))
				Expect(report.Badge).To(BeEmpty())
				Expect(stack.Audio.Signals()).To(Equal(1))
				Expect(stack.Notifier.Titles()).To(Equal([]string{usecase.FocusDoneTitle}))
				Expect(stack.Scheduler.IsArmed(usecase.AlarmName)).To(BeFalse())

				// Later wake-ups must not count it again.
				Consistently(func() int {
					return status().SessionsCompleted
				}).WithTimeout(1500 * time.Millisecond).Should(Equal(1))
			})
		})

		Context("when the durations were changed", func() {
			It("should use the stored focus time", func() {
				editor := usecase.NewSettingsEditor(stack.RemoteRecords(), zap.NewNop())
				_, err := editor.SaveDurations(ctx, 45, 5, 15)
				Expect(err).NotTo(HaveOccurred())

				state, err := stack.Client.Start(ctx, domain.StatusFocus)
				Expect(err).NotTo(HaveOccurred())
				Expect(state.Duration).To(Equal((45 * time.Minute).Milliseconds()))
			})
		})
	})

	Describe("a break", func() {
		It("should not be counted", func() {
			_, err := stack.Client.Start(ctx, domain.StatusShortBreak)
			Expect(err).NotTo(HaveOccurred())

			clock.Advance(6 * time.Minute)

			Eventually(func() domain.TimerStatus {
				return status().State.Status
			}).WithTimeout(5 * time.Second).Should(Equal(domain.StatusIdle))
			Expect(status().SessionsCompleted).To(Equal(0))
			Expect(stack.Notifier.Titles()).To(Equal([]string{usecase.BreakDoneTitle}))
		})
	})

	Describe("stop", func() {
		It("should return to idle and disarm the alarm", func() {
			_, err := stack.Client.Start(ctx, domain.StatusLongBreak)
			Expect(err).NotTo(HaveOccurred())
			Expect(stack.Scheduler.IsArmed(usecase.AlarmName)).To(BeTrue())

			state, err := stack.Client.Stop(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(domain.IdleState()))
			Expect(stack.Scheduler.IsArmed(usecase.AlarmName)).To(BeFalse())
			Expect(status().State).To(Equal(domain.IdleState()))
		})
	})

	Describe("restart", func() {
		restartAfter := func(downtime time.Duration) {
			Expect(stack.Stop()).To(Succeed())
			clock.Advance(downtime)
			var err error
			stack, err = fixtures.StartStack(tmpDir, clock, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
		}

		Context("when the session ended while the daemon was down", func() {
			It("should complete it on load", func() {
				_, err := stack.Client.Start(ctx, domain.StatusFocus)
				Expect(err).NotTo(HaveOccurred())

				restartAfter(30 * time.Minute)

				Eventually(func() domain.TimerStatus {
					return status().State.Status
				}).WithTimeout(3 * time.Second).Should(Equal(domain.StatusIdle))
				Expect(status().SessionsCompleted).To(Equal(1))
			})
		})

		Context("when the session is still running", func() {
			It("should re-arm the alarm and keep the session", func() {
				started, err := stack.Client.Start(ctx, domain.StatusFocus)
				Expect(err).NotTo(HaveOccurred())

				restartAfter(5 * time.Minute)

				report := status()
				Expect(report.State.Status).To(Equal(domain.StatusFocus))
				Expect(report.State.EndTime.Equal(*started.EndTime)).To(BeTrue())
				Expect(report.Badge).To(Equal("20m"))
				Expect(stack.Scheduler.IsArmed(usecase.AlarmName)).To(BeTrue())
			})
		})
	})

	Describe("read-only records", func() {
		It("should reject client writes to the timer record", func() {
			err := stack.Client.Put(ctx, map[string][]byte{domain.KeyTimerState: []byte(`{"status":"idle"}`)})
			Expect(err).To(MatchError(domain.ErrReadOnlyKey))
		})
	})
})
