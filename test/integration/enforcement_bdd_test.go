//go:build integration

package integration

import (
	"bytes"
	"context"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/infra"
	"github.com/eliteGoblin/focusd/focusflow/internal/usecase"
	"github.com/eliteGoblin/focusd/focusflow/test/fixtures"
)

// syncBuffer is a bytes.Buffer safe for the reactor goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ = Describe("Enforcement reactor", func() {
	var (
		tmpDir  string
		stack   *fixtures.Stack
		ctx     context.Context
		cancel  context.CancelFunc
		out     *syncBuffer
		overlay *infra.TerminalOverlay
		editor  *usecase.SettingsEditor
		done    chan error
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "focusflow-integration-*")
		Expect(err).NotTo(HaveOccurred())

		clock := fixtures.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
		stack, err = fixtures.StartStack(tmpDir, clock, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		page := infra.NewStaticPage("Mail.News.Example")
		out = &syncBuffer{}
		overlay = infra.NewTerminalOverlayWithWriter(out, page.Address(), false)
		reactor := usecase.NewEnforcementReactor(stack.RemoteRecords(), page, overlay, zap.NewNop())
		editor = usecase.NewSettingsEditor(stack.RemoteRecords(), zap.NewNop())

		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- reactor.Watch(ctx, 100*time.Millisecond) }()
	})

	AfterEach(func() {
		cancel()
		Eventually(done).WithTimeout(3 * time.Second).Should(Receive())
		Expect(stack.Stop()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("should block a site that is not whitelisted only while focusing", func() {
		Consistently(overlay.Visible).WithTimeout(300 * time.Millisecond).Should(BeFalse())

		_, err := stack.Client.Start(ctx, domain.StatusFocus)
		Expect(err).NotTo(HaveOccurred())
		Eventually(overlay.Visible).WithTimeout(3 * time.Second).Should(BeTrue())
		Expect(out.String()).To(ContainSubstring(infra.OverlayPrimary))

		_, err = stack.Client.Stop(ctx)
		Expect(err).NotTo(HaveOccurred())
		Eventually(overlay.Visible).WithTimeout(3 * time.Second).Should(BeFalse())
	})

	It("should lift the overlay when a parent domain is whitelisted", func() {
		_, err := stack.Client.Start(ctx, domain.StatusFocus)
		Expect(err).NotTo(HaveOccurred())
		Eventually(overlay.Visible).WithTimeout(3 * time.Second).Should(BeTrue())

		normalized, added, err := editor.AddDomain(ctx, "https://News.Example/today")
		Expect(err).NotTo(HaveOccurred())
		Expect(added).To(BeTrue())
		Expect(normalized).To(Equal("news.example"))
		Eventually(overlay.Visible).WithTimeout(3 * time.Second).Should(BeFalse())

		removed, err := editor.RemoveDomain(ctx, "news.example")
		Expect(err).NotTo(HaveOccurred())
		Expect(removed).To(BeTrue())
		Eventually(overlay.Visible).WithTimeout(3 * time.Second).Should(BeTrue())
	})

	It("should never block during a break", func() {
		_, err := stack.Client.Start(ctx, domain.StatusShortBreak)
		Expect(err).NotTo(HaveOccurred())

		Consistently(overlay.Visible).WithTimeout(500 * time.Millisecond).Should(BeFalse())
	})
})
