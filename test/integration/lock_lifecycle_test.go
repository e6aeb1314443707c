//go:build integration

package integration

import (
	"context"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/api"
	"github.com/eliteGoblin/focusd/focuslock/internal/daemon"
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/infra"
	"github.com/eliteGoblin/focusd/focuslock/internal/metrics"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

var (
	selfLauncher     = domain.LauncherIdentity{Package: "com.focusd.locker", Component: "com.focusd.locker.MainActivity"}
	originalLauncher = domain.LauncherIdentity{
		Package:   "com.google.android.apps.nexuslauncher",
		Component: "com.google.android.apps.nexuslauncher.NexusLauncherActivity",
	}
	fallbackLauncher = domain.LauncherIdentity{Package: "com.android.launcher3", Component: "com.android.launcher3.Launcher"}
)

const listenerComponent = "com.focusd.locker/com.focusd.locker.NotificationBlocker"

// rig is one daemon's worth of wiring over a fake device.
type rig struct {
	store      domain.LockStore
	engine     *usecase.Engine
	gate       *usecase.InputGate
	watchdog   *usecase.Watchdog
	suppressor *usecase.NotificationSuppressor
	policy     *infra.ShellNotificationPolicy
	server     *httptest.Server
	client     *api.Client
}

func newRig(backend, dataDir string, device *fakeDevice) *rig {
	store, err := infra.OpenLockStore(backend, dataDir)
	Expect(err).NotTo(HaveOccurred())

	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	policy := infra.NewShellNotificationPolicy(device, selfLauncher.Package)
	orchestrator := usecase.NewOrchestrator(device, selfLauncher, fallbackLauncher, m, logger)
	suppression := usecase.NewSuppression(infra.NewShellAudio(device), policy, store, orchestrator,
		usecase.SuppressionConfig{Package: selfLauncher.Package, PollInterval: time.Millisecond, PollAttempts: 3},
		logger)
	gate := usecase.NewInputGate(5 * time.Second)
	engine := usecase.NewEngine(store, infra.NewShellLauncherResolver(device), orchestrator, suppression, gate, m,
		usecase.EngineConfig{
			TickInterval:      10 * time.Millisecond,
			IdleInterval:      10 * time.Millisecond,
			ListenerComponent: listenerComponent,
		},
		logger)
	Expect(engine.Recover(context.Background())).To(Succeed())

	watchdog := usecase.NewWatchdog(engine, orchestrator, 0, m, logger)
	suppressor := usecase.NewNotificationSuppressor(engine, policy, m, logger)

	gin.SetMode(gin.TestMode)
	handlers := api.NewHandlers(engine, orchestrator, gate, watchdog, suppressor, logger)
	server := httptest.NewServer(api.NewRouter(handlers, nil, logger))

	return &rig{
		store:      store,
		engine:     engine,
		gate:       gate,
		watchdog:   watchdog,
		suppressor: suppressor,
		policy:     policy,
		server:     server,
		client:     api.NewClientWithHTTP(server.URL, server.Client()),
	}
}

// stop simulates the daemon process going away with the lock persisted.
func (r *rig) stop() {
	r.server.Close()
	r.engine.Close()
	Expect(r.store.Close()).To(Succeed())
}

var _ = Describe("Lock lifecycle", func() {
	for _, backend := range []string{infra.StoreBackendEncrypted, infra.StoreBackendFile} {
		Context("with the "+backend+" store", func() {
			var (
				ctx     context.Context
				dataDir string
				device  *fakeDevice
				r       *rig
			)

			BeforeEach(func() {
				ctx = context.Background()
				dataDir = GinkgoT().TempDir()
				device = newFakeDevice(originalLauncher, selfLauncher, fallbackLauncher)
				r = newRig(backend, dataDir, device)
			})

			AfterEach(func() {
				if r != nil {
					r.stop()
				}
			})

			Describe("locking", func() {
				It("takes over home and silences the device", func() {
					status, err := r.client.Lock(ctx, 10)
					Expect(err).NotTo(HaveOccurred())

					Expect(status.IsLocked).To(BeTrue())
					Expect(status.State).To(Equal(domain.StateLocked))
					Expect(status.SecondsRemaining).To(BeNumerically("~", 600, 1))
					Expect(status.SessionID).NotTo(BeEmpty())

					Expect(device.Home()).To(Equal(selfLauncher))
					for _, stream := range domain.SuppressedStreams {
						Expect(device.Volume(stream)).To(BeZero(), "stream %s", stream)
					}
					Expect(device.DND()).To(Equal("priority"))
					Expect(device.listeners).To(ContainElement(listenerComponent))
					Expect(r.gate.Blocking()).To(BeTrue())

					record, err := r.store.Load()
					Expect(err).NotTo(HaveOccurred())
					Expect(record.HasDeadline()).To(BeTrue())
					Expect(record.OriginalLauncher).To(Equal(&originalLauncher))
					Expect(record.SavedStreamVolumes).To(HaveLen(len(domain.SuppressedStreams)))
				})

				It("refuses when the privileged channel is gone", func() {
					device.SetAvailable(false)

					_, err := r.client.Lock(ctx, 10)

					Expect(err).To(MatchError(domain.ErrChannelUnavailable))
					Expect(r.engine.IsLocked()).To(BeFalse())
				})

				It("refuses when it is already the home app with nothing on record", func() {
					device.home = selfLauncher

					_, err := r.client.Lock(ctx, 10)

					Expect(err).To(MatchError(domain.ErrNoOriginalLauncher))
				})

				It("refuses a non-positive duration", func() {
					_, err := r.client.Lock(ctx, 0)

					Expect(err).To(MatchError(domain.ErrInvalidDuration))
				})
			})

			Describe("unlocking", func() {
				BeforeEach(func() {
					_, err := r.client.Lock(ctx, 10)
					Expect(err).NotTo(HaveOccurred())
				})

				It("restores launcher, audio and do-not-disturb through the role tier", func() {
					resp, err := r.client.Unlock(ctx, false)
					Expect(err).NotTo(HaveOccurred())

					Expect(resp.Outcome.Tier).To(Equal(domain.TierRole))
					Expect(resp.ManualSelectionRequired).To(BeFalse())
					Expect(resp.Warning).To(BeEmpty())
					Expect(resp.Status.IsLocked).To(BeFalse())

					Expect(device.Home()).To(Equal(originalLauncher))
					Expect(device.Foreground()).To(Equal(originalLauncher.Package))
					Expect(device.Volume(domain.StreamRing)).To(Equal(5))
					Expect(device.Volume(domain.StreamNotification)).To(Equal(4))
					Expect(device.Volume(domain.StreamSystem)).To(Equal(3))
					Expect(device.Volume(domain.StreamMusic)).To(Equal(9))
					Expect(device.DND()).To(Equal("off"))
					Expect(r.gate.Blocking()).To(BeFalse())

					record, err := r.store.Load()
					Expect(err).NotTo(HaveOccurred())
					Expect(record.HasDeadline()).To(BeFalse())
					Expect(record.SavedStreamVolumes).To(BeEmpty())
					Expect(record.OriginalLauncher).To(Equal(&originalLauncher))
				})

				It("falls back to the legacy tier without a role service", func() {
					device.SetRoleService(false)

					resp, err := r.client.Unlock(ctx, false)
					Expect(err).NotTo(HaveOccurred())

					Expect(resp.Outcome.Tier).To(Equal(domain.TierLegacy))
					Expect(device.Home()).To(Equal(originalLauncher))
				})

				It("is a no-op the second time", func() {
					_, err := r.client.Unlock(ctx, false)
					Expect(err).NotTo(HaveOccurred())

					resp, err := r.client.Unlock(ctx, false)
					Expect(err).NotTo(HaveOccurred())
					Expect(resp.Outcome.Tier).To(Equal(domain.TierNone))
				})
			})

			Describe("enforcement while locked", func() {
				BeforeEach(func() {
					_, err := r.client.Lock(ctx, 10)
					Expect(err).NotTo(HaveOccurred())
				})

				It("brings itself back when another app takes the foreground", func() {
					device.SetForeground("com.android.chrome")
					monitor := daemon.NewForegroundMonitor(daemon.MonitorConfig{
						ForegroundInterval: 10 * time.Millisecond,
						SelfPackage:        selfLauncher.Package,
					}, infra.NewShellForegroundProbe(device), r.engine, r.watchdog, zap.NewNop())

					monitorCtx, cancel := context.WithCancel(ctx)
					defer cancel()
					go func() { _ = monitor.Run(monitorCtx) }()

					Eventually(device.Foreground).WithTimeout(2 * time.Second).Should(Equal(selfLauncher.Package))
					Expect(device.Home()).To(Equal(selfLauncher))
				})

				It("clears posted notifications", func() {
					device.Post("0|com.whatsapp|1|null|10123")
					monitor := daemon.NewNotificationMonitor(daemon.MonitorConfig{
						NotificationInterval: 10 * time.Millisecond,
						SelfPackage:          selfLauncher.Package,
					}, r.policy, r.engine, r.suppressor, zap.NewNop())

					monitorCtx, cancel := context.WithCancel(ctx)
					defer cancel()
					go func() { _ = monitor.Run(monitorCtx) }()

					Eventually(device.Notifications).WithTimeout(2 * time.Second).Should(BeEmpty())
				})

				It("treats a system UI window as an intrusion", func() {
					device.SetForeground("com.android.systemui")

					sig, ok := r.gate.WindowChanged("com.android.systemui")
					Expect(ok).To(BeTrue())
					Expect(r.watchdog.OnIntrusion(ctx, sig)).To(BeTrue())
					Expect(device.Foreground()).To(Equal(selfLauncher.Package))
				})
			})

			Describe("restarts", func() {
				It("rehydrates an active lock", func() {
					_, err := r.client.Lock(ctx, 10)
					Expect(err).NotTo(HaveOccurred())
					r.stop()

					r = newRig(backend, dataDir, device)

					status := r.engine.Status()
					Expect(status.IsLocked).To(BeTrue())
					Expect(status.SecondsRemaining).To(BeNumerically(">", 590))
					Expect(r.gate.Blocking()).To(BeTrue())

					resp, err := r.client.Unlock(ctx, false)
					Expect(err).NotTo(HaveOccurred())
					Expect(resp.Outcome.Tier).To(Equal(domain.TierRole))
					Expect(device.Volume(domain.StreamRing)).To(Equal(5), "snapshot survived the restart")
					Expect(device.Home()).To(Equal(originalLauncher))
				})

				It("unlocks a lock that expired while stopped", func() {
					_, err := r.client.Lock(ctx, 10)
					Expect(err).NotTo(HaveOccurred())
					Expect(r.store.SetDeadline(time.Now().Add(-time.Minute))).To(Succeed())
					r.stop()

					r = newRig(backend, dataDir, device)

					Expect(r.engine.IsLocked()).To(BeFalse())
					Expect(device.Home()).To(Equal(originalLauncher))
					Expect(device.Volume(domain.StreamMusic)).To(Equal(9))
					record, err := r.store.Load()
					Expect(err).NotTo(HaveOccurred())
					Expect(record.HasDeadline()).To(BeFalse())
				})
			})
		})
	}
})
