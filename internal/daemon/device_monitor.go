package daemon

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"podwatch/internal/logging"
)

// deviceSettleDelay gives the automounter time to mount a freshly added
// device before the tree is rescanned.
const deviceSettleDelay = 5 * time.Second

// deviceMonitor listens for udev netlink block-device additions and asks the
// daemon to rescan the monitored root. Acquisition drives that are detached
// and re-attached otherwise produce no file events for markers written while
// they were away.
type deviceMonitor struct {
	logger  *slog.Logger
	trigger func(ctx context.Context)
	settle  time.Duration
}

func newDeviceMonitor(logger *slog.Logger, trigger func(ctx context.Context)) *deviceMonitor {
	return &deviceMonitor{
		logger:  logging.NewComponentLogger(logger, "device-monitor"),
		trigger: trigger,
		settle:  deviceSettleDelay,
	}
}

// Run blocks until ctx is cancelled. A netlink connection failure is logged
// and treated as non-fatal; the daemon keeps watching without device rescans.
func (m *deviceMonitor) Run(ctx context.Context) error {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; device rescans disabled", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets or set watch.rescan_on_device_add = false"),
			logging.String(logging.FieldImpact, "markers on re-attached drives are found only by new file events"),
		)
		return nil
	}
	defer conn.Close()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, m.buildMatcher())

	m.logger.Info("device monitor started",
		logging.String(logging.FieldEventType, "device_monitor_started"),
	)
	m.loop(ctx, queue, errs)
	close(quit)
	m.logger.Info("device monitor stopped",
		logging.String(logging.FieldEventType, "device_monitor_stopped"),
	)
	return nil
}

// loop coalesces bursts of add events (a disk and its partitions) into one
// rescan after the settle delay. The rescan runs on this goroutine so it is
// joined with the monitor.
func (m *deviceMonitor) loop(ctx context.Context, queue <-chan netlink.UEvent, errs <-chan error) {
	settle := time.NewTimer(m.settle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case uevent := <-queue:
			if m.accept(uevent) {
				settle.Reset(m.settle)
			}
		case <-settle.C:
			if m.trigger != nil {
				m.trigger(ctx)
			}
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device rescans may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=block, ACTION=add.
func (m *deviceMonitor) buildMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
		},
	})
	return rules
}

func (m *deviceMonitor) accept(uevent netlink.UEvent) bool {
	devname := deviceName(uevent)
	if devname == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return false
	}
	m.logger.Info("block device added; rescan scheduled",
		logging.String(logging.FieldEventType, "device_added"),
		logging.String("device", devname),
		logging.Duration("settle", m.settle),
	)
	return true
}

// deviceName gets the device path from a uevent.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			return "/dev/" + devname
		}
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return "/dev/" + last
}
