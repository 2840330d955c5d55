// Package enrollment manages the device's stable identity and its push
// notification registration with the Volumio host, including the optional
// nightly re-enrollment trigger.
package enrollment

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/strefethen/volumio-hub-go/internal/apperrors"
	"github.com/strefethen/volumio-hub-go/internal/volumio"
)

// ScheduleDisabled is the sentinel schedule value that cancels any existing
// re-enrollment trigger.
const ScheduleDisabled = "No"

// CallbackPath is where the Volumio host POSTs push notifications.
const CallbackPath = "/volumiostatus"

// Manager owns identity resolution, push enrollment, and the single daily
// re-enrollment cron entry.
type Manager struct {
	client       *volumio.Client
	logger       *log.Logger
	callbackPort int

	// resolveHardwareID is swappable for tests.
	resolveHardwareID func(host string) (string, error)
	// discoverLocalIP is swappable for tests.
	discoverLocalIP func() (string, error)

	mu       sync.Mutex
	identity string
	cron     *cron.Cron
	entryID  cron.EntryID
	hasEntry bool
}

// NewManager creates a manager. callbackPort is the port the push callback
// listens on. The cron scheduler starts immediately but holds no entry until
// Schedule installs one.
func NewManager(client *volumio.Client, callbackPort int, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		client:            client,
		logger:            logger,
		callbackPort:      callbackPort,
		resolveHardwareID: ResolveHardwareID,
		cron:              cron.New(),
	}
	m.discoverLocalIP = m.localIPToward
	m.cron.Start()
	return m
}

// Stop halts the cron scheduler.
func (m *Manager) Stop() {
	m.cron.Stop()
}

// Identity returns the current device identity, if known.
func (m *Manager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// RestoreIdentity seeds the identity from persisted state without counting
// as a mutation.
func (m *Manager) RestoreIdentity(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = identity
}

// SetIdentity fetches system info, resolves the reported host address to a
// stable hardware identifier, and updates the identity only if it differs.
// The update is idempotent: repeating the call with unchanged remote info
// reports changed=false and mutates nothing.
func (m *Manager) SetIdentity(ctx context.Context) (identity string, changed bool, err error) {
	var info volumio.SystemInfo
	if err := m.client.GetJSON(ctx, "getSystemInfo", &info); err != nil {
		return "", false, err
	}
	host := info.Host
	if host == "" {
		host = m.client.Host()
	}

	identity, resolveErr := m.resolveHardwareID(host)
	if resolveErr != nil {
		// Identity must stay stable even when the neighbor table has no
		// entry; the reported address itself is the fallback.
		m.logger.Printf("ENROLL: hardware id lookup failed (%v), using host %s", resolveErr, host)
		identity = host
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == identity {
		return identity, false, nil
	}
	m.identity = identity
	return identity, true, nil
}

// Enroll registers this process's reachable address as a push notification
// target. Failures are logged by the caller and not retried.
func (m *Manager) Enroll(ctx context.Context) error {
	localIP, err := m.discoverLocalIP()
	if err != nil {
		return fmt.Errorf("discover local IP: %w", err)
	}

	target := volumio.PushTarget{
		URL: fmt.Sprintf("http://%s%s", net.JoinHostPort(localIP, strconv.Itoa(m.callbackPort)), CallbackPath),
	}
	if err := m.client.PostJSON(ctx, "pushNotificationUrls", target, nil); err != nil {
		return err
	}

	m.logger.Printf("ENROLL: registered push target %s", target.URL)
	return nil
}

// Schedule installs, replaces, or cancels the daily re-enrollment trigger.
// "No" cancels any existing trigger; any other value must be a 12-hour clock
// time ("3 AM", "12 PM") and replaces the prior schedule so at most one
// trigger is ever active.
func (m *Manager) Schedule(value string) error {
	if strings.EqualFold(strings.TrimSpace(value), ScheduleDisabled) {
		m.removeEntry()
		m.logger.Printf("ENROLL: nightly re-enrollment disabled")
		return nil
	}

	hour, err := parseClockHour(value)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"time": value})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasEntry {
		m.cron.Remove(m.entryID)
		m.hasEntry = false
	}

	entryID, err := m.cron.AddFunc(fmt.Sprintf("0 %d * * *", hour), m.reenroll)
	if err != nil {
		return apperrors.NewInternalError("install re-enrollment schedule: " + err.Error())
	}
	m.entryID = entryID
	m.hasEntry = true

	m.logger.Printf("ENROLL: re-enrollment scheduled daily at %02d:00", hour)
	return nil
}

// ScheduledEntries returns how many triggers are installed.
func (m *Manager) ScheduledEntries() int {
	return len(m.cron.Entries())
}

func (m *Manager) removeEntry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasEntry {
		m.cron.Remove(m.entryID)
		m.hasEntry = false
	}
}

func (m *Manager) reenroll() {
	ctx, cancel := context.WithTimeout(context.Background(), m.client.Timeout())
	defer cancel()
	if err := m.Enroll(ctx); err != nil {
		m.logger.Printf("ENROLL: scheduled re-enrollment failed: %v", err)
	}
}

// parseClockHour converts a 12-hour clock value with AM/PM suffix to the
// 24-hour hour of day.
func parseClockHour(value string) (int, error) {
	fields := strings.Fields(strings.TrimSpace(value))
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid schedule time %q, expected e.g. \"3 AM\"", value)
	}

	hour, err := strconv.Atoi(fields[0])
	if err != nil || hour < 1 || hour > 12 {
		return 0, fmt.Errorf("invalid schedule hour %q", fields[0])
	}

	switch strings.ToUpper(fields[1]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	default:
		return 0, fmt.Errorf("invalid schedule suffix %q, expected AM or PM", fields[1])
	}

	return hour, nil
}

// localIPToward finds the local address used to reach the Volumio host.
func (m *Manager) localIPToward() (string, error) {
	target := m.client.Host()
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, "80")
	}
	conn, err := net.Dial("udp", target)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
