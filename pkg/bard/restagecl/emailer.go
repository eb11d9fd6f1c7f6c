package restagecl

import (
	"fmt"
	"net/smtp"
	"sync"
	"time"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/pkg/bard"
)

// EmailConfig configures the one-shot notification sent when a link
// transitions into a non-ONLINE/LOW/HIGH state. Left zero-value,
// Notify is a no-op: notifications are best-effort and never block
// the state machine (best-effort, run
// off the critical path).
type EmailConfig struct {
	Enabled bool
	SMTPAddr string // host:port
	From     string
	To       []string
}

// Emailer sends the transient, best-effort notifications above:
// a fresh goroutine per notification, not a long-lived worker.
type Emailer struct {
	cfg EmailConfig

	mu   sync.Mutex
	last map[string]time.Time
}

// newEmailer constructs an Emailer from cfg. A zero-value EmailConfig
// disables sending entirely.
func newEmailer(cfg EmailConfig) *Emailer {
	return &Emailer{cfg: cfg, last: make(map[string]time.Time)}
}

// notifyThrottle bounds how often the same link/state pair re-sends,
// so a link flapping between ERROR and ONLINE doesn't flood an
// operator's inbox.
const notifyThrottle = 5 * time.Minute

// Notify sends a one-shot notification that link transitioned to
// state. Runs in its own goroutine and never returns an error to the
// caller: failures are logged, not propagated, since a dead mail
// relay must never stall a state transition.
func (e *Emailer) Notify(link string, state bard.CLState, detail string) {
	if e == nil || !e.cfg.Enabled {
		return
	}

	e.mu.Lock()
	throttleKey := link + ":" + string(state)
	if last, ok := e.last[throttleKey]; ok && time.Since(last) < notifyThrottle {
		e.mu.Unlock()
		return
	}
	e.last[throttleKey] = time.Now()
	e.mu.Unlock()

	go e.send(link, state, detail)
}

func (e *Emailer) send(link string, state bard.CLState, detail string) {
	subject := fmt.Sprintf("bard: restage link %q entered %s", link, state)
	body := fmt.Sprintf("Subject: %s\r\n\r\n%s\n\nlink=%s state=%s\n", subject, detail, link, state)

	if e.cfg.SMTPAddr == "" || len(e.cfg.To) == 0 {
		logger.Warn("email notification dropped: no SMTP relay configured", "link", link, "state", string(state))
		return
	}

	if err := smtp.SendMail(e.cfg.SMTPAddr, nil, e.cfg.From, e.cfg.To, []byte(body)); err != nil {
		logger.Error("email notification failed", "link", link, "state", string(state), "error", err)
		return
	}
	logger.Info("email notification sent", "link", link, "state", string(state))
}
