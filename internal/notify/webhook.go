package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"keepit/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

var ErrInvalidURL = errors.New("webhook url must be http or https")
var ErrInternalURL = errors.New("webhook url points to an internal host")

// HookLister is the slice of the store the webhook notifier reads.
type HookLister interface {
	ListWebhooksForAction(ctx context.Context, userID int64, action models.WebhookAction) ([]models.Webhook, error)
}

type WebhookConfig struct {
	Timeout     time.Duration
	MinInterval time.Duration
}

// WebhookNotifier posts events to the acting user's webhooks. A destination
// that was hit less than MinInterval ago is skipped.
type WebhookNotifier struct {
	hooks       HookLister
	client      *resty.Client
	minInterval time.Duration
	log         zerolog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewWebhookNotifier(hooks HookLister, cfg WebhookConfig, log zerolog.Logger) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "keepit-webhook/1.0")
	return &WebhookNotifier{
		hooks:       hooks,
		client:      client,
		minInterval: cfg.MinInterval,
		log:         log.With().Str("component", "webhook").Logger(),
		lastSent:    make(map[string]time.Time),
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, ev Event) error {
	hooks, err := w.hooks.ListWebhooksForAction(ctx, ev.UserID, ev.Action)
	if err != nil {
		return fmt.Errorf("list webhooks: %w", err)
	}

	var errs []error
	for _, h := range hooks {
		if !w.allow(h.URL) {
			w.log.Debug().Int64("webhook_id", h.ID).Msg("webhook skipped by rate limit")
			continue
		}
		resp, err := w.client.R().SetContext(ctx).SetBody(ev).Post(h.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("webhook %d: %w", h.ID, err))
			continue
		}
		if resp.IsError() {
			errs = append(errs, fmt.Errorf("webhook %d: status %d", h.ID, resp.StatusCode()))
			continue
		}
		w.log.Debug().Int64("webhook_id", h.ID).Int("status", resp.StatusCode()).Msg("webhook delivered")
	}
	return errors.Join(errs...)
}

func (w *WebhookNotifier) allow(dest string) bool {
	if w.minInterval <= 0 {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	if last, ok := w.lastSent[dest]; ok && now.Sub(last) < w.minInterval {
		return false
	}
	w.lastSent[dest] = now
	return true
}

// lookupIP resolves webhook hosts at registration time.
var lookupIP = net.LookupIP

func internalIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() || ip.IsLinkLocalMulticast()
}

// ValidateURL checks that raw is an absolute http(s) URL. Unless
// allowPrivate is set, hosts that are or resolve to loopback, private or
// link-local addresses are refused. A name that does not resolve is refused
// too. The check runs when a webhook is registered, not on each delivery.
func ValidateURL(raw string, allowPrivate bool) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	if allowPrivate {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal") {
		return ErrInternalURL
	}
	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		resolved, err := lookupIP(host)
		if err != nil || len(resolved) == 0 {
			return ErrInvalidURL
		}
		ips = resolved
	}
	for _, ip := range ips {
		if internalIP(ip) {
			return ErrInternalURL
		}
	}
	return nil
}
