package notifications

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podwatch/internal/config"
	"podwatch/internal/services"
)

// Subject is the fixed subject line of marker notifications.
const Subject = "Experiment Summary File Generated"

const testSubject = "podwatch test notification"

// Environment variables holding the SMTP principal and secret.
const (
	EnvUser     = "SMTP_USER"
	EnvPassword = "SMTP_PASSWORD"
)

// ErrMissingCredentials is returned without any network I/O when SMTP_USER or
// SMTP_PASSWORD is unset.
var ErrMissingCredentials = errors.New("SMTP credentials not found in environment variables")

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyMarkerDetected(ctx context.Context, run config.MonitoredRun, markerPath string) error
	TestNotification(ctx context.Context, run config.MonitoredRun) error
}

// Credentials authenticate against the SMTP relay. User is also the From address.
type Credentials struct {
	User     string
	Password string
}

// CredentialsFromEnv reads SMTP_USER and SMTP_PASSWORD using lookup.
func CredentialsFromEnv(lookup func(string) string) (Credentials, error) {
	if lookup == nil {
		lookup = os.Getenv
	}
	creds := Credentials{
		User:     strings.TrimSpace(lookup(EnvUser)),
		Password: lookup(EnvPassword),
	}
	if creds.User == "" || creds.Password == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

// Sender delivers one message. The default sender speaks SMTP with mandatory
// STARTTLS; tests inject a fake.
type Sender interface {
	Send(ctx context.Context, creds Credentials, msg *mail.Msg) error
}

// Option configures the service.
type Option func(*mailService)

// WithSender injects a custom transport (primarily for tests).
func WithSender(sender Sender) Option {
	return func(s *mailService) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// WithEnv overrides how credentials are looked up (primarily for tests).
func WithEnv(lookup func(string) string) Option {
	return func(s *mailService) {
		if lookup != nil {
			s.lookup = lookup
		}
	}
}

// NewService builds an e-mail notifier. When no recipients are configured a
// noop implementation is returned.
func NewService(cfg *config.Config, opts ...Option) Service {
	if cfg == nil || len(cfg.Notifications.Recipients) == 0 {
		return noopService{}
	}
	svc := &mailService{
		sender: smtpSender{
			host:    cfg.Notifications.SMTPHost,
			port:    cfg.Notifications.SMTPPort,
			timeout: cfg.SMTPTimeout(),
		},
		lookup: os.Getenv,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type mailService struct {
	sender Sender
	lookup func(string) string
}

func (s *mailService) NotifyMarkerDetected(ctx context.Context, run config.MonitoredRun, markerPath string) error {
	return s.send(ctx, run.Recipients, Subject, RenderBody(run, markerPath))
}

func (s *mailService) TestNotification(ctx context.Context, run config.MonitoredRun) error {
	body := fmt.Sprintf("This is a test message from podwatch.\n\nMonitored root: %s\nSent: %s\n",
		run.Root, time.Now().Format(time.RFC1123))
	return s.send(ctx, run.Recipients, testSubject, body)
}

func (s *mailService) send(ctx context.Context, recipients []string, subject, body string) error {
	creds, err := CredentialsFromEnv(s.lookup)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}
	msg, err := buildMessage(creds.User, recipients, subject, body)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notifications", "compose", "", err)
	}
	if err := s.sender.Send(ctx, creds, msg); err != nil {
		return services.Wrap(services.ErrTransient, "notifications", "send", fmt.Sprintf("%d recipient(s)", len(recipients)), err)
	}
	return nil
}

func buildMessage(from string, recipients []string, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

var modeCaser = cases.Title(language.English)

// RenderBody returns the plaintext notification body for a marker.
func RenderBody(run config.MonitoredRun, markerPath string) string {
	var b strings.Builder
	b.WriteString("The final summary file for the experiment has been generated:\n\n")
	fmt.Fprintf(&b, "File Path: %s\n", markerPath)
	if run.Mode != "" {
		fmt.Fprintf(&b, "Mode: %s\n", modeCaser.String(run.Mode))
	}
	if run.Model != "" {
		fmt.Fprintf(&b, "Model: %s\n", run.Model)
	}
	if run.Kit != "" {
		fmt.Fprintf(&b, "Kit: %s\n", run.Kit)
	}
	if run.Sample != "" {
		fmt.Fprintf(&b, "Sample: %s\n", run.Sample)
	}
	if run.Amplification != "" {
		fmt.Fprintf(&b, "Amplification: %s\n", run.Amplification)
	}
	b.WriteString("\nPlease check the final summary file for further details.\n")
	return b.String()
}

type smtpSender struct {
	host    string
	port    int
	timeout time.Duration
}

func (s smtpSender) Send(ctx context.Context, creds Credentials, msg *mail.Msg) error {
	client, err := mail.NewClient(s.host,
		mail.WithPort(s.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(creds.User),
		mail.WithPassword(creds.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(s.timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp %s:%d: %w", s.host, s.port, err)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyMarkerDetected(context.Context, config.MonitoredRun, string) error {
	return nil
}

func (noopService) TestNotification(context.Context, config.MonitoredRun) error { return nil }
