package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// OTPSender delivers a passcode over one channel.
type OTPSender interface {
	Send(ctx context.Context, recipient, code string) error
	Name() string
}

// LogOTPSender writes codes to the log. It stands in for unconfigured channels.
type LogOTPSender struct {
	channel string
	logger  zerolog.Logger
}

// NewLogOTPSender constructs a logging sender.
func NewLogOTPSender(channel string, logger zerolog.Logger) *LogOTPSender {
	return &LogOTPSender{
		channel: channel,
		logger:  logger.With().Str("component", "otp_log_sender").Str("channel", channel).Logger(),
	}
}

func (l *LogOTPSender) Send(ctx context.Context, recipient, code string) error {
	l.logger.Info().Str("recipient", maskIdentifier(recipient)).Str("code", code).Msg("otp delivery not configured; code logged")
	return nil
}

func (l *LogOTPSender) Name() string {
	return "log"
}

// SMSGatewaySender posts codes to an HTTP SMS gateway.
type SMSGatewaySender struct {
	url      string
	apiKey   string
	senderID string
	appName  string
	client   *http.Client
}

// NewSMSGatewaySender constructs an SMS sender for a JSON gateway endpoint.
func NewSMSGatewaySender(url, apiKey, senderID, appName string) *SMSGatewaySender {
	return &SMSGatewaySender{
		url:      url,
		apiKey:   apiKey,
		senderID: senderID,
		appName:  appName,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SMSGatewaySender) Send(ctx context.Context, recipient, code string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      recipient,
		"from":    s.senderID,
		"message": fmt.Sprintf("%s is your %s verification code. It expires in 5 minutes.", code, s.appName),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *SMSGatewaySender) Name() string {
	return "sms"
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridOTPSender emails codes through SendGrid.
type SendGridOTPSender struct {
	key     string
	from    *sgmail.Email
	appName string
}

// NewSendGridOTPSender constructs an email sender.
func NewSendGridOTPSender(key, fromName, fromEmail, appName string) *SendGridOTPSender {
	return &SendGridOTPSender{
		key:     key,
		from:    sgmail.NewEmail(fromName, fromEmail),
		appName: appName,
	}
}

func (s *SendGridOTPSender) Send(ctx context.Context, recipient, code string) error {
	p := sgmail.NewPersonalization()
	p.Subject = fmt.Sprintf("[%s] Your verification code", s.appName)
	p.AddTos(sgmail.NewEmail("", recipient))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code)),
		sgmail.NewContent("text/html", fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in 5 minutes.</p>", code)),
	)

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid unreachable: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *SendGridOTPSender) Name() string {
	return "sendgrid"
}
