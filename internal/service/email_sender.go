package service

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type EmailSender struct {
	dialer  *mail.Dialer
	logger  *logrus.Logger
	enabled bool
}

func NewEmailSender(logger *logrus.Logger) *EmailSender {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPortStr := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	enabled := os.Getenv("EMAIL_SENDER_ENABLED") == "true"
	insecureSkipVerify := os.Getenv("INSECURE_SKIP_VERIFY") == "true"

	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		if enabled {
			logger.Fatalf("Invalid SMTP_PORT: %v", err)
		}
		smtpPort = 587
	}

	d := mail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	d.TLSConfig = &tls.Config{
		ServerName:         smtpHost,
		InsecureSkipVerify: insecureSkipVerify,
	}

	return &EmailSender{
		dialer:  d,
		logger:  logger,
		enabled: enabled,
	}
}

// SendPaymentApprovedNotification tells a retailer their submitted request
// was approved.
func (es *EmailSender) SendPaymentApprovedNotification(email string, totalPaise int64, requestID uuid.UUID) error {
	if !es.enabled {
		es.logger.Warn("Email notifications are disabled")
		return nil
	}

	subject := "Payment request approved"
	content := fmt.Sprintf(`
		<h1>Payment Approved</h1>
		<p>Request: <strong>%s</strong></p>
		<p>Amount: <strong>%s</strong></p>
		<p>Date: <strong>%s</strong></p>
		<small>This is an automated notification, please do not reply</small>
	`, requestID.String(), formatINR(totalPaise), time.Now().Format("02.01.2006 15:04"))

	return es.sendEmail(email, subject, content)
}

// SendPaymentRejectedNotification tells a retailer their submitted request
// was rejected and why.
func (es *EmailSender) SendPaymentRejectedNotification(email string, requestID uuid.UUID, reason string) error {
	if !es.enabled {
		es.logger.Warn("Email notifications are disabled")
		return nil
	}

	subject := "Payment request rejected"
	content := fmt.Sprintf(`
		<h1>Payment Rejected</h1>
		<p>Request: <strong>%s</strong></p>
		<p>Reason: <strong>%s</strong></p>
		<p>Date: <strong>%s</strong></p>
		<small>This is an automated notification, please do not reply</small>
	`, requestID.String(), reason, time.Now().Format("02.01.2006 15:04"))

	return es.sendEmail(email, subject, content)
}

func (es *EmailSender) sendEmail(to, subject, body string) error {
	m := mail.NewMessage()
	m.SetHeader("From", os.Getenv("SMTP_USER"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := es.dialer.DialAndSend(m); err != nil {
		es.logger.WithError(err).Error("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	es.logger.Infof("Email sent to %s", to)
	return nil
}
