// Package notify sends backup outcome emails. SMTP is tried first,
// then PHP's mail() as a fallback, and the notification is always
// mirrored into the log so no outcome goes unrecorded.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ashevtsov/bitrix-backup/internal/catalog"
	"github.com/ashevtsov/bitrix-backup/internal/config"
	"github.com/ashevtsov/bitrix-backup/internal/hostinfo"
	"github.com/ashevtsov/bitrix-backup/internal/logging"
)

// SuccessInfo carries the details of a finished backup for the
// success notification.
type SuccessInfo struct {
	ArtifactPath string
	ArtifactSize int64
	S3Bucket     string // set when the artifact was uploaded
	S3Key        string
	WorkSnapshot string // work storage snapshot path, when mirrored
}

type Notifier struct {
	cfg *config.Config
	log logging.Logger
}

func New(cfg *config.Config, log logging.Logger) *Notifier {
	return &Notifier{cfg: cfg, log: log}
}

// Success reports a completed backup.
func (n *Notifier) Success(ctx context.Context, info SuccessInfo) {
	subject := "Bitrix24 Backup - Success"
	n.send(ctx, subject, buildSuccessMessage(n.cfg, info, time.Now()))
}

// Failure reports a failed backup run.
func (n *Notifier) Failure(ctx context.Context, runErr error) {
	subject := "Bitrix24 Backup - Failed"
	n.send(ctx, subject, buildFailureMessage(n.cfg, runErr, time.Now()))
}

func (n *Notifier) send(ctx context.Context, subject, message string) {
	sent := false
	if err := n.sendSMTP(subject, message); err != nil {
		n.log.Warn("smtp notification failed: %v", err)
	} else {
		n.log.Info("email notification sent via smtp: %s", subject)
		sent = true
	}
	if !sent {
		if err := n.sendPHPMail(ctx, subject, message); err != nil {
			n.log.Error("php mail notification failed: %v", err)
		} else {
			n.log.Info("email notification sent via php mail: %s", subject)
		}
	}

	// The log copy always happens, delivery or not.
	n.log.Info("EMAIL NOTIFICATION: %s", subject)
	for _, line := range strings.Split(message, "\n") {
		if strings.TrimSpace(line) != "" {
			n.log.Info("  %s", line)
		}
	}
}

func buildSuccessMessage(cfg *config.Config, info SuccessInfo, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backup completed successfully.\n\n")
	fmt.Fprintf(&b, "Backup file: %s\n", baseOr(info.ArtifactPath, "N/A"))
	fmt.Fprintf(&b, "Size: %s\n", catalog.HumanSize(info.ArtifactSize))
	fmt.Fprintf(&b, "Time: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Server: %s (%s)\n", hostinfo.Hostname(), hostinfo.HostIP())

	if info.S3Key != "" {
		fmt.Fprintf(&b, "Storage: S3 cloud storage\n")
		fmt.Fprintf(&b, "S3 path: s3://%s/%s\n", info.S3Bucket, info.S3Key)
		fmt.Fprintf(&b, "Local path: %s\n", info.ArtifactPath)
	} else {
		fmt.Fprintf(&b, "Storage: local file storage\n")
		fmt.Fprintf(&b, "Backup path: %s\n", info.ArtifactPath)
	}
	if info.WorkSnapshot != "" {
		fmt.Fprintf(&b, "Work storage snapshot: %s\n", info.WorkSnapshot)
	}
	fmt.Fprintf(&b, "\nExecution log: %s\n", logPath(cfg))
	return b.String()
}

func buildFailureMessage(cfg *config.Config, runErr error, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backup run failed.\n\n")
	fmt.Fprintf(&b, "Error: %v\n", runErr)
	fmt.Fprintf(&b, "Time: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Server: %s (%s)\n", hostinfo.Hostname(), hostinfo.HostIP())
	fmt.Fprintf(&b, "\nCheck the execution log: %s\n", logPath(cfg))
	return b.String()
}

func logPath(cfg *config.Config) string {
	dir := cfg.Logging.Dir
	if dir == "" {
		dir = "."
	}
	return dir + "/bitrix_backup.log"
}

func baseOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// sendSMTP delivers through the configured SMTP server. Port 465 uses
// implicit TLS, other ports use STARTTLS when requested.
func (n *Notifier) sendSMTP(subject, message string) error {
	sc := n.cfg.SMTP
	if sc == nil {
		return fmt.Errorf("smtp is not configured")
	}
	if n.cfg.Email.From == "" || n.cfg.Email.To == "" {
		return fmt.Errorf("email.from or email.to is not configured")
	}

	addr := net.JoinHostPort(sc.Server, fmt.Sprint(sc.Port))
	var client *smtp.Client
	if sc.Port == 465 {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: sc.Server})
		if err != nil {
			return fmt.Errorf("tls dial %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, sc.Server)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake %s: %w", addr, err)
		}
	} else {
		var err error
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		if sc.UseTLS {
			if err := client.StartTLS(&tls.Config{ServerName: sc.Server}); err != nil {
				client.Close()
				return fmt.Errorf("starttls %s: %w", addr, err)
			}
		}
	}
	defer client.Close()

	if sc.Username != "" {
		auth := smtp.PlainAuth("", sc.Username, sc.Password, sc.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(n.cfg.Email.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(n.cfg.Email.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(buildMessage(n.cfg.Email.From, n.cfg.Email.To, subject, message))); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "X-Mailer: Bitrix24 Backup System\r\n")
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&b, "\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.String()
}

// sendPHPMail falls back to PHP's mail() through a throwaway script,
// for hosts where the web stack can send mail but SMTP is closed off.
func (n *Notifier) sendPHPMail(ctx context.Context, subject, message string) error {
	if n.cfg.Email.To == "" {
		return fmt.Errorf("email.to is not configured")
	}

	script := fmt.Sprintf(`<?php
$to = %s;
$subject = %s;
$message = %s;
$headers = array(
    'From: '.%s,
    'Reply-To: '.%s,
    'X-Mailer: Bitrix24 Backup System',
    'Content-Type: text/plain; charset=UTF-8'
);
echo mail($to, $subject, $message, implode("\r\n", $headers)) ? 'SUCCESS' : 'FAILED';
`,
		phpString(n.cfg.Email.To),
		phpString(subject),
		phpString(message),
		phpString(n.cfg.Email.From),
		phpString(n.cfg.Email.From),
	)

	f, err := os.CreateTemp("", "bitrix_notify_*.php")
	if err != nil {
		return fmt.Errorf("create mail script: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return fmt.Errorf("write mail script: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close mail script: %w", err)
	}

	out, err := exec.CommandContext(ctx, "php", f.Name()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("run php mail: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	if strings.TrimSpace(string(out)) != "SUCCESS" {
		return fmt.Errorf("php mail() returned failure")
	}
	return nil
}

// phpString quotes s as a single-quoted PHP string literal.
func phpString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
