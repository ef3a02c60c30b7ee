// Package email sends grievance notices to officers and citizens via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-govai"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// Notice describes the grievance an email is about.
type Notice struct {
	RecipientName string
	GrievanceID   string
	Title         string
	Location      string
	Priority      string
	SLADeadline   *time.Time
	Reason        string
}

func (n Notice) Deadline() string {
	if n.SLADeadline == nil {
		return "not set"
	}
	return n.SLADeadline.In(ist).Format("02 Jan 2006, 15:04 IST")
}

var ist = time.FixedZone("IST", 5*3600+1800)

// SendAssignmentNotice tells an officer a grievance is now theirs.
func (s *Service) SendAssignmentNotice(to string, n Notice) error {
	return s.sendNotice(to, "New grievance assigned: "+n.Title, assignmentTemplate, n,
		fmt.Sprintf("Grievance %s (%s priority) has been assigned to you. Resolve by %s.", n.GrievanceID, n.Priority, n.Deadline()))
}

// SendReassignmentNotice tells the receiving officer the grievance moved to
// them and why. The SLA deadline is the original one.
func (s *Service) SendReassignmentNotice(to string, n Notice) error {
	return s.sendNotice(to, "Grievance reassigned to you: "+n.Title, reassignmentTemplate, n,
		fmt.Sprintf("Grievance %s was reassigned to you. Reason: %s. The original deadline %s still applies.", n.GrievanceID, n.Reason, n.Deadline()))
}

// SendSLABreachNotice warns an officer that the resolution deadline passed.
func (s *Service) SendSLABreachNotice(to string, n Notice) error {
	return s.sendNotice(to, "SLA breached: "+n.Title, breachTemplate, n,
		fmt.Sprintf("Grievance %s passed its resolution deadline (%s) and is still open.", n.GrievanceID, n.Deadline()))
}

func (s *Service) sendNotice(to, subject string, tmpl *template.Template, n Notice, text string) error {
	html, err := render(tmpl, n)
	if err != nil {
		return fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
