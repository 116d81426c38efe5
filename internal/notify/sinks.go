package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/nsqio/go-nsq"
	"go.uber.org/zap"

	"investment-core/internal/events"
	"investment-core/internal/persistence"
	"investment-core/pkg/db"
)

// ----------------------------------------
// Inbox
// ----------------------------------------

// InboxSink stores messages in the notifications table via the batch writer.
type InboxSink struct {
	writer *persistence.BatchWriter
}

// NewInboxSink creates an inbox sink.
func NewInboxSink(w *persistence.BatchWriter) *InboxSink {
	return &InboxSink{writer: w}
}

func (s *InboxSink) Name() string { return "inbox" }

func (s *InboxSink) Deliver(_ context.Context, m Message) error {
	meta, err := json.Marshal(m.Params)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if m.Params == nil {
		meta = []byte("{}")
	}
	s.writer.WriteQuery("notifications", db.InsertNotificationSQL,
		m.UserID, string(m.Template), m.Title, m.Body, string(meta), m.CreatedAt)
	return nil
}

// ----------------------------------------
// Push
// ----------------------------------------

// PushSink publishes messages on the event bus for connected websocket clients.
type PushSink struct {
	bus *events.Bus
}

// NewPushSink creates a push sink.
func NewPushSink(bus *events.Bus) *PushSink {
	return &PushSink{bus: bus}
}

func (s *PushSink) Name() string { return "push" }

func (s *PushSink) Deliver(_ context.Context, m Message) error {
	s.bus.Publish(events.EventNotification, events.Notification{
		UserID:    m.UserID,
		Template:  string(m.Template),
		Title:     m.Title,
		Message:   m.Body,
		Meta:      m.Params,
		CreatedAt: m.CreatedAt,
	})
	return nil
}

// ----------------------------------------
// Email
// ----------------------------------------

// SMTPConfig configures outbound mail. An empty Host logs messages instead.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSink sends messages to the recipient's address.
type EmailSink struct {
	cfg  SMTPConfig
	log  *zap.Logger
	send sendFunc
}

// NewEmailSink creates an email sink.
func NewEmailSink(cfg SMTPConfig, log *zap.Logger) *EmailSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailSink{cfg: cfg, log: log.With(zap.String("sink", "email")), send: smtp.SendMail}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(_ context.Context, m Message) error {
	if m.Email == "" {
		return nil
	}
	if s.cfg.Host == "" {
		s.log.Info("email delivery disabled, logging message",
			zap.String("to", m.Email), zap.String("subject", m.Title))
		return nil
	}

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(addr, auth, s.cfg.From, []string{m.Email}, buildMail(s.cfg.From, m)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildMail(from string, m Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.Email + "\r\n")
	b.WriteString("Subject: " + strings.ReplaceAll(m.Title, "\n", " ") + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ----------------------------------------
// NSQ
// ----------------------------------------

// Publisher is the part of *nsq.Producer the sink uses.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// NSQSink publishes messages as JSON to an NSQ topic for external consumers.
type NSQSink struct {
	pub   Publisher
	topic string
}

// NewNSQProducer connects to nsqd and verifies it is reachable.
func NewNSQProducer(addr string) (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("ping nsqd: %w", err)
	}
	return producer, nil
}

// NewNSQSink creates an NSQ sink.
func NewNSQSink(pub Publisher, topic string) *NSQSink {
	return &NSQSink{pub: pub, topic: topic}
}

func (s *NSQSink) Name() string { return "nsq" }

type nsqPayload struct {
	UserID    string            `json:"user_id"`
	Email     string            `json:"email,omitempty"`
	Template  string            `json:"template"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

func (s *NSQSink) Deliver(_ context.Context, m Message) error {
	body, err := json.Marshal(nsqPayload{
		UserID:    m.UserID,
		Email:     m.Email,
		Template:  string(m.Template),
		Title:     m.Title,
		Message:   m.Body,
		Params:    m.Params,
		CreatedAt: m.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal nsq message: %w", err)
	}
	if err := s.pub.Publish(s.topic, body); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}
