package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelMMS   Channel = "mms"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusSending  Status = "sending"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
	StatusRetrying Status = "retrying"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank orders priorities for selection; higher runs first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// MaxAttempts bounds how many times a message is tried before it is failed.
const MaxAttempts = 5

// BackoffLadder holds the delay scheduled after n failed attempts, clamped to
// the last entry.
var BackoffLadder = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// BackoffDelay returns the retry delay after the given 1-based attempt count.
func BackoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > len(BackoffLadder) {
		attempts = len(BackoffLadder)
	}
	return BackoffLadder[attempts-1]
}

// Attachment is inline email content, carried as a blob rather than a path so
// a queued message survives the source file disappearing.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"` // base64 in the persisted form
}

type EmailPayload struct {
	To          []string     `json:"to"`
	CC          []string     `json:"cc,omitempty"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	HTML        bool         `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type SMSPayload struct {
	To   []string `json:"to"`
	Text string   `json:"text"`
}

type MMSPayload struct {
	To        []string `json:"to"`
	Text      string   `json:"text,omitempty"`
	MediaURLs []string `json:"media_urls"`
}

// Meta is optional operator context attached at enqueue time.
type Meta struct {
	EventName     string            `json:"event_name,omitempty"`
	Disclaimer    bool              `json:"disclaimer,omitempty"`
	SurveyAnswers map[string]string `json:"survey_answers,omitempty"`
}

// Payload is a tagged union keyed by Channel; exactly one of the channel
// fields is set.
type Payload struct {
	Channel Channel       `json:"channel"`
	Email   *EmailPayload `json:"email,omitempty"`
	SMS     *SMSPayload   `json:"sms,omitempty"`
	MMS     *MMSPayload   `json:"mms,omitempty"`
	Meta    *Meta         `json:"meta,omitempty"`
}

// Validate checks that the payload variant matches its channel tag and has at
// least one recipient.
func (p Payload) Validate() error {
	switch p.Channel {
	case ChannelEmail:
		if p.Email == nil || len(p.Email.To) == 0 {
			return fmt.Errorf("email payload requires recipients")
		}
	case ChannelSMS:
		if p.SMS == nil || len(p.SMS.To) == 0 {
			return fmt.Errorf("sms payload requires recipients")
		}
	case ChannelMMS:
		if p.MMS == nil || len(p.MMS.To) == 0 {
			return fmt.Errorf("mms payload requires recipients")
		}
	default:
		return fmt.Errorf("unknown channel %q", p.Channel)
	}
	return nil
}

// Recipients returns the destination list for the active variant.
func (p Payload) Recipients() []string {
	switch p.Channel {
	case ChannelEmail:
		if p.Email != nil {
			return p.Email.To
		}
	case ChannelSMS:
		if p.SMS != nil {
			return p.SMS.To
		}
	case ChannelMMS:
		if p.MMS != nil {
			return p.MMS.To
		}
	}
	return nil
}

type QueuedMessage struct {
	ID            string     `json:"id"`
	Channel       Channel    `json:"channel"`
	Status        Status     `json:"status"`
	Priority      Priority   `json:"priority"`
	Payload       Payload    `json:"payload"`
	CreatedAt     time.Time  `json:"created_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	LastError     *string    `json:"last_error,omitempty"`
}

// Eligible reports whether the message may be attempted at t: pending, or
// retrying with its backoff window elapsed.
func (m *QueuedMessage) Eligible(t time.Time) bool {
	switch m.Status {
	case StatusPending:
		return true
	case StatusRetrying:
		return m.NextRetryAt != nil && !t.Before(*m.NextRetryAt)
	}
	return false
}

// NewID builds a channel-prefixed, collision-resistant message id.
func NewID(ch Channel, t time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s-%d-%s", ch, t.UnixMilli(), suffix)
}

type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Sending  int `json:"sending"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Retrying int `json:"retrying"`
}
