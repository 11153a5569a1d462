package models

import "errors"

var (
	ErrMissingMessageID = errors.New("message_id required")
	ErrMissingAuthor    = errors.New("author_id or from required")
)

// Event is one inbound chat message as delivered by the messaging bridge.
// AuthorID is empty for messages a contact sent directly; From then
// identifies the sender.
type Event struct {
	MessageID   string  `json:"message_id"`
	GroupID     string  `json:"group_id"`
	GroupName   string  `json:"group_name"`
	AuthorID    string  `json:"author_id,omitempty"`
	From        string  `json:"from"`
	AuthorName  string  `json:"author_name,omitempty"`
	AuthorPhone *string `json:"author_phone,omitempty"`
	Body        string  `json:"body"`
	IsGroup     bool    `json:"is_group"`
	Timestamp   int64   `json:"timestamp"`
}

// Author returns the author id, falling back to the sender.
func (e Event) Author() string {
	if e.AuthorID != "" {
		return e.AuthorID
	}
	return e.From
}

// Validate checks the fields every input must carry: an id for the
// at-most-once set and an author for the fingerprint scope.
func (e Event) Validate() error {
	if e.MessageID == "" {
		return ErrMissingMessageID
	}
	if e.Author() == "" {
		return ErrMissingAuthor
	}
	return nil
}

// Record is one accepted message as written to the JSONL log.
// Field order matches the on-disk format.
type Record struct {
	MessageID   string  `json:"message_id"`
	GroupID     string  `json:"group_id"`
	GroupName   string  `json:"group_name"`
	AuthorID    string  `json:"author_id"`
	AuthorName  string  `json:"author_name"`
	AuthorPhone *string `json:"author_phone"`
	Message     string  `json:"message"`
	AdHash      string  `json:"ad_hash,omitempty"`
	Timestamp   int64   `json:"timestamp"`

	// ContentHash is the exact-repeat fingerprint. It is mirrored to
	// Postgres but not part of the log line.
	ContentHash string `json:"-"`
}

// SuppressReason says why an event produced no record.
type SuppressReason string

const (
	ReasonNone        SuppressReason = ""
	ReasonEmptyText   SuppressReason = "empty_text"
	ReasonNotGroup    SuppressReason = "not_group"
	ReasonKnownID     SuppressReason = "known_id"
	ReasonExactRepeat SuppressReason = "exact_repeat"
	ReasonRepost      SuppressReason = "repost"
)

// Decision is the outcome of ingesting one event. Record is set only when
// Accepted is true.
type Decision struct {
	Accepted bool           `json:"accepted"`
	Reason   SuppressReason `json:"reason,omitempty"`
	Record   *Record        `json:"record,omitempty"`
}

// Suppressed builds a rejecting decision.
func Suppressed(reason SuppressReason) Decision {
	return Decision{Reason: reason}
}

// Accepted builds an accepting decision for rec.
func Accepted(rec Record) Decision {
	return Decision{Accepted: true, Record: &rec}
}
