package evolution

import (
	"encoding/json"
	"errors"
	"time"
)

// Context distinguishes private chats from group chats.
type Context string

const (
	ContextPrivate Context = "private"
	ContextGroup   Context = "group"
)

// Kind is the closed enumeration of supported message content types.
type Kind string

const (
	KindText     Kind = "text"
	KindAudio    Kind = "audio"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindUnknown  Kind = "unknown"
)

// Supported reports whether the kind may be persisted. Unknown payloads are
// dropped before they reach the store.
func (k Kind) Supported() bool {
	switch k {
	case KindText, KindAudio, KindImage, KindVideo, KindDocument:
		return true
	}
	return false
}

// ErrInvalidPayload indicates a malformed webhook envelope. It aborts the
// whole batch: a broken envelope cannot be attributed to any tenant.
var ErrInvalidPayload = errors.New("invalid gateway payload")

// ErrMissingCredential indicates an event carrying no apikey. It is checked
// before any structural validation, so a secret-less body is an
// authentication failure rather than a malformed one.
var ErrMissingCredential = errors.New("gateway credential missing")

// groupSuffix marks a remote JID as a group address.
const groupSuffix = "@g.us"

// NormalizedMessage is the uniform shape every inbound gateway event is
// reduced to before resolution and persistence.
type NormalizedMessage struct {
	// APIKey is the tenant shared secret carried by the event.
	APIKey string

	Context  Context
	GroupJID string

	// SenderJID is the full remote JID (e.g. 5511999...@s.whatsapp.net).
	SenderJID string
	// SenderPhone is the digits-only phone, private context only.
	SenderPhone string
	PushName    string

	MessageID string
	Timestamp time.Time

	Kind     Kind
	Text     string
	MediaURL string
	MimeType string
	FileName string
	// Duration in seconds, audio and video only.
	Duration int

	// Raw retains the original event for diagnostics.
	Raw json.RawMessage

	// CreateParticipant permits the resolver to create a patient record
	// for an unseen private number. Always false for groups.
	CreateParticipant bool
}
