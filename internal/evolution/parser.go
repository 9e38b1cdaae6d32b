package evolution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// rawEvent is the loosely-typed envelope delivered by the gateway (v2.2.x).
type rawEvent struct {
	APIKey string     `json:"apikey"`
	Data   *eventData `json:"data"`
}

type eventData struct {
	Key              *eventKey       `json:"key"`
	PushName         string          `json:"pushName"`
	MessageTimestamp *int64          `json:"messageTimestamp"`
	Message          *messagePayload `json:"message"`
}

type eventKey struct {
	RemoteJID string `json:"remoteJid"`
	ID        string `json:"id"`
}

// messagePayload carries one of several kind-specific sub-structures.
type messagePayload struct {
	Conversation string        `json:"conversation"`
	Audio        *mediaPayload `json:"audioMessage"`
	Image        *mediaPayload `json:"imageMessage"`
	Video        *mediaPayload `json:"videoMessage"`
	Document     *mediaPayload `json:"documentMessage"`
}

type mediaPayload struct {
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
	Seconds  int    `json:"seconds"`
}

// kindProbe maps an ordered shape predicate to a Kind. First match wins.
type kindProbe struct {
	kind  Kind
	match func(*messagePayload) bool
}

var kindProbes = []kindProbe{
	{KindText, func(m *messagePayload) bool { return m.Conversation != "" }},
	{KindAudio, func(m *messagePayload) bool { return m.Audio != nil }},
	{KindImage, func(m *messagePayload) bool { return m.Image != nil }},
	{KindVideo, func(m *messagePayload) bool { return m.Video != nil }},
	{KindDocument, func(m *messagePayload) bool { return m.Document != nil }},
}

// ParseEvent converts one raw webhook body, a single event object or an
// array of them, into normalized messages. Pure transformation: any envelope
// defect fails the whole batch with ErrInvalidPayload.
func ParseEvent(body []byte) ([]NormalizedMessage, error) {
	events, rootKey, err := splitEvents(body)
	if err != nil {
		return nil, err
	}

	messages := make([]NormalizedMessage, 0, len(events))
	for _, raw := range events {
		var ev rawEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}

		apiKey := ev.APIKey
		if apiKey == "" {
			apiKey = rootKey
		}
		if apiKey == "" {
			return nil, ErrMissingCredential
		}
		if ev.Data == nil || ev.Data.Key == nil {
			return nil, fmt.Errorf("%w: data or data.key missing", ErrInvalidPayload)
		}
		remoteJID := ev.Data.Key.RemoteJID
		messageID := ev.Data.Key.ID
		if remoteJID == "" || messageID == "" {
			return nil, fmt.Errorf("%w: remoteJid or id missing in data.key", ErrInvalidPayload)
		}

		isGroup := strings.HasSuffix(remoteJID, groupSuffix)
		msg := NormalizedMessage{
			APIKey:            apiKey,
			Context:           ContextPrivate,
			SenderJID:         remoteJID,
			PushName:          ev.Data.PushName,
			MessageID:         messageID,
			Timestamp:         eventTime(ev.Data.MessageTimestamp),
			Raw:               raw,
			CreateParticipant: !isGroup,
		}
		if isGroup {
			msg.Context = ContextGroup
			msg.GroupJID = remoteJID
		} else {
			msg.SenderPhone = digitsOnly(remoteJID)
		}

		msg.Kind = detectKind(ev.Data.Message)
		extractContent(ev.Data.Message, &msg)

		messages = append(messages, msg)
	}
	return messages, nil
}

// splitEvents normalizes single-object and array bodies into a slice of raw
// events, plus the root-level apikey when the body is an object.
func splitEvents(body []byte) ([]json.RawMessage, string, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	if trimmed[0] == '[' {
		var events []json.RawMessage
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return events, "", nil
	}

	var root struct {
		APIKey string `json:"apikey"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return []json.RawMessage{json.RawMessage(body)}, root.APIKey, nil
}

// detectKind probes the nested payload shapes in fixed priority order.
func detectKind(m *messagePayload) Kind {
	if m == nil {
		return KindUnknown
	}
	for _, probe := range kindProbes {
		if probe.match(m) {
			return probe.kind
		}
	}
	return KindUnknown
}

func extractContent(m *messagePayload, msg *NormalizedMessage) {
	if m == nil {
		return
	}
	switch msg.Kind {
	case KindText:
		msg.Text = m.Conversation
	case KindAudio:
		msg.MediaURL = m.Audio.URL
		msg.MimeType = m.Audio.MimeType
		msg.Duration = m.Audio.Seconds
	case KindImage:
		msg.MediaURL = m.Image.URL
		msg.MimeType = m.Image.MimeType
		msg.Text = m.Image.Caption
	case KindVideo:
		msg.MediaURL = m.Video.URL
		msg.MimeType = m.Video.MimeType
		msg.Text = m.Video.Caption
		msg.Duration = m.Video.Seconds
	case KindDocument:
		msg.MediaURL = m.Document.URL
		msg.MimeType = m.Document.MimeType
		msg.FileName = m.Document.FileName
	}
}

// eventTime converts the gateway epoch-seconds timestamp, substituting the
// current time when absent.
func eventTime(ts *int64) time.Time {
	if ts == nil {
		return time.Now().UTC()
	}
	return time.Unix(*ts, 0).UTC()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
