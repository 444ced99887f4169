package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// HostName is the author of messages generated by the server itself.
const HostName = "Host"

// ErrInvalidUTF8 is returned when encoding a message whose fields are not
// valid UTF-8. JSON would otherwise replace the bad bytes silently.
var ErrInvalidUTF8 = errors.New("chat: message is not valid UTF-8")

// Message is the chat envelope exchanged after the handshake.
// The zero value is a valid message with empty username and content.
type Message struct {
	username string
	content  string
}

type wireMessage struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

func NewMessage(username, content string) Message {
	return Message{username: username, content: content}
}

// HostMessage builds a system notice authored by HostName.
func HostMessage(content string) Message {
	return NewMessage(HostName, content)
}

func (m Message) Username() string {
	return m.username
}

func (m Message) Content() string {
	return m.content
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.username, m.content)
}

func (m Message) MarshalJSON() ([]byte, error) {
	if !utf8.ValidString(m.username) || !utf8.ValidString(m.content) {
		return nil, ErrInvalidUTF8
	}
	return json.Marshal(wireMessage{Username: m.username, Content: m.content})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.username = w.Username
	m.content = w.Content
	return nil
}

// Encode returns the wire form of the message.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses the wire form produced by Encode.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}
