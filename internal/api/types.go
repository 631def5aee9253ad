package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// User is a search result or an auth subject.
type User struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Status   string `json:"status"`
}

// Contact is one entry of the ordered contacts list.
type Contact struct {
	Username            string    `json:"username"`
	FullName            string    `json:"fullName"`
	Status              string    `json:"status"`
	LastMessage         string    `json:"lastMessage,omitempty"`
	LastMessageSenderID string    `json:"lastMessageSenderId,omitempty"`
	LastMessageTime     Timestamp `json:"lastMessageTime"`
	UnreadCount         int       `json:"unreadCount"`
}

// Message is a persisted chat message as returned by the history endpoints.
type Message struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	RecipientID   string    `json:"recipientId"`
	Content       string    `json:"content"`
	Status        string    `json:"status"`
	TimeStamp     Timestamp `json:"timeStamp"`
	ReadTimestamp Timestamp `json:"readTimestamp"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// Timestamp decodes the server's dates: epoch milliseconds, an ISO-8601
// string, or null. The zero value means absent.
type Timestamp struct {
	time.Time
}

// Millis wraps a time as a Timestamp.
func Millis(t time.Time) Timestamp {
	return Timestamp{t}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			ts.Time = time.Time{}
			return nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				ts.Time = t
				return nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			ts.Time = time.UnixMilli(ms)
			return nil
		}
		return fmt.Errorf("unrecognized timestamp %q", s)
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("unrecognized timestamp %s", data)
	}
	ts.Time = time.UnixMilli(int64(ms))
	return nil
}

// MarshalJSON encodes the timestamp as epoch milliseconds, or null when zero.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(ts.UnixMilli(), 10)), nil
}
