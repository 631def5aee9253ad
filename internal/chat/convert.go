package chat

import (
	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/tracker"
	"github.com/matheus3301/nexus/internal/transport"
)

func fromHistory(msgs []api.Message) []tracker.Message {
	out := make([]tracker.Message, 0, len(msgs))
	for _, m := range msgs {
		st, ok := tracker.ParseStatus(m.Status)
		if !ok {
			st = tracker.Sent
		}
		out = append(out, tracker.Message{
			ID:          m.ID,
			SenderID:    m.SenderID,
			RecipientID: m.RecipientID,
			Content:     m.Content,
			Status:      st,
			SentAt:      m.TimeStamp.Time,
			ReadAt:      m.ReadTimestamp.Time,
		})
	}
	return out
}

// fromInbound converts a pushed message. A message that reached this client
// live has been delivered.
func fromInbound(m transport.InboundMessage) tracker.Message {
	st, ok := tracker.ParseStatus(m.Status)
	if !ok || st == tracker.Sent {
		st = tracker.Delivered
	}
	return tracker.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		Status:      st,
		SentAt:      m.Timestamp.Time,
	}
}
