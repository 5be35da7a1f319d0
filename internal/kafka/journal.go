package kafka

import (
	"encoding/json"
	"log"
	"time"
)

// EventJournal mirrors room events onto a Kafka topic, keyed by room so each
// room's history stays ordered within a partition. It implements
// chat.Journal; recording is fire-and-forget.
type EventJournal struct {
	producer *Producer
	topic    string
	logger   *log.Logger
}

// NewEventJournal creates a journal writing to the given topic.
func NewEventJournal(producer *Producer, topic string, logger *log.Logger) *EventJournal {
	return &EventJournal{producer: producer, topic: topic, logger: logger}
}

type journalRecord struct {
	Type string    `json:"type"`
	Room string    `json:"room"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

func (j *EventJournal) Record(eventType, room string, payload any) {
	record, err := json.Marshal(journalRecord{
		Type: eventType,
		Room: room,
		At:   time.Now().UTC(),
		Data: payload,
	})
	if err != nil {
		j.logger.Printf("journal marshal %s: %v", eventType, err)
		return
	}
	if err := j.producer.Send(j.topic, room, record); err != nil {
		j.logger.Printf("journal %s in %s: %v", eventType, room, err)
	}
}
