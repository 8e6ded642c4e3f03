package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/techrank/internal/domain/model"
)

// Message is the JSON body of a service record event on the topic.
type Message struct {
	EventID           string  `json:"event_id"`
	TechnicianID      string  `json:"technician_id"`
	Date              string  `json:"date"`
	ServiceTime       float64 `json:"service_time"`
	FirstResponseTime float64 `json:"first_response_time"`
	Rating            float64 `json:"rating"`
	Notes             string  `json:"notes,omitempty"`
}

// DecodeMessage parses a message body. The broker message key is used as the
// event id when the body carries none.
func DecodeMessage(key, value []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(value, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(m.EventID) == "" {
		m.EventID = string(key)
	}
	if strings.TrimSpace(m.EventID) == "" {
		return Message{}, fmt.Errorf("%w: event_id is required", ErrMalformed)
	}
	return m, nil
}

// Input converts the message to a record input.
func (m Message) Input() (model.RecordInput, error) {
	date, err := model.ParseTime(m.Date)
	if err != nil {
		return model.RecordInput{}, fmt.Errorf("%w: date: %v", ErrMalformed, err)
	}
	return model.RecordInput{
		TechnicianID:      m.TechnicianID,
		Date:              date,
		ServiceTime:       m.ServiceTime,
		FirstResponseTime: m.FirstResponseTime,
		Rating:            m.Rating,
		Notes:             m.Notes,
	}, nil
}
