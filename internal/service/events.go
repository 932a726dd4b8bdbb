package service

import (
	"encoding/json"
	"fmt"

	"billexpress/internal/model"
	"billexpress/pkg/idgen"
)

func newOutboxMessage(topic, eventType string, payload map[string]interface{}) (*model.OutboxMessage, error) {
	payload["event_type"] = eventType
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &model.OutboxMessage{
		MessageKey: idgen.GenerateEventKey(),
		EventType:  eventType,
		Topic:      topic,
		Payload:    string(body),
		Status:     model.OutboxStatusPending,
	}, nil
}
