package db

import (
	"encoding/json"
	"fmt"
)

// EncodeColumns serializes the JSON columns of a conversation row.
// encoding/json sorts map keys, so equal snapshots encode to equal bytes.
func EncodeColumns(conv *Conversation) (model, messages []byte, err error) {
	model, err = json.Marshal(conv.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding model snapshot: %w", err)
	}
	msgs := conv.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	messages, err = json.Marshal(msgs)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding messages: %w", err)
	}
	return model, messages, nil
}

// DecodeColumns restores the JSON columns of a conversation row
func DecodeColumns(conv *Conversation, model, messages []byte) error {
	if len(model) > 0 {
		if err := json.Unmarshal(model, &conv.Model); err != nil {
			return fmt.Errorf("error decoding model snapshot: %w", err)
		}
	}
	conv.Messages = []Message{}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &conv.Messages); err != nil {
			return fmt.Errorf("error decoding messages: %w", err)
		}
	}
	return nil
}

// Unavailable tags a driver-level failure as ErrStoreUnavailable
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
