// Package events публикует интеграционные события во внешнюю шину.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const SubjectNotificationCreated = "notification.created"

// Envelope - общая оболочка события.
type Envelope struct {
	Subject    string          `json:"subject"`
	OccurredAt time.Time       `json:"occurred_at"`
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data"`
}

// Publisher отправляет событие. Ошибка публикации не должна ломать запрос.
type Publisher interface {
	Publish(ctx context.Context, subject, key string, payload any) error
	Close() error
}

func encode(subject, key string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return json.Marshal(Envelope{Subject: subject, OccurredAt: time.Now().UTC(), Key: key, Data: data})
}

// Noop используется, когда шина не настроена.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }
func (Noop) Close() error                                      { return nil }

// Recorder запоминает события в памяти.
type Recorder struct {
	mu     sync.Mutex
	Events []Envelope
}

func (r *Recorder) Publish(_ context.Context, subject, key string, payload any) error {
	raw, err := encode(subject, key, payload)
	if err != nil {
		return err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	r.mu.Lock()
	r.Events = append(r.Events, env)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }
