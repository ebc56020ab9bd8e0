package mqtt

import (
	"fmt"
	"sync"
)

// MockNotifier records published events in memory. Used in tests.
type MockNotifier struct {
	mu         sync.Mutex
	events     map[string][]any
	FailTopics map[string]bool
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		events:     make(map[string][]any),
		FailTopics: make(map[string]bool),
	}
}

// Publish records the event or fails if the topic is marked as failing.
func (m *MockNotifier) Publish(topic string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("publish to %s failed", topic)
	}
	m.events[topic] = append(m.events[topic], event)
	return nil
}

// Events returns the events recorded for the topic.
func (m *MockNotifier) Events(topic string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.events[topic]))
	copy(out, m.events[topic])
	return out
}
