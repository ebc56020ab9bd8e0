// Package notifier defines the realtime broadcast boundary. Publishing is
// best effort: the engine logs failures and never lets them block or fail a
// swap transition.
package notifier

import "fmt"

// AdminTopic receives every swap event regardless of station.
const AdminTopic = "admin"

// StationTopic returns the topic scoped to a single station.
func StationTopic(stationID string) string {
	return fmt.Sprintf("station-%s", stationID)
}

// Notifier broadcasts an event payload to all subscribers of a topic.
type Notifier interface {
	Publish(topic string, event any) error
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }

// Multi fans a publish out to several notifiers. Individual failures do not
// stop the remaining notifiers; the first error is returned.
type Multi []Notifier

func (m Multi) Publish(topic string, event any) error {
	var first error
	for _, n := range m {
		if err := n.Publish(topic, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
