package notifier

import (
	"errors"
	"testing"
)

type recorder struct {
	topics []string
	err    error
}

func (r *recorder) Publish(topic string, _ any) error {
	r.topics = append(r.topics, topic)
	return r.err
}

func TestStationTopic(t *testing.T) {
	if got := StationTopic("101"); got != "station-101" {
		t.Errorf("StationTopic = %q", got)
	}
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	bad := &recorder{err: errors.New("down")}
	good := &recorder{}
	m := Multi{bad, good}

	err := m.Publish("admin", "ev")
	if !errors.Is(err, bad.err) {
		t.Fatalf("expected first error back, got %v", err)
	}
	if len(good.topics) != 1 {
		t.Errorf("second notifier skipped: %v", good.topics)
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish("admin", "ev"); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}
