package broadcast

import (
	"sync"
	"testing"
	"time"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestLateSubscriberGetsLatest(t *testing.T) {
	topic := New[bool]()
	topic.Publish(false)
	topic.Publish(true)

	ch, cancel := topic.Subscribe()
	defer cancel()

	if v := receive(t, ch); !v {
		t.Error("expected latest value true")
	}
}

func TestNoReplayBeforeFirstPublish(t *testing.T) {
	topic := New[int]()
	ch, cancel := topic.Subscribe()
	defer cancel()

	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d", v)
	default:
	}
	if _, ok := topic.Latest(); ok {
		t.Error("Latest should report no value")
	}
}

func TestSlowSubscriberSeesMostRecent(t *testing.T) {
	topic := New[int]()
	ch, cancel := topic.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		topic.Publish(i)
	}

	if v := receive(t, ch); v != 9 {
		t.Errorf("expected 9, got %d", v)
	}
	select {
	case v := <-ch:
		t.Errorf("expected no further values, got %d", v)
	default:
	}
}

func TestFanOut(t *testing.T) {
	topic := New[string]()
	a, cancelA := topic.Subscribe()
	b, cancelB := topic.Subscribe()
	defer cancelA()
	defer cancelB()

	topic.Publish("changed")
	if v := receive(t, a); v != "changed" {
		t.Errorf("a got %q", v)
	}
	if v := receive(t, b); v != "changed" {
		t.Errorf("b got %q", v)
	}
}

func TestCancel(t *testing.T) {
	topic := New[int]()
	ch, cancel := topic.Subscribe()
	if topic.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", topic.Subscribers())
	}

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	if topic.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", topic.Subscribers())
	}
	topic.Publish(1)
}

func TestConcurrentPublish(t *testing.T) {
	topic := New[int]()
	ch, cancel := topic.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				topic.Publish(n*100 + j)
			}
		}(i)
	}
	wg.Wait()

	latest, _ := topic.Latest()
	if v := receive(t, ch); v != latest {
		t.Errorf("pending value %d differs from latest %d", v, latest)
	}
}
