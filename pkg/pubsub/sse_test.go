package pubsub

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an event")
		return Event{}
	}
}

func TestPublishSubscribe(t *testing.T) {
	p := NewSSEPublisher()
	defer p.Close()

	sub, err := p.Subscribe(context.Background(), TopicGraph)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	status := GraphStatus{State: "ready", Message: "lineage map rebuilt", Resources: 42}
	if err := p.Publish(TopicGraph, "rebuilt", status); err != nil {
		t.Fatal(err)
	}

	event := receive(t, sub)
	if event.Topic != TopicGraph || event.Type != "rebuilt" || event.Version != 1 {
		t.Errorf("event = %+v", event)
	}
	var got GraphStatus
	if err := json.Unmarshal(event.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Resources != 42 {
		t.Errorf("payload = %+v", got)
	}
}

func TestVersionsIncrementPerTopic(t *testing.T) {
	p := NewSSEPublisher()
	defer p.Close()

	sub, err := p.Subscribe(context.Background(), TopicDiff)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	_ = p.Publish(TopicGraph, "rebuilt", GraphStatus{})
	_ = p.Publish(TopicDiff, "modified", DiffStatus{})
	_ = p.Publish(TopicDiff, "modified", DiffStatus{})

	first := receive(t, sub)
	second := receive(t, sub)
	if first.Version != 1 || second.Version != 2 {
		t.Errorf("diff versions = %d, %d; topics must version independently", first.Version, second.Version)
	}
}

func TestReplayLastEventToNewSubscriber(t *testing.T) {
	p := NewSSEPublisher()
	defer p.Close()
	p.ConfigureTopic(TopicGraph, TopicConfig{BufferSize: 5, ReplayAll: false})

	_ = p.Publish(TopicGraph, "rebuilt", GraphStatus{Resources: 1})
	_ = p.Publish(TopicGraph, "rebuilt", GraphStatus{Resources: 2})

	sub, err := p.Subscribe(context.Background(), TopicGraph)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	event := receive(t, sub)
	var got GraphStatus
	if err := json.Unmarshal(event.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Resources != 2 {
		t.Errorf("replayed payload = %+v, want only the latest", got)
	}

	select {
	case extra := <-sub.Events():
		t.Errorf("unexpected second replayed event: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	p := NewSSEPublisher()
	p.Close()

	if _, err := p.Subscribe(context.Background(), TopicGraph); err == nil {
		t.Fatal("expected an error after Close")
	}
	if err := p.Publish(TopicGraph, "rebuilt", GraphStatus{}); err == nil {
		t.Fatal("publish after Close must error")
	}
}

func TestWriteSSE(t *testing.T) {
	var sb strings.Builder
	event := Event{Topic: TopicGraph, Type: "rebuilt", Data: json.RawMessage(`{"state":"ready"}`), Version: 3}
	if err := WriteSSE(&sb, event); err != nil {
		t.Fatal(err)
	}

	out := sb.String()
	if !strings.HasPrefix(out, "data: ") || !strings.HasSuffix(out, "\n\n") {
		t.Errorf("frame = %q, want data: prefix and blank-line terminator", out)
	}
	var back Event
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(out, "data: "), "\n\n")), &back); err != nil {
		t.Fatal(err)
	}
	if back.Version != 3 || back.Topic != TopicGraph {
		t.Errorf("decoded frame = %+v", back)
	}
}
