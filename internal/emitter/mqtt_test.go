package emitter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dotos-lab/sysuid/internal/model"
)

func TestEncode(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	data, err := Encode(model.Sample{Value: 59, Seq: 7, Timestamp: ts})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := `{"fps":59,"seq":7,"ts":1700000000123}`
	if string(data) != want {
		t.Fatalf("Expected %s, got %s", want, data)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatal(err)
	}
	if p.FPS != 59 {
		t.Fatalf("Expected fps 59, got %d", p.FPS)
	}
}

func TestPublishDropsWhenDisconnected(t *testing.T) {
	e := NewMQTTEmitter("127.0.0.1:1", "sysuid/fps", nil)
	e.Publish(model.Sample{Value: 30})
	e.Publish(model.Sample{Value: 31})
	published, dropped := e.Stats()
	if published != 0 || dropped != 2 {
		t.Fatalf("Expected 0 published and 2 dropped, got %d/%d", published, dropped)
	}
	if !strings.HasPrefix(e.clientID, "sysuid-") {
		t.Fatalf("Unexpected client id %q", e.clientID)
	}
}
