package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "shipsbell/pkg/logx"
)

func TestConsolePrintsOneLinePerWatch(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := NewConsole(&buf)
	for _, w := range []string{"middle watch", "morning watch"} {
		if err := c.Announce(context.Background(), w); err != nil {
			t.Fatal(err)
		}
	}
	if got := buf.String(); got != "middle watch\nmorning watch\n" {
		t.Fatalf("console output = %q", got)
	}
}

type stubAnnouncer struct {
	got    []string
	err    error
	closed bool
}

func (s *stubAnnouncer) Announce(_ context.Context, w string) error {
	s.got = append(s.got, w)
	return s.err
}

func (s *stubAnnouncer) Close() error {
	s.closed = true
	return nil
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	a, b, c := &stubAnnouncer{}, &stubAnnouncer{err: boom}, &stubAnnouncer{}
	m := &Multi{}
	m.Add(a)
	m.Add(b)
	m.Add(c)

	err := m.Announce(context.Background(), "first watch")
	if !errors.Is(err, boom) {
		t.Fatalf("Announce error = %v", err)
	}
	for i, s := range []*stubAnnouncer{a, b, c} {
		if len(s.got) != 1 || s.got[0] != "first watch" {
			t.Fatalf("member %d got %v", i, s.got)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Fatal("Close did not reach every member")
	}
}

func TestBestEffortSwallowsErrors(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	inner := &stubAnnouncer{err: errors.New("broker down")}
	a := BestEffort("mqtt", inner, logx.NewWriter(&logs, "debug"))
	if err := a.Announce(context.Background(), "forenoon watch"); err != nil {
		t.Fatalf("BestEffort returned %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("broker down")) {
		t.Fatalf("failure not logged: %s", logs.String())
	}
	m := &Multi{}
	m.Add(a)
	_ = m.Close()
	if !inner.closed {
		t.Fatal("BestEffort should forward Close")
	}
}

func TestNewConsoleOnly(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	m, err := New(Config{Console: true, Out: &buf}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 1 {
		t.Fatalf("members = %d", m.Len())
	}
	if err := m.Announce(context.Background(), "afternoon watch"); err != nil || buf.String() != "afternoon watch\n" {
		t.Fatalf("Announce = %v, output %q", err, buf.String())
	}
}

func TestNewRejectsIncompleteNetworkConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{MQTT: MQTTConfig{Enabled: true}}, logx.Nop()); err == nil {
		t.Fatal("mqtt without broker should fail")
	}
	if _, err := New(Config{Telegram: TelegramConfig{Enabled: true}}, logx.Nop()); err == nil {
		t.Fatal("telegram without token should fail")
	}
	if _, err := New(Config{Telegram: TelegramConfig{Enabled: true, Token: "123:abc"}}, logx.Nop()); err == nil {
		t.Fatal("telegram without chat_id should fail")
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	topic    string
	qos      byte
	retained bool
	payload  []byte
	err      error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic, f.qos, f.retained, f.payload = topic, qos, retained, payload
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func TestMQTTPayload(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	m := newMQTT(MQTTConfig{QoS: 1, Retained: true}, pub)
	m.now = func() time.Time { return time.Date(2024, 6, 1, 4, 0, 0, 0, time.UTC) }

	if err := m.Announce(context.Background(), "morning watch"); err != nil {
		t.Fatal(err)
	}
	if pub.topic != DefaultMQTTTopic || pub.qos != 1 || !pub.retained {
		t.Fatalf("published to %q qos=%d retained=%v", pub.topic, pub.qos, pub.retained)
	}
	var p Payload
	if err := json.Unmarshal(pub.payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.Watch != "morning watch" || p.Timestamp != "2024-06-01T04:00:00Z" {
		t.Fatalf("payload = %+v", p)
	}
}

type fakeBot struct {
	mu   sync.Mutex
	sent []string
	opts []*tele.SendOptions
	to   []tele.Recipient
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.sent = append(f.sent, what.(string))
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.opts = append(f.opts, so)
		}
	}
	return &tele.Message{ID: len(f.sent)}, nil
}

func TestTelegramSendsToThread(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	tg := newTelegram(TelegramConfig{ChatID: -100123, ThreadID: 7, RatePerSec: 50}, bot, logx.Nop())
	if err := tg.Announce(context.Background(), "first watch"); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 1 || bot.sent[0] != "🔔 first watch" {
		t.Fatalf("sent = %q", bot.sent)
	}
	if bot.to[0].Recipient() != "-100123" || bot.opts[0].ThreadID != 7 {
		t.Fatalf("recipient %s thread %d", bot.to[0].Recipient(), bot.opts[0].ThreadID)
	}
}

func TestTelegramRateLimitRespectsContext(t *testing.T) {
	t.Parallel()
	bot := &fakeBot{}
	tg := newTelegram(TelegramConfig{ChatID: 1, RatePerSec: 1}, bot, logx.Nop())
	if err := tg.Announce(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tg.Announce(ctx, "b"); err == nil {
		t.Fatal("second announce inside the rate window should wait past the deadline")
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(bot.sent))
	}
}
