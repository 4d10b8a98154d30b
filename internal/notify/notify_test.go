package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestTelegramSinkPostsMessage(t *testing.T) {
	var got telegramSendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &TelegramSink{BaseURL: srv.URL, BotToken: "tok", ChatID: "42"}
	err := s.Send(context.Background(), Event{Kind: KindBuyDecision, Title: "BUY AAPL", Fields: map[string]any{"score": 7}})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Fatalf("path=%q", path)
	}
	if got.ChatID != "42" || !strings.Contains(got.Text, "score: 7") {
		t.Fatalf("payload=%+v", got)
	}
}

func TestWebhookSinkReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	s := &WebhookSink{URL: srv.URL}
	if err := s.Send(context.Background(), Event{Kind: KindSystemStatus}); err == nil {
		t.Fatalf("expected error")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Send(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func TestDispatcherFansOutAndSwallowsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("down")}
	d := &Dispatcher{Sinks: []Sink{ok, bad}}
	d.Notify(context.Background(), Event{Kind: KindTradeOpened, Title: "opened"})
	d.Close()
	if len(ok.events) != 1 || len(bad.events) != 1 {
		t.Fatalf("ok=%d bad=%d want 1 each", len(ok.events), len(bad.events))
	}
	if ok.events[0].At.IsZero() {
		t.Fatalf("event timestamp not set")
	}
}

func TestKafkaSinkPublishesJSON(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Kind != KindTradeClosed {
			return errors.New("unexpected kind " + ev.Kind)
		}
		return nil
	})
	s := NewKafkaSinkWithProducer(producer, "insider.decisions")
	if err := s.Send(context.Background(), Event{Kind: KindTradeClosed}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close err=%v", err)
	}
	var _ sarama.SyncProducer = producer
}
