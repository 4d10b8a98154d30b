package notify

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/config"
)

// FromConfig builds a dispatcher over the enabled channels. The returned closers
// must be closed after the dispatcher drains.
func FromConfig(cfg config.NotifyConfig, logger *zap.Logger) (*Dispatcher, []func() error, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	d := &Dispatcher{Timeout: cfg.Timeout, Logger: logger}
	var closers []func() error
	if cfg.Telegram.Enabled {
		d.Sinks = append(d.Sinks, &TelegramSink{
			BaseURL:  cfg.Telegram.BaseURL,
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			HTTP:     client,
		})
	}
	if cfg.Webhook.Enabled {
		d.Sinks = append(d.Sinks, &WebhookSink{URL: cfg.Webhook.URL, HTTP: client})
	}
	if cfg.Kafka.Enabled {
		k, err := NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, err
		}
		d.Sinks = append(d.Sinks, k)
		closers = append(closers, k.Close)
	}
	return d, closers, nil
}
