package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/segmentio/kafka-go"
)

// 注文イベントをKafkaへ流す。brokers未設定ならnilを返し、呼び出し側はnil安全
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokersCSV string, topic string) *KafkaPublisher {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// 送りっぱなし。失敗はログに残すだけで業務処理は止めない
func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload interface{}) {
	if p == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Warnf("kafka: marshal failed: %v", err)
		return
	}

	msg := kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Warnf("kafka: publish failed: %v", err)
	}
}

func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
