package mq

import (
	"context"
	"encoding/json"
	"fmt"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"

	"github.com/rtcface/chat-bot-backend/internal/domain"
)

type Producer struct{ client rocketmq.Producer }

func NewProducer(client rocketmq.Producer) *Producer {
	return &Producer{client: client}
}

func (p *Producer) PublishTurnCompleted(ctx context.Context, ev *domain.TurnCompletedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("converting error: %w", err)
	}
	msg := primitive.NewMessage(TopicChatEvents, data)
	msg.WithTag(TagTurnCompleted)

	_, err = p.client.SendSync(ctx, msg)
	return err
}

func (p *Producer) Shutdown() error {
	return p.client.Shutdown()
}
