package message

import (
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// PubSub is the message transport: one publisher and a subscriber per
// consumer group, so every handler sees every message of its topic once.
type PubSub struct {
	Publisher     message.Publisher
	NewSubscriber func(consumerGroup string) (message.Subscriber, error)
}

func NewRedisPubSub(rdb *redis.Client, logger watermill.LoggerAdapter) (PubSub, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: rdb,
	}, logger)
	if err != nil {
		return PubSub{}, fmt.Errorf("creating redis publisher: %w", err)
	}

	return PubSub{
		Publisher: log.CorrelationPublisherDecorator{Publisher: publisher},
		NewSubscriber: func(consumerGroup string) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        rdb,
				ConsumerGroup: consumerGroup,
			}, logger)
		},
	}, nil
}

// NewGoChannelPubSub keeps messages in process. Messages published while no
// handler is subscribed are dropped.
func NewGoChannelPubSub(logger watermill.LoggerAdapter) PubSub {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)

	return PubSub{
		Publisher: log.CorrelationPublisherDecorator{Publisher: pubSub},
		NewSubscriber: func(string) (message.Subscriber, error) {
			return pubSub, nil
		},
	}
}
