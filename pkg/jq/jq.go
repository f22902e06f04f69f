package jq

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

type JobQueue struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

func New(url string, logger *zap.Logger) (*JobQueue, error) {
	if url == "" {
		return nil, errors.New("nats url is empty")
	}

	jq := &JobQueue{logger: logger.Named("jq")}

	conn, err := nats.Connect(
		url,
		nats.Name("kaytu-assistant"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				jq.logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			jq.logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	jq.conn = conn
	jq.js = js

	return jq, nil
}

func (jq *JobQueue) Close() {
	if err := jq.conn.Drain(); err != nil {
		jq.logger.Warn("failed to drain nats connection", zap.Error(err))
		jq.conn.Close()
	}
}

// Stream creates the stream, or updates its subjects when it already exists.
func (jq *JobQueue) Stream(ctx context.Context, name, description string, topics []string, maxMsgs int64) error {
	_, err := jq.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        name,
		Description: description,
		Subjects:    topics,
		MaxMsgs:     maxMsgs,
		Retention:   jetstream.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}

	return nil
}

// Produce publishes data on topic. The message id lets jetstream drop duplicates
// published inside the stream's duplicate window.
func (jq *JobQueue) Produce(ctx context.Context, topic string, data []byte, id string) (*jetstream.PubAck, error) {
	var opts []jetstream.PublishOpt
	if id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}

	ack, err := jq.js.Publish(ctx, topic, data, opts...)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", topic, err)
	}

	return ack, nil
}

// Consume attaches a durable consumer to the stream and delivers every message on topics to handler.
func (jq *JobQueue) Consume(
	ctx context.Context,
	service string,
	stream string,
	topics []string,
	consumer string,
	handler func(jetstream.Msg),
) (jetstream.ConsumeContext, error) {
	c, err := jq.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Name:           consumer,
		Durable:        consumer,
		Description:    service,
		FilterSubjects: topics,
		DeliverPolicy:  jetstream.DeliverAllPolicy,
		AckPolicy:      jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", consumer, err)
	}

	consumeCtx, err := c.Consume(handler)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", consumer, err)
	}

	return consumeCtx, nil
}
