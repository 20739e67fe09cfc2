// Package events fans world tick events out to interested consumers (the
// websocket server, tests) over an in-process Watermill pub/sub.
//
// Publishing blocks until every subscriber has acked, so subscribers see
// batches in tick order. Subscribers must therefore ack quickly and hand work
// off instead of doing it inline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"washcycle.game/internal/protocol"
)

const TopicTickEvents = "world.tick_events"

type Bus struct {
	pubsub *gochannel.GoChannel
	logger *log.Logger
	wg     sync.WaitGroup
}

func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, &stdLogAdapter{log: logger})
	return &Bus{pubsub: ps, logger: logger}
}

// PublishEvents implements world.EventPublisher.
func (b *Bus) PublishEvents(msg protocol.EventsMsg) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("events: marshal tick %d: %w", msg.Tick, err)
	}
	m := message.NewMessage(watermill.NewUUID(), payload)
	m.Metadata.Set("world_id", msg.WorldID)
	m.Metadata.Set("tick", strconv.FormatUint(msg.Tick, 10))
	if err := b.pubsub.Publish(TopicTickEvents, m); err != nil {
		return fmt.Errorf("events: publish to %s: %w", TopicTickEvents, err)
	}
	return nil
}

// Subscribe calls handler for every batch until ctx is done or the bus is
// closed. Messages are acked whether or not the handler fails; failures are
// logged, since a live event stream has nothing useful to redeliver.
func (b *Bus) Subscribe(ctx context.Context, handler func(context.Context, protocol.EventsMsg) error) error {
	ch, err := b.pubsub.Subscribe(ctx, TopicTickEvents)
	if err != nil {
		return fmt.Errorf("events: subscribe to %s: %w", TopicTickEvents, err)
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for m := range ch {
			var msg protocol.EventsMsg
			if err := json.Unmarshal(m.Payload, &msg); err != nil {
				b.logger.Printf("events: drop undecodable message %s: %v", m.UUID, err)
				m.Ack()
				continue
			}
			if err := handler(m.Context(), msg); err != nil {
				b.logger.Printf("events: handler failed tick=%d: %v", msg.Tick, err)
			}
			m.Ack()
		}
	}()
	return nil
}

// Close stops the pub/sub and waits for subscriber goroutines to return.
func (b *Bus) Close() error {
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}

// stdLogAdapter bridges *log.Logger to watermill.LoggerAdapter.
type stdLogAdapter struct {
	log    *log.Logger
	fields watermill.LogFields
}

func (a *stdLogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Printf("events: %s: %v %v", msg, err, a.merge(fields))
}
func (a *stdLogAdapter) Info(msg string, fields watermill.LogFields)  {}
func (a *stdLogAdapter) Debug(msg string, fields watermill.LogFields) {}
func (a *stdLogAdapter) Trace(msg string, fields watermill.LogFields) {}
func (a *stdLogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &stdLogAdapter{log: a.log, fields: a.merge(fields)}
}

func (a *stdLogAdapter) merge(fields watermill.LogFields) watermill.LogFields {
	if len(a.fields) == 0 {
		return fields
	}
	return a.fields.Add(fields)
}
