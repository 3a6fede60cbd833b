package server

import "context"

// Broker fans published messages out to every current subscriber.
// Slow subscribers miss messages instead of blocking the publisher.
type Broker struct {
	publishCh chan interface{}
	subCh     chan chan interface{}
	unsubCh   chan chan interface{}
	done      chan struct{}
}

func newBroker() *Broker {
	return &Broker{
		publishCh: make(chan interface{}, 1),
		subCh:     make(chan chan interface{}),
		unsubCh:   make(chan chan interface{}),
		done:      make(chan struct{}),
	}
}

// Start runs the broker until ctx is done. Subscriber channels are closed
// on exit.
func (b *Broker) Start(ctx context.Context) {
	defer close(b.done)

	subs := map[chan interface{}]struct{}{}
	defer func() {
		for msgCh := range subs {
			close(msgCh)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msgCh := <-b.subCh:
			subs[msgCh] = struct{}{}
		case msgCh := <-b.unsubCh:
			if _, ok := subs[msgCh]; ok {
				delete(subs, msgCh)
				close(msgCh)
			}
		case msg := <-b.publishCh:
			for msgCh := range subs {
				select {
				case msgCh <- msg:
				default:
				}
			}
		}
	}
}

// Subscribe returns a channel receiving published messages. It is closed
// by Unsubscribe or when the broker stops.
func (b *Broker) Subscribe() chan interface{} {
	msgCh := make(chan interface{}, 1)
	select {
	case b.subCh <- msgCh:
	case <-b.done:
		close(msgCh)
	}
	return msgCh
}

func (b *Broker) Unsubscribe(msgCh chan interface{}) {
	select {
	case b.unsubCh <- msgCh:
	case <-b.done:
	}
}

func (b *Broker) Publish(msg interface{}) {
	select {
	case b.publishCh <- msg:
	case <-b.done:
	}
}
