package natsbus

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/docpipe/core"
)

// DefaultRequestBacklog is the number of received requests that may wait
// for submit before new ones are turned away.
const DefaultRequestBacklog = 256

// ErrBusy is reported in the Ack of a request that arrived while the backlog was full.
var ErrBusy = errors.New("request backlog full")

// SubmitFunc accepts a decoded request, typically Orchestrator.Submit.
type SubmitFunc func(req *core.Request) error

// RequestSubscription feeds the requests subject into a SubmitFunc.
type RequestSubscription struct {
	sub    *nats.Subscription
	client *Client
	submit SubmitFunc
	logger *slog.Logger
	queue  chan *nats.Msg
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// SubscribeRequests feeds messages on the requests subject into submit.
// Messages with a reply subject are acknowledged with an Ack once submit
// returns.
//
// submit may block (Orchestrator.Submit does while a priority queue is
// full), so it runs on a separate goroutine and never on the NATS delivery
// goroutine. Up to backlog messages wait for it; further messages are
// rejected with ErrBusy. A backlog of zero or less uses DefaultRequestBacklog.
func SubscribeRequests(client *Client, topics Topics, submit SubmitFunc, logger *slog.Logger, backlog int) (*RequestSubscription, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if backlog <= 0 {
		backlog = DefaultRequestBacklog
	}

	rs := &RequestSubscription{
		client: client,
		submit: submit,
		logger: logger.With("component", "natsbus", "subject", topics.Requests()),
		queue:  make(chan *nats.Msg, backlog),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	sub, err := client.Subscribe(topics.Requests(), func(msg *nats.Msg) {
		select {
		case rs.queue <- msg:
		default:
			ack := Ack{Error: ErrBusy.Error()}
			if req, err := DecodeRequest(msg.Data); err == nil {
				ack.ID = req.ID
			}
			rs.logger.Warn("request rejected", "id", ack.ID, "err", ErrBusy)
			rs.reply(msg, ack)
		}
	})
	if err != nil {
		return nil, err
	}
	rs.sub = sub

	go rs.run()
	return rs, nil
}

func (rs *RequestSubscription) run() {
	defer close(rs.done)
	for {
		select {
		case msg := <-rs.queue:
			rs.handle(msg)
		case <-rs.stop:
			if n := len(rs.queue); n > 0 {
				rs.logger.Warn("dropping queued requests", "count", n)
			}
			return
		}
	}
}

func (rs *RequestSubscription) handle(msg *nats.Msg) {
	req, err := DecodeRequest(msg.Data)
	if err == nil {
		err = rs.submit(req)
	}

	ack := Ack{Accepted: err == nil}
	if req != nil {
		ack.ID = req.ID
	}
	if err != nil {
		ack.Error = err.Error()
		rs.logger.Warn("request rejected", "id", ack.ID, "err", err)
	} else {
		rs.logger.Debug("request accepted", "id", ack.ID)
	}
	rs.reply(msg, ack)
}

func (rs *RequestSubscription) reply(msg *nats.Msg, ack Ack) {
	if msg.Reply == "" {
		return
	}
	if err := rs.client.PublishJSON(msg.Reply, ack); err != nil {
		rs.logger.Warn("failed to acknowledge request", "id", ack.ID, "err", err)
	}
}

// Unsubscribe stops delivery and waits for the submit goroutine to exit.
// Requests still queued are dropped.
func (rs *RequestSubscription) Unsubscribe() error {
	var err error
	rs.once.Do(func() {
		err = rs.sub.Unsubscribe()
		close(rs.stop)
		<-rs.done
	})
	return err
}
