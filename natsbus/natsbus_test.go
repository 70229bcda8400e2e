package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/docpipe/config"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/orchestrator"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBus(t *testing.T) (*Bus, *Client) {
	t.Helper()
	bus, err := New(config.NATSConfig{Port: -1})
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	client, err := NewClient(bus)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return bus, client
}

func subscribeChan(t *testing.T, client *Client, topic string) <-chan *nats.Msg {
	t.Helper()
	ch := make(chan *nats.Msg, 16)
	_, err := client.Subscribe(topic, func(msg *nats.Msg) { ch <- msg })
	require.NoError(t, err)
	require.NoError(t, client.Flush())
	return ch
}

func receive(t *testing.T, ch <-chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func TestBusStartStop(t *testing.T) {
	bus, err := New(config.NATSConfig{Port: -1})
	require.NoError(t, err)
	defer bus.Close()

	assert.NotEmpty(t, bus.ClientURL())
}

func TestBusWithJetStream(t *testing.T) {
	bus, err := New(config.NATSConfig{Port: -1, DataDir: t.TempDir()})
	require.NoError(t, err)
	bus.Close()
}

func TestPubSub(t *testing.T) {
	_, client := startBus(t)
	received := subscribeChan(t, client, "test.topic")

	require.NoError(t, client.Publish("test.topic", []byte("hello")))
	assert.Equal(t, "hello", string(receive(t, received).Data))
}

func TestPublishJSON(t *testing.T) {
	_, client := startBus(t)
	received := subscribeChan(t, client, "test.json")

	require.NoError(t, client.PublishJSON("test.json", map[string]string{"key": "value"}))
	assert.JSONEq(t, `{"key":"value"}`, string(receive(t, received).Data))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "docpipe.requests", DefaultTopics.Requests())
	assert.Equal(t, "docpipe.results.success", DefaultTopics.ResultsSuccess())
	assert.Equal(t, "docpipe.results.error", DefaultTopics.ResultsError())
	assert.Equal(t, "docpipe.results.*", DefaultTopics.Results())
	assert.Equal(t, "docpipe.stats", DefaultTopics.Stats())
	assert.Equal(t, "acme.stats", Topics{Prefix: "acme"}.Stats())
}

func TestRequestMessage(t *testing.T) {
	req := &core.Request{
		ID:           "r1",
		Input:        []byte{0xFF, 0xD8, 0xFF, 0x00},
		Kind:         core.InputKindImage,
		DocumentType: core.DocumentTypeCheck,
		Priority:     2,
		Metadata:     map[string]string{"branch": "north"},
	}
	data, err := json.Marshal(NewRequestMessage(req))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"image"`)

	decoded, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)

	_, err = DecodeRequest([]byte(`{"input":"eA==","kind":"video"}`))
	assert.ErrorIs(t, err, core.ErrInvalidInputKind)

	_, err = DecodeRequest([]byte(`not json`))
	assert.Error(t, err)
}

func TestPublisher(t *testing.T) {
	_, client := startBus(t)
	results := subscribeChan(t, client, DefaultTopics.Results())
	stats := subscribeChan(t, client, DefaultTopics.Stats())
	pub := NewPublisher(client, DefaultTopics)
	ctx := context.Background()

	require.NoError(t, pub.PublishResult(ctx, &core.Result{RequestID: "ok", Success: true, Payload: "text"}))
	msg := receive(t, results)
	assert.Equal(t, DefaultTopics.ResultsSuccess(), msg.Subject)
	var res core.Result
	require.NoError(t, json.Unmarshal(msg.Data, &res))
	assert.Equal(t, "ok", res.RequestID)
	assert.True(t, res.Success)

	require.NoError(t, pub.PublishError(ctx, &core.Result{RequestID: "bad", Error: "boom", Err: errors.New("boom")}))
	msg = receive(t, results)
	assert.Equal(t, DefaultTopics.ResultsError(), msg.Subject)
	require.NoError(t, json.Unmarshal(msg.Data, &res))
	assert.Equal(t, "boom", res.Error)

	require.NoError(t, pub.PublishStatistics(ctx, core.NewPipelineStatistics(time.Unix(0, 0).UTC(), 3, 1)))
	var snapshot core.PipelineStatistics
	require.NoError(t, json.Unmarshal(receive(t, stats).Data, &snapshot))
	assert.Equal(t, int64(4), snapshot.Total)
	assert.Equal(t, 0.75, snapshot.SuccessRate)
}

func TestSubscribeRequests_Ack(t *testing.T) {
	_, client := startBus(t)

	var mu sync.Mutex
	var got []*core.Request
	submit := func(req *core.Request) error {
		if req.Priority > 5 {
			return errors.New("queue full")
		}
		mu.Lock()
		defer mu.Unlock()
		req.ID = "assigned"
		got = append(got, req)
		return nil
	}
	sub, err := SubscribeRequests(client, DefaultTopics, submit, nil, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	require.NoError(t, client.Flush())

	send := func(m RequestMessage) Ack {
		data, err := json.Marshal(m)
		require.NoError(t, err)
		reply, err := client.Request(DefaultTopics.Requests(), data, 2*time.Second)
		require.NoError(t, err)
		var ack Ack
		require.NoError(t, json.Unmarshal(reply.Data, &ack))
		return ack
	}

	ack := send(RequestMessage{Input: []byte("hello"), Kind: "text"})
	assert.True(t, ack.Accepted)
	assert.Equal(t, "assigned", ack.ID)

	ack = send(RequestMessage{Input: []byte("hello"), Kind: "text", Priority: 9})
	assert.False(t, ack.Accepted)
	assert.Equal(t, "queue full", ack.Error)

	ack = send(RequestMessage{Input: []byte("hello"), Kind: "hologram"})
	assert.False(t, ack.Accepted)
	assert.Contains(t, ack.Error, "invalid input kind")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "hello", string(got[0].Input))
}

func TestSubscribeRequests_BlockedSubmitRejectsOverflow(t *testing.T) {
	_, client := startBus(t)

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	var mu sync.Mutex
	var got []string
	submit := func(req *core.Request) error {
		entered <- struct{}{}
		<-release
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(req.Input))
		return nil
	}
	sub, err := SubscribeRequests(client, DefaultTopics, submit, nil, 1)
	require.NoError(t, err)
	require.NoError(t, client.Flush())

	publish := func(input string) {
		data, err := json.Marshal(RequestMessage{ID: input, Input: []byte(input), Kind: "text"})
		require.NoError(t, err)
		require.NoError(t, client.Publish(DefaultTopics.Requests(), data))
	}

	publish("first")
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("submit was never called")
	}
	publish("second")

	// submit is still blocked on "first" and "second" fills the backlog.
	data, err := json.Marshal(RequestMessage{ID: "third", Input: []byte("third"), Kind: "text"})
	require.NoError(t, err)
	reply, err := client.Request(DefaultTopics.Requests(), data, 2*time.Second)
	require.NoError(t, err)
	var ack Ack
	require.NoError(t, json.Unmarshal(reply.Data, &ack))
	assert.False(t, ack.Accepted)
	assert.Equal(t, "third", ack.ID)
	assert.Equal(t, ErrBusy.Error(), ack.Error)

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, sub.Unsubscribe())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestOrchestratorOverBus(t *testing.T) {
	_, client := startBus(t)
	results := subscribeChan(t, client, DefaultTopics.Results())

	upper := pipeline.NodeFunc[*core.Request, *core.Result](func(ctx context.Context, req *core.Request) (*core.Result, error) {
		if string(req.Input) == "fail" {
			return nil, errors.New("cannot read document")
		}
		return &core.Result{Payload: "seen:" + string(req.Input)}, nil
	})
	orch, err := orchestrator.New(upper,
		orchestrator.WithRateLimit(0, 0),
		orchestrator.WithRetries(0, 0),
		orchestrator.WithTimeout(0),
		orchestrator.WithStatisticsInterval(0),
		orchestrator.WithPublisher(NewPublisher(client, DefaultTopics)),
	)
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Close()

	sub, err := SubscribeRequests(client, DefaultTopics, orch.Submit, nil, 0)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, client.Flush())

	for _, input := range []string{"doc", "fail"} {
		data, err := json.Marshal(RequestMessage{ID: input, Input: []byte(input), Kind: "text"})
		require.NoError(t, err)
		require.NoError(t, client.Publish(DefaultTopics.Requests(), data))
	}

	bySubject := map[string]core.Result{}
	for i := 0; i < 2; i++ {
		msg := receive(t, results)
		var res core.Result
		require.NoError(t, json.Unmarshal(msg.Data, &res))
		bySubject[msg.Subject] = res
	}

	success := bySubject[DefaultTopics.ResultsSuccess()]
	assert.Equal(t, "doc", success.RequestID)
	assert.Equal(t, "seen:doc", success.Payload)

	failure := bySubject[DefaultTopics.ResultsError()]
	assert.Equal(t, "fail", failure.RequestID)
	assert.Contains(t, failure.Error, "cannot read document")
}
