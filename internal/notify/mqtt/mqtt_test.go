package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/inspectflow/internal/domain"
)

// stubToken completes immediately with err. The embedded interface is never
// called; it only satisfies methods the dispatcher does not use.
type stubToken struct {
	paho.Token
	err  error
	done chan struct{}
}

func newToken(err error) *stubToken {
	t := &stubToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *stubToken) Wait() bool                       { return true }
func (t *stubToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *stubToken) Done() <-chan struct{}            { return t.done }
func (t *stubToken) Error() error                     { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type stubClient struct {
	connected    bool
	err          error
	sent         []published
	disconnected bool
}

func (c *stubClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newToken(c.err)
}

func (c *stubClient) IsConnected() bool { return c.connected }

func (c *stubClient) Disconnect(uint) { c.disconnected = true }

var event = domain.TransitionEvent{
	InspectionID: "insp-2",
	TenantID:     "shop-7",
	From:         domain.StateSentToCustomer,
	To:           domain.StateCompleted,
	Version:      6,
}

func TestDispatch(t *testing.T) {
	c := &stubClient{connected: true}
	d := &Dispatcher{client: c, topic: "inspectflow/events", logger: zerolog.Nop()}

	require.NoError(t, d.Dispatch(context.Background(), event))
	require.Len(t, c.sent, 1)
	assert.Equal(t, "inspectflow/events/shop-7/insp-2", c.sent[0].topic)
	assert.Equal(t, byte(1), c.sent[0].qos)

	var body map[string]any
	require.NoError(t, json.Unmarshal(c.sent[0].payload, &body))
	assert.Equal(t, "completed", body["to"])

	require.NoError(t, d.Close())
	assert.True(t, c.disconnected)
}

func TestDispatchNotConnected(t *testing.T) {
	d := &Dispatcher{client: &stubClient{}, topic: "t", logger: zerolog.Nop()}
	assert.Error(t, d.Dispatch(context.Background(), event))
}

func TestDispatchPublishError(t *testing.T) {
	c := &stubClient{connected: true, err: errors.New("not authorized")}
	d := &Dispatcher{client: c, topic: "t", logger: zerolog.Nop()}

	err := d.Dispatch(context.Background(), event)
	assert.ErrorContains(t, err, "not authorized")
}

func TestWaitHonoursContext(t *testing.T) {
	pending := &stubToken{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, wait(ctx, pending, time.Minute), context.Canceled)
}
