package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	key       string
	published []amqp.Publishing
	err       error
	closed    bool
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.key = key
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishOrderPlaced(t *testing.T) {
	ch := &fakeChannel{}
	client := &Client{channel: ch, queue: DefaultQueue}
	event := OrderPlacedEvent{
		OrderID:     "order-1",
		UserID:      "user-1",
		TotalAmount: decimal.RequireFromString("50000"),
		Items:       []OrderPlacedItem{{ProductID: "p-1", Quantity: 2, UnitPrice: decimal.RequireFromString("25000")}},
		PlacedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, client.PublishOrderPlaced(context.Background(), event))
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, DefaultQueue, ch.key)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "order-1", msg.MessageId)

	var decoded OrderPlacedEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "user-1", decoded.UserID)
	assert.True(t, event.TotalAmount.Equal(decoded.TotalAmount))
}

func TestOrderPlacedEventAmountsAreNumbers(t *testing.T) {
	saved := decimal.MarshalJSONWithoutQuotes
	t.Cleanup(func() { decimal.MarshalJSONWithoutQuotes = saved })

	event := OrderPlacedEvent{
		OrderID:     "order-2",
		TotalAmount: decimal.RequireFromString("37500.50"),
		Items:       []OrderPlacedItem{{ProductID: "p-2", Quantity: 3, UnitPrice: decimal.RequireFromString("12500.00")}},
	}
	for _, withoutQuotes := range []bool{false, true} {
		decimal.MarshalJSONWithoutQuotes = withoutQuotes
		raw, err := json.Marshal(event)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, 37500.5, body["total_amount"])
		item := body["items"].([]any)[0].(map[string]any)
		assert.Equal(t, 12500.0, item["unit_price"])
		assert.Equal(t, "p-2", item["product_id"])
		assert.Equal(t, "order-2", body["order_id"])
	}
}

func TestPublishOrderPlacedErrors(t *testing.T) {
	var nilClient *Client
	assert.Error(t, nilClient.PublishOrderPlaced(context.Background(), OrderPlacedEvent{}))

	client := &Client{channel: &fakeChannel{err: errors.New("channel closed")}, queue: DefaultQueue}
	assert.ErrorContains(t, client.PublishOrderPlaced(context.Background(), OrderPlacedEvent{}), "channel closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.PublishOrderPlaced(ctx, OrderPlacedEvent{}), context.Canceled)
}

func TestCloseClosesChannel(t *testing.T) {
	ch := &fakeChannel{}
	client := &Client{channel: ch}
	require.NoError(t, client.Close())
	assert.True(t, ch.closed)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
