package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	pkgkafka "github.com/WASandaruwan/onlinesales-backend/pkg/kafka"
	"github.com/WASandaruwan/onlinesales-backend/pkg/logger"
)

// Kafka topic constants for order domain events.
const (
	TopicOrderCreated     = "onlinesales.order.created"
	TopicOrderUpdated     = "onlinesales.order.updated"
	TopicOrderDeleted     = "onlinesales.order.deleted"
	TopicOrderItemAdded   = "onlinesales.order_item.added"
	TopicOrderItemUpdated = "onlinesales.order_item.updated"
	TopicOrderItemDeleted = "onlinesales.order_item.deleted"
)

// Aggregate type constant. Item events are keyed by their order so that they
// stay ordered with the order's own events.
const AggregateTypeOrder = "order"

// Source identifier for events originating from this service.
const SourceOnlineSales = "onlinesales"

// OrderData is the order snapshot carried by order events.
type OrderData struct {
	ID            string          `json:"id"`
	RefNo         string          `json:"ref_no,omitempty"`
	Currency      string          `json:"currency"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	CurrencyTotal decimal.Decimal `json:"currency_total"`
	Total         decimal.Decimal `json:"total"`
	Quantity      int             `json:"quantity"`
}

// OrderItemData is the event payload for an order item.
type OrderItemData struct {
	ID            string          `json:"id"`
	ProductName   string          `json:"product_name"`
	LicenseCode   string          `json:"license_code,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	CurrencyTotal decimal.Decimal `json:"currency_total"`
	Total         decimal.Decimal `json:"total"`
}

// OrderItemChangedData is the payload of every order_item event. OrderTotals
// holds the order aggregate after the change.
type OrderItemChangedData struct {
	OrderID     string        `json:"order_id"`
	Item        OrderItemData `json:"item"`
	OrderTotals domain.Totals `json:"order_totals"`
}

// OrderDeletedData is the payload for an order.deleted event.
type OrderDeletedData struct {
	OrderID string `json:"order_id"`
}

// Publisher is the part of pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes order domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func orderData(o *domain.Order) OrderData {
	return OrderData{
		ID:            o.ID,
		RefNo:         o.RefNo,
		Currency:      o.Currency,
		ExchangeRate:  o.ExchangeRate,
		CurrencyTotal: o.CurrencyTotal,
		Total:         o.Total,
		Quantity:      o.Quantity,
	}
}

func itemChangedData(o *domain.Order, item *domain.OrderItem) OrderItemChangedData {
	return OrderItemChangedData{
		OrderID: o.ID,
		Item: OrderItemData{
			ID:            item.ID,
			ProductName:   item.ProductName,
			LicenseCode:   item.LicenseCode,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
			CurrencyTotal: item.CurrencyTotal,
			Total:         item.Total,
		},
		OrderTotals: o.Totals(),
	}
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, o.ID, orderData(o))
}

// PublishOrderUpdated publishes an order.updated event.
func (p *Producer) PublishOrderUpdated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderUpdated, o.ID, orderData(o))
}

// PublishOrderDeleted publishes an order.deleted event.
func (p *Producer) PublishOrderDeleted(ctx context.Context, orderID string) error {
	return p.publish(ctx, TopicOrderDeleted, orderID, OrderDeletedData{OrderID: orderID})
}

// PublishOrderItemAdded publishes an order_item.added event.
func (p *Producer) PublishOrderItemAdded(ctx context.Context, o *domain.Order, item *domain.OrderItem) error {
	return p.publish(ctx, TopicOrderItemAdded, o.ID, itemChangedData(o, item))
}

// PublishOrderItemUpdated publishes an order_item.updated event.
func (p *Producer) PublishOrderItemUpdated(ctx context.Context, o *domain.Order, item *domain.OrderItem) error {
	return p.publish(ctx, TopicOrderItemUpdated, o.ID, itemChangedData(o, item))
}

// PublishOrderItemDeleted publishes an order_item.deleted event. item carries
// zeroed totals at this point.
func (p *Producer) PublishOrderItemDeleted(ctx context.Context, o *domain.Order, item *domain.OrderItem) error {
	return p.publish(ctx, TopicOrderItemDeleted, o.ID, itemChangedData(o, item))
}

func (p *Producer) publish(ctx context.Context, topic, orderID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, orderID, AggregateTypeOrder, SourceOnlineSales, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("order_id", orderID),
	)
	return nil
}
