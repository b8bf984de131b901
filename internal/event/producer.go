package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dev-emon1/shoppers-link/internal/domain"
	pkgkafka "github.com/dev-emon1/shoppers-link/pkg/kafka"
	"github.com/dev-emon1/shoppers-link/pkg/logger"
)

// Kafka topic constants for storefront collection events.
const (
	TopicCartUpdated     = "storefront.cart.updated"
	TopicCartCleared     = "storefront.cart.cleared"
	TopicWishlistUpdated = "storefront.wishlist.updated"
	TopicWishlistCleared = "storefront.wishlist.cleared"
)

// SourceStorefront identifies events published by this service.
const SourceStorefront = "storefront"

// Publisher announces collection changes.
type Publisher interface {
	PublishUpdated(ctx context.Context, kind domain.Kind, ownerID string, c domain.Collection) error
	PublishCleared(ctx context.Context, kind domain.Kind, ownerID string) error
}

// CollectionUpdatedData is the payload for *.updated events.
type CollectionUpdatedData struct {
	OwnerID    string          `json:"owner_id"`
	Vendors    []VendorData    `json:"vendors"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// VendorData is one vendor partition within an updated event.
type VendorData struct {
	VendorID   string     `json:"vendor_id"`
	VendorName string     `json:"vendor_name"`
	Items      []ItemData `json:"items"`
}

// ItemData is the line payload within updated events. Raw product payloads
// are not included.
type ItemData struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CollectionClearedData is the payload for *.cleared events.
type CollectionClearedData struct {
	OwnerID string `json:"owner_id"`
}

type eventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes collection events to Kafka.
type Producer struct {
	kafka  eventPublisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func updatedTopic(kind domain.Kind) string {
	if kind == domain.KindWishlist {
		return TopicWishlistUpdated
	}
	return TopicCartUpdated
}

func clearedTopic(kind domain.Kind) string {
	if kind == domain.KindWishlist {
		return TopicWishlistCleared
	}
	return TopicCartCleared
}

// PublishUpdated publishes the full state of a collection after a mutation.
func (p *Producer) PublishUpdated(ctx context.Context, kind domain.Kind, ownerID string, c domain.Collection) error {
	data := CollectionUpdatedData{
		OwnerID:    ownerID,
		Vendors:    make([]VendorData, 0, len(c)),
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
	for _, vendorID := range c.VendorIDs() {
		part := c[vendorID]
		vd := VendorData{VendorID: vendorID, VendorName: part.VendorName, Items: make([]ItemData, len(part.Items))}
		for i, item := range part.Items {
			vd.Items[i] = ItemData{
				ProductID: item.ID,
				VariantID: item.VariantID,
				Name:      item.Name,
				SKU:       item.SKU,
				Price:     item.Price,
				Quantity:  item.Quantity,
			}
		}
		data.Vendors = append(data.Vendors, vd)
	}

	return p.publish(ctx, updatedTopic(kind), kind, ownerID, data)
}

// PublishCleared publishes a *.cleared event.
func (p *Producer) PublishCleared(ctx context.Context, kind domain.Kind, ownerID string) error {
	return p.publish(ctx, clearedTopic(kind), kind, ownerID, CollectionClearedData{OwnerID: ownerID})
}

func (p *Producer) publish(ctx context.Context, topic string, kind domain.Kind, ownerID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, ownerID, string(kind), SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published collection event",
		slog.String("topic", topic),
		slog.String("owner_id", ownerID),
	)
	return nil
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishUpdated(context.Context, domain.Kind, string, domain.Collection) error {
	return nil
}

func (NopPublisher) PublishCleared(context.Context, domain.Kind, string) error {
	return nil
}
