package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// NegotiationEventRow mirrors the negotiation_events BigQuery schema.
type NegotiationEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	NegotiationID string             `bigquery:"negotiation_id"`
	BuyerUID      string             `bigquery:"buyer_uid"`
	SellerUID     string             `bigquery:"seller_uid"`
	ProductID     string             `bigquery:"product_id"`
	ProductName   string             `bigquery:"product_name"`
	Status        string             `bigquery:"status"`
	OriginalPrice string             `bigquery:"original_price"`
	FinalPrice    string             `bigquery:"final_price"`
	Quantity      int64              `bigquery:"quantity"`
	DiscountPct   *float64           `bigquery:"discount_pct"`
	Rounds        int64              `bigquery:"rounds"`
	TotalAmount   *string            `bigquery:"total_amount"`
	OrderID       *string            `bigquery:"order_id"`
	OrderNumber   *string            `bigquery:"order_number"`
	PaymentMethod *string            `bigquery:"payment_method"`
	Reason        *string            `bigquery:"reason"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// NegotiationEventSchema is the negotiation_events table layout, partitioned
// by day on occurred_at.
var NegotiationEventSchema = cbigquery.Schema{
	{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
	{Name: "negotiation_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "buyer_uid", Type: cbigquery.StringFieldType},
	{Name: "seller_uid", Type: cbigquery.StringFieldType},
	{Name: "product_id", Type: cbigquery.StringFieldType},
	{Name: "product_name", Type: cbigquery.StringFieldType},
	{Name: "status", Type: cbigquery.StringFieldType},
	{Name: "original_price", Type: cbigquery.StringFieldType},
	{Name: "final_price", Type: cbigquery.StringFieldType},
	{Name: "quantity", Type: cbigquery.IntegerFieldType},
	{Name: "discount_pct", Type: cbigquery.FloatFieldType},
	{Name: "rounds", Type: cbigquery.IntegerFieldType},
	{Name: "total_amount", Type: cbigquery.StringFieldType},
	{Name: "order_id", Type: cbigquery.StringFieldType},
	{Name: "order_number", Type: cbigquery.StringFieldType},
	{Name: "payment_method", Type: cbigquery.StringFieldType},
	{Name: "reason", Type: cbigquery.StringFieldType},
	{Name: "payload", Type: cbigquery.JSONFieldType},
}

const NegotiationEventPartitionField = "occurred_at"
