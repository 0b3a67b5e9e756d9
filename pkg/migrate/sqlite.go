package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for SQLite, which lacks uuid,
// jsonb and gen_random_uuid. Ids are assigned by the application.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id text PRIMARY KEY,
		uid text NOT NULL UNIQUE,
		role text NOT NULL,
		name text NOT NULL,
		business_name text,
		email text,
		banned boolean NOT NULL DEFAULT false,
		verification_status text NOT NULL DEFAULT 'none',
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id text PRIMARY KEY,
		vendor_uid text NOT NULL,
		name text NOT NULL,
		unit_type text NOT NULL DEFAULT 'pcs',
		unit_price numeric NOT NULL,
		offer_price numeric,
		min_order_qty integer NOT NULL DEFAULT 1,
		is_active boolean NOT NULL DEFAULT true,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id text PRIMARY KEY,
		uid text NOT NULL,
		name text NOT NULL,
		phone text NOT NULL,
		address_line1 text NOT NULL,
		city text NOT NULL,
		state text,
		zip text,
		is_default boolean NOT NULL DEFAULT false,
		created_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id text PRIMARY KEY,
		participant_a text NOT NULL,
		participant_b text NOT NULL,
		last_message text,
		last_message_sender text,
		last_message_at datetime,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_participants ON conversations (participant_a, participant_b)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id text PRIMARY KEY,
		conversation_id text NOT NULL,
		sender_uid text NOT NULL,
		sender_name text NOT NULL,
		content text NOT NULL,
		message_type text NOT NULL,
		negotiation_id text,
		data text,
		created_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS negotiations (
		id text PRIMARY KEY,
		buyer_uid text NOT NULL,
		buyer_role text NOT NULL,
		seller_uid text NOT NULL,
		product_id text NOT NULL,
		product_name text NOT NULL,
		quantity integer NOT NULL,
		proposed_price numeric NOT NULL,
		original_price numeric NOT NULL,
		status text NOT NULL,
		conversation_id text,
		expires_at datetime NOT NULL,
		final_price numeric,
		final_quantity integer,
		final_total_amount numeric,
		accepted_at datetime,
		accepted_by text,
		expiry_warning_sent boolean NOT NULL DEFAULT false,
		order_id text,
		version integer NOT NULL DEFAULT 1,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_negotiations_active_pair ON negotiations (buyer_uid, seller_uid, product_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS negotiation_offers (
		id text PRIMARY KEY,
		negotiation_id text NOT NULL,
		seq integer NOT NULL,
		from_uid text NOT NULL,
		from_role text NOT NULL,
		price numeric NOT NULL,
		quantity integer NOT NULL,
		message text NOT NULL DEFAULT '',
		created_at datetime
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_negotiation_offers_seq ON negotiation_offers (negotiation_id, seq)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id text PRIMARY KEY,
		order_number text NOT NULL UNIQUE,
		negotiation_id text NOT NULL,
		buyer_uid text NOT NULL,
		seller_uid text NOT NULL,
		product_id text NOT NULL,
		address_id text NOT NULL,
		quantity integer NOT NULL,
		unit_price numeric NOT NULL,
		subtotal numeric NOT NULL,
		delivery_fee numeric NOT NULL DEFAULT 0,
		total numeric NOT NULL,
		delivery_method text NOT NULL,
		payment_method text NOT NULL,
		payment_status text NOT NULL,
		payment_reference text,
		status text NOT NULL,
		negotiated_delta_pct numeric,
		notes text NOT NULL DEFAULT '',
		paid_at datetime,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_negotiation ON orders (negotiation_id) WHERE status <> 'cancelled'`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id text PRIMARY KEY,
		recipient_uid text NOT NULL,
		type text NOT NULL,
		title text NOT NULL,
		message text NOT NULL,
		negotiation_id text,
		link text,
		read_at datetime,
		created_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id text PRIMARY KEY,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload text NOT NULL,
		created_at datetime,
		published_at datetime,
		attempt_count integer NOT NULL DEFAULT 0,
		last_error text
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id text PRIMARY KEY,
		event_id text NOT NULL UNIQUE,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload_json text NOT NULL,
		error_reason text NOT NULL,
		error_message text,
		attempt_count integer NOT NULL DEFAULT 0,
		failed_at datetime
	)`,
}

// ApplySQLiteSchema creates every table on a SQLite connection. It is used by
// the dev SQLite mode and by repository tests.
func ApplySQLiteSchema(ctx context.Context, db *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
