package db

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		start_at DATETIME(6) NOT NULL,
		end_at DATETIME(6) NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		short_description VARCHAR(500) NOT NULL DEFAULT '',
		description TEXT,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_events_start (start_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS ticket_types (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT NOT NULL,
		classification VARCHAR(100) NOT NULL,
		cost DECIMAL(10,2) NOT NULL,
		quantity INT NOT NULL,
		includes_item TINYINT(1) NOT NULL DEFAULT 0,
		item_name VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		KEY idx_ticket_types_event (event_id),
		CONSTRAINT fk_ticket_types_event FOREIGN KEY (event_id) REFERENCES events (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) PRIMARY KEY,
		event_id BIGINT NOT NULL,
		purchaser_first_name VARCHAR(100) NOT NULL,
		purchaser_last_name VARCHAR(100) NOT NULL,
		purchaser_email VARCHAR(255) NOT NULL,
		purchaser_phone VARCHAR(32) NOT NULL,
		payment_reference VARCHAR(255) NOT NULL DEFAULT '',
		subtotal DECIMAL(10,2) NOT NULL,
		service_fee DECIMAL(10,2) NOT NULL,
		processing_fee DECIMAL(10,2) NOT NULL,
		total DECIMAL(10,2) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_orders_event (event_id),
		CONSTRAINT fk_orders_event FOREIGN KEY (event_id) REFERENCES events (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS purchased_tickets (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		event_id BIGINT NOT NULL,
		ticket_type_id BIGINT NOT NULL,
		order_id VARCHAR(36) NOT NULL,
		purchaser_name VARCHAR(201) NOT NULL,
		purchaser_email VARCHAR(255) NOT NULL,
		purchaser_phone VARCHAR(32) NOT NULL,
		holder_name VARCHAR(201) NOT NULL,
		holder_name_key VARCHAR(201) NOT NULL DEFAULT '',
		purchaser_name_key VARCHAR(201) NOT NULL DEFAULT '',
		purchaser_email_key VARCHAR(255) NOT NULL DEFAULT '',
		credential VARCHAR(64) NOT NULL,
		admission_status VARCHAR(16) NOT NULL,
		checked_in_at DATETIME(6) NULL,
		checked_in_by VARCHAR(100) NULL,
		item_status VARCHAR(16) NOT NULL,
		item_collected_at DATETIME(6) NULL,
		item_collected_by VARCHAR(100) NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_purchased_tickets_credential (credential),
		KEY idx_purchased_tickets_type (ticket_type_id),
		KEY idx_purchased_tickets_event_holder (event_id, holder_name),
		KEY idx_purchased_tickets_order (order_id),
		CONSTRAINT fk_purchased_tickets_type FOREIGN KEY (ticket_type_id) REFERENCES ticket_types (id) ON DELETE RESTRICT,
		CONSTRAINT fk_purchased_tickets_order FOREIGN KEY (order_id) REFERENCES orders (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		start_at DATETIME NOT NULL,
		end_at DATETIME NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		short_description TEXT NOT NULL DEFAULT '',
		description TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER NOT NULL REFERENCES events (id),
		classification TEXT NOT NULL,
		cost TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		includes_item INTEGER NOT NULL DEFAULT 0,
		item_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		event_id INTEGER NOT NULL REFERENCES events (id),
		purchaser_first_name TEXT NOT NULL,
		purchaser_last_name TEXT NOT NULL,
		purchaser_email TEXT NOT NULL,
		purchaser_phone TEXT NOT NULL,
		payment_reference TEXT NOT NULL DEFAULT '',
		subtotal TEXT NOT NULL,
		service_fee TEXT NOT NULL,
		processing_fee TEXT NOT NULL,
		total TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchased_tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER NOT NULL,
		ticket_type_id INTEGER NOT NULL REFERENCES ticket_types (id) ON DELETE RESTRICT,
		order_id TEXT NOT NULL REFERENCES orders (id),
		purchaser_name TEXT NOT NULL,
		purchaser_email TEXT NOT NULL,
		purchaser_phone TEXT NOT NULL,
		holder_name TEXT NOT NULL,
		holder_name_key TEXT NOT NULL DEFAULT '',
		purchaser_name_key TEXT NOT NULL DEFAULT '',
		purchaser_email_key TEXT NOT NULL DEFAULT '',
		credential TEXT NOT NULL UNIQUE,
		admission_status TEXT NOT NULL,
		checked_in_at DATETIME,
		checked_in_by TEXT,
		item_status TEXT NOT NULL,
		item_collected_at DATETIME,
		item_collected_by TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ticket_types_event ON ticket_types (event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_purchased_tickets_type ON purchased_tickets (ticket_type_id)`,
	`CREATE INDEX IF NOT EXISTS idx_purchased_tickets_event_holder ON purchased_tickets (event_id, holder_name)`,
	`CREATE INDEX IF NOT EXISTS idx_purchased_tickets_order ON purchased_tickets (order_id)`,
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	statements := mysqlSchema
	if d.Driver == SQLite {
		statements = sqliteSchema
	}
	for i, stmt := range statements {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
