package crdb

import "context"

// Schema is applied by deploy tooling and by the test harness.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL CHECK (role IN ('customer', 'organizer', 'admin'))
);

CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY,
	organizer_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	starts_at TIMESTAMPTZ NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	max_attendees INT NOT NULL CHECK (max_attendees >= 0),
	ticket_price NUMERIC NOT NULL DEFAULT 0,
	recurrence TEXT NOT NULL DEFAULT '',
	recurrence_end TIMESTAMPTZ,
	need_volunteers BOOL NOT NULL DEFAULT false,
	need_sponsorship BOOL NOT NULL DEFAULT false,
	sponsorship_target NUMERIC NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS event_instances (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	starts_at TIMESTAMPTZ NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	tickets_sold INT NOT NULL DEFAULT 0 CHECK (tickets_sold >= 0)
);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	total_amount NUMERIC NOT NULL,
	payment_status TEXT NOT NULL CHECK (payment_status IN ('Pending', 'Completed', 'Failed')),
	order_status TEXT NOT NULL CHECK (order_status IN ('Confirmed', 'Cancelled')),
	session_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id) WHERE session_id IS NOT NULL
);

CREATE TABLE IF NOT EXISTS order_lines (
	order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	instance_id UUID NOT NULL,
	event_id UUID NOT NULL,
	quantity INT NOT NULL CHECK (quantity > 0),
	price NUMERIC NOT NULL,
	PRIMARY KEY (order_id, instance_id)
);

CREATE TABLE IF NOT EXISTS volunteers (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	user_id TEXT NOT NULL,
	access_level TEXT NOT NULL DEFAULT 'basic',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (event_id, user_id)
);

CREATE TABLE IF NOT EXISTS sponsorships (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	sponsor_id TEXT NOT NULL,
	amount NUMERIC NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('Pending', 'Completed')),
	session_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS organizer_requests (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL CHECK (status IN ('Pending', 'Approved', 'Rejected')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS event_queries (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	organizer_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	email TEXT NOT NULL,
	query TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reviews (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
	review TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS newsletter_subscribers (
	email TEXT PRIMARY KEY,
	subscribed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json BYTES NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key TEXT NOT NULL
);
`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}
