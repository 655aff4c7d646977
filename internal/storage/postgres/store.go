package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brokerline/broker-be/internal/models"
	"github.com/brokerline/broker-be/internal/storage"
)

// Ensure Store satisfies the aggregate storage interface at compile time.
var _ storage.Store = (*Store)(nil)

// Store provides Postgres-backed persistence for users, requests, messages,
// and payments.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS requests (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION,
			delivery_time TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			request_id BIGINT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			request_id BIGINT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
			amount DOUBLE PRECISION NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS messages_request_id_idx ON messages (request_id, id);`,
		`CREATE INDEX IF NOT EXISTS requests_owner_id_idx ON requests (owner_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, role, password_hash, created_at;
	`
	row := s.pool.QueryRow(ctx, query, user.Name, user.Email, user.PasswordHash, user.Role)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

// FindUserByEmail fetches a user by email address.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id, name, email, role, password_hash, created_at
		FROM users
		WHERE email = $1;
	`
	return scanUser(s.pool.QueryRow(ctx, query, email))
}

// CreateRequest inserts a request in the pending status.
func (s *Store) CreateRequest(ctx context.Context, ownerID int64, title, description string) (models.Request, error) {
	const query = `
		INSERT INTO requests (owner_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING id, owner_id, title, description, price, delivery_time, status, created_at;
	`
	return scanRequest(s.pool.QueryRow(ctx, query, ownerID, title, description))
}

// GetRequest fetches a request by id.
func (s *Store) GetRequest(ctx context.Context, id int64) (models.Request, error) {
	const query = `
		SELECT id, owner_id, title, description, price, delivery_time, status, created_at
		FROM requests
		WHERE id = $1;
	`
	return scanRequest(s.pool.QueryRow(ctx, query, id))
}

// ListRequests returns every request in creation order.
func (s *Store) ListRequests(ctx context.Context) ([]models.Request, error) {
	const query = `
		SELECT id, owner_id, title, description, price, delivery_time, status, created_at
		FROM requests
		ORDER BY id ASC;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListRequestsByOwner returns the owner's requests in creation order.
func (s *Store) ListRequestsByOwner(ctx context.Context, ownerID int64) ([]models.Request, error) {
	const query = `
		SELECT id, owner_id, title, description, price, delivery_time, status, created_at
		FROM requests
		WHERE owner_id = $1
		ORDER BY id ASC;
	`
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// UpdateRequest writes the full mutable field set and returns the updated row.
func (s *Store) UpdateRequest(ctx context.Context, id int64, fields storage.RequestFields) (models.Request, error) {
	const query = `
		UPDATE requests
		SET title = $1, description = $2, price = $3, delivery_time = $4, status = $5
		WHERE id = $6
		RETURNING id, owner_id, title, description, price, delivery_time, status, created_at;
	`
	row := s.pool.QueryRow(ctx, query,
		fields.Title, fields.Description, fields.Price, fields.DeliveryTime, string(fields.Status), id)
	return scanRequest(row)
}

// DeleteRequest removes a request; messages and payments cascade.
func (s *Store) DeleteRequest(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM requests WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendMessage stores one chat message for a request.
func (s *Store) AppendMessage(ctx context.Context, requestID int64, sender, content string) (models.Message, error) {
	const query = `
		INSERT INTO messages (request_id, sender, content)
		VALUES ($1, $2, $3)
		RETURNING id, request_id, sender, content, created_at;
	`
	var msg models.Message
	row := s.pool.QueryRow(ctx, query, requestID, sender, content)
	if err := row.Scan(&msg.ID, &msg.RequestID, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListMessagesByRequest returns a request's chat history in insertion order.
func (s *Store) ListMessagesByRequest(ctx context.Context, requestID int64) ([]models.Message, error) {
	const query = `
		SELECT id, request_id, sender, content, created_at
		FROM messages
		WHERE request_id = $1
		ORDER BY id ASC;
	`
	rows, err := s.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RequestID, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreatePayment records a payment intent in the pending status.
func (s *Store) CreatePayment(ctx context.Context, requestID int64, amount float64, method string) (models.Payment, error) {
	const query = `
		INSERT INTO payments (request_id, amount, method)
		VALUES ($1, $2, $3)
		RETURNING id, request_id, amount, method, status, created_at;
	`
	return scanPayment(s.pool.QueryRow(ctx, query, requestID, amount, method))
}

// ConfirmPayment marks a payment confirmed. Confirming twice is a no-op.
func (s *Store) ConfirmPayment(ctx context.Context, id int64) (models.Payment, error) {
	const query = `
		UPDATE payments
		SET status = 'confirmed'
		WHERE id = $1
		RETURNING id, request_id, amount, method, status, created_at;
	`
	return scanPayment(s.pool.QueryRow(ctx, query, id))
}

// HasConfirmedPayment reports whether the request has at least one confirmed
// payment on the ledger.
func (s *Store) HasConfirmedPayment(ctx context.Context, requestID int64) (bool, error) {
	const query = `SELECT COUNT(1) FROM payments WHERE request_id = $1 AND status = 'confirmed';`
	var count int
	if err := s.pool.QueryRow(ctx, query, requestID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func scanRequest(row pgx.Row) (models.Request, error) {
	var req models.Request
	var status string
	err := row.Scan(&req.ID, &req.OwnerID, &req.Title, &req.Description,
		&req.Price, &req.DeliveryTime, &status, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Request{}, storage.ErrNotFound
		}
		return models.Request{}, err
	}
	req.Status = models.RequestStatus(status)
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]models.Request, error) {
	requests := []models.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanPayment(row pgx.Row) (models.Payment, error) {
	var payment models.Payment
	var status string
	err := row.Scan(&payment.ID, &payment.RequestID, &payment.Amount, &payment.Method, &status, &payment.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Payment{}, storage.ErrNotFound
		}
		return models.Payment{}, err
	}
	payment.Status = models.PaymentStatus(status)
	return payment, nil
}
