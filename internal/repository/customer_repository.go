package repository

import (
	"context"
	"time"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CustomerRepository struct {
	DB *db.Postgres
}

type CreateCustomerParams struct {
	ShopID   string
	Name     string
	Phone    string
	Nickname string
}

// UpdateCustomerParams changes only the non-nil fields.
type UpdateCustomerParams struct {
	Name     *string
	Phone    *string
	Nickname *string
	Reminder *domain.ReminderSettings
}

// ReminderCandidate is a customer with auto-reminders enabled and money owed,
// along with what the scheduler needs to decide and render a reminder.
type ReminderCandidate struct {
	Customer          domain.Customer
	ShopName          string
	ShopUPIID         string
	LastTransactionAt *time.Time
}

const customerColumns = `c.id, c.shop_id, c.user_id, c.name, c.phone, c.nickname, c.balance,
	c.reminder_enabled, c.reminder_delay, c.reminder_frequency, c.reminder_method, c.reminder_template, c.reminder_last_sent,
	c.created_at, c.updated_at`

func (r CustomerRepository) List(ctx context.Context, shopID string) ([]domain.Customer, error) {
	return r.list(ctx, `
		SELECT `+customerColumns+`
		FROM customers c
		WHERE c.shop_id=$1 AND c.deleted_at IS NULL
		ORDER BY c.name ASC
	`, shopID)
}

// ListForUser returns every customer account across shops that belongs to
// the user, matched by linked user id or by phone.
func (r CustomerRepository) ListForUser(ctx context.Context, userID, phone string) ([]domain.Customer, error) {
	return r.list(ctx, `
		SELECT `+customerColumns+`
		FROM customers c
		WHERE c.deleted_at IS NULL AND (c.user_id=$1 OR c.phone=$2)
		ORDER BY c.created_at ASC
	`, userID, phone)
}

func (r CustomerRepository) Get(ctx context.Context, shopID, id string) (*domain.Customer, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers c
		WHERE c.id=$1 AND c.shop_id=$2 AND c.deleted_at IS NULL
	`, id, shopID)
	return notFound(scanCustomer(row))
}

// Create links the customer to an existing user with the same phone.
func (r CustomerRepository) Create(ctx context.Context, p CreateCustomerParams) (*domain.Customer, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO customers (id, shop_id, user_id, name, phone, nickname, created_at, updated_at)
			VALUES ($1, $2, (SELECT id FROM users WHERE phone=$4 AND deleted_at IS NULL), $3, $4, $5, now(), now())
			RETURNING *
		)
		SELECT `+customerColumns+` FROM inserted c
	`, uuid.NewString(), p.ShopID, p.Name, p.Phone, p.Nickname)
	return scanCustomer(row)
}

func (r CustomerRepository) Update(ctx context.Context, shopID, id string, p UpdateCustomerParams) (*domain.Customer, error) {
	var (
		enabled   *bool
		delay     *string
		frequency *string
		method    *string
		template  *string
	)
	if rs := p.Reminder; rs != nil {
		enabled = &rs.Enabled
		d, f, m := string(rs.Delay), string(rs.Frequency), string(rs.Method)
		delay, frequency, method, template = &d, &f, &m, &rs.Template
	}
	row := r.DB.Pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE customers
			SET name=COALESCE($3, name),
				phone=COALESCE($4, phone),
				nickname=COALESCE($5, nickname),
				reminder_enabled=COALESCE($6, reminder_enabled),
				reminder_delay=COALESCE(NULLIF($7, ''), reminder_delay),
				reminder_frequency=COALESCE(NULLIF($8, ''), reminder_frequency),
				reminder_method=COALESCE(NULLIF($9, ''), reminder_method),
				reminder_template=COALESCE($10, reminder_template),
				updated_at=now()
			WHERE id=$1 AND shop_id=$2 AND deleted_at IS NULL
			RETURNING *
		)
		SELECT `+customerColumns+` FROM updated c
	`, id, shopID, p.Name, p.Phone, p.Nickname, enabled, delay, frequency, method, template)
	return notFound(scanCustomer(row))
}

// LinkUser attaches unlinked customer accounts with phone to userID.
func (r CustomerRepository) LinkUser(ctx context.Context, userID, phone string) error {
	_, err := r.DB.Pool.Exec(ctx, `
		UPDATE customers SET user_id=$1, updated_at=now()
		WHERE phone=$2 AND user_id IS NULL AND deleted_at IS NULL
	`, userID, phone)
	return err
}

func (r CustomerRepository) ReminderCandidates(ctx context.Context) ([]ReminderCandidate, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT `+customerColumns+`, s.name, s.upi_id,
			(SELECT MAX(t.date) FROM transactions t WHERE t.customer_id = c.id AND t.deleted_at IS NULL)
		FROM customers c
		JOIN shops s ON s.id = c.shop_id AND s.deleted_at IS NULL
		WHERE c.deleted_at IS NULL AND c.reminder_enabled AND c.balance < 0
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReminderCandidate
	for rows.Next() {
		var (
			rc   ReminderCandidate
			cr   customerRow
			last pgtype.Timestamptz
		)
		dest := append(cr.dest(), &rc.ShopName, &rc.ShopUPIID, &last)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rc.Customer = cr.customer()
		if last.Valid {
			t := last.Time
			rc.LastTransactionAt = &t
		}
		items = append(items, rc)
	}
	return items, rows.Err()
}

func (r CustomerRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.Pool.Exec(ctx, `UPDATE customers SET reminder_last_sent=$2 WHERE id=$1`, id, at)
	return err
}

func (r CustomerRepository) list(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := r.DB.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// customerRow holds the nullable and enum columns between Scan and use.
type customerRow struct {
	c         domain.Customer
	userID    pgtype.Text
	delay     string
	frequency string
	method    string
	lastSent  pgtype.Timestamptz
}

func (r *customerRow) dest() []any {
	return []any{
		&r.c.ID, &r.c.ShopID, &r.userID, &r.c.Name, &r.c.Phone, &r.c.Nickname, &r.c.Balance,
		&r.c.Reminder.Enabled, &r.delay, &r.frequency, &r.method, &r.c.Reminder.Template, &r.lastSent,
		&r.c.CreatedAt, &r.c.UpdatedAt,
	}
}

func (r *customerRow) customer() domain.Customer {
	c := r.c
	if r.userID.Valid {
		id := r.userID.String
		c.UserID = &id
	}
	c.Reminder.Delay = domain.ReminderDelay(r.delay)
	c.Reminder.Frequency = domain.ReminderFrequency(r.frequency)
	c.Reminder.Method = domain.NotificationMethod(r.method)
	if r.lastSent.Valid {
		t := r.lastSent.Time
		c.Reminder.LastSentAt = &t
	}
	return c
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var cr customerRow
	if err := row.Scan(cr.dest()...); err != nil {
		return nil, err
	}
	c := cr.customer()
	return &c, nil
}
