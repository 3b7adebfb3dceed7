package model

import "time"

type Event struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Image       string     `db:"image,omitempty" json:"image,omitempty"`
	Location    string     `db:"location,omitempty" json:"location,omitempty"`
	StartDate   time.Time  `db:"start_date" json:"start_date"`
	EndDate     *time.Time `db:"end_date,omitempty" json:"end_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

type Price struct {
	ID          string            `db:"id" json:"id"`
	EventID     string            `db:"event_id" json:"event_id"`
	Name        string            `db:"name" json:"name"`
	Amount      float64           `db:"amount" json:"amount"`
	Currency    string            `db:"currency" json:"currency"`
	OrderAmount int               `db:"order_amount" json:"order_amount"`
	Extra       map[string]string `db:"extra,omitempty" json:"extra,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

type Gallery struct {
	ID        string            `db:"id" json:"id"`
	EventID   string            `db:"event_id" json:"event_id"`
	URL       string            `db:"url" json:"url"`
	Caption   string            `db:"caption,omitempty" json:"caption,omitempty"`
	Extra     map[string]string `db:"extra,omitempty" json:"extra,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

type Attendee struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone,omitempty" json:"phone,omitempty"`
	PriceID   string    `db:"price_id,omitempty" json:"price_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Principal is the authenticated user resolved by the identity service.
// Request-scoped, never persisted.
type Principal struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}
