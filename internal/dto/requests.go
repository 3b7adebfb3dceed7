package dto

import (
	"time"

	"iscevents/internal/model"
)

type PriceInput struct {
	Name     string            `json:"name" validate:"required,max=255"`
	Amount   float64           `json:"amount" validate:"gte=0"`
	Currency string            `json:"currency"`
	Extra    map[string]string `json:"extra"`
}

type GalleryInput struct {
	URL     string            `json:"url" validate:"required"`
	Caption string            `json:"caption"`
	Extra   map[string]string `json:"extra"`
}

type CreateEventRequest struct {
	Title       string         `json:"title" validate:"required,max=255"`
	Description string         `json:"description" validate:"required"`
	Image       string         `json:"image"`
	Location    string         `json:"location"`
	StartDate   string         `json:"start_date" validate:"required,eventdate"`
	EndDate     string         `json:"end_date" validate:"omitempty,eventdate"`
	Prices      []PriceInput   `json:"prices" validate:"dive"`
	Gallery     []GalleryInput `json:"gallery" validate:"dive"`
}

// UpdateEventRequest carries a partial update; nil fields are left untouched.
type UpdateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	Location    *string `json:"location"`
	StartDate   *string `json:"start_date" validate:"omitempty,eventdate"`
	EndDate     *string `json:"end_date" validate:"omitempty,eventdate"`
}

type CreateAttendeeRequest struct {
	EventID string `json:"event_id" validate:"required"`
	Name    string `json:"name" validate:"required,min=2,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	PriceID string `json:"price_id"`
}

// AttendeeCreatedMessage is published to RabbitMQ after an attendee row is
// persisted; the consumer worker picks it up to send the confirmation email.
type AttendeeCreatedMessage struct {
	AttendeeID string    `json:"attendee_id"`
	EventID    string    `json:"event_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventView is the aggregate event representation: the stored event plus its
// prices and gallery items.
type EventView struct {
	model.Event
	Prices  []model.Price   `json:"prices"`
	Gallery []model.Gallery `json:"gallery"`
}

// EventListData splits an aggregated listing into temporal buckets against a
// single captured "now".
type EventListData struct {
	Events   []EventView `json:"events"`
	Past     []EventView `json:"past"`
	Upcoming []EventView `json:"upcoming"`
}

// EventCard is the condensed projection served by the unauthenticated
// get-cards endpoint.
type EventCard struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Image     string          `json:"image,omitempty"`
	Location  string          `json:"location,omitempty"`
	StartDate time.Time       `json:"start_date"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
	Prices    []model.Price   `json:"prices"`
	Gallery   []model.Gallery `json:"gallery"`
}
