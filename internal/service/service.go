package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"
	"golang.org/x/sync/errgroup"

	"iscevents/internal/auth"
	"iscevents/internal/dto"
	"iscevents/internal/model"
	"iscevents/internal/repo"
	"iscevents/pkg/paging"
	"iscevents/pkg/validator"
)

const defaultCurrency = "NGN"

type Service interface {
	CreateEvent(ctx *ginext.Context)
	GetEvents(ctx *ginext.Context)
	SearchEvents(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	DeleteEvent(ctx *ginext.Context)
	GetRequestedCards(ctx *ginext.Context)
	CreateAttendee(ctx *ginext.Context)
	GetAttendees(ctx *ginext.Context)
}

// Publisher is the slice of the rabbit client the service needs.
type Publisher interface {
	Publish(message []byte) error
}

type service struct {
	repo   repo.Repository
	log    *zerolog.Logger
	events Publisher
}

func NewService(repo repo.Repository, logger *zerolog.Logger, events Publisher) Service {
	return &service{
		repo:   repo,
		log:    logger,
		events: events,
	}
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	principal, ok := auth.PrincipalFrom(ctx)
	if !ok {
		dto.UnauthorizedError(ctx)
		return
	}

	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create event request")
		dto.BadRequestError(ctx, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		s.log.Error().Msgf("validation failed: %v", verr)
		dto.BadRequestError(ctx, fmt.Sprintf("%v", verr))
		return
	}

	startDate, err := validator.ParseEventDate(req.StartDate)
	if err != nil {
		dto.BadRequestError(ctx, "Invalid start_date")
		return
	}
	var endDate *time.Time
	if req.EndDate != "" {
		t, err := validator.ParseEventDate(req.EndDate)
		if err != nil {
			dto.BadRequestError(ctx, "Invalid end_date")
			return
		}
		endDate = &t
	}

	event := &model.Event{
		ID:          uuid.NewString(),
		UserID:      principal.UserID,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Location:    req.Location,
		StartDate:   startDate,
		EndDate:     endDate,
	}

	if err := s.repo.CreateEvent(ctx.Request.Context(), event); err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		dto.InternalServerError(ctx)
		return
	}

	prices, gallery, err := s.createChildren(ctx.Request.Context(), event.ID, req.Prices, req.Gallery)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to persist event children")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("event_id", event.ID).Str("user_id", event.UserID).Msg("event created successfully")

	dto.SuccessCreatedResponse(ctx, "Event created successfully", dto.EventView{
		Event:   *event,
		Prices:  prices,
		Gallery: gallery,
	})
}

// createChildren persists every supplied price and gallery entry and waits
// for all of them before returning, so the response never races the stored
// aggregate. Creations run concurrently; there is no cross-collection
// transaction, consistency with the event row is eventual.
func (s *service) createChildren(ctx context.Context, eventID string, priceInputs []dto.PriceInput, galleryInputs []dto.GalleryInput) ([]model.Price, []model.Gallery, error) {
	prices := make([]model.Price, len(priceInputs))
	gallery := make([]model.Gallery, len(galleryInputs))

	g, gctx := errgroup.WithContext(ctx)
	for i, in := range priceInputs {
		currency := in.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		prices[i] = model.Price{
			ID:          uuid.NewString(),
			EventID:     eventID,
			Name:        in.Name,
			Amount:      in.Amount,
			Currency:    currency,
			OrderAmount: 0,
			Extra:       in.Extra,
		}
		i := i
		g.Go(func() error {
			return s.repo.CreatePrice(gctx, &prices[i])
		})
	}
	for i, in := range galleryInputs {
		gallery[i] = model.Gallery{
			ID:      uuid.NewString(),
			EventID: eventID,
			URL:     in.URL,
			Caption: in.Caption,
			Extra:   in.Extra,
		}
		i := i
		g.Go(func() error {
			return s.repo.CreateGallery(gctx, &gallery[i])
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prices, gallery, nil
}

func (s *service) GetEvents(ctx *ginext.Context) {
	params := paging.FromQuery(ctx.Query("page"), ctx.Query("limit"))
	now := time.Now().UTC()

	events, err := s.repo.ListUpcomingEvents(ctx.Request.Context(), now, params.Limit, params.Offset())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list events")
		dto.InternalServerError(ctx)
		return
	}

	views, err := s.aggregateAll(ctx.Request.Context(), events)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to aggregate events")
		dto.InternalServerError(ctx)
		return
	}

	past, upcoming := partitionByStart(views, now)
	dto.SuccessResponse(ctx, "Data retrieved successfully", dto.EventListData{
		Events:   views,
		Past:     past,
		Upcoming: upcoming,
	})
}

func (s *service) SearchEvents(ctx *ginext.Context) {
	search := ctx.Query("q")
	if search == "" {
		dto.BadRequestError(ctx, "Search query is required")
		return
	}

	params := paging.FromQuery(ctx.Query("page"), ctx.Query("limit"))
	now := time.Now().UTC()

	events, err := s.repo.SearchUpcomingEvents(ctx.Request.Context(), search, now, params.Limit, params.Offset())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to search events")
		dto.InternalServerError(ctx)
		return
	}

	views, err := s.aggregateAll(ctx.Request.Context(), events)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to aggregate search results")
		dto.InternalServerError(ctx)
		return
	}

	past, upcoming := partitionByStart(views, now)
	dto.SuccessResponse(ctx, "Data retrieved successfully", dto.EventListData{
		Events:   views,
		Past:     past,
		Upcoming: upcoming,
	})
}

func (s *service) GetEvent(ctx *ginext.Context) {
	id := ctx.Param("id")

	event, err := s.repo.GetEventByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.NotFoundError(ctx, dto.MsgEventNotFound)
			return
		}
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to get event")
		dto.InternalServerError(ctx)
		return
	}

	view, err := s.aggregate(ctx.Request.Context(), *event)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to aggregate event")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, "Event retrieved successfully", view)
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	id := ctx.Param("id")

	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadRequestError(ctx, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadRequestError(ctx, fmt.Sprintf("%v", verr))
		return
	}

	fields, err := updateFields(req)
	if err != nil {
		dto.BadRequestError(ctx, fmt.Sprintf("%v", err))
		return
	}
	if len(fields) == 0 {
		dto.BadRequestError(ctx, "No fields to update")
		return
	}

	affected, err := s.repo.UpdateEvent(ctx.Request.Context(), id, fields)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to update event")
		dto.InternalServerError(ctx)
		return
	}

	if affected == 0 {
		dto.SoftFailResponse(ctx, "No event was updated", map[string]any{"affected": affected})
		return
	}

	s.log.Info().Str("event_id", id).Int64("affected", affected).Msg("event updated successfully")
	dto.SuccessResponse(ctx, "Event updated successfully", map[string]any{"affected": affected})
}

// updateFields maps the partial request onto store columns; only supplied
// fields appear in the result.
func updateFields(req dto.UpdateEventRequest) (map[string]any, error) {
	fields := make(map[string]any)
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Image != nil {
		fields["image"] = *req.Image
	}
	if req.Location != nil {
		fields["location"] = *req.Location
	}
	if req.StartDate != nil {
		t, err := validator.ParseEventDate(*req.StartDate)
		if err != nil {
			return nil, errors.New("Invalid start_date")
		}
		fields["start_date"] = t
	}
	if req.EndDate != nil {
		t, err := validator.ParseEventDate(*req.EndDate)
		if err != nil {
			return nil, errors.New("Invalid end_date")
		}
		fields["end_date"] = t
	}
	return fields, nil
}

func (s *service) DeleteEvent(ctx *ginext.Context) {
	id := ctx.Param("id")

	affected, err := s.repo.DeleteEventCascadeTx(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to delete event")
		dto.InternalServerError(ctx)
		return
	}
	if affected == 0 {
		dto.NotFoundError(ctx, dto.MsgEventNotFound)
		return
	}

	s.log.Info().Str("event_id", id).Msg("event deleted successfully")
	dto.SuccessResponse(ctx, "Event deleted successfully", map[string]any{"affected": affected})
}

func (s *service) GetRequestedCards(ctx *ginext.Context) {
	id := ctx.Param("id")

	event, err := s.repo.GetEventByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.NotFoundError(ctx, dto.MsgEventNotFound)
			return
		}
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to get event for card")
		dto.InternalServerError(ctx)
		return
	}

	view, err := s.aggregate(ctx.Request.Context(), *event)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to aggregate event card")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, "Card retrieved successfully", dto.EventCard{
		ID:        view.ID,
		Title:     view.Title,
		Image:     view.Image,
		Location:  view.Location,
		StartDate: view.StartDate,
		EndDate:   view.EndDate,
		Prices:    view.Prices,
		Gallery:   view.Gallery,
	})
}

func (s *service) CreateAttendee(ctx *ginext.Context) {
	var req dto.CreateAttendeeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadRequestError(ctx, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadRequestError(ctx, fmt.Sprintf("%v", verr))
		return
	}

	if _, err := s.repo.GetEventByID(ctx.Request.Context(), req.EventID); err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.NotFoundError(ctx, dto.MsgEventNotFound)
			return
		}
		s.log.Error().Err(err).Str("event_id", req.EventID).Msg("failed to check event for attendee")
		dto.InternalServerError(ctx)
		return
	}

	attendee := &model.Attendee{
		ID:      uuid.NewString(),
		EventID: req.EventID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		PriceID: req.PriceID,
	}
	if err := s.repo.CreateAttendee(ctx.Request.Context(), attendee); err != nil {
		s.log.Error().Err(err).Msg("failed to create attendee")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("attendee_id", attendee.ID).Str("event_id", attendee.EventID).Msg("attendee created successfully")

	msg := dto.AttendeeCreatedMessage{
		AttendeeID: attendee.ID,
		EventID:    attendee.EventID,
		CreatedAt:  attendee.CreatedAt,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal attendee message")
	} else if err := s.events.Publish(payload); err != nil {
		// Notification is best-effort; the registration itself stands.
		s.log.Error().Err(err).Msg("failed to publish attendee message to RabbitMQ")
	}

	dto.SuccessCreatedResponse(ctx, "Attendee created successfully", attendee)
}

func (s *service) GetAttendees(ctx *ginext.Context) {
	id := ctx.Param("id")

	attendees, err := s.repo.AttendeesByEvent(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to get attendees")
		dto.InternalServerError(ctx)
		return
	}
	if attendees == nil {
		attendees = []model.Attendee{}
	}

	dto.SuccessResponse(ctx, "Data retrieved successfully", attendees)
}

// aggregate stitches one event together with its prices and gallery. The
// gallery fetch starts only after the price fetch resolves.
func (s *service) aggregate(ctx context.Context, e model.Event) (dto.EventView, error) {
	prices, err := s.repo.PricesByEvent(ctx, e.ID)
	if err != nil {
		return dto.EventView{}, fmt.Errorf("prices for event %s: %w", e.ID, err)
	}
	gallery, err := s.repo.GalleriesByEvent(ctx, e.ID)
	if err != nil {
		return dto.EventView{}, fmt.Errorf("gallery for event %s: %w", e.ID, err)
	}

	if prices == nil {
		prices = []model.Price{}
	}
	if gallery == nil {
		gallery = []model.Gallery{}
	}
	return dto.EventView{Event: e, Prices: prices, Gallery: gallery}, nil
}

// aggregateAll fans out one aggregate per event concurrently and keeps the
// input ordering in the result.
func (s *service) aggregateAll(ctx context.Context, events []model.Event) ([]dto.EventView, error) {
	views := make([]dto.EventView, len(events))

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range events {
		i, e := i, e
		g.Go(func() error {
			view, err := s.aggregate(gctx, e)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// partitionByStart buckets views against a single captured now; every view
// lands in exactly one bucket. The listing query already filters to
// start >= now with the same timestamp, so past stays empty there.
func partitionByStart(views []dto.EventView, now time.Time) (past, upcoming []dto.EventView) {
	past = []dto.EventView{}
	upcoming = []dto.EventView{}
	for _, v := range views {
		if v.StartDate.Before(now) {
			past = append(past, v)
		} else {
			upcoming = append(upcoming, v)
		}
	}
	return past, upcoming
}
