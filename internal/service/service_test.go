package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"iscevents/internal/auth"
	"iscevents/internal/dto"
	"iscevents/internal/model"
	"iscevents/internal/repo"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRepo is an in-memory Repository. Child creation runs concurrently in
// the service, so every method locks.
type fakeRepo struct {
	mu        sync.Mutex
	events    map[string]model.Event
	prices    map[string][]model.Price
	galleries map[string][]model.Gallery
	attendees map[string][]model.Attendee

	priceErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:    make(map[string]model.Event),
		prices:    make(map[string][]model.Price),
		galleries: make(map[string][]model.Gallery),
		attendees: make(map[string][]model.Attendee),
	}
}

func (f *fakeRepo) CreateEvent(_ context.Context, e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	f.events[e.ID] = *e
	return nil
}

func (f *fakeRepo) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	return &e, nil
}

func (f *fakeRepo) UpdateEvent(_ context.Context, id string, fields map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return 0, nil
	}
	for column, value := range fields {
		switch column {
		case "title":
			e.Title = value.(string)
		case "description":
			e.Description = value.(string)
		case "image":
			e.Image = value.(string)
		case "location":
			e.Location = value.(string)
		case "start_date":
			e.StartDate = value.(time.Time)
		case "end_date":
			t := value.(time.Time)
			e.EndDate = &t
		default:
			return 0, fmt.Errorf("column %q is not updatable", column)
		}
	}
	e.UpdatedAt = time.Now().UTC()
	f.events[id] = e
	return 1, nil
}

func (f *fakeRepo) DeleteEventCascadeTx(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return 0, nil
	}
	delete(f.events, id)
	delete(f.prices, id)
	delete(f.galleries, id)
	return 1, nil
}

func (f *fakeRepo) sortedUpcoming(from time.Time) []model.Event {
	var events []model.Event
	for _, e := range f.events {
		if !e.StartDate.Before(from) {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartDate.Equal(events[j].StartDate) {
			return events[i].StartDate.Before(events[j].StartDate)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

func paginate(events []model.Event, limit, offset int) []model.Event {
	if offset >= len(events) {
		return nil
	}
	events = events[offset:]
	if len(events) > limit {
		events = events[:limit]
	}
	return events
}

func (f *fakeRepo) ListUpcomingEvents(_ context.Context, from time.Time, limit, offset int) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return paginate(f.sortedUpcoming(from), limit, offset), nil
}

func (f *fakeRepo) SearchUpcomingEvents(_ context.Context, query string, from time.Time, limit, offset int) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(query)
	var matched []model.Event
	for _, e := range f.sortedUpcoming(from) {
		if strings.Contains(strings.ToLower(e.Title), needle) ||
			strings.Contains(strings.ToLower(e.Description), needle) {
			matched = append(matched, e)
		}
	}
	return paginate(matched, limit, offset), nil
}

func (f *fakeRepo) CreatePrice(_ context.Context, p *model.Price) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return f.priceErr
	}
	p.CreatedAt = time.Now().UTC()
	f.prices[p.EventID] = append(f.prices[p.EventID], *p)
	return nil
}

func (f *fakeRepo) PricesByEvent(_ context.Context, eventID string) ([]model.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Price(nil), f.prices[eventID]...), nil
}

func (f *fakeRepo) CreateGallery(_ context.Context, g *model.Gallery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.CreatedAt = time.Now().UTC()
	f.galleries[g.EventID] = append(f.galleries[g.EventID], *g)
	return nil
}

func (f *fakeRepo) GalleriesByEvent(_ context.Context, eventID string) ([]model.Gallery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Gallery(nil), f.galleries[eventID]...), nil
}

func (f *fakeRepo) CreateAttendee(_ context.Context, a *model.Attendee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.CreatedAt = time.Now().UTC()
	f.attendees[a.EventID] = append(f.attendees[a.EventID], *a)
	return nil
}

func (f *fakeRepo) GetAttendeeByID(_ context.Context, id string) (*model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, list := range f.attendees {
		for _, a := range list {
			if a.ID == id {
				return &a, nil
			}
		}
	}
	return nil, repo.ErrAttendeeNotFound
}

func (f *fakeRepo) AttendeesByEvent(_ context.Context, eventID string) ([]model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Attendee(nil), f.attendees[eventID]...), nil
}

func (f *fakeRepo) MigrateUp(string) error { return nil }

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *fakePublisher) Publish(message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

func newTestService(f *fakeRepo, pub Publisher) Service {
	log := zerolog.Nop()
	if pub == nil {
		pub = &fakePublisher{}
	}
	return NewService(f, &log, pub)
}

type envelope struct {
	Success string          `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestContext(t *testing.T, method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func principal() *model.Principal {
	return &model.Principal{UserID: "user-42", FirstName: "Ada"}
}

func createEventBody() map[string]any {
	return map[string]any{
		"title":       "Launch",
		"description": "d",
		"start_date":  "2030-01-01",
		"end_date":    "2030-01-02",
		"prices":      []map[string]any{{"name": "vip", "amount": 100.0}},
		"gallery":     []map[string]any{{"url": "a.png"}},
	}
}

func createTestEvent(t *testing.T, svc Service, body map[string]any) dto.EventView {
	t.Helper()
	c, w := newTestContext(t, http.MethodPost, "/api/events/create", body)
	auth.SetPrincipal(c, principal())

	svc.CreateEvent(c)

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessTrue, resp.Success)

	var view dto.EventView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	require.NotEmpty(t, view.ID)
	return view
}

func TestCreateEventPersistsChildrenBeforeResponding(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)

	view := createTestEvent(t, svc, createEventBody())

	require.Equal(t, "user-42", view.UserID)
	require.Len(t, view.Prices, 1)
	require.Len(t, view.Gallery, 1)

	// Children must already be in the store when the response is out.
	prices, err := f.PricesByEvent(context.Background(), view.ID)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	require.Equal(t, view.ID, prices[0].EventID)
	require.Equal(t, 0, prices[0].OrderAmount)

	gallery, err := f.GalleriesByEvent(context.Background(), view.ID)
	require.NoError(t, err)
	require.Len(t, gallery, 1)
	require.Equal(t, view.ID, gallery[0].EventID)
}

func TestCreateEventValidation(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)

	body := createEventBody()
	delete(body, "title")
	c, w := newTestContext(t, http.MethodPost, "/api/events/create", body)
	auth.SetPrincipal(c, principal())

	svc.CreateEvent(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, dto.SuccessFalse, decodeEnvelope(t, w).Success)
	require.Empty(t, f.events)
}

func TestCreateEventChildFailureReturns500(t *testing.T) {
	f := newFakeRepo()
	f.priceErr = fmt.Errorf("store unavailable")
	svc := newTestService(f, nil)

	c, w := newTestContext(t, http.MethodPost, "/api/events/create", createEventBody())
	auth.SetPrincipal(c, principal())

	svc.CreateEvent(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, dto.SuccessFalse, decodeEnvelope(t, w).Success)
}

func TestGetEventAggregatesChildren(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	view := createTestEvent(t, svc, createEventBody())

	c, w := newTestContext(t, http.MethodGet, "/api/events/"+view.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: view.ID}}

	svc.GetEvent(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessTrue, resp.Success)

	var got dto.EventView
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.Equal(t, view.ID, got.ID)
	require.Len(t, got.Prices, 1)
	require.Len(t, got.Gallery, 1)
	require.Equal(t, view.ID, got.Prices[0].EventID)
}

func TestGetEventNotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	c, w := newTestContext(t, http.MethodGet, "/api/events/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	svc.GetEvent(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessFalse, resp.Success)
	require.Equal(t, dto.MsgEventNotFound, resp.Message)
}

func seedFutureEvents(t *testing.T, svc Service, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		body := createEventBody()
		body["title"] = fmt.Sprintf("Event %d", i)
		body["start_date"] = fmt.Sprintf("2030-01-%02d", i+1)
		delete(body, "prices")
		delete(body, "gallery")
		ids = append(ids, createTestEvent(t, svc, body).ID)
	}
	return ids
}

func listEvents(t *testing.T, svc Service, page, limit int) dto.EventListData {
	t.Helper()
	target := fmt.Sprintf("/api/events?page=%d&limit=%d", page, limit)
	c, w := newTestContext(t, http.MethodGet, target, nil)

	svc.GetEvents(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessTrue, resp.Success)

	var data dto.EventListData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

func TestGetEventsPaginationIsDisjoint(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	seedFutureEvents(t, svc, 3)

	first := listEvents(t, svc, 1, 1)
	second := listEvents(t, svc, 2, 1)

	require.Len(t, first.Events, 1)
	require.Len(t, second.Events, 1)
	require.NotEqual(t, first.Events[0].ID, second.Events[0].ID)
}

func TestGetEventsPartitionIsExhaustiveAndDisjoint(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	seedFutureEvents(t, svc, 3)

	data := listEvents(t, svc, 1, 100)

	require.Len(t, data.Events, 3)
	require.Equal(t, len(data.Events), len(data.Past)+len(data.Upcoming))
	// The store filter and the partition share one "now", so nothing already
	// filtered to the future can land in past.
	require.Empty(t, data.Past)

	seen := make(map[string]int)
	for _, v := range data.Past {
		seen[v.ID]++
	}
	for _, v := range data.Upcoming {
		seen[v.ID]++
	}
	for _, v := range data.Events {
		require.Equal(t, 1, seen[v.ID])
	}
}

func TestGetEventsPreservesStoreOrdering(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	seedFutureEvents(t, svc, 3)

	data := listEvents(t, svc, 1, 100)

	for i := 1; i < len(data.Events); i++ {
		require.False(t, data.Events[i].StartDate.Before(data.Events[i-1].StartDate))
	}
}

func TestSearchEventsMatchesTitleCaseInsensitively(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	seedFutureEvents(t, svc, 3)

	c, w := newTestContext(t, http.MethodGet, "/api/events/search?q=EVENT%201", nil)

	svc.SearchEvents(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessTrue, resp.Success)

	var data dto.EventListData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Events, 1)
	require.Equal(t, "Event 1", data.Events[0].Title)
}

func TestSearchEventsRequiresQuery(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	c, w := newTestContext(t, http.MethodGet, "/api/events/search", nil)

	svc.SearchEvents(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateEventPartial(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	view := createTestEvent(t, svc, createEventBody())

	c, w := newTestContext(t, http.MethodPost, "/api/events/"+view.ID, map[string]any{"title": "Renamed"})
	c.Params = gin.Params{{Key: "id", Value: view.ID}}

	svc.UpdateEvent(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, dto.SuccessTrue, decodeEnvelope(t, w).Success)

	stored := f.events[view.ID]
	require.Equal(t, "Renamed", stored.Title)
	require.Equal(t, "d", stored.Description)
}

func TestUpdateEventMissingRowReportsZeroAffected(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	c, w := newTestContext(t, http.MethodPost, "/api/events/missing", map[string]any{"title": "x"})
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	svc.UpdateEvent(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessFalse, resp.Success)

	var data map[string]int64
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Equal(t, int64(0), data["affected"])
}

func TestDeleteEventCascadesAndGetReturnsNotFound(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	view := createTestEvent(t, svc, createEventBody())

	c, w := newTestContext(t, http.MethodDelete, "/api/events/"+view.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: view.ID}}

	svc.DeleteEvent(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, f.prices[view.ID])
	require.Empty(t, f.galleries[view.ID])

	c, w = newTestContext(t, http.MethodGet, "/api/events/"+view.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: view.ID}}

	svc.GetEvent(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, dto.SuccessFalse, decodeEnvelope(t, w).Success)
}

func TestGetRequestedCardsShapesEvent(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	view := createTestEvent(t, svc, createEventBody())

	c, w := newTestContext(t, http.MethodPost, "/api/events/"+view.ID+"/get-cards", nil)
	c.Params = gin.Params{{Key: "id", Value: view.ID}}

	svc.GetRequestedCards(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessTrue, resp.Success)

	var card dto.EventCard
	require.NoError(t, json.Unmarshal(resp.Data, &card))
	require.Equal(t, view.ID, card.ID)
	require.Equal(t, "Launch", card.Title)
	require.Len(t, card.Prices, 1)
	require.Len(t, card.Gallery, 1)
}

func TestCreateAttendeePublishesMessage(t *testing.T) {
	f := newFakeRepo()
	pub := &fakePublisher{}
	svc := newTestService(f, pub)
	view := createTestEvent(t, svc, createEventBody())

	c, w := newTestContext(t, http.MethodPost, "/api/attendee/create", map[string]any{
		"event_id": view.ID,
		"name":     "Grace",
		"email":    "grace@example.com",
	})

	svc.CreateAttendee(c)

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessTrue, resp.Success)

	var attendee model.Attendee
	require.NoError(t, json.Unmarshal(resp.Data, &attendee))
	require.Equal(t, view.ID, attendee.EventID)

	require.Len(t, pub.messages, 1)
	var msg dto.AttendeeCreatedMessage
	require.NoError(t, json.Unmarshal(pub.messages[0], &msg))
	require.Equal(t, attendee.ID, msg.AttendeeID)
	require.Equal(t, view.ID, msg.EventID)
}

func TestCreateAttendeeUnknownEvent(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)

	c, w := newTestContext(t, http.MethodPost, "/api/attendee/create", map[string]any{
		"event_id": "missing",
		"name":     "Grace",
		"email":    "grace@example.com",
	})

	svc.CreateAttendee(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAttendeesEmptyIsNotAnError(t *testing.T) {
	f := newFakeRepo()
	svc := newTestService(f, nil)
	view := createTestEvent(t, svc, createEventBody())

	c, w := newTestContext(t, http.MethodGet, "/api/attendees/"+view.ID, nil)
	c.Params = gin.Params{{Key: "id", Value: view.ID}}

	svc.GetAttendees(c)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	require.Equal(t, dto.SuccessTrue, resp.Success)
	require.JSONEq(t, "[]", string(resp.Data))
}
