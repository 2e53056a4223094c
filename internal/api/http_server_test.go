package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gymdesk/internal/config"
	"gymdesk/internal/models"
	"gymdesk/internal/payment"
	"gymdesk/internal/service"
	"gymdesk/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	store  *store.Store
	server *httptest.Server
	slotID string
}

func newAPIFixture(t *testing.T, cfg config.APIConfig) *apiFixture {
	t.Helper()
	st := store.New()

	_, err := st.RegisterAccount(models.Account{ID: "student-1", Name: "Dana", Email: "dana@example.com", Role: models.RoleStudent})
	require.NoError(t, err)
	_, err = st.RegisterAccount(models.Account{ID: "trainer-1", Name: "Elena", Email: "elena@example.com", Role: models.RoleTrainer})
	require.NoError(t, err)
	slot, err := st.AddTimeSlot("trainer-1", "Monday", "09:00", "10:00")
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	gateway := &payment.StaticGateway{Approve: true}
	bookings := service.NewBookingService(st, nil, nil, nil, nil, gateway, &logger)
	schedule := service.NewScheduleService(st, nil, nil, nil, &logger)
	accounts := service.NewAccountService(st, nil, nil, nil, nil, &logger)

	srv := NewHTTPServer(cfg, bookings, schedule, accounts, nil, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)

	return &apiFixture{store: st, server: ts, slotID: slot.ID}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t, config.APIConfig{})
	resp := f.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateBookingEndpoint(t *testing.T) {
	f := newAPIFixture(t, config.APIConfig{})

	body := map[string]string{
		"student_id":   "student-1",
		"trainer_id":   "trainer-1",
		"time_slot_id": f.slotID,
		"date":         "2026-09-07",
	}
	resp := f.do(t, http.MethodPost, "/api/v1/bookings", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var booking models.Booking
	decodeBody(t, resp, &booking)
	assert.Equal(t, models.StatusPending, booking.Status)

	// Занятый слот даёт конфликт.
	resp = f.do(t, http.MethodPost, "/api/v1/bookings", body, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateBookingBadRequests(t *testing.T) {
	f := newAPIFixture(t, config.APIConfig{})

	resp := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]string{"student_id": "student-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/bookings", map[string]string{
		"student_id":   "student-1",
		"trainer_id":   "trainer-1",
		"time_slot_id": f.slotID,
		"date":         "2026-09-07",
		"surprise":     "field",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/bookings", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBookingLifecycleEndpoints(t *testing.T) {
	f := newAPIFixture(t, config.APIConfig{})

	resp := f.do(t, http.MethodPost, "/api/v1/bookings", map[string]string{
		"student_id":   "student-1",
		"trainer_id":   "trainer-1",
		"time_slot_id": f.slotID,
		"date":         "2026-09-07",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var booking models.Booking
	decodeBody(t, resp, &booking)

	// Completing a pending booking is an invalid transition.
	resp = f.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/complete", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	card := models.PaymentInfo{CardNumber: "4242424242424242", CardholderName: "Dana Kim"}
	resp = f.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/payment", card, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var confirmed models.Booking
	decodeBody(t, resp, &confirmed)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	resp = f.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/complete", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/bookings/"+booking.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done models.Booking
	decodeBody(t, resp, &done)
	assert.Equal(t, models.StatusCompleted, done.Status)

	// Terminal bookings cannot be cancelled.
	resp = f.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/bookings/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSlotsEndpoints(t *testing.T) {
	f := newAPIFixture(t, config.APIConfig{})

	resp := f.do(t, http.MethodGet, "/api/v1/slots", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Slots []models.TimeSlot `json:"slots"`
	}
	decodeBody(t, resp, &listing)
	assert.Len(t, listing.Slots, 1)

	resp = f.do(t, http.MethodPost, "/api/v1/slots", map[string]string{
		"trainer_id": "trainer-1",
		"day":        "Tuesday",
		"start_time": "10:00",
		"end_time":   "11:00",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Overlapping window for the same trainer and day.
	resp = f.do(t, http.MethodPost, "/api/v1/slots", map[string]string{
		"trainer_id": "trainer-1",
		"day":        "Monday",
		"start_time": "09:30",
		"end_time":   "10:30",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/slots?trainer_id=missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/slots/"+f.slotID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/slots/"+f.slotID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAccountsEndpoints(t *testing.T) {
	f := newAPIFixture(t, config.APIConfig{})

	resp := f.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{
		"name":  "Pavel",
		"email": "pavel@example.com",
		"role":  models.RoleStudent,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Account
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)

	resp = f.do(t, http.MethodGet, "/api/v1/accounts?role=student", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Accounts []models.Account `json:"accounts"`
	}
	decodeBody(t, resp, &listing)
	assert.Len(t, listing.Accounts, 2)

	resp = f.do(t, http.MethodGet, "/api/v1/accounts/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/accounts/"+created.ID+"/bookings", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/accounts/trainer-1/slots", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/accounts/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/accounts/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Duplicate email maps onto conflict.
	resp = f.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{
		"name":  "Dana Clone",
		"email": "dana@example.com",
		"role":  models.RoleStudent,
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSlotBookingEndpoint(t *testing.T) {
	f := newAPIFixture(t, config.APIConfig{})

	resp := f.do(t, http.MethodGet, "/api/v1/slots/"+f.slotID+"/booking", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/bookings", map[string]string{
		"student_id":   "student-1",
		"trainer_id":   "trainer-1",
		"time_slot_id": f.slotID,
		"date":         "2026-09-07",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var booking models.Booking
	decodeBody(t, resp, &booking)

	resp = f.do(t, http.MethodGet, "/api/v1/slots/"+f.slotID+"/booking", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var holder models.Booking
	decodeBody(t, resp, &holder)
	assert.Equal(t, booking.ID, holder.ID)
}

func TestExportUnconfigured(t *testing.T) {
	f := newAPIFixture(t, config.APIConfig{})
	resp := f.do(t, http.MethodPost, "/api/v1/exports/bookings", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "frontdesk-key", Name: "frontdesk"},
				{Key: "readonly-key", Name: "readonly", Permissions: []string{"read:bookings", "read:schedule", "read:accounts"}},
			},
		},
	}
	f := newAPIFixture(t, cfg)

	// Health is open.
	resp := f.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/slots", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/slots", nil, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/slots", nil, map[string]string{"x-api-key": "readonly-key"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Read-only key cannot write.
	resp = f.do(t, http.MethodPost, "/api/v1/slots", map[string]string{
		"trainer_id": "trainer-1",
		"day":        "Tuesday",
		"start_time": "10:00",
		"end_time":   "11:00",
	}, map[string]string{"x-api-key": "readonly-key"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Ключ без списка прав может всё.
	resp = f.do(t, http.MethodPost, "/api/v1/slots", map[string]string{
		"trainer_id": "trainer-1",
		"day":        "Tuesday",
		"start_time": "10:00",
		"end_time":   "11:00",
	}, map[string]string{"x-api-key": "frontdesk-key"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	cfg := config.APIConfig{
		RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2},
	}
	f := newAPIFixture(t, cfg)

	headers := map[string]string{"x-api-key": "any-key"}
	limited := false
	for i := 0; i < 5; i++ {
		resp := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/slots?n=%d", i), nil, headers)
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited)
}
