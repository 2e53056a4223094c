package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gymdesk/internal/config"
	"gymdesk/internal/export"
	"gymdesk/internal/metrics"
	"gymdesk/internal/models"
	"gymdesk/internal/service"
	"gymdesk/internal/store"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking operations over HTTP.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings *service.BookingService
	schedule *service.ScheduleService
	accounts *service.AccountService
	exporter *export.Exporter
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings *service.BookingService, schedule *service.ScheduleService, accounts *service.AccountService, exporter *export.Exporter, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		schedule: schedule,
		accounts: accounts,
		exporter: exporter,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	mux.HandleFunc("/api/v1/slots", srv.handleSlots)
	mux.HandleFunc("/api/v1/slots/", srv.handleSlotByID)
	mux.HandleFunc("/api/v1/accounts", srv.handleAccounts)
	mux.HandleFunc("/api/v1/accounts/", srv.handleAccountByID)
	mux.HandleFunc("/api/v1/exports/bookings", srv.handleExportBookings)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		StudentID  string `json:"student_id"`
		TrainerID  string `json:"trainer_id"`
		TimeSlotID string `json:"time_slot_id"`
		Date       string `json:"date"`
	}

	var body request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.StudentID == "" || body.TrainerID == "" || body.TimeSlotID == "" || body.Date == "" {
		writeError(w, http.StatusBadRequest, "student_id, trainer_id, time_slot_id and date are required")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), body.StudentID, body.TrainerID, body.TimeSlotID, body.Date)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// handleBookingByID dispatches /api/v1/bookings/{id} and its lifecycle
// sub-resources: cancel, complete, payment.
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		booking, err := s.bookings.Booking(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case action == "cancel" && r.Method == http.MethodPost:
		booking, err := s.bookings.CancelBooking(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case action == "complete" && r.Method == http.MethodPost:
		booking, err := s.bookings.CompleteBooking(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case action == "payment" && r.Method == http.MethodPost:
		var info models.PaymentInfo
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&info); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		booking, err := s.bookings.ProcessPayment(r.Context(), id, info)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	switch r.Method {
	case http.MethodGet:
		trainerID := strings.TrimSpace(r.URL.Query().Get("trainer_id"))
		slots, err := s.schedule.AvailableSlots(trainerID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": slots})

	case http.MethodPost:
		type request struct {
			TrainerID string `json:"trainer_id"`
			Day       string `json:"day"`
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
		}

		var body request
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		slot, err := s.schedule.AddTimeSlot(r.Context(), body.TrainerID, body.Day, body.StartTime, body.EndTime)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, slot)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSlotByID serves /api/v1/slots/{id} and the booking holding it.
func (s *HTTPServer) handleSlotByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/slots/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "slot id is required")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		slot, err := s.schedule.RemoveTimeSlot(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slot)

	case sub == "booking" && r.Method == http.MethodGet:
		booking, err := s.bookings.BookingBySlot(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleAccounts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("accounts")

	switch r.Method {
	case http.MethodGet:
		role := strings.TrimSpace(r.URL.Query().Get("role"))
		if role == "" {
			writeError(w, http.StatusBadRequest, "role is required")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": s.accounts.AccountsByRole(role)})

	case http.MethodPost:
		var account models.Account
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&account); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if account.Name == "" || account.Email == "" || account.Role == "" {
			writeError(w, http.StatusBadRequest, "name, email and role are required")
			return
		}

		created, err := s.accounts.Register(r.Context(), account)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAccountByID serves /api/v1/accounts/{id} plus the per-account
// sub-collections: bookings and slots.
func (s *HTTPServer) handleAccountByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("accounts")

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "account id is required")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		account, err := s.accounts.Account(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, account)

	case sub == "" && r.Method == http.MethodDelete:
		if err := s.accounts.Remove(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})

	case sub == "bookings" && r.Method == http.MethodGet:
		account, err := s.accounts.Account(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		var bookings []models.Booking
		if account.Role == models.RoleTrainer {
			bookings, err = s.bookings.BookingsByTrainer(id)
		} else {
			bookings, err = s.bookings.BookingsByStudent(id)
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})

	case sub == "slots" && r.Method == http.MethodGet:
		slots, err := s.schedule.TrainerSlots(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": slots})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exports")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}

	now := time.Now()
	start := now.AddDate(0, -models.DefaultExportRangeMonthsBefore, 0)
	end := now.AddDate(0, models.DefaultExportRangeMonthsAfter, 0)

	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
			return
		}
		start = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
			return
		}
		end = parsed
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date is before start date")
		return
	}

	path, err := s.exporter.ExportBookings(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

// writeStoreError maps the error taxonomy onto HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch store.Kind(err) {
	case store.KindNotFound:
		status = http.StatusNotFound
	case store.KindConflict:
		status = http.StatusConflict
	case store.KindInvalidTransition:
		status = http.StatusUnprocessableEntity
	case store.KindPreconditionFailed:
		status = http.StatusPreconditionFailed
	case store.KindPersistenceFailed:
		status = http.StatusBadGateway
	case store.KindInvalidArgument:
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
