package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"perks/internal/core"
	"perks/internal/ical"
	"perks/internal/log"
)

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	cat := s.tracker.Catalog()
	users := append([]string{}, cat.UserOrder...)
	NewJSONResponse().
		Body(usersResponse{Users: users, DefaultUser: cat.DefaultUser()}).
		Write(w)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Body(newCatalogResponse(s.tracker.Catalog())).
		Write(w)
}

func (s *Server) handleListCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user")
	today := s.tracker.Today()

	year, err := ParseYearParam(r.URL.Query(), today)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	tracked, err := s.tracker.Track(ctx, userID, year)
	if err != nil {
		s.writeError(w, r, err, log.OpList, userID, year)
		return
	}

	NewJSONResponse().
		Body(creditsResponse{
			User:  userID,
			Year:  year,
			Today: today,
			Cards: newCardGroupViews(tracked, s.tracker.Catalog(), year),
		}).
		Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user")
	today := s.tracker.Today()

	year, err := ParseYearParam(r.URL.Query(), today)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	summaries, err := s.tracker.Summary(ctx, userID, year)
	if err != nil {
		s.writeError(w, r, err, log.OpRead, userID, year)
		return
	}

	NewJSONResponse().
		Body(summaryResponse{
			User:  userID,
			Year:  year,
			Today: today,
			Cards: newSummaryViews(summaries),
		}).
		Write(w)
}

func (s *Server) handleSaveCredit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user")
	instanceID := chi.URLParam(r, "instanceID")

	entry, err := DecodeCreditEntry(r)
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate, userID, 0)
		return
	}

	if err := s.tracker.SaveEntry(ctx, userID, instanceID, entry); err != nil {
		s.writeError(w, r, err, log.OpUpdate, userID, 0)
		return
	}

	inst, err := s.tracker.FindInstance(ctx, userID, instanceID)
	if err != nil {
		s.writeError(w, r, err, log.OpRead, userID, 0)
		return
	}
	today := s.tracker.Today()
	tc := core.TrackedCredit{
		CreditInstance: inst,
		Entry:          entry,
		Status:         core.StatusOf(inst, entry, today),
	}

	NewJSONResponse().
		Body(saveResponse{
			User:     userID,
			Instance: newInstanceView(tc, s.tracker.Catalog(), inst.StartDate.Year()),
		}).
		Write(w)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user")
	query := r.URL.Query()

	year, err := ParseYearParam(query, s.tracker.Today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	remind, err := ParseReminderDays(query, s.reminderDays)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	tracked, err := s.tracker.Track(ctx, userID, year)
	if err != nil {
		s.writeError(w, r, err, log.OpRead, userID, year)
		return
	}

	feed, err := ical.Encode(tracked, s.tracker.Catalog(), ical.Options{
		Name:         fmt.Sprintf("Credits %s %d", userID, year),
		ReminderDays: remind,
		Now:          time.Now(),
	})
	if err != nil {
		s.writeError(w, r, err, log.OpRead, userID, year)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s-%d.ics"`, userID, year))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(feed)
}

// writeError logs err with the request logger and writes the mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op, userID string, year int) {
	resp := ErrorFor(err)
	fields := log.NewFields().
		WithOperation(op).
		WithUser(userID, year).
		WithError(err)
	if id := chi.URLParam(r, "instanceID"); id != "" {
		fields[log.FieldInstanceID] = id
	}

	logger := log.FromContext(r.Context())
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	resp.Write(w)
}
