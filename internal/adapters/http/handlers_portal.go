package web

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"dojo/internal/adapters/gateway"
	"dojo/internal/adapters/http/middleware"
	documentStore "dojo/internal/adapters/storage/document"
	eventStore "dojo/internal/adapters/storage/event"
	memberStore "dojo/internal/adapters/storage/member"
	"dojo/internal/application/orchestrators"
	"dojo/internal/application/projections"
	"dojo/internal/domain/member"
	"dojo/internal/domain/payment"
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// --- Public events ---

// eventJSON is the public API shape of an event.
type eventJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Dates       string `json:"dates"`
	Fee         string `json:"fee,omitempty"`
}

func upcomingEvents(r *http.Request, publicOnly bool) ([]projections.EventView, error) {
	now := timeNow()
	return projections.QueryGetEvents(r.Context(), startOfDay(now), now, publicOnly,
		projections.GetEventsDeps{EventStore: stores.EventStore})
}

// handleEvents lists upcoming public events by month.
func handleEvents(w http.ResponseWriter, r *http.Request) {
	renderEvents(w, r, true)
}

// handleInstructorEvents lists every upcoming event, public or not.
func handleInstructorEvents(w http.ResponseWriter, r *http.Request) {
	renderEvents(w, r, false)
}

func renderEvents(w http.ResponseWriter, r *http.Request, publicOnly bool) {
	events, err := upcomingEvents(r, publicOnly)
	if err != nil {
		internalError(w, err)
		return
	}
	months, byMonth := projections.GroupByMonth(events)
	renderTemplate(w, r, http.StatusOK, "events.html", map[string]any{
		"Months":  months,
		"ByMonth": byMonth,
		"Staff":   !publicOnly,
	})
}

func handleEventsAPI(w http.ResponseWriter, r *http.Request) {
	events, err := upcomingEvents(r, true)
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		j := eventJSON{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Location:    e.Location,
			StartDate:   e.StartDate.Format(dateLayout),
			Dates:       e.Dates,
			Fee:         e.Fee,
		}
		if !e.EndDate.IsZero() {
			j.EndDate = e.EndDate.Format(dateLayout)
		}
		out = append(out, j)
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Instructor portal ---

func handleInstructorRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := projections.QueryGetRoster(r.Context(), projections.GetRosterDeps{
		MemberStore:       stores.MemberStore,
		RegistrationStore: stores.RegistrationStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, roster)
		return
	}
	renderTemplate(w, r, http.StatusOK, "instructor_roster.html", map[string]any{"Roster": roster})
}

func handleInstructorMember(w http.ResponseWriter, r *http.Request) {
	renderProfile(w, r, "instructor_member.html", r.PathValue("id"), http.StatusOK, "")
}

// handleDocument streams an uploaded file to staff. Every access is logged.
func handleDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := stores.DocumentStore.GetByID(ctx, r.PathValue("id"))
	if errors.Is(err, documentStore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	body, err := services.Blobs.Open(ctx, doc.BlobKey)
	if err != nil {
		internalError(w, err)
		return
	}
	defer body.Close()

	sess, _ := middleware.GetSessionFromContext(ctx)
	slog.Info("document_viewed", "document_id", doc.ID, "kind", doc.Kind, "member_id", doc.MemberID, "account_id", sess.AccountID)

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("document_stream_failed", "document_id", doc.ID, "error", err)
	}
}

// --- Student portal ---

// studentPayOption is one payment a student can start from the portal.
type studentPayOption struct {
	Type   payment.Type
	Label  string
	Amount string
}

func studentPage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	profile, err := projections.QueryGetMemberProfile(r.Context(), sess.MemberID, profileDeps())
	if errors.Is(err, memberStore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	events, err := upcomingEvents(r, false)
	if err != nil {
		internalError(w, err)
		return
	}
	var pay []studentPayOption
	for _, t := range payment.StudentTypes {
		if cents, err := options.Payments.Amounts.For(t); err == nil {
			pay = append(pay, studentPayOption{Type: t, Label: t.Label(), Amount: payment.FormatAmount(cents)})
		}
	}
	data := map[string]any{
		"Profile":  profile,
		"Events":   events,
		"Payments": pay,
	}
	if msg != "" {
		data["Error"] = msg
	}
	renderTemplate(w, r, status, "student_home.html", data)
}

func handleStudentHome(w http.ResponseWriter, r *http.Request) {
	studentPage(w, r, http.StatusOK, "")
}

// payer resolves who a portal payment is for: the signed-in member or one of the
// members registered by the same guardian.
func payer(r *http.Request, self string) (member.Member, error) {
	ctx := r.Context()
	m, err := stores.MemberStore.GetByID(ctx, self)
	if err != nil {
		return member.Member{}, err
	}
	target := r.FormValue("member_id")
	if target == "" || target == m.ID {
		return m, nil
	}
	if m.GuardianID == "" {
		return member.Member{}, payment.ErrNotAllowed
	}
	family, err := stores.MemberStore.ListByGuardian(ctx, m.GuardianID)
	if err != nil {
		return member.Member{}, err
	}
	for _, f := range family {
		if f.ID == target {
			return f, nil
		}
	}
	return member.Member{}, payment.ErrNotAllowed
}

// handleStudentPay starts a monthly, grading or event payment from the portal.
func handleStudentPay(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	m, err := payer(r, sess.MemberID)
	if errors.Is(err, payment.ErrNotAllowed) {
		studentPage(w, r, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	in := orchestrators.StartPaymentInput{
		MemberID:         m.ID,
		MembershipNumber: m.MembershipNumber,
		Email:            sess.Email,
		Type:             payment.Type(r.FormValue("type")),
	}
	if eventID := r.FormValue("event_id"); eventID != "" {
		e, err := stores.EventStore.GetByID(r.Context(), eventID)
		if errors.Is(err, eventStore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			internalError(w, err)
			return
		}
		if e.FeeCents <= 0 || e.IsPast(timeNow()) {
			studentPage(w, r, http.StatusUnprocessableEntity, payment.ErrNotAllowed.Error())
			return
		}
		in.Type = payment.TypeEventFee
		in.AmountCents = e.FeeCents
		in.Label = e.Title
	} else if !payment.StudentMayStart(in.Type) {
		studentPage(w, r, http.StatusUnprocessableEntity, payment.ErrNotAllowed.Error())
		return
	}

	_, link, err := orchestrators.ExecuteStartPayment(r.Context(), in, startPaymentDeps())
	if errors.Is(err, gateway.ErrUnavailable) {
		studentPage(w, r, http.StatusBadGateway, "The payment service is unavailable right now. Please try again in a few minutes.")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, link.URL, http.StatusSeeOther)
}
