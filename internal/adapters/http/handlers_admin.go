package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dojo/internal/adapters/export"
	"dojo/internal/adapters/http/middleware"
	"dojo/internal/adapters/http/perf"
	accountStore "dojo/internal/adapters/storage/account"
	eventStore "dojo/internal/adapters/storage/event"
	memberStore "dojo/internal/adapters/storage/member"
	outboxStore "dojo/internal/adapters/storage/outbox"
	"dojo/internal/application/listutil"
	"dojo/internal/application/orchestrators"
	"dojo/internal/application/projections"
	accountDomain "dojo/internal/domain/account"
	eventDomain "dojo/internal/domain/event"
)

// perfWindow is how far back the dashboard's request timings reach.
const perfWindow = time.Hour

// eventHistory is how far back the admin event list reaches.
const eventHistory = 90 * 24 * time.Hour

var errFee = errors.New("fee must be an amount in rands, e.g. 150 or 150.00")

// --- Dashboard ---

func handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	now := timeNow()
	dash, err := projections.QueryGetDashboard(r.Context(), now, projections.GetDashboardDeps{
		MemberStore:       stores.MemberStore,
		RegistrationStore: stores.RegistrationStore,
		PaymentStore:      stores.PaymentStore,
		EventStore:        stores.EventStore,
		OutboxStore:       stores.OutboxStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	var timings perf.Summary
	if services.Perf != nil {
		timings = services.Perf.Summarize(now.Add(-perfWindow), 5)
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, dash)
		return
	}
	renderTemplate(w, r, http.StatusOK, "admin_dashboard.html", map[string]any{
		"Dashboard": dash,
		"Perf":      timings,
	})
}

// --- Members ---

func memberListParams(r *http.Request) listutil.ListParams {
	return listutil.Parse(r.URL.Query(), projections.MemberSortColumns, projections.MemberFilterKeys)
}

func handleAdminMembers(w http.ResponseWriter, r *http.Request) {
	params := memberListParams(r)
	res, err := projections.QueryGetMemberList(r.Context(), params, projections.GetMemberListDeps{
		MemberStore: stores.MemberStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, res)
		return
	}
	renderTemplate(w, r, http.StatusOK, "admin_members.html", map[string]any{
		"List":           res,
		"PerPageOptions": listutil.PerPageOptions,
	})
}

// handleAdminMembersExport streams the filtered member list as a spreadsheet.
func handleAdminMembersExport(w http.ResponseWriter, r *http.Request) {
	members, err := projections.QueryAllMembers(r.Context(), memberListParams(r), projections.GetMemberListDeps{
		MemberStore: stores.MemberStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteMembers(&buf, members); err != nil {
		internalError(w, err)
		return
	}
	name := fmt.Sprintf("members-%s.xlsx", timeNow().Format(dateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

func profileDeps() projections.GetMemberProfileDeps {
	return projections.GetMemberProfileDeps{
		MemberStore:       stores.MemberStore,
		RegistrationStore: stores.RegistrationStore,
		ConsentStore:      stores.ConsentStore,
		DocumentStore:     stores.DocumentStore,
		PaymentStore:      stores.PaymentStore,
	}
}

// renderProfile shows one member on page, with msg as an error when set.
func renderProfile(w http.ResponseWriter, r *http.Request, page, id string, status int, msg string) {
	profile, err := projections.QueryGetMemberProfile(r.Context(), id, profileDeps())
	if errors.Is(err, memberStore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, status, profile)
		return
	}
	data := map[string]any{"Profile": profile}
	if msg != "" {
		data["Error"] = msg
	}
	renderTemplate(w, r, status, page, data)
}

func handleAdminMember(w http.ResponseWriter, r *http.Request) {
	renderProfile(w, r, "admin_member.html", r.PathValue("id"), http.StatusOK, "")
}

func handleAdminArchiveMember(w http.ResponseWriter, r *http.Request) {
	changeStatus(w, r, orchestrators.ExecuteArchiveMember)
}

func handleAdminRestoreMember(w http.ResponseWriter, r *http.Request) {
	changeStatus(w, r, orchestrators.ExecuteRestoreMember)
}

func changeStatus(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, in orchestrators.ArchiveMemberInput, deps orchestrators.ArchiveMemberDeps) error) {
	id := r.PathValue("id")
	err := change(r.Context(), orchestrators.ArchiveMemberInput{MemberID: id}, orchestrators.ArchiveMemberDeps{
		MemberStore: stores.MemberStore,
		Now:         timeNow,
	})
	switch {
	case errors.Is(err, memberStore.ErrNotFound):
		http.NotFound(w, r)
		return
	case orchestrators.IsInputError(err):
		renderProfile(w, r, "admin_member.html", id, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/admin/members/"+url.PathEscape(id), http.StatusSeeOther)
}

// --- Events ---

func eventDeps() orchestrators.EventDeps {
	return orchestrators.EventDeps{
		EventStore: stores.EventStore,
		Now:        timeNow,
		GenerateID: uuid.NewString,
	}
}

// eventsPage renders the admin event list with an optional event in the edit form.
func eventsPage(w http.ResponseWriter, r *http.Request, status int, editing eventDomain.Event, msg string) {
	now := timeNow()
	events, err := projections.QueryGetEvents(r.Context(), now.Add(-eventHistory), now, false,
		projections.GetEventsDeps{EventStore: stores.EventStore})
	if err != nil {
		internalError(w, err)
		return
	}
	data := map[string]any{
		"Events":  events,
		"Editing": editing,
	}
	if msg != "" {
		data["Error"] = msg
	}
	renderTemplate(w, r, status, "admin_events.html", data)
}

func handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	var editing eventDomain.Event
	if id := r.URL.Query().Get("edit"); id != "" {
		e, err := stores.EventStore.GetByID(r.Context(), id)
		if errors.Is(err, eventStore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			internalError(w, err)
			return
		}
		editing = e
	}
	eventsPage(w, r, http.StatusOK, editing, "")
}

func handleAdminSaveEvent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	sess, _ := middleware.GetSessionFromContext(r.Context())
	in, err := eventInput(r, sess.AccountID)
	if err == nil {
		_, err = orchestrators.ExecuteSaveEvent(r.Context(), in, eventDeps())
	}
	if orchestrators.IsInputError(err) {
		eventsPage(w, r, http.StatusUnprocessableEntity, eventDomain.Event{
			ID:          in.ID,
			Title:       in.Title,
			Description: in.Description,
			Location:    in.Location,
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
			Public:      in.Public,
			FeeCents:    in.FeeCents,
		}, err.Error())
		return
	}
	if errors.Is(err, eventStore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/admin/events", http.StatusSeeOther)
}

func eventInput(r *http.Request, accountID string) (orchestrators.SaveEventInput, error) {
	in := orchestrators.SaveEventInput{
		ID:          r.FormValue("id"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
		Public:      checkedValue(r, "public"),
		CreatedBy:   accountID,
	}
	var err error
	if in.StartDate, err = parseDay(r.FormValue("start_date")); err != nil {
		return in, &orchestrators.InputError{Err: eventDomain.ErrNoStartDate}
	}
	if in.EndDate, err = parseDay(r.FormValue("end_date")); err != nil {
		return in, &orchestrators.InputError{Err: errors.New("end date must be a valid date")}
	}
	if in.FeeCents, err = parseRands(r.FormValue("fee")); err != nil {
		return in, &orchestrators.InputError{Err: errFee}
	}
	return in, nil
}

// parseDay reads a date input; an empty value is the zero time.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

// parseRands converts "150" or "150.50" to cents. Empty means free.
func parseRands(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R"))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errFee
	}
	return int64(math.Round(v * 100)), nil
}

func handleAdminDeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteDeleteEvent(r.Context(), r.PathValue("id"), eventDeps())
	if errors.Is(err, eventStore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/admin/events", http.StatusSeeOther)
}

// --- Staff accounts ---

func instructorsPage(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	ctx := r.Context()
	staff, err := stores.AccountStore.List(ctx, accountStore.ListFilter{Role: accountDomain.RoleInstructor})
	if err != nil {
		internalError(w, err)
		return
	}
	admins, err := stores.AccountStore.List(ctx, accountStore.ListFilter{Role: accountDomain.RoleAdmin})
	if err != nil {
		internalError(w, err)
		return
	}
	data["Instructors"] = staff
	data["Admins"] = admins
	renderTemplate(w, r, status, "admin_instructors.html", data)
}

func handleAdminInstructors(w http.ResponseWriter, r *http.Request) {
	instructorsPage(w, r, http.StatusOK, map[string]any{})
}

// handleAdminCreateInstructor creates a staff login that must change its password on first use.
func handleAdminCreateInstructor(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	role := r.FormValue("role")
	if role != accountDomain.RoleAdmin {
		role = accountDomain.RoleInstructor
	}
	email := r.FormValue("email")
	_, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
		Email:                  email,
		Password:               r.FormValue("password"),
		Role:                   role,
		PasswordChangeRequired: true,
	}, orchestrators.CreateAccountDeps{AccountStore: stores.AccountStore, Now: timeNow})
	if orchestrators.IsInputError(err) {
		instructorsPage(w, r, http.StatusUnprocessableEntity, map[string]any{
			"Error": err.Error(),
			"Email": email,
			"Role":  role,
		})
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	http.Redirect(w, r, "/admin/instructors", http.StatusSeeOther)
}

// --- Outbox ---

func handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	res, err := projections.QueryGetOutbox(r.Context(), r.URL.Query().Get("status"), stores.OutboxStore)
	if err != nil {
		internalError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, res)
		return
	}
	renderTemplate(w, r, http.StatusOK, "admin_outbox.html", map[string]any{"Outbox": res})
}

func handleAdminOutboxRetry(w http.ResponseWriter, r *http.Request) {
	outboxAction(w, r, "retry triggered", services.Outbox.RetryEntry)
}

func handleAdminOutboxAbandon(w http.ResponseWriter, r *http.Request) {
	outboxAction(w, r, "abandoned", services.Outbox.AbandonEntry)
}

// outboxAction runs an admin action on one entry. Delivery failures during a retry are
// recorded on the entry and are not an error for the admin.
func outboxAction(w http.ResponseWriter, r *http.Request, done string, action func(ctx context.Context, id string) error) {
	id := r.PathValue("id")
	if err := action(r.Context(), id); err != nil {
		if errors.Is(err, outboxStore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if wantsJSON(r) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"status": done})
		return
	}
	http.Redirect(w, r, "/admin/outbox?status="+url.QueryEscape(r.FormValue("status")), http.StatusSeeOther)
}
