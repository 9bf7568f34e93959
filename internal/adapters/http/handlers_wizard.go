package web

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dojo/internal/adapters/gateway"
	"dojo/internal/adapters/http/middleware"
	"dojo/internal/adapters/wizardstore"
	"dojo/internal/application/orchestrators"
	"dojo/internal/application/projections"
	"dojo/internal/domain/applicant"
	"dojo/internal/domain/document"
	"dojo/internal/domain/membership"
	"dojo/internal/domain/parq"
	"dojo/internal/domain/payment"
	"dojo/internal/domain/wizard"
)

const (
	wizardCookieName = "dojo_wizard"
	memberCookieName = "dojo_member"
	multipartMemory  = 8 << 20
	dateLayout       = "2006-01-02"
)

// Form errors raised before an orchestrator runs.
var (
	errDateOfBirth = errors.New("date of birth must be a valid date")
	errDecision    = errors.New("please accept or decline to continue")
	errYears       = errors.New("years must be a whole number")
)

// requestLimit bounds a wizard post: one file per person plus form fields.
func requestLimit(maxFile int64) int64 {
	if maxFile <= 0 {
		maxFile = document.DefaultMaxBytes
	}
	return maxFile*(applicant.MaxChildren+2) + 1<<20
}

// wizardPage binds one step to its template and form handler.
type wizardPage struct {
	step   wizard.Step
	page   string
	view   func(r *http.Request, st *wizard.State) map[string]any
	submit func(r *http.Request, st *wizard.State, files *formFiles) error
}

func wizardPages() []wizardPage {
	return []wizardPage{
		{step: wizard.StepParQ, page: "par_form.html", view: parqView, submit: submitParQ},
		{step: wizard.StepRegistration, page: "registration.html", submit: submitStudent},
		{step: wizard.StepParentDetails, page: "parent_details.html", submit: submitParent},
		{step: wizard.StepAddChildren, page: "add_children.html", view: childrenView, submit: submitChildren},
		{step: wizard.StepPreviousTraining, page: "previous_training.html", submit: submitTraining},
		{step: wizard.StepMedicalCondition, page: "medical_condition.html", submit: submitMedical},
		{step: wizard.StepPhysicalReadiness, page: "physical_readiness.html", submit: submitReadiness},
		{step: wizard.StepMembershipReactivation, page: "membership_reactivation.html", submit: submitReactivation},
		{step: wizard.StepUploadID, page: "upload_id.html", submit: submitUploadID},
		{step: wizard.StepIndemnity, page: "consent.html", view: consentView("indemnity"), submit: submitConsent(wizard.StepIndemnity)},
		{step: wizard.StepIndemnityRejected, page: "rejected.html", view: rejectedView("indemnity")},
		{step: wizard.StepPopia, page: "consent.html", view: consentView("popia"), submit: submitConsent(wizard.StepPopia)},
		{step: wizard.StepPopiaRejected, page: "rejected.html", view: rejectedView("popia")},
		{step: wizard.StepSummary, page: "summary.html", view: summaryView},
		{step: wizard.StepCompletion, page: "completion.html", view: completionView},
	}
}

func registerWizardRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", handleIndex)
	mux.HandleFunc("POST /restart", handleRestart)
	for _, p := range wizardPages() {
		mux.HandleFunc("GET "+p.step.Path(), p.show)
		if p.submit != nil {
			mux.HandleFunc("POST "+p.step.Path(), p.save)
		}
	}
	mux.HandleFunc("POST /summary", handleSummarySubmit)
	mux.HandleFunc("POST /completion/pay", handleCompletionPay)
	mux.HandleFunc("GET /payment/success", paymentReturn(wizard.StepPaymentSuccess, payment.StatusPaid))
	mux.HandleFunc("GET /payment/cancelled", paymentReturn(wizard.StepPaymentCancelled, payment.StatusCancelled))
}

// --- Session ---

// loadWizard returns the visitor's state. Missing, expired and unreadable sessions start over.
func loadWizard(r *http.Request) *wizard.State {
	if c, err := r.Cookie(wizardCookieName); err == nil && c.Value != "" {
		st, err := services.Wizards.Load(r.Context(), c.Value)
		if err == nil {
			return st
		}
		if !errors.Is(err, wizardstore.ErrNotFound) {
			slog.Warn("wizard_session_unavailable", "error", err)
		}
	}
	return wizard.New(uuid.NewString(), timeNow())
}

func saveWizard(w http.ResponseWriter, r *http.Request, st *wizard.State) error {
	st.UpdatedAt = timeNow()
	if err := services.Wizards.Save(r.Context(), st); err != nil {
		return fmt.Errorf("save wizard session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     wizardCookieName,
		Value:    st.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   middleware.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// redirect moves the visitor on to step. JSON clients get {"next": path} instead of a 303.
func redirect(w http.ResponseWriter, r *http.Request, step wizard.Step) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"next": step.Path()})
		return
	}
	http.Redirect(w, r, step.Path(), http.StatusSeeOther)
}

// sendBack returns a visitor who skipped ahead to the first step they still owe.
func sendBack(w http.ResponseWriter, r *http.Request, to wizard.Step) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": wizard.ErrStepUnavailable.Error(),
			"step":  string(to),
			"next":  to.Path(),
		})
		return
	}
	http.Redirect(w, r, to.Path(), http.StatusSeeOther)
}

// stepJSON is the JSON answer to GET on a wizard page.
type stepJSON struct {
	Step  wizard.Step   `json:"step"`
	Path  string        `json:"path"`
	State *wizard.State `json:"state"`
}

// publicState copies st without the session token or the in-flight submission draft.
func publicState(st *wizard.State) *wizard.State {
	out := *st
	out.Token = ""
	out.Submission = nil
	return &out
}

// --- Generic step handlers ---

func (p wizardPage) data(r *http.Request, st *wizard.State) map[string]any {
	data := map[string]any{
		"Step":      p.step,
		"State":     st,
		"Student":   deref(st.Student),
		"Parent":    deref(st.Parent),
		"Training":  deref(st.Training),
		"Medical":   deref(st.Medical),
		"Readiness": deref(st.Readiness),
	}
	if p.view != nil {
		maps.Copy(data, p.view(r, st))
	}
	return data
}

// deref lets templates read saved answers without nil checks.
func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func (p wizardPage) show(w http.ResponseWriter, r *http.Request) {
	st := loadWizard(r)
	if to, ok := st.Guard(p.step); !ok {
		sendBack(w, r, to)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, stepJSON{Step: p.step, Path: p.step.Path(), State: publicState(st)})
		return
	}
	renderTemplate(w, r, http.StatusOK, p.page, p.data(r, st))
}

// save runs the step's form through its orchestrator, persists the state and moves on.
func (p wizardPage) save(w http.ResponseWriter, r *http.Request) {
	st := loadWizard(r)
	if to, ok := st.Guard(p.step); !ok {
		sendBack(w, r, to)
		return
	}
	files := &formFiles{}
	defer files.close(r)

	err := parseForm(r)
	if err == nil {
		err = p.submit(r, st, files)
	}
	if errors.Is(err, wizard.ErrStepUnavailable) {
		to, _ := st.Guard(p.step)
		sendBack(w, r, to)
		return
	}
	if failed(w, r, err, p.page, p.data(r, st)) {
		return
	}
	if err := saveWizard(w, r, st); err != nil {
		internalError(w, err)
		return
	}
	redirect(w, r, st.Next(p.step))
}

// parseForm reads multipart and urlencoded bodies alike.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &orchestrators.InputError{Err: document.ErrTooLarge}
	}
	return err
}

// formFiles tracks opened uploads so they are closed once the request is done.
type formFiles struct {
	open []multipart.File
}

// get returns the named upload, or nil when the visitor sent none.
func (f *formFiles) get(r *http.Request, field string) (*orchestrators.UploadInput, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.open = append(f.open, file)
	if hdr.Size == 0 && hdr.Filename == "" {
		return nil, nil
	}
	return &orchestrators.UploadInput{Filename: hdr.Filename, Size: hdr.Size, Body: file}, nil
}

func (f *formFiles) close(r *http.Request) {
	for _, file := range f.open {
		file.Close()
	}
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

func stepDeps() orchestrators.StepDeps {
	return orchestrators.StepDeps{
		MemberStore: stores.MemberStore,
		Uploads:     uploadDeps(),
		Now:         timeNow,
	}
}

func uploadDeps() orchestrators.UploadDeps {
	return orchestrators.UploadDeps{
		DocumentStore: stores.DocumentStore,
		Blobs:         services.Blobs,
		MaxBytes:      options.Uploads.MaxBytes,
		KeyPrefix:     "registrations",
		Now:           timeNow,
		GenerateID:    uuid.NewString,
	}
}

// --- Form parsing ---

func checkedValue(r *http.Request, field string) bool {
	switch strings.ToLower(r.FormValue(field)) {
	case "on", "yes", "true", "1":
		return true
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &orchestrators.InputError{Err: errors.New("date of birth is required")}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &orchestrators.InputError{Err: errDateOfBirth}
	}
	return t, nil
}

func personFrom(r *http.Request) (applicant.Person, error) {
	dob, err := parseDate(r.FormValue("date_of_birth"))
	if err != nil {
		return applicant.Person{}, err
	}
	return applicant.Person{
		FirstName:   r.FormValue("first_name"),
		LastName:    r.FormValue("last_name"),
		IDType:      r.FormValue("id_type"),
		IDNumber:    r.FormValue("id_number"),
		DateOfBirth: dob,
	}, nil
}

func contactFrom(r *http.Request) applicant.Contact {
	return applicant.Contact{
		Email:   strings.TrimSpace(r.FormValue("email")),
		Phone:   strings.TrimSpace(r.FormValue("phone")),
		Address: strings.TrimSpace(r.FormValue("address")),
	}
}

// --- Steps ---

func parqView(_ *http.Request, st *wizard.State) map[string]any {
	form := deref(st.ParQ)
	return map[string]any{
		"Questions": parq.Questions,
		"ParQ":      form,
		"HasLetter": form.HasClearance(),
	}
}

func submitParQ(r *http.Request, st *wizard.State, files *formFiles) error {
	in := orchestrators.ParQInput{
		Details:  r.FormValue("details"),
		Declared: checkedValue(r, "declared"),
	}
	for i := range in.Answers {
		in.Answers[i] = r.FormValue(fmt.Sprintf("q%d", i+1)) == "yes"
	}
	letter, err := files.get(r, "letter")
	if err != nil {
		return err
	}
	in.Letter = letter
	return orchestrators.ExecuteSaveParQ(r.Context(), st, in, stepDeps())
}

func submitStudent(r *http.Request, st *wizard.State, files *formFiles) error {
	person, err := personFrom(r)
	if err != nil {
		return err
	}
	photo, err := files.get(r, "photo")
	if err != nil {
		return err
	}
	in := orchestrators.StudentInput{
		Student: applicant.Student{Person: person, Contact: contactFrom(r)},
		Photo:   photo,
	}
	return orchestrators.ExecuteSaveStudent(r.Context(), st, in, stepDeps())
}

func submitParent(r *http.Request, st *wizard.State, files *formFiles) error {
	front, err := files.get(r, "id_front")
	if err != nil {
		return err
	}
	back, err := files.get(r, "id_back")
	if err != nil {
		return err
	}
	in := orchestrators.ParentInput{
		Parent: applicant.Parent{
			FirstName:    r.FormValue("first_name"),
			LastName:     r.FormValue("last_name"),
			IDType:       r.FormValue("id_type"),
			IDNumber:     r.FormValue("id_number"),
			Relationship: r.FormValue("relationship"),
			Contact:      contactFrom(r),
		},
		IDFront: front,
		IDBack:  back,
	}
	return orchestrators.ExecuteSaveParent(r.Context(), st, in, stepDeps())
}

// childrenView offers MaxChildren rows, the saved children first.
func childrenView(_ *http.Request, st *wizard.State) map[string]any {
	rows := make([]applicant.Child, applicant.MaxChildren)
	copy(rows, st.Children)
	return map[string]any{"Rows": rows}
}

// submitChildren reads the repeated child_* fields. Rows without a name are skipped.
func submitChildren(r *http.Request, st *wizard.State, files *formFiles) error {
	form := r.PostForm
	field := func(name string, i int) string {
		if vals := form[name]; i < len(vals) {
			return strings.TrimSpace(vals[i])
		}
		return ""
	}
	var children []orchestrators.ChildInput
	for i := range form["child_first_name"] {
		first, last := field("child_first_name", i), field("child_last_name", i)
		if first == "" && last == "" && field("child_id_number", i) == "" {
			continue
		}
		dob, err := parseDate(field("child_date_of_birth", i))
		if err != nil {
			return &orchestrators.InputError{Err: fmt.Errorf("child %d: %w", len(children)+1, errDateOfBirth)}
		}
		photo, err := files.get(r, fmt.Sprintf("child_photo_%d", i))
		if err != nil {
			return err
		}
		children = append(children, orchestrators.ChildInput{
			Child: applicant.Child{Person: applicant.Person{
				FirstName:   first,
				LastName:    last,
				IDType:      field("child_id_type", i),
				IDNumber:    field("child_id_number", i),
				DateOfBirth: dob,
			}},
			Photo: photo,
		})
	}
	return orchestrators.ExecuteSaveChildren(r.Context(), st, children, stepDeps())
}

func submitTraining(r *http.Request, st *wizard.State, _ *formFiles) error {
	years := 0
	if v := strings.TrimSpace(r.FormValue("years")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &orchestrators.InputError{Err: errYears}
		}
		years = n
	}
	return orchestrators.ExecuteSaveTraining(st, applicant.PreviousTraining{
		HasTrained: r.FormValue("has_trained") == "yes",
		Style:      strings.TrimSpace(r.FormValue("style")),
		Years:      years,
		Grade:      strings.TrimSpace(r.FormValue("grade")),
		School:     strings.TrimSpace(r.FormValue("school")),
	}, timeNow())
}

func submitMedical(r *http.Request, st *wizard.State, _ *formFiles) error {
	return orchestrators.ExecuteSaveMedical(st, applicant.MedicalCondition{
		HasCondition:          r.FormValue("has_condition") == "yes",
		Conditions:            strings.TrimSpace(r.FormValue("conditions")),
		Medication:            strings.TrimSpace(r.FormValue("medication")),
		Allergies:             strings.TrimSpace(r.FormValue("allergies")),
		EmergencyContactName:  strings.TrimSpace(r.FormValue("emergency_contact_name")),
		EmergencyContactPhone: strings.TrimSpace(r.FormValue("emergency_contact_phone")),
	}, timeNow())
}

func submitReadiness(r *http.Request, st *wizard.State, _ *formFiles) error {
	return orchestrators.ExecuteSaveReadiness(st, applicant.PhysicalReadiness{
		FitnessLevel: r.FormValue("fitness_level"),
		Confirmed:    checkedValue(r, "confirmed"),
		Goals:        strings.TrimSpace(r.FormValue("goals")),
	}, timeNow())
}

func submitReactivation(r *http.Request, st *wizard.State, _ *formFiles) error {
	return orchestrators.ExecuteConfirmReactivation(st, checkedValue(r, "confirm"), timeNow())
}

func submitUploadID(r *http.Request, st *wizard.State, files *formFiles) error {
	file, err := files.get(r, "id_document")
	if err != nil {
		return err
	}
	return orchestrators.ExecuteUploadID(r.Context(), st, file, stepDeps())
}

func consentView(doc string) func(*http.Request, *wizard.State) map[string]any {
	return func(*http.Request, *wizard.State) map[string]any {
		return map[string]any{"Kind": doc, "Document": consentDocument(doc)}
	}
}

func submitConsent(step wizard.Step) func(*http.Request, *wizard.State, *formFiles) error {
	return func(r *http.Request, st *wizard.State, _ *formFiles) error {
		var accept bool
		switch r.FormValue("decision") {
		case "accept":
			accept = true
		case "reject":
		default:
			return &orchestrators.InputError{Err: errDecision}
		}
		return orchestrators.ExecuteDecideConsent(st, step, accept, timeNow())
	}
}

func rejectedView(doc string) func(*http.Request, *wizard.State) map[string]any {
	return func(*http.Request, *wizard.State) map[string]any {
		back := wizard.StepIndemnity
		if doc == "popia" {
			back = wizard.StepPopia
		}
		return map[string]any{"Kind": doc, "Back": back.Path()}
	}
}

func summaryView(_ *http.Request, st *wizard.State) map[string]any {
	return map[string]any{"Summary": projections.QueryWizardSummary(st, timeNow())}
}

func completionView(_ *http.Request, st *wizard.State) map[string]any {
	fee, _ := options.Payments.Amounts.For(payment.TypeRegistrationFee)
	return map[string]any{
		"Completion": projections.QueryCompletion(st),
		"Fee":        fee * int64(len(st.Membership.Numbers)),
		"Paid":       st.Payment != nil && st.Payment.Status == payment.StatusPaid,
	}
}

// --- Index, summary and completion ---

func handleIndex(w http.ResponseWriter, r *http.Request) {
	st := loadWizard(r)
	data := map[string]any{
		"InProgress": st.ParQAccepted() && !st.Issued(),
		"Issued":     st.Issued(),
	}
	if c, err := r.Cookie(memberCookieName); err == nil && membership.Valid(c.Value) {
		data["Returning"] = c.Value
	}
	renderTemplate(w, r, http.StatusOK, "index.html", data)
}

// handleRestart drops the visitor's session so the wizard starts again.
func handleRestart(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(wizardCookieName); err == nil && c.Value != "" {
		if err := services.Wizards.Delete(r.Context(), c.Value); err != nil {
			slog.Warn("wizard_session_delete_failed", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{Name: wizardCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	redirect(w, r, wizard.StepParQ)
}

// handleSummarySubmit issues the membership and moves the visitor to completion.
func handleSummarySubmit(w http.ResponseWriter, r *http.Request) {
	st := loadWizard(r)
	if to, ok := st.Guard(wizard.StepSummary); !ok {
		sendBack(w, r, to)
		return
	}
	deps := orchestrators.CompleteRegistrationDeps{
		MemberStore:       stores.MemberStore,
		AccountStore:      stores.AccountStore,
		RegistrationStore: stores.RegistrationStore,
		ConsentStore:      stores.ConsentStore,
		DocumentStore:     stores.DocumentStore,
		Emails:            services.Outbox,
		Numbers:           services.Numbers,
		SchoolName:        options.School.Name,
		LoginURL:          strings.TrimRight(options.BaseURL, "/") + "/login",
		InstructorEmails:  options.InstructorEmails,
		Checkpoint:        services.Wizards.Save,
		Now:               timeNow,
		GenerateID:        uuid.NewString,
	}
	in := orchestrators.CompleteRegistrationInput{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	m, err := orchestrators.ExecuteCompleteRegistration(r.Context(), st, in, deps)
	if errors.Is(err, wizard.ErrLocked) {
		redirect(w, r, wizard.StepCompletion)
		return
	}
	if failed(w, r, err, "summary.html", map[string]any{"Step": wizard.StepSummary, "State": st, "Summary": projections.QueryWizardSummary(st, timeNow())}) {
		return
	}
	if err := saveWizard(w, r, st); err != nil {
		internalError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     memberCookieName,
		Value:    m.Numbers[0],
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   middleware.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	redirect(w, r, wizard.StepCompletion)
}

func startPaymentDeps() orchestrators.StartPaymentDeps {
	return orchestrators.StartPaymentDeps{
		PaymentStore: stores.PaymentStore,
		Gateway:      services.Gateway,
		Signer:       services.Signer,
		Amounts:      options.Payments.Amounts,
		BaseURL:      options.BaseURL,
		Now:          timeNow,
		GenerateID:   uuid.NewString,
	}
}

// handleCompletionPay starts the registration fee payment for every membership issued
// in this session and sends the visitor to the gateway.
func handleCompletionPay(w http.ResponseWriter, r *http.Request) {
	st := loadWizard(r)
	if to, ok := st.Guard(wizard.StepCompletion); !ok {
		sendBack(w, r, to)
		return
	}
	if st.Payment != nil && st.Payment.Status == payment.StatusPaid {
		redirect(w, r, wizard.StepCompletion)
		return
	}
	m := st.Membership
	fee, err := options.Payments.Amounts.For(payment.TypeRegistrationFee)
	if err != nil {
		internalError(w, err)
		return
	}
	in := orchestrators.StartPaymentInput{
		MemberID:         m.MemberIDs[0],
		MembershipNumber: m.Numbers[0],
		Email:            m.LoginEmail,
		Type:             payment.TypeRegistrationFee,
		AmountCents:      fee * int64(len(m.Numbers)),
	}
	p, link, err := orchestrators.ExecuteStartPayment(r.Context(), in, startPaymentDeps())
	if p.ID != "" {
		st.SetPayment(p.ID, p.Status)
		if err := saveWizard(w, r, st); err != nil {
			internalError(w, err)
			return
		}
	}
	if errors.Is(err, gateway.ErrUnavailable) {
		data := map[string]any{"Step": wizard.StepCompletion, "State": st}
		maps.Copy(data, completionView(r, st))
		data["Error"] = "The payment service is unavailable right now. Please try again in a few minutes."
		renderTemplate(w, r, http.StatusBadGateway, "completion.html", data)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"next": link.URL})
		return
	}
	http.Redirect(w, r, link.URL, http.StatusSeeOther)
}

// paymentReturn handles the gateway's redirect back to the site. The signed token is the
// authority for the outcome; a wizard session that started the payment is updated too.
func paymentReturn(step wizard.Step, outcome string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := loadWizard(r)
		_, portal := middleware.GetSessionFromContext(r.Context())
		data := map[string]any{"Step": step, "Outcome": outcome, "Portal": portal}

		token := r.URL.Query().Get("token")
		if token == "" {
			if to, ok := st.Guard(step); !ok {
				sendBack(w, r, to)
				return
			}
			if st.Payment != nil {
				data["Payment"] = payment.Payment{ID: st.Payment.ID, Status: st.Payment.Status}
			}
			renderTemplate(w, r, http.StatusOK, "payment_result.html", data)
			return
		}

		p, err := orchestrators.ExecuteCompletePayment(r.Context(), orchestrators.CompletePaymentInput{
			Token:   token,
			Outcome: outcome,
		}, orchestrators.CompletePaymentDeps{
			PaymentStore: stores.PaymentStore,
			Gateway:      services.Gateway,
			Signer:       services.Signer,
			Now:          timeNow,
		})
		switch {
		case errors.Is(err, gateway.ErrInvalidReturnToken):
			data["Error"] = "This payment link is invalid or has expired."
			renderTemplate(w, r, http.StatusBadRequest, "payment_result.html", data)
			return
		case errors.Is(err, gateway.ErrUnconfirmed):
			data["Payment"] = p
			data["Error"] = "The payment provider has not confirmed this payment yet. If you have paid, please contact the school."
			renderTemplate(w, r, http.StatusConflict, "payment_result.html", data)
			return
		case errors.Is(err, gateway.ErrUnavailable):
			data["Error"] = "The payment service is unavailable right now. Please reload this page in a few minutes."
			renderTemplate(w, r, http.StatusBadGateway, "payment_result.html", data)
			return
		case errors.Is(err, payment.ErrAlreadyCompleted):
			data["Replayed"] = true
		case err != nil:
			internalError(w, err)
			return
		}

		if st.Payment != nil && st.Payment.ID == p.ID {
			st.SetPayment(p.ID, p.Status)
			if err := saveWizard(w, r, st); err != nil {
				internalError(w, err)
				return
			}
		}
		data["Payment"] = p
		renderTemplate(w, r, http.StatusOK, "payment_result.html", data)
	}
}
