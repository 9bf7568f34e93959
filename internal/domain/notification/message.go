package notification

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// Template names
const (
	TemplateRegistrationConfirmation = "registration_confirmation"
	TemplateInstructorNotification   = "instructor_notification"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("at least one recipient is required")

// Message is a rendered transactional email, ready for the outbox.
type Message struct {
	Template string   `json:"template"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	HTML     string   `json:"html"`
}

// Validate checks that the message can be sent.
func (m *Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	for _, addr := range m.To {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid recipient %q", addr)
		}
	}
	if m.Subject == "" || m.HTML == "" {
		return errors.New("message subject and body are required")
	}
	return nil
}

// MemberLine is one member listed in a registration email.
type MemberLine struct {
	Name             string
	MembershipNumber string
	Program          string
}

// RegistrationData fills both registration emails.
type RegistrationData struct {
	SchoolName   string
	StudentName  string
	GuardianName string // empty for adults
	LoginEmail   string
	Members      []MemberLine
	Reactivation bool
	ParQFlagged  []int // 1-based PAR-Q questions answered yes
	HasMedical   bool
	LoginURL     string
}

var templates = template.Must(template.New("").Parse(`
{{define "registration_confirmation"}}<p>Hi {{if .GuardianName}}{{.GuardianName}}{{else}}{{.StudentName}}{{end}},</p>
<p>{{if .Reactivation}}Welcome back to {{.SchoolName}}. Your membership has been reactivated.{{else}}Welcome to {{.SchoolName}}. Your registration is complete.{{end}}</p>
<ul>{{range .Members}}<li>{{.Name}}: <strong>{{.MembershipNumber}}</strong> ({{.Program}})</li>{{end}}</ul>
<p>Sign in at <a href="{{.LoginURL}}">{{.LoginURL}}</a> with {{.LoginEmail}} and the temporary password shown at the end of registration. You will be asked to choose a new password.</p>
{{end}}
{{define "instructor_notification"}}<p>New {{if .Reactivation}}reactivation{{else}}registration{{end}}: {{.StudentName}}{{if .GuardianName}} (guardian {{.GuardianName}}){{end}}.</p>
<ul>{{range .Members}}<li>{{.Name}}: {{.MembershipNumber}} ({{.Program}})</li>{{end}}</ul>
{{if .ParQFlagged}}<p><strong>PAR-Q:</strong> answered yes to question(s) {{range $i, $q := .ParQFlagged}}{{if $i}}, {{end}}{{$q}}{{end}}. A clearance letter was supplied where required.</p>{{end}}
{{if .HasMedical}}<p><strong>Medical:</strong> a medical condition was declared. Check the roster before class.</p>{{end}}
{{end}}`))

// RegistrationConfirmation builds the email sent to the new member or guardian.
// PRE: to is the login email of the registration
// POST: Returns a message for the outbox or a render error
func RegistrationConfirmation(to string, data RegistrationData) (Message, error) {
	subject := "Welcome to " + data.SchoolName
	if data.Reactivation {
		subject = "Your " + data.SchoolName + " membership is active again"
	}
	return render(TemplateRegistrationConfirmation, []string{to}, subject, data)
}

// InstructorNotification builds the email telling instructors about a new registration.
func InstructorNotification(to []string, data RegistrationData) (Message, error) {
	subject := "New registration: " + data.StudentName
	if len(data.ParQFlagged) > 0 || data.HasMedical {
		subject += " (health notes)"
	}
	return render(TemplateInstructorNotification, to, subject, data)
}

func render(name string, to []string, subject string, data RegistrationData) (Message, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	m := Message{Template: name, To: to, Subject: subject, HTML: strings.TrimSpace(buf.String())}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
