package web

import (
	"errors"
	"net/http"

	"dojo/internal/adapters/http/middleware"
	"dojo/internal/application/orchestrators"
	accountDomain "dojo/internal/domain/account"
)

var errPasswordMismatch = errors.New("new passwords do not match")

// handleLoginPage shows the portal login. Signed-in users go to their portal.
func handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sess, ok := middleware.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, accountDomain.HomePath(sess.Role), http.StatusSeeOther)
		return
	}
	renderTemplate(w, r, http.StatusOK, "login.html", map[string]any{})
}

// handleLogin handles POST /login
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	email := r.FormValue("email")
	result, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    email,
		Password: r.FormValue("password"),
	}, orchestrators.LoginDeps{
		AccountStore: stores.AccountStore,
		Now:          timeNow,
	})
	if errors.Is(err, orchestrators.ErrInvalidCredentials) || errors.Is(err, orchestrators.ErrAccountLocked) {
		renderTemplate(w, r, http.StatusUnauthorized, "login.html", map[string]any{
			"Email": email,
			"Error": err.Error(),
		})
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	token, err := sessions.Create(middleware.Session{
		AccountID:              result.AccountID,
		Email:                  result.Email,
		Role:                   result.Role,
		MemberID:               result.MemberID,
		PasswordChangeRequired: result.PasswordChangeRequired,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token)
	if result.PasswordChangeRequired {
		http.Redirect(w, r, "/change-password", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, accountDomain.HomePath(result.Role), http.StatusSeeOther)
}

// handleLogout handles POST /logout
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sessions.Delete(cookie.Value)
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func handleChangePasswordPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	renderTemplate(w, r, http.StatusOK, "change_password.html", map[string]any{
		"Forced": sess.PasswordChangeRequired,
	})
}

// handleChangePassword handles POST /change-password and clears the forced-change flag.
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	data := map[string]any{"Forced": sess.PasswordChangeRequired}

	var err error
	if r.FormValue("new_password") != r.FormValue("confirm_password") {
		err = &orchestrators.InputError{Err: errPasswordMismatch}
	} else {
		err = orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
			AccountID:       sess.AccountID,
			CurrentPassword: r.FormValue("current_password"),
			NewPassword:     r.FormValue("new_password"),
		}, orchestrators.ChangePasswordDeps{AccountStore: stores.AccountStore})
	}
	if failed(w, r, err, "change_password.html", data) {
		return
	}

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sess.PasswordChangeRequired = false
		sessions.Update(cookie.Value, sess)
	}
	http.Redirect(w, r, accountDomain.HomePath(sess.Role), http.StatusSeeOther)
}
