package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coaching-api/internal/dto"
)

func TestStudentRegisterProfileLogout(t *testing.T) {
	env := setupApp(t)
	browser := env.client(t)

	id := browser.registerStudent("asha@example.com", "Asha Rao")
	require.Len(t, browser.cookies, 1)

	resp := browser.get("/api/student/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var profile dto.StudentResponse
	decodeData(t, resp, &profile)
	require.Equal(t, id, profile.ID)
	require.Equal(t, "asha@example.com", profile.Email)
	require.False(t, profile.ProfileCompleted)

	stale := map[string]*http.Cookie{}
	for name, cookie := range browser.cookies {
		stale[name] = cookie
	}

	resp = browser.json(http.MethodPost, "/api/student/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, browser.cookies)

	resp = browser.get("/api/student/profile", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeData(t, resp, nil)
	require.Equal(t, "/login", body.RedirectTo)

	// The old cookie no longer maps to a stored session.
	browser.cookies = stale
	resp = browser.get("/api/student/profile", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutWithoutSessionSucceeds(t *testing.T) {
	env := setupApp(t)
	browser := env.client(t)

	resp := browser.json(http.MethodPost, "/api/student/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = browser.json(http.MethodPost, "/api/admin/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEmailLoginRoutesByPrincipal(t *testing.T) {
	env := setupApp(t)
	env.client(t).registerStudent("kiran@example.com", "Kiran Das")

	student := env.client(t)
	resp := student.json(http.MethodPost, "/api/student/email-login", map[string]string{
		"email":    "KIRAN@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login dto.EmailLoginResponse
	decodeData(t, resp, &login)
	require.Equal(t, "student", login.Role)
	require.Equal(t, "/complete-profile", login.RedirectTo)
	require.NotNil(t, login.User)

	admin := env.client(t)
	resp = admin.json(http.MethodPost, "/api/student/email-login", map[string]string{
		"email":    "director@example.com",
		"password": testAdminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &login)
	require.Equal(t, "admin", login.Role)
	require.Equal(t, "/admin/dashboard", login.RedirectTo)

	resp = admin.get("/api/admin/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEmailLoginRejectsWrongPassword(t *testing.T) {
	env := setupApp(t)
	browser := env.client(t)
	browser.registerStudent("meera@example.com", "Meera Iyer")

	other := env.client(t)
	resp := other.json(http.MethodPost, "/api/student/email-login", map[string]string{
		"email":    "meera@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, other.cookies)
}

func TestEmailRegisterValidationDetails(t *testing.T) {
	env := setupApp(t)
	browser := env.client(t)

	resp := browser.json(http.MethodPost, "/api/student/email-register", map[string]string{
		"email":    "not-an-email",
		"name":     "A",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeData(t, resp, nil)
	require.False(t, body.Success)
	require.Equal(t, "email", body.Details["email"])
	require.Equal(t, "min", body.Details["name"])
	require.Equal(t, "min", body.Details["password"])
}

func TestEmailRegisterDuplicateConflicts(t *testing.T) {
	env := setupApp(t)
	env.client(t).registerStudent("dev@example.com", "Dev Patel")

	resp := env.client(t).json(http.MethodPost, "/api/student/email-register", map[string]string{
		"email":    "dev@example.com",
		"name":     "Dev Again",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestOTPFlowSignsStudentIn(t *testing.T) {
	env := setupApp(t)
	browser := env.client(t)

	resp := browser.json(http.MethodPost, "/api/student/request-otp", map[string]string{
		"identifier": "98765 43210",
		"type":       "phone",
		"name":       "Ravi Kumar",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var issued dto.RequestOTPResponse
	decodeData(t, resp, &issued)
	require.Len(t, issued.Debug, 6)

	resp = browser.json(http.MethodPost, "/api/student/verify-otp", map[string]string{
		"identifier": "+919876543210",
		"type":       "phone",
		"otp":        issued.Debug,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var auth dto.StudentAuthResponse
	decodeData(t, resp, &auth)
	require.Equal(t, "Ravi Kumar", auth.User.Name)
	require.Equal(t, "+919876543210", auth.User.Phone)
	require.False(t, auth.ProfileCompleted)

	resp = browser.get("/api/student/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A code is single use.
	resp = env.client(t).json(http.MethodPost, "/api/student/verify-otp", map[string]string{
		"identifier": "+919876543210",
		"type":       "phone",
		"otp":        issued.Debug,
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestOTPRateLimited(t *testing.T) {
	env := setupApp(t)
	browser := env.client(t)
	payload := map[string]string{"identifier": "limit@example.com", "type": "email"}

	for i := 0; i < 3; i++ {
		resp := browser.json(http.MethodPost, "/api/student/request-otp", payload)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := browser.json(http.MethodPost, "/api/student/request-otp", payload)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGatesRedirectToTheirLoginPages(t *testing.T) {
	env := setupApp(t)
	anonymous := env.client(t)

	cases := []struct {
		path     string
		redirect string
	}{
		{path: "/api/student/profile", redirect: "/login"},
		{path: "/api/student/results", redirect: "/login"},
		{path: "/api/admin/me", redirect: "/admin/login"},
		{path: "/api/admin/students", redirect: "/admin/login"},
	}
	for _, tc := range cases {
		resp := anonymous.get(tc.path, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, tc.path)
		body := decodeData(t, resp, nil)
		require.Equal(t, tc.redirect, body.RedirectTo, tc.path)
	}

	student := env.client(t)
	student.registerStudent("gate@example.com", "Gate Keeper")
	resp := student.get("/api/admin/me", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeData(t, resp, nil)
	require.Equal(t, "/admin/login", body.RedirectTo)

	admin := env.client(t)
	admin.loginAdmin()
	resp = admin.get("/api/student/profile", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminLoginAndMe(t *testing.T) {
	env := setupApp(t)
	admin := env.client(t)

	resp := admin.json(http.MethodPost, "/api/admin/login", map[string]string{
		"username": "DIRECTOR",
		"password": testAdminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var account dto.AdminResponse
	decodeData(t, resp, &account)
	require.Equal(t, testAdminUsername, account.Username)

	resp = admin.get("/api/admin/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]interface{}
	decodeData(t, resp, &me)
	require.NotEmpty(t, me)

	resp = env.client(t).json(http.MethodPost, "/api/admin/login", map[string]string{
		"username": testAdminUsername,
		"password": "nope",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCompleteProfileRefreshesSession(t *testing.T) {
	env := setupApp(t)
	admin := env.client(t)
	admin.loginAdmin()
	classID := createClass(t, admin, "Class 10 A")

	student := env.client(t)
	student.registerStudent("neha@example.com", "Neha Singh")

	resp := student.json(http.MethodPost, "/api/student/complete-profile", map[string]interface{}{
		"classId":    classID,
		"parentName": "Suresh Singh",
		"school":     "City High",
		"phone":      "9123456780",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var auth dto.StudentAuthResponse
	decodeData(t, resp, &auth)
	require.True(t, auth.ProfileCompleted)
	require.Equal(t, "+919123456780", auth.User.Phone)
	require.Equal(t, "Neha Singh", auth.User.Name)

	resp = student.json(http.MethodPost, "/api/student/email-login", map[string]string{
		"email":    "neha@example.com",
		"password": "correct-horse",
	})
	var login dto.EmailLoginResponse
	decodeData(t, resp, &login)
	require.Equal(t, "/dashboard", login.RedirectTo)
}

func createClass(t *testing.T, admin *client, name string) uint {
	t.Helper()
	resp := admin.json(http.MethodPost, "/api/admin/classes", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var class dto.ClassResponse
	decodeData(t, resp, &class)
	require.NotZero(t, class.ID)
	return class.ID
}

func TestPublicClassListing(t *testing.T) {
	env := setupApp(t)
	admin := env.client(t)
	admin.loginAdmin()
	createClass(t, admin, "Class 9")
	createClass(t, admin, "Class 10")

	resp := env.client(t).get("/api/classes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var classes []dto.ClassResponse
	body := decodeData(t, resp, &classes)
	require.True(t, body.Success)
	require.Len(t, classes, 2)

	resp = admin.json(http.MethodPost, "/api/admin/classes", map[string]string{"name": "Class 9"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

