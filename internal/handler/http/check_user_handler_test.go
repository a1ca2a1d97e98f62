package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/blogify/internal/directory"
	httphandler "github.com/lllypuk/blogify/internal/handler/http"
)

// fakeChecker is a canned ExistenceChecker that counts calls.
type fakeChecker struct {
	result directory.Result
	err    error
	calls  int
}

func (f *fakeChecker) Resolve(_ context.Context, email string) (directory.Result, error) {
	f.calls++
	if f.err != nil {
		return directory.Result{}, f.err
	}
	if strings.TrimSpace(email) == "" {
		return directory.Result{}, directory.ErrEmptyEmail
	}
	return f.result, nil
}

func postCheckUser(t *testing.T, handler *httphandler.CheckUserHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/check-user", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.CheckUser(c))
	return rec
}

func TestCheckUserHandler(t *testing.T) {
	t.Run("existing confirmed account", func(t *testing.T) {
		checker := &fakeChecker{result: directory.Result{Exists: true, Confirmed: true}}
		handler := httphandler.NewCheckUserHandler(checker, nil)

		rec := postCheckUser(t, handler, `{"email":"user@example.com"}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, map[string]bool{"exists": true, "confirmed": true}, body)
	})

	t.Run("unknown email", func(t *testing.T) {
		checker := &fakeChecker{result: directory.Result{}}
		handler := httphandler.NewCheckUserHandler(checker, nil)

		rec := postCheckUser(t, handler, `{"email":"stranger@example.com"}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, map[string]bool{"exists": false, "confirmed": false}, body)
	})

	t.Run("blank email is a 400 with the legacy error shape", func(t *testing.T) {
		checker := &fakeChecker{}
		handler := httphandler.NewCheckUserHandler(checker, nil)

		rec := postCheckUser(t, handler, `{"email":"   "}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, map[string]string{"error": "Email is required"}, body)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		checker := &fakeChecker{}
		handler := httphandler.NewCheckUserHandler(checker, nil)

		rec := postCheckUser(t, handler, `{not json`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, checker.calls)
	})

	t.Run("directory failure is a plain 500", func(t *testing.T) {
		checker := &fakeChecker{err: errors.New("provider down")}
		handler := httphandler.NewCheckUserHandler(checker, nil)

		rec := postCheckUser(t, handler, `{"email":"user@example.com"}`)

		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, map[string]string{"error": "Internal server error"}, body)
	})
}
