package gorilla_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/go-csrf/v2/csrf"
	"github.com/JeanGrijp/go-csrf/v2/sessions/gorilla"
)

const header = "X-CSRF-Token"

func newHandler(t *testing.T, store sessions.Store) (http.Handler, *string) {
	t.Helper()
	storage, err := csrf.NewSessionStorage(gorilla.New(store, "app"), "", nil)
	require.NoError(t, err)
	p, err := csrf.New(csrf.Config{Policy: csrf.HeaderPolicy{Name: header}, Storage: storage})
	require.NoError(t, err)

	var issued string
	return p.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := csrf.GenerateToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		issued = tok
		w.WriteHeader(http.StatusOK)
	})), &issued
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "app" {
			return c
		}
	}
	t.Fatalf("missing session cookie")
	return nil
}

func TestCookieStoreRoundTrip(t *testing.T) {
	store := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	h, issued := newHandler(t, store)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	sess := sessionCookie(t, rec)
	first := *issued
	require.NotEmpty(t, first)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(sess)
	req.Header.Set(header, first)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(sess)
	req.Header.Set(header, "forged")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTamperedCookieStartsFreshSession(t *testing.T) {
	store := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	h, _ := newHandler(t, store)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "app", Value: "garbage"})
	req.Header.Set(header, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "app", Value: "garbage"})
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	sessionCookie(t, rec)
}
