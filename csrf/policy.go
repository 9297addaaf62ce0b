package csrf

import (
	"crypto/subtle"
	"errors"
	"mime"
	"net/http"
)

// Policy extracts the submitted token from a request and compares it with
// the expected one. A mismatch is (false, nil); errors are reserved for
// requests that cannot be read.
type Policy interface {
	Check(r *http.Request, expected string) (bool, error)
}

// maxFormMemory bounds in-memory multipart parsing; larger files spill to
// temporary files removed by ReleaseForm.
var maxFormMemory int64 = 32 << 20

// HeaderPolicy reads the token from a request header.
type HeaderPolicy struct {
	Name string

	// ConstantTime switches the comparison to subtle.ConstantTimeCompare.
	ConstantTime bool
}

func (p HeaderPolicy) Check(r *http.Request, expected string) (bool, error) {
	return match(r.Header.Get(p.Name), expected, p.ConstantTime), nil
}

// FormPolicy reads the token from a form-encoded (or multipart) body field.
type FormPolicy struct {
	Field string

	ConstantTime bool
}

func (p FormPolicy) Check(r *http.Request, expected string) (bool, error) {
	if err := parseForm(r); err != nil {
		return false, err
	}
	return match(r.PostForm.Get(p.Field), expected, p.ConstantTime), nil
}

// Either passes when the first policy passes, otherwise it returns the
// result of the second.
func Either(first, second Policy) Policy {
	return eitherPolicy{first: first, second: second}
}

// FormAndHeaderPolicy accepts the token from the header or, failing that,
// from the form field.
func FormAndHeaderPolicy(header, field string) Policy {
	return Either(HeaderPolicy{Name: header}, FormPolicy{Field: field})
}

type eitherPolicy struct {
	first, second Policy
}

func (p eitherPolicy) Check(r *http.Request, expected string) (bool, error) {
	ok, err := p.first.Check(r, expected)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return p.second.Check(r, expected)
}

// match compares a submitted token with the expected one. An empty expected
// token stands for "no token" and never matches, not even an empty
// submission.
func match(submitted, expected string, constantTime bool) bool {
	if expected == "" {
		return false
	}
	if constantTime {
		return subtle.ConstantTimeCompare([]byte(submitted), []byte(expected)) == 1
	}
	return submitted == expected
}

func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if ct == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormMemory)
		if sc, ok := scopeFromContext(r.Context()); ok && r.MultipartForm != nil {
			sc.forms = append(sc.forms, r.MultipartForm)
		}
	} else {
		err = r.ParseForm()
	}
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return NewHTTPError(http.StatusBadRequest, "malformed form body")
	}
	return nil
}
