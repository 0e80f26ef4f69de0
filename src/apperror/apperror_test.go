package apperror

import (
	"errors"
	"net/http"
	"testing"
)

type fakeWriter struct {
	code int
	obj  interface{}
}

func (f *fakeWriter) JSON(code int, obj interface{}) {
	f.code = code
	f.obj = obj
}

func TestStatusForEachKind(t *testing.T) {
	cases := []struct {
		build    func(string, ...interface{}) *Error
		wantCode int
	}{
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{InvalidInput, http.StatusBadRequest},
		{Gone, http.StatusGone},
		{Auth, http.StatusUnauthorized},
		{Unavailable, http.StatusServiceUnavailable},
	}

	for _, c := range cases {
		err := c.build("boom %d", 1)
		w := &fakeWriter{}
		Respond(w, err)
		if w.code != c.wantCode {
			t.Fatalf("kind %d: got status %d, want %d", err.Kind, w.code, c.wantCode)
		}
	}
}

func TestWrapIsInternalAndRedacted(t *testing.T) {
	cause := errors.New("db connection refused")
	err := Wrap(cause, "load record %d", 7)
	w := &fakeWriter{}
	Respond(w, err)

	if w.code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.code)
	}
	body, ok := w.obj.(detailResponse)
	if !ok {
		t.Fatalf("expected detailResponse, got %T", w.obj)
	}
	if body.Detail == "load record 7" {
		t.Fatalf("expected correlation id appended to detail, got bare message")
	}
	if !errors.Is(err, err) {
		t.Fatalf("Error should satisfy errors.Is with itself")
	}
	if errors.Unwrap(err) != cause {
		t.Fatalf("Unwrap should return the original cause")
	}
}

func TestRespondWrapsPlainErrorsAsInternal(t *testing.T) {
	w := &fakeWriter{}
	Respond(w, errors.New("unannotated failure"))

	if w.code != http.StatusInternalServerError {
		t.Fatalf("plain error should map to 500, got %d", w.code)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(errors.New("disk full"), "persist session")
	if err.Error() != "persist session: disk full" {
		t.Fatalf("unexpected Error() string: %q", err.Error())
	}

	bare := NotFound("session %q", "alpha-bear-3")
	if bare.Error() != `session "alpha-bear-3"` {
		t.Fatalf("unexpected Error() string: %q", bare.Error())
	}
}
