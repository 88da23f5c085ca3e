package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindForbidden, "no entry")
	if KindOf(err) != KindForbidden {
		t.Fatalf("KindOf = %s, want forbidden", KindOf(err))
	}
	wrapped := fmt.Errorf("handler: %w", err)
	if KindOf(wrapped) != KindForbidden {
		t.Fatalf("KindOf through wrapping = %s, want forbidden", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("unclassified errors must map to internal")
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, KindInternal, "storage failed")
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause must survive errors.Is")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindForbidden, http.StatusForbidden},
		{KindInvalidType, http.StatusBadRequest},
		{KindInvalidStatus, http.StatusBadRequest},
		{KindInvalidPayload, http.StatusBadRequest},
		{KindAlreadyExists, http.StatusConflict},
		{KindAlreadyMember, http.StatusConflict},
		{KindNotAMember, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.kind); got != c.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", c.kind, got, c.want)
		}
	}
}
