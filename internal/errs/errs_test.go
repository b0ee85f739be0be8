package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsThroughWrappedChains(t *testing.T) {
	base := New(Timeout, "settle deadline")
	wrapped := fmt.Errorf("during action: %w", base)
	if got := KindOf(wrapped); got != Timeout {
		t.Fatalf("KindOf through fmt wrap: got %v, want Timeout", got)
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("raw driver failure")); got != Internal {
		t.Fatalf("got %v, want Internal", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("nil error should have empty kind, got %v", got)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		BadRequest:        400,
		UnsupportedMethod: 400,
		InvalidSelector:   400,
		InvalidArgs:       400,
		Forbidden:         403,
		PageNotFound:      404,
		RecordingNotFound: 404,
		Timeout:           408,
		Busy:              429,
		Internal:          500,
		DriverGone:        500,
		FilesystemError:   500,
		DialogNotFired:    500,
	}
	for kind, want := range cases {
		if got := StatusCode(kind); got != want {
			t.Fatalf("StatusCode(%v) = %d, want %d", kind, got, want)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(FilesystemError, cause, "write actions.json")
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped cause should satisfy errors.Is")
	}
}
