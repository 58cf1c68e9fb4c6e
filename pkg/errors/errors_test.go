package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeDependency, cause, "verify payment")

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("expected dependency code, got %s", err.Code())
	}
}

func TestAsUnwrapsThroughFmt(t *testing.T) {
	inner := New(CodeConflict, "already purchased")
	outer := fmt.Errorf("initialize: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error through fmt wrapping")
	}
	if typed.Code() != CodeConflict {
		t.Fatalf("expected conflict, got %s", typed.Code())
	}
}

func TestMetadataForUnknownCode(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes should map to 500, got %d", meta.HTTPStatus)
	}
}

func TestIsCode(t *testing.T) {
	err := New(CodeNotFound, "no such video")
	if !IsCode(err, CodeNotFound) {
		t.Fatal("expected IsCode to match")
	}
	if IsCode(err, CodeConflict) {
		t.Fatal("expected IsCode mismatch")
	}
	if IsCode(errors.New("plain"), CodeNotFound) {
		t.Fatal("plain errors carry no code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := errors.New("bottom")
	err := Wrap(CodeInternal, cause, "top")

	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected code in dump, got %q", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}
}
