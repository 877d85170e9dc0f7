package scanner

import (
	"context"
	"errors"
	"testing"

	"upscan/internal/model"
	"upscan/internal/settings"
)

type fakeScanner struct{}

func (fakeScanner) Run(_ context.Context) (*model.Profile, error) { return &model.Profile{}, nil }

type fakeCreator struct{ name string }

func (c *fakeCreator) Create(_ settings.ScannerSettings) (Scanner, error) {
	return fakeScanner{}, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	want := &fakeCreator{name: "upwork"}
	reg.Register("upwork", want)

	got, err := reg.Resolve("upwork")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != want {
		t.Error("Resolve returned a different creator")
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Resolve("nope")

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	first := &fakeCreator{name: "first"}
	second := &fakeCreator{name: "second"}
	reg.Register("upwork", first)
	reg.Register("upwork", second)

	got, err := reg.Resolve("upwork")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != second {
		t.Error("later registration should win")
	}
	if names := reg.Names(); len(names) != 1 {
		t.Errorf("Names = %v, want one entry", names)
	}
}

func TestRegistryIgnoresEmptyRegistration(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("", &fakeCreator{})
	reg.Register("upwork", nil)

	if names := reg.Names(); len(names) != 0 {
		t.Errorf("Names = %v, want empty", names)
	}
}

func TestScrapeErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := &NotFoundError{What: "profile ciphertext"}
	err := &ScrapeError{Cause: cause}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatal("ScrapeError should unwrap to its cause")
	}
	if err.Error() != "scraper failed: profile ciphertext not found" {
		t.Errorf("Error() = %q", err.Error())
	}

	stepped := &ScrapeError{Step: "script execution", Cause: errors.New("boom")}
	if stepped.Error() != "scraper failed during script execution: boom" {
		t.Errorf("Error() = %q", stepped.Error())
	}
}
