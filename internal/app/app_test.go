package app

import (
	"context"
	"errors"
	"testing"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/log"
)

func TestSetupRejectsInvalidConfig(t *testing.T) {
	// Validation runs before any external connection is attempted.
	cfg := &config.Config{Provider: "gemini"} // no model, no key
	if _, err := Setup(context.Background(), cfg, log.NewNop()); err == nil {
		t.Fatal("Setup accepted an invalid config")
	}
}

func TestSetupRejectsNilConfig(t *testing.T) {
	var cfg *config.Config
	_, err := Setup(context.Background(), cfg, log.NewNop())
	if !errors.Is(err, config.ErrConfigNil) {
		t.Fatalf("got %v, want ErrConfigNil", err)
	}
}

func TestCloseWithoutResources(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Fatalf("Close on empty app: %v", err)
	}
}
