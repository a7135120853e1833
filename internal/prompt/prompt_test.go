package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/metadata"
)

func apiTree() *metadata.Tree {
	return &metadata.Tree{
		Kind: metadata.SourceAPI,
		Controllers: []metadata.Controller{
			{
				Name:  "Users",
				Route: "api/users",
				Actions: []metadata.Action{
					{Name: "GetById", HTTPMethod: "GET", Route: "{id}",
						Parameters: []metadata.Parameter{{Name: "id", Type: "int"}},
						ReturnType: "Task<IActionResult>"},
					{Name: "Create", HTTPMethod: "POST",
						Parameters: []metadata.Parameter{{Name: "request", Type: "CreateUserRequest"}}},
				},
			},
		},
	}
}

func schemaTree() *metadata.Tree {
	return &metadata.Tree{
		Kind: metadata.SourceDatabase,
		Tables: []metadata.Table{
			{Name: "users", Columns: []metadata.Column{
				{Name: "id", Type: "SERIAL", PrimaryKey: true},
				{Name: "email", Type: "VARCHAR(255)"},
			}},
		},
		Indexes:    []metadata.Index{{Name: "idx_users_email", Table: "users", Columns: []string{"email"}, Unique: true}},
		Procedures: []metadata.Procedure{{Name: "refresh_totals"}},
	}
}

func TestRenderOpenAPISpec(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	out, err := e.Render(artifact.TypeOpenAPISpec, "csharp", apiTree(), map[string]string{
		"baseUrl": "https://api.example.com",
		"title":   "User Service",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"OpenAPI 3.0",
		"Controller Users (route: api/users)",
		"GET {id} -> GetById(int id)",
		"POST  -> Create(CreateUserRequest request)",
		"https://api.example.com",
		"Title: User Service",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, out)
		}
	}
}

func TestRenderERDiagram(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	out, err := e.Render(artifact.TypeERDiagram, "sql", schemaTree(), nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"Mermaid erDiagram",
		"Table users:",
		"id SERIAL PRIMARY KEY",
		"Index idx_users_email on users (email) UNIQUE",
		"Procedure refresh_totals",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDeterministic(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	a, err := e.Render(artifact.TypeUsageGuide, "csharp", apiTree(), map[string]string{"x": "1"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	b, err := e.Render(artifact.TypeUsageGuide, "csharp", apiTree(), map[string]string{"x": "1"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if a != b {
		t.Error("identical inputs rendered different prompts")
	}
}

func TestUnsupportedCombination(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	tests := []struct {
		typ  artifact.Type
		lang string
	}{
		{artifact.TypeOpenAPISpec, "cobol"},
		{artifact.TypeERDiagram, "csharp"},
		{artifact.TypeTypeScriptSDK, "sql"},
	}
	for _, tt := range tests {
		if _, err := e.Render(tt.typ, tt.lang, apiTree(), nil); !errors.Is(err, ErrUnsupportedCombination) {
			t.Errorf("Render(%s, %s) = %v, want ErrUnsupportedCombination", tt.typ, tt.lang, err)
		}
		if e.Supports(tt.typ, tt.lang) {
			t.Errorf("Supports(%s, %s) = true, want false", tt.typ, tt.lang)
		}
	}

	// Wildcard entries answer for any language.
	if !e.Supports(artifact.TypeChatAnswer, "whatever") {
		t.Error("Supports(ChatAnswer, any) = false, want true")
	}
}

func TestRenderChatAnswer(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	out, err := e.Render(artifact.TypeChatAnswer, "en", nil, map[string]string{
		"question": "How do I create a user?",
		"context":  "POST api/users creates a user.",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "How do I create a user?") || !strings.Contains(out, "POST api/users creates a user.") {
		t.Errorf("chat prompt missing question or context:\n%s", out)
	}
}
