package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/internal/artifact"
	"github.com/scribehq/scribe/internal/embedding"
	"github.com/scribehq/scribe/internal/gencache"
	"github.com/scribehq/scribe/internal/metadata"
	"github.com/scribehq/scribe/internal/modelclient"
	"github.com/scribehq/scribe/internal/project"
	"github.com/scribehq/scribe/internal/prompt"
	"github.com/scribehq/scribe/internal/semantic"
)

const testSource = `
[Route("api/[controller]")]
public class UsersController : ControllerBase
{
    [HttpGet("{id}")]
    public async Task<IActionResult> GetById(int id) { return Ok(); }
}
`

// mockModel is a scripted TextGenerator.
type mockModel struct {
	mu       sync.Mutex
	calls    atomic.Int32
	fail     error
	response string
	block    chan struct{} // non-nil: Generate waits on it
}

func (m *mockModel) Generate(ctx context.Context, promptText string) (string, error) {
	m.calls.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	if m.response != "" {
		return m.response, nil
	}
	return "generated output", nil
}

// hashEmbedder mirrors the production embedder deterministically.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, embedding.VectorDimension)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(sum[(i*4)%28:])
		vec[i] = float32(bits%2000)/1000 - 1
	}
	return vec, nil
}

// memProjects is an in-memory ProjectStore with DB-like copy semantics and
// the same optimistic status guard as the real store.
type memProjects struct {
	mu    sync.Mutex
	items map[uuid.UUID]*project.Project
}

func newMemProjects() *memProjects {
	return &memProjects{items: make(map[uuid.UUID]*project.Project)}
}

func (m *memProjects) put(p *project.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.items[p.ID] = &cp
}

func (m *memProjects) Get(_ context.Context, id uuid.UUID) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, project.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) Update(_ context.Context, p *project.Project, expected project.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[p.ID]
	if !ok || stored.Status != expected {
		return fmt.Errorf("%w: status guard", project.ErrNotFound)
	}
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

// memArtifacts records saves and assigns IDs like the SQL store.
type memArtifacts struct {
	mu    sync.Mutex
	saved []*artifact.Artifact
}

func (m *memArtifacts) Save(_ context.Context, a *artifact.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	cp := *a
	m.saved = append(m.saved, &cp)
	return nil
}

func (m *memArtifacts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

type harness struct {
	svc       *Service
	model     *mockModel
	cache     *gencache.Cache
	projects  *memProjects
	artifacts *memArtifacts
	index     *semantic.MemoryIndex
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	engine, err := prompt.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	cache := gencache.New(time.Hour)
	model := &mockModel{}
	emb, err := embedding.NewGenerator(hashEmbedder{}, cache, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	index := semantic.NewMemoryIndex(embedding.VectorDimension)
	projects := newMemProjects()
	artifacts := &memArtifacts{}

	svc, err := New(Deps{
		Extractor: metadata.NewExtractor(metadata.NewAPIAnalyzer(), metadata.NewSchemaAnalyzer()),
		Prompts:   engine,
		Cache:     cache,
		Model:     model,
		Embedder:  emb,
		Index:     index,
		Projects:  projects,
		Artifacts: artifacts,
		ModelName: "googleai/gemini-2.5-flash",
	})
	if err != nil {
		t.Fatal(err)
	}
	return &harness{svc: svc, model: model, cache: cache, projects: projects, artifacts: artifacts, index: index}
}

func TestEmptySourceRejectedBeforeModelCall(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GenerateArtifact(context.Background(), GenerateRequest{
		SourceText:   "   ",
		SourceKind:   metadata.SourceAPI,
		ArtifactType: artifact.TypeOpenAPISpec,
		Language:     "csharp",
	})
	if !errors.Is(err, ErrValidation) || !errors.Is(err, metadata.ErrEmptySource) {
		t.Fatalf("got %v, want validation/empty-source error", err)
	}
	if h.model.calls.Load() != 0 {
		t.Error("model called despite validation failure")
	}

	key := gencache.Key(embedding.Normalize("   "), string(artifact.TypeOpenAPISpec), "csharp")
	if _, ok := h.cache.Peek(context.Background(), key); ok {
		t.Error("cache entry created despite validation failure")
	}
}

func TestUnsupportedCombinationRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GenerateArtifact(context.Background(), GenerateRequest{
		SourceText:   testSource,
		SourceKind:   metadata.SourceAPI,
		ArtifactType: artifact.TypeERDiagram, // sql-only artifact
		Language:     "csharp",
	})
	if !errors.Is(err, ErrValidation) || !errors.Is(err, prompt.ErrUnsupportedCombination) {
		t.Fatalf("got %v, want unsupported-combination validation error", err)
	}
	if h.model.calls.Load() != 0 {
		t.Error("model called for unsupported combination")
	}
}

func TestConcurrentIdenticalRequestsSingleInvocation(t *testing.T) {
	h := newHarness(t)
	h.model.block = make(chan struct{})

	req := GenerateRequest{
		SourceText:   testSource,
		SourceKind:   metadata.SourceAPI,
		ArtifactType: artifact.TypeUsageGuide,
		Language:     "csharp",
	}

	const callers = 8
	var wg sync.WaitGroup
	outputs := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.GenerateArtifact(context.Background(), req)
			errs[i] = err
			if err == nil {
				outputs[i] = res.Artifact.Content
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(h.model.block)
	wg.Wait()

	if got := h.model.calls.Load(); got != 1 {
		t.Errorf("model invoked %d times for identical concurrent requests, want 1", got)
	}
	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if outputs[i] != outputs[0] {
			t.Error("callers received different content")
		}
	}
}

func TestGeneratePersistsAndIndexes(t *testing.T) {
	h := newHarness(t)
	projID := uuid.New()

	res, err := h.svc.GenerateArtifact(context.Background(), GenerateRequest{
		SourceText:   testSource,
		SourceKind:   metadata.SourceAPI,
		ArtifactType: artifact.TypeOpenAPISpec,
		Language:     "csharp",
		ProjectID:    &projID,
	})
	if err != nil {
		t.Fatalf("GenerateArtifact: %v", err)
	}
	if res.Artifact.ID == uuid.Nil || res.Artifact.ProjectID != projID {
		t.Errorf("artifact not persisted with project: %+v", res.Artifact)
	}
	if h.artifacts.count() != 1 {
		t.Errorf("saved %d artifacts, want 1", h.artifacts.count())
	}
	if h.index.Len() != 1 {
		t.Errorf("indexed %d documents, want 1", h.index.Len())
	}
}

func seedConfiguredProject(t *testing.T, h *harness, kind project.Kind, language, sourceKind, source string) uuid.UUID {
	t.Helper()
	p, err := project.New("demo", "1.0.0", kind, "tester", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	p.Language = language
	p.SourceKind = sourceKind
	p.SourceContent = source
	if err := p.MarkConfigured("tester", time.Now()); err != nil {
		t.Fatal(err)
	}
	h.projects.put(p)
	return p.ID
}

func TestRunPipelineHappyPath(t *testing.T) {
	h := newHarness(t)
	id := seedConfiguredProject(t, h, project.KindAPI, "csharp", string(metadata.SourceAPI), testSource)

	if err := h.svc.RunPipeline(context.Background(), id, "tester"); err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}

	p, err := h.projects.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != project.StatusDocumentationGenerated {
		t.Errorf("status = %s, want documentation_generated", p.Status)
	}
	if p.LastAnalyzedAt == nil {
		t.Error("lastAnalyzedAt not recorded")
	}

	// The API plan produces 5 artifact types for csharp.
	if h.artifacts.count() != 5 {
		t.Errorf("saved %d artifacts, want 5", h.artifacts.count())
	}
	if h.index.Len() != 5 {
		t.Errorf("indexed %d documents, want 5", h.index.Len())
	}
}

func TestRunPipelineRejectsUnconfiguredProject(t *testing.T) {
	h := newHarness(t)
	p, err := project.New("fresh", "1.0.0", project.KindAPI, "tester", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	p.SourceContent = testSource
	p.SourceKind = string(metadata.SourceAPI)
	h.projects.put(p)

	err = h.svc.RunPipeline(context.Background(), p.ID, "tester")
	if !errors.Is(err, ErrValidation) || !errors.Is(err, project.ErrInvalidTransition) {
		t.Fatalf("got %v, want invalid-transition validation error", err)
	}
	if h.model.calls.Load() != 0 {
		t.Error("model called for unconfigured project")
	}
}

func TestRunPipelineFailureFlipsProjectToError(t *testing.T) {
	h := newHarness(t)
	h.model.fail = fmt.Errorf("%w: auth rejected", modelclient.ErrPermanent)
	id := seedConfiguredProject(t, h, project.KindDatabase, "sql", string(metadata.SourceDatabase),
		"CREATE TABLE t (id INT PRIMARY KEY);")

	err := h.svc.RunPipeline(context.Background(), id, "tester")
	if !errors.Is(err, modelclient.ErrPermanent) {
		t.Fatalf("got %v, want permanent failure", err)
	}

	p, getErr := h.projects.Get(context.Background(), id)
	if getErr != nil {
		t.Fatal(getErr)
	}
	if p.Status != project.StatusError {
		t.Errorf("status = %s, want error", p.Status)
	}

	// Recovery: Error -> Configured -> retry succeeds.
	h.model.mu.Lock()
	h.model.fail = nil
	h.model.mu.Unlock()
	if err := p.MarkConfigured("tester", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := h.projects.Update(context.Background(), p, project.StatusError); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.RunPipeline(context.Background(), id, "tester"); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestAnswerRetrievesAndCaches(t *testing.T) {
	h := newHarness(t)
	h.model.response = "POST api/users with a JSON body."
	projID := uuid.New()

	// Index a document the question should retrieve.
	vec, err := hashEmbedder{}.Embed(context.Background(), embedding.Normalize("how to create users"))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.index.Add(context.Background(), semantic.Document{
		ProjectID:  projID,
		Content:    "POST api/users creates a user.",
		SourceType: semantic.SourceAPI,
		Vector:     vec,
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := h.svc.Answer(context.Background(), AnswerRequest{
		Question:  "how to create users",
		Language:  "en",
		ProjectID: &projID,
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Answer == "" {
		t.Error("empty answer")
	}
	if len(resp.Context) == 0 || !strings.Contains(resp.Context[0], "POST api/users") {
		t.Errorf("retrieval missed the indexed document: %v", resp.Context)
	}

	before := h.model.calls.Load()
	if _, err := h.svc.Answer(context.Background(), AnswerRequest{
		Question:  "how to create users",
		Language:  "en",
		ProjectID: &projID,
	}); err != nil {
		t.Fatal(err)
	}
	if h.model.calls.Load() != before {
		t.Error("identical question re-invoked the model")
	}
}

func TestAnswerEmptyQuestion(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Answer(context.Background(), AnswerRequest{Question: " "}); !errors.Is(err, ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: bad input", ErrValidation), KindValidation},
		{project.ErrNotFound, KindNotFound},
		{artifact.ErrNotFound, KindNotFound},
		{fmt.Errorf("%w: 503", modelclient.ErrTransient), KindTransient},
		{fmt.Errorf("%w: 401", modelclient.ErrPermanent), KindPermanent},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
