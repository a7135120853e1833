package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createProject(t *testing.T, ts *testServer) ProjectResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/projects", CreateProjectRequest{
		Name:      "billing-api",
		Version:   "1.0.0",
		Kind:      "api",
		CreatedBy: "alice",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func configureProject(t *testing.T, ts *testServer, id string) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/projects/"+id+"/configure", ConfigureProjectRequest{
		Language:   "csharp",
		SourceKind: "api",
		SourceText: sampleController,
		UpdatedBy:  "alice",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestProject_CRUD(t *testing.T) {
	ts := newTestServer(t)

	created := createProject(t, ts)
	assert.Equal(t, "billing-api", created.Name)
	assert.Equal(t, "created", created.Status)

	t.Run("get returns the project", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/projects/"+created.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got ProjectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("list includes the project", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/projects", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got struct {
			Projects []ProjectResponse `json:"projects"`
			Total    int               `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 1, got.Total)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/projects/00000000-0000-0000-0000-000000000001", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id returns 400", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/projects/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete removes the project", func(t *testing.T) {
		w := ts.do(t, http.MethodDelete, "/api/projects/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = ts.do(t, http.MethodGet, "/api/projects/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestProject_CreateValidation(t *testing.T) {
	ts := newTestServer(t)

	t.Run("missing name", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/projects", CreateProjectRequest{
			Version: "1.0.0", Kind: "api",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad version", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/projects", CreateProjectRequest{
			Name: "p", Version: "v1", Kind: "api",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad kind", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/projects", CreateProjectRequest{
			Name: "p", Version: "1.0.0", Kind: "mainframe",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProject_Lifecycle(t *testing.T) {
	ts := newTestServer(t)
	created := createProject(t, ts)

	t.Run("run before configure is rejected", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/projects/"+created.ID+"/run", LifecycleRequest{UpdatedBy: "alice"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	configureProject(t, ts, created.ID)

	t.Run("run generates the full artifact plan", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/projects/"+created.ID+"/run", LifecycleRequest{UpdatedBy: "alice"})
		require.Equal(t, http.StatusOK, w.Code)

		var got ProjectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "documentation_generated", got.Status)
		assert.NotNil(t, got.LastAnalyzedAt)
	})

	t.Run("artifacts are listable", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/projects/"+created.ID+"/artifacts", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got struct {
			Artifacts []ArtifactResponse `json:"artifacts"`
			Total     int                `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 5, got.Total)
	})

	t.Run("current artifact by type", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/projects/"+created.ID+"/artifacts/openapi_spec", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got ArtifactResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "openapi_spec", got.Type)
		assert.NotEmpty(t, got.Content)
	})

	t.Run("history by type", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/projects/"+created.ID+"/artifacts/openapi_spec/history", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown artifact type returns 400", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/projects/"+created.ID+"/artifacts/nonsense", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProject_PauseResume(t *testing.T) {
	ts := newTestServer(t)
	created := createProject(t, ts)
	configureProject(t, ts, created.ID)

	w := ts.do(t, http.MethodPost, "/api/projects/"+created.ID+"/pause", LifecycleRequest{UpdatedBy: "ops"})
	require.Equal(t, http.StatusOK, w.Code)

	var paused ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paused))
	assert.Equal(t, "paused", paused.Status)

	t.Run("double pause conflicts", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/projects/"+created.ID+"/pause", LifecycleRequest{UpdatedBy: "ops"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("resume restores the pre-pause status", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/projects/"+created.ID+"/resume", LifecycleRequest{UpdatedBy: "ops"})
		require.Equal(t, http.StatusOK, w.Code)

		var resumed ProjectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resumed))
		assert.Equal(t, "configured", resumed.Status)
	})

	t.Run("resume while running conflicts", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/projects/"+created.ID+"/resume", LifecycleRequest{UpdatedBy: "ops"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
