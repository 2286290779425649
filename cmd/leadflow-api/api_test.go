package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagecrm/leadflow/pkg/cmd"
	"github.com/vantagecrm/leadflow/pkg/models"
	"github.com/vantagecrm/leadflow/pkg/persistence/file"
	"github.com/vantagecrm/leadflow/pkg/web"
)

func setupTestApp(tempDir string) *fiber.App {
	persistence := file.NewPersistence(tempDir)

	api := NewAPI(
		slog.Default(),
		persistence,
		cmd.NewRegistry(slog.Default()),
		nil,
		nil,
	)

	return api.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "LeadFlow API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any

	err = json.NewDecoder(resp.Body).Decode(&payload)
	require.NoError(t, err)
	assert.Equal(t, "healthy", payload["status"])
}

func TestAPI_ListTemplates_RequiresIdentity(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodGet, "/templates/", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_CORS_Headers(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	req := httptest.NewRequest(http.MethodOptions, "/templates", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_Integration_InstanceLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	app := setupTestApp(tempDir)

	postJSON := func(target string, payload any) *http.Response {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, target, bytes.NewBuffer(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(web.UserIDHeader, "agent-1")

		resp, err := app.Test(req)
		require.NoError(t, err)

		return resp
	}

	// Create a template with an automated step followed by an approval gate.
	resp := postJSON("/templates/", web.CreateTemplateRequest{
		Name:     "Showing Follow-up",
		Industry: models.IndustryRealEstate,
		Tasks: []web.TaskRequest{
			{
				Name:         "Log Follow-up",
				Type:         models.TaskTypeAutomated,
				DisplayOrder: 1,
				Config: models.TaskConfig{
					Automated: &models.AutomatedConfig{
						ExecutorType: "log",
						Parameters:   map[string]any{"message": "follow up with buyer"},
					},
				},
			},
			{
				Name:         "Manager Review",
				Type:         models.TaskTypeGate,
				DisplayOrder: 2,
				Config: models.TaskConfig{
					Gate: &models.GateConfig{Prompt: "Send the offer packet?"},
				},
			},
		},
	})

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var templatePayload struct {
		Template models.WorkflowTemplate `json:"template"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&templatePayload))

	resp = postJSON("/leads/", web.CreateLeadRequest{
		Name:     "Dana Ortiz",
		Industry: models.IndustryRealEstate,
		Email:    "dana@example.com",
	})

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var leadPayload struct {
		Lead models.Lead `json:"lead"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&leadPayload))

	resp = postJSON("/instances/", web.StartInstanceRequest{
		TemplateID: templatePayload.Template.ID,
		LeadID:     leadPayload.Lead.ID,
	})

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var instancePayload struct {
		Instance web.InstanceResponse `json:"instance"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&instancePayload))
	assert.Equal(t, models.InstanceStatusAwaitingHITL, instancePayload.Instance.Status)

	// Fetch the instance history and approve the waiting gate.
	req := httptest.NewRequest(http.MethodGet, "/instances/"+instancePayload.Instance.ID, nil)
	req.Header.Set(web.UserIDHeader, "agent-1")

	getResp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = getResp.Body.Close() }()

	require.Equal(t, http.StatusOK, getResp.StatusCode)
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&instancePayload))
	require.Len(t, instancePayload.Instance.Executions, 2)

	gateExecution := instancePayload.Instance.Executions[1]
	require.Equal(t, models.ExecutionStatusAwaitingHITL, gateExecution.Status)

	resp = postJSON("/executions/"+gateExecution.ID+"/approve", web.DecisionRequest{Notes: "send it"})

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/instances/"+instancePayload.Instance.ID, nil)
	req.Header.Set(web.UserIDHeader, "agent-1")

	getResp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = getResp.Body.Close() }()

	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&instancePayload))
	assert.Equal(t, models.InstanceStatusCompleted, instancePayload.Instance.Status)
}
