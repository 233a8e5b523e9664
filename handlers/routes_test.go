package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"protocol-backend/middleware"
	"protocol-backend/models"
	"protocol-backend/services"
	"protocol-backend/testutil"
)

const testToken = "gateway-secret"

type fakeStore struct {
	keys []string
	body []byte
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	f.body = b
	return "https://cdn.example/" + key, nil
}

type harness struct {
	app       *fiber.App
	db        *gorm.DB
	timelines *services.TimelineService
	agents    *services.AgentService
	store     *fakeStore
	emblemID  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	emblems := services.NewEmblemService(db)
	lore := services.NewLoreService(db)
	h := &harness{
		db:        db,
		timelines: services.NewTimelineService(db, emblems, nil),
		agents:    services.NewAgentService(db),
		store:     &fakeStore{},
	}
	interactions := services.NewInteractionService(db, lore,
		services.NewCompletionEngine(services.NewBadgeService(db), nil), nil)

	h.app = fiber.New()
	h.app.Use(middleware.GatewayAuthMiddleware(testToken, nil))
	SetupTimelineRoutes(h.app, h.timelines, h.store, nil)
	SetupProtocolRoutes(h.app, interactions, services.NewNavigationService(db), h.agents, nil)

	e := models.Emblem{ID: uuid.NewString(), Name: "E", Code: "ABC-DEF-GHI"}
	require.NoError(t, db.Create(&e).Error)
	h.emblemID = e.ID
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func admin() map[string]string {
	return map[string]string{"X-User-ID": uuid.NewString(), "X-User-Roles": "admin, member"}
}

func (h *harness) createOpen(t *testing.T) map[string]any {
	t.Helper()
	resp, body := h.do(t, http.MethodPost, "/admin/timelines", map[string]any{
		"name":      "Signal Lost",
		"status":    "OPEN",
		"emblemIds": []string{h.emblemID},
		"entries": []map[string]any{{
			"entryId":        "gate",
			"name":           "Gate",
			"type":           "ENIGMA",
			"accessCode":     "GATE",
			"solution":       "alpha",
			"linkedFragment": []string{"A1"},
		}},
		"securityProtocol": map[string]any{"accessCode": "OPEN-SESAME"},
	}, admin())
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body
}

func TestGatewayAuth(t *testing.T) {
	h := newHarness(t)

	for auth, want := range map[string]int{
		"":                    http.StatusUnauthorized,
		"Bearer wrong":        http.StatusUnauthorized,
		testToken:             http.StatusOK,
		"Bearer " + testToken: http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/timelines/open", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := h.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, auth)
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/admin/timelines", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/admin/timelines", nil, map[string]string{"X-User-ID": "u", "X-User-Roles": "MEMBER"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/admin/timelines", nil, map[string]string{"X-User-ID": "u", "X-User-Roles": "FOUNDER"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateTimelineRoute(t *testing.T) {
	h := newHarness(t)
	body := h.createOpen(t)

	assert.Equal(t, "OPEN", body["status"])
	flags := body["stateFlags"].(map[string]any)
	assert.Equal(t, true, flags["isOpen"])
	assert.Equal(t, false, flags["isDraft"])

	resp, body := h.do(t, http.MethodPost, "/admin/timelines", map[string]any{
		"name":             "Broken",
		"emblemIds":        []string{uuid.NewString()},
		"securityProtocol": map[string]any{"accessCode": "X"},
	}, admin())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.MsgEmblemsNotFound, body["error"])
}

func TestTimelineCRUDRoutes(t *testing.T) {
	h := newHarness(t)
	id := h.createOpen(t)["id"].(string)

	resp, body := h.do(t, http.MethodGet, "/admin/timelines/"+id, nil, admin())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Signal Lost", body["name"])

	resp, body = h.do(t, http.MethodPut, "/admin/timelines/"+id, map[string]any{"name": "Renamed"}, admin())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Renamed", body["name"])

	resp, _ = h.do(t, http.MethodPost, "/admin/timelines/"+id+"/publish", nil, admin())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/admin/timelines/"+id, nil, admin())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/admin/timelines/"+id, nil, admin())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListOpenRoute(t *testing.T) {
	h := newHarness(t)
	h.createOpen(t)

	resp, body := h.do(t, http.MethodGet, "/timelines/open", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["timelines"].([]any)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)
	assert.Equal(t, "Signal Lost", first["name"])
	assert.NotContains(t, first, "securityProtocol")
}

func TestInteractAndProgressRoutes(t *testing.T) {
	h := newHarness(t)
	created := h.createOpen(t)
	timelineID := created["timelineId"].(string)
	as := map[string]string{"X-User-ID": "b-1", "X-User-Name": "Guardian"}

	resp, body := h.do(t, http.MethodPost, "/protocol/interact", map[string]any{"input": "OPEN-SESAME"}, as)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "TIMELINE_ACCESS", body["type"])

	resp, body = h.do(t, http.MethodPost, "/protocol/interact",
		map[string]any{"input": "wrong", "timelineId": timelineID, "entryId": "gate"}, as)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, services.MsgIncorrect, body["message"])

	resp, body = h.do(t, http.MethodPost, "/protocol/interact",
		map[string]any{"input": "alpha", "timelineId": timelineID, "entryId": "gate"}, as)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "ENTRY_SOLVED", body["type"])

	resp, body = h.do(t, http.MethodPost, "/protocol/interact",
		map[string]any{"input": "alpha", "timelineId": timelineID, "entryId": "gate"}, as)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, services.MsgAlreadySolved, body["message"])

	resp, body = h.do(t, http.MethodGet, "/protocol/timelines/"+timelineID+"/progress", nil, as)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	reveal := body["reveal"].(map[string]any)
	assert.Equal(t, "A-?-? | ?-?-? | ?-?-?", reveal["displayCode"])
	assert.EqualValues(t, 11, reveal["progress"])

	resp, _ = h.do(t, http.MethodPost, "/protocol/interact", map[string]any{"input": "OPEN-SESAME"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNavigationRoutes(t *testing.T) {
	h := newHarness(t)
	as := map[string]string{"X-User-ID": "b-2"}

	resp, body := h.do(t, http.MethodPost, "/protocol/navigation/back", nil, as)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "ALREADY_AT_ROOT", body["action"])

	resp, body = h.do(t, http.MethodPost, "/protocol/navigation/back", map[string]any{"timelineId": "t"}, as)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BACK_TO_ROOT", body["action"])

	resp, body = h.do(t, http.MethodPost, "/protocol/navigation/home", nil, as)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HOME", body["action"])
}

func TestFirstInteractionCreatesAgent(t *testing.T) {
	h := newHarness(t)
	h.createOpen(t)
	const bungieID = "4611686018467284386"
	as := map[string]string{"X-User-ID": bungieID, "X-User-Name": "Ikora"}

	resp, body := h.do(t, http.MethodPost, "/protocol/interact", map[string]any{"input": "OPEN-SESAME"}, as)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["firstAccess"])

	resp, body = h.do(t, http.MethodPost, "/protocol/interact", map[string]any{"input": "OPEN-SESAME"}, as)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "firstAccess")

	var agents []models.Agent
	require.NoError(t, h.db.Where("bungie_id = ?", bungieID).Find(&agents).Error)
	require.Len(t, agents, 1)
	assert.Equal(t, "Ikora", agents[0].DisplayName)
	assert.Len(t, agents[0].Protocol.Timelines, 1)
}

func TestCoverUploadRoute(t *testing.T) {
	h := newHarness(t)
	id := h.createOpen(t)["id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("cover", "cover.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/timelines/"+id+"/cover", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range admin() {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, h.store.keys, 1)
	assert.Equal(t, []byte("png-bytes"), h.store.body)

	tl, err := h.timelines.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/"+h.store.keys[0], tl.CoverImageURL)
}
