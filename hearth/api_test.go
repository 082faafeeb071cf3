package hearth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*API, *Workflows) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := HashToken("letmein")
	require.NoError(t, err)

	level := &slog.LevelVar{}
	level.Set(slog.LevelError)

	env := newWorkflowEnv(t, WorkflowConfig{})
	api := newAPI(
		&APIConfig{
			Enabled:   true,
			Listen:    "127.0.0.1:0",
			TokenHash: hash,
			LogLevel:  level,
		},
		testDB(t),
		env.w,
	)
	return api, env.w
}

func apiRequest(
	t *testing.T,
	api *API,
	method string,
	path string,
	token string,
) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	return w
}

func TestAPIHealthCheckOpen(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(t, api, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestAPIRequiresToken(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(t, api, http.MethodGet, "/api/guilds", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = apiRequest(t, api, http.MethodGet, "/api/guilds", "wrong-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = apiRequest(t, api, http.MethodGet, "/api/guilds", "letmein")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIGetGuilds(t *testing.T) {
	api, _ := newTestAPI(t)
	store := NewGuildStateStore(api.db, nil)

	_, err := store.Get(context.Background(), "guild1")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "guild2")
	require.NoError(t, err)

	w := apiRequest(t, api, http.MethodGet, "/api/guilds", "letmein")
	require.Equal(t, http.StatusOK, w.Code)

	var guilds []GuildState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &guilds))
	require.Len(t, guilds, 2)
	assert.Equal(t, "guild1", guilds[0].ID)
	assert.Equal(t, "guild2", guilds[1].ID)
}

func TestAPIGetGuildNotFound(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(t, api, http.MethodGet, "/api/guilds/nope", "letmein")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIGetGuildConfessions(t *testing.T) {
	api, _ := newTestAPI(t)
	store := NewGuildStateStore(api.db, nil)
	ctx := context.Background()

	state, err := store.Get(ctx, "guild1")
	require.NoError(t, err)
	state.EnqueueConfession(
		PendingConfession{AuthorUserID: "author", MessageText: "hello"},
	)
	state.Confession.BannedUserIDs = []string{"troll"}
	require.NoError(t, store.Save(ctx, state))

	w := apiRequest(
		t,
		api,
		http.MethodGet,
		"/api/guilds/guild1/confessions",
		"letmein",
	)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Pending       []PendingConfession `json:"pending"`
		BannedUserIDs []string            `json:"banned_user_ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Pending, 1)
	assert.Equal(t, "hello", body.Pending[0].MessageText)
	assert.Equal(t, []string{"troll"}, body.BannedUserIDs)
}

func TestAPIGetGuildDecisions(t *testing.T) {
	api, _ := newTestAPI(t)

	decision := ConfessionDecision{
		GuildID:         "guild1",
		ConfessionID:    "conf1",
		ModeratorUserID: "mod",
		Outcome:         ConfessionApproved,
		Number:          1,
	}
	require.NoError(t, api.db.Create(&decision).Error)

	w := apiRequest(
		t,
		api,
		http.MethodGet,
		"/api/guilds/guild1/decisions",
		"letmein",
	)
	require.Equal(t, http.StatusOK, w.Code)

	var decisions []ConfessionDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decisions))
	require.Len(t, decisions, 1)
	assert.Equal(t, ConfessionApproved, decisions[0].Outcome)

	w = apiRequest(
		t,
		api,
		http.MethodGet,
		"/api/guilds/other/decisions",
		"letmein",
	)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decisions))
	assert.Empty(t, decisions)
}

func TestAPIGetSessions(t *testing.T) {
	api, workflows := newTestAPI(t)

	sess := workflows.Sessions().Create(
		context.Background(),
		"guild1",
		"view1",
		"user1",
		time.Minute,
	)
	t.Cleanup(func() { sess.Close(context.Background()) })

	w := apiRequest(t, api, http.MethodGet, "/api/sessions", "letmein")
	require.Equal(t, http.StatusOK, w.Code)

	var infos []SessionInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "view1", infos[0].ViewID)
}

func TestAPIRequestIDHeader(t *testing.T) {
	api, _ := newTestAPI(t)

	w := apiRequest(t, api, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(xRequestIDHeader))
}
