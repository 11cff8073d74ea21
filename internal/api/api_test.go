package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/config"
	"fitshare/fitness-api/internal/domain"
	"fitshare/fitness-api/internal/mailer"
	"fitshare/fitness-api/internal/metrics"
	"fitshare/fitness-api/internal/quota"
	"fitshare/fitness-api/internal/repository"
	"fitshare/fitness-api/internal/repository/memory"
	"fitshare/fitness-api/internal/service"
)

type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *memFiles) Upload(_ context.Context, key string, data []byte, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (f *memFiles) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.test/" + key, nil
}

func (f *memFiles) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type captureQueue struct {
	mu       sync.Mutex
	payloads []any
}

func (q *captureQueue) Enqueue(_ context.Context, _ string, payload any, _ string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, payload)
	return "task", nil
}

func (q *captureQueue) lastToken(t *testing.T) string {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	require.NotEmpty(t, q.payloads)
	p, ok := q.payloads[len(q.payloads)-1].(mailer.SignupConfirmation)
	require.True(t, ok)
	return p.Token
}

type testServer struct {
	router *gin.Engine
	store  repository.Store
	queue  *captureQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	files := &memFiles{objects: map[string][]byte{}}
	q := &captureQueue{}
	limits := quota.NewTable(
		domain.PlanLimits{Groups: 1, Exercises: 3, Workouts: 2, MembersPerGroup: 2},
		domain.PlanLimits{Groups: 5, Exercises: 50, Workouts: 20, MembersPerGroup: 10},
	)
	tokens := auth.NewTokenManager("api-test-secret")

	router := gin.New()
	SetupRoutes(router, Services{
		Auth: service.NewAuthService(store, tokens, q, service.AuthOptions{
			AccessTTL:  time.Hour,
			VerifyTTL:  30 * time.Minute,
			BcryptCost: 4,
			AppBaseURL: "http://localhost:8080",
			EmailQueue: "email",
		}, logger),
		Users:     service.NewUserService(store, files, logger),
		Exercises: service.NewExerciseService(store, limits, files, logger),
		Workouts:  service.NewWorkoutService(store, limits, logger),
		Groups:    service.NewGroupService(store, limits, logger),
	}, Options{
		Logger:         logger,
		MaxUploadBytes: 1 << 10,
		Metrics:        metrics.New(config.MetricsConfig{Namespace: "test"}),
	})
	return &testServer{router: router, store: store, queue: q}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// register signs up, confirms and logs in; it returns the access token.
func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", gin.H{"email": email, "password": "password1"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodGet, "/api/v1/auth/confirm?token="+s.queue.lastToken(t), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": "password1"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func (s *testServer) promote(t *testing.T, email string) {
	t.Helper()
	ctx := context.Background()
	u, err := s.store.Users.GetByEmail(ctx, email)
	require.NoError(t, err)
	admin := true
	require.NoError(t, s.store.Users.UpdateAdmin(ctx, u.ID, domain.AdminUserUpdate{IsAdmin: &admin}))
}

func TestPingAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/ping", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", gin.H{"email": "alice@example.com", "password": "password1"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, false, decode(t, w)["isConfirmed"])

	w = s.do(t, http.MethodPost, "/api/v1/auth/signup", gin.H{"email": "alice@example.com", "password": "password1"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "alice@example.com", "password": "password1"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	w = s.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unconfirmed")

	w = s.do(t, http.MethodGet, "/api/v1/auth/confirm?token=nope", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/auth/confirm?token="+s.queue.lastToken(t), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", decode(t, w)["email"])

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "alice@example.com", "password": "wrong-pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthorizationHeader(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users/me", nil, "not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	bob := s.register(t, "bob@example.com")
	root := s.register(t, "root@example.com")
	s.promote(t, "root@example.com")

	w := s.do(t, http.MethodGet, "/api/v1/users", nil, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users?limit=1", nil, root)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["items"], 1)
	assert.Equal(t, float64(2), body["meta"].(map[string]any)["total"])

	w = s.do(t, http.MethodGet, "/api/v1/users?limit=abc", nil, root)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users/"+primitive.NewObjectID().Hex(), nil, root)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func createExercise(t *testing.T, s *testServer, token, title string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/exercises", gin.H{"title": title, "repetitions": 10, "countSets": 3}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestWorkoutPositionErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice@example.com")
	a := createExercise(t, s, token, "A")
	b := createExercise(t, s, token, "B")
	c := createExercise(t, s, token, "C")

	w := s.do(t, http.MethodPost, "/api/v1/workouts", gin.H{"title": "Gap", "exercises": []gin.H{
		{"exerciseId": a, "position": 1}, {"exerciseId": b, "position": 2}, {"exerciseId": c, "position": 4},
	}}, token)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []any{float64(3)}, decode(t, w)["missing"])

	w = s.do(t, http.MethodPost, "/api/v1/workouts", gin.H{"title": "Dup", "exercises": []gin.H{
		{"exerciseId": a, "position": 1}, {"exerciseId": b, "position": 1}, {"exerciseId": c, "position": 2},
	}}, token)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []any{float64(1)}, decode(t, w)["duplicates"])

	w = s.do(t, http.MethodPost, "/api/v1/workouts", gin.H{"title": "Legs", "exercises": []gin.H{
		{"exerciseId": c, "position": 2}, {"exerciseId": a, "position": 1},
	}}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	items := decode(t, w)["exercises"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, float64(1), first["position"])
	assert.Equal(t, a, first["exercise"].(map[string]any)["id"])
}

func TestExerciseQuotaAndOwnership(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")

	var id string
	for i := 0; i < 3; i++ {
		id = createExercise(t, s, alice, "Squat")
	}
	w := s.do(t, http.MethodPost, "/api/v1/exercises", gin.H{"title": "Lunge", "timeWork": 30}, alice)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, decode(t, w)["error"], "limit for creating exercises")

	w = s.do(t, http.MethodGet, "/api/v1/exercises/"+id, nil, bob)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/exercises/not-an-id", nil, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/exercises?user_id="+primitive.NewObjectID().Hex(), gin.H{"title": "x", "timeWork": 5}, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/exercises", gin.H{"title": "Both", "timeWork": 5, "repetitions": 1, "countSets": 1}, bob)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func multipartBody(t *testing.T, fields map[string]string, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestExerciseMultipartUpload(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice@example.com")

	body, ctype := multipartBody(t, map[string]string{"title": "Squat", "timeWork": "45"}, "squat.mp4", []byte("video"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/exercises", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, float64(45), created["timeWork"])
	assert.True(t, strings.HasPrefix(created["mediaUrl"].(string), "https://cdn.test/"))
	assert.True(t, strings.HasSuffix(created["mediaUrl"].(string), "/squat.mp4"))

	w = s.do(t, http.MethodGet, "/api/v1/exercises/"+created["id"].(string)+"/media", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(decode(t, w)["url"].(string), "https://signed.test/"))

	big, ctype := multipartBody(t, map[string]string{"title": "Big", "timeWork": "45"}, "big.mp4", bytes.Repeat([]byte("x"), 4<<10))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/exercises", big)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, w.Code)
}

func TestGroupSharing(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")
	bobUser, err := s.store.Users.GetByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/v1/workouts", gin.H{"title": "Shared"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	workoutID := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/api/v1/groups", gin.H{"name": "Club"}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	groupID := decode(t, w)["id"].(string)

	members := gin.H{"userIds": []string{bobUser.ID.Hex()}}
	w = s.do(t, http.MethodPost, "/api/v1/groups/"+groupID+"/members", members, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/groups/"+groupID+"/members", members, alice)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, decode(t, w)["error"], "bob@example.com")

	w = s.do(t, http.MethodPut, "/api/v1/groups/"+groupID+"/workout", gin.H{"workoutId": workoutID}, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, workoutID, decode(t, w)["workoutId"])

	w = s.do(t, http.MethodGet, "/api/v1/workouts/shared", nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)
	w = s.do(t, http.MethodGet, "/api/v1/workouts/"+workoutID, nil, bob)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/groups/"+groupID+"/members", members, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["removed"])
	w = s.do(t, http.MethodGet, "/api/v1/workouts/"+workoutID, nil, bob)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/ping", nil, "")

	w := s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}
