package core

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/internal/app"
	"github.com/anoixa/yolo-annotator/storage"
	cryptopackage "github.com/anoixa/yolo-annotator/utils/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status string          `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cryptopackage.SetParams(cryptopackage.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	t.Cleanup(func() { cryptopackage.SetParams(cryptopackage.DefaultParams) })

	cfg := &config.Config{
		ServerCORSOrigins:     []string{"http://localhost:5173"},
		ServerMaxInFlight:     10,
		JWTSecret:             "integration-secret-key-with-enough-length",
		JWTAccessTokenTTL:     time.Minute,
		DefaultAdminUsername:  "admin",
		DefaultAdminPassword:  "admin-pass",
		RateLimitApiRPS:       1000,
		RateLimitApiBurst:     1000,
		RateLimitAuthRPS:      1000,
		RateLimitAuthBurst:    1000,
		RateLimitExpireTime:   time.Minute,
		UploadMaxSizeMB:       1,
		UploadMaxBatchTotalMB: 5,
	}

	db, err := database.NewMemoryProvider()
	require.NoError(t, err)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	c, err := app.Build(cfg, db, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Migrate())

	router, cleanup := NewRouter(c)
	t.Cleanup(cleanup)
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
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

func (s *testServer) decode(w *httptest.ResponseRecorder, dest interface{}) {
	s.t.Helper()
	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if dest != nil {
		require.NoError(s.t, json.Unmarshal(env.Data, dest))
	}
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	s.decode(w, &res)
	assert.Equal(s.t, "bearer", res.TokenType)
	return res.AccessToken
}

func (s *testServer) createUser(adminToken, username, role string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/register", adminToken, map[string]string{
		"username": username, "password": username + "-pw", "role": role,
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var user struct {
		ID string `json:"id"`
	}
	s.decode(w, &user)
	return user.ID
}

func (s *testServer) upload(token, projectID string, files map[string][]byte) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		if name[len(name)-4:] == ".png" {
			h.Set("Content-Type", "image/png")
		} else {
			h.Set("Content-Type", "text/plain")
		}
		part, err := mw.CreatePart(h)
		require.NoError(s.t, err)
		_, err = part.Write(data)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/projects/"+projectID+"/images/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, map[string]string{"database": "ok", "storage": "ok"}, body.Checks)

	w = s.do(http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	adminToken := s.login("admin", "admin-pass")

	w = s.do(http.MethodGet, "/auth/me", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	s.decode(w, &me)
	assert.Equal(t, "admin", me.Username)
	assert.Equal(t, "admin", me.Role)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/auth/me", "", nil).Code)

	aliceID := s.createUser(adminToken, "alice", "annotator")
	w = s.do(http.MethodPost, "/auth/register", adminToken, map[string]string{"username": "alice", "password": "x", "role": "annotator"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	aliceToken := s.login("alice", "alice-pw")
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/users", aliceToken, nil).Code)

	// 用户被删除后令牌失效
	var admin struct {
		ID string `json:"id"`
	}
	s.decode(s.do(http.MethodGet, "/auth/me", adminToken, nil), &admin)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, "/users/"+admin.ID, adminToken, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/users/"+aliceID, adminToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/auth/me", aliceToken, nil).Code)
}

func TestProjectWorkflow(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login("admin", "admin-pass")
	s.createUser(adminToken, "alice", "annotator")
	bobID := s.createUser(adminToken, "bob", "annotator")
	aliceToken := s.login("alice", "alice-pw")
	bobToken := s.login("bob", "bob-pw")

	// alice 创建项目
	w := s.do(http.MethodPost, "/projects", aliceToken, map[string]interface{}{"name": "streets"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var project struct {
		ID            string   `json:"id"`
		ClassNames    []string `json:"class_names"`
		AssignedUsers []string `json:"assigned_users"`
	}
	s.decode(w, &project)
	assert.Equal(t, []string{"object"}, project.ClassNames)
	assert.Len(t, project.AssignedUsers, 1)

	// bob 未分配
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/projects/"+project.ID, bobToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/projects/"+project.ID+"/images", bobToken, nil).Code)

	// 上传
	w = s.upload(aliceToken, project.ID, map[string][]byte{
		"frame.png": pngBytes(t, 100, 100),
		"notes.txt": []byte("hello"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var uploaded struct {
		UploadedImages []struct {
			ID     string `json:"id"`
			Width  *int   `json:"width"`
			Status string `json:"status"`
		} `json:"uploaded_images"`
		FailedFiles []map[string]string `json:"failed_files"`
	}
	s.decode(w, &uploaded)
	require.Len(t, uploaded.UploadedImages, 1)
	require.Len(t, uploaded.FailedFiles, 1)
	assert.Equal(t, "notes.txt", uploaded.FailedFiles[0]["filename"])
	imageID := uploaded.UploadedImages[0].ID
	assert.Equal(t, 100, *uploaded.UploadedImages[0].Width)

	// 分配后 bob 可以访问并标注
	w = s.do(http.MethodPost, "/projects/"+project.ID+"/assign/"+bobID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var assignment struct {
		Assigned bool `json:"assigned"`
	}
	s.decode(w, &assignment)
	assert.True(t, assignment.Assigned)

	boxes := []map[string]interface{}{
		{"class_id": 0, "class_name": "object", "color": "#ff0000", "x": 0, "y": 0, "width": 50, "height": 100},
	}
	w = s.do(http.MethodPost, "/images/"+imageID+"/annotations", bobToken, boxes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/images/"+imageID+"/annotations", bobToken, []map[string]interface{}{{"class_id": 0}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/images/"+imageID, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var img struct {
		Status      string `json:"status"`
		Annotations int    `json:"annotations"`
	}
	s.decode(w, &img)
	assert.Equal(t, "completed", img.Status)
	assert.Equal(t, 1, img.Annotations)

	w = s.do(http.MethodGet, "/images/"+imageID+"/annotations/download", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0 0.250000 0.500000 0.500000 1.000000", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "frame.txt")

	w = s.do(http.MethodGet, "/images/"+imageID+"/download", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes(t, 100, 100), w.Body.Bytes())

	// 只有创建者或管理员可以删除项目
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/projects/"+project.ID, bobToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, "/projects/"+project.ID+"/assign/"+project.AssignedUsers[0], adminToken, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/projects/"+project.ID, aliceToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/images/"+imageID, aliceToken, nil).Code)
}

func TestAnnotations_PassThroughUnclamped(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login("admin", "admin-pass")

	w := s.do(http.MethodPost, "/projects", adminToken, map[string]interface{}{"name": "edges"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var project struct {
		ID string `json:"id"`
	}
	s.decode(w, &project)

	w = s.upload(adminToken, project.ID, map[string][]byte{"edge.png": pngBytes(t, 100, 100)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var uploaded struct {
		UploadedImages []struct {
			ID string `json:"id"`
		} `json:"uploaded_images"`
	}
	s.decode(w, &uploaded)
	require.Len(t, uploaded.UploadedImages, 1)
	imageID := uploaded.UploadedImages[0].ID

	// 负类别、负宽度、空字符串都原样保存
	boxes := []map[string]interface{}{
		{"class_id": -1, "class_name": "", "color": "", "x": 10, "y": 10, "width": -20, "height": 50},
	}
	w = s.do(http.MethodPost, "/images/"+imageID+"/annotations", adminToken, boxes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/images/"+imageID+"/annotations/download", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "-1 0.000000 0.350000 -0.200000 0.500000", w.Body.String())

	// 缺字段仍然是 422
	missing := []map[string]interface{}{
		{"class_id": 0, "color": "#fff", "x": 0, "y": 0, "width": 1, "height": 1},
	}
	w = s.do(http.MethodPost, "/images/"+imageID+"/annotations", adminToken, missing)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 宽高为 0 视为未知尺寸，导出为空
	w = s.do(http.MethodPatch, "/images/"+imageID, adminToken, map[string]interface{}{"width": 0, "height": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var img struct {
		Width *int `json:"width"`
	}
	s.decode(w, &img)
	require.NotNil(t, img.Width)
	assert.Equal(t, 0, *img.Width)

	w = s.do(http.MethodGet, "/images/"+imageID+"/annotations/download", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
