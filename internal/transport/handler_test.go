package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
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

	"github.com/neuravision/neuravision/internal/analyzer"
	"github.com/neuravision/neuravision/internal/config"
	"github.com/neuravision/neuravision/internal/observer"
	"github.com/neuravision/neuravision/internal/provider"
	"github.com/neuravision/neuravision/internal/repository"
	"github.com/neuravision/neuravision/internal/service"
	"github.com/neuravision/neuravision/internal/session"
	"github.com/neuravision/neuravision/internal/strategy"
	"github.com/neuravision/neuravision/pkg/models"
	"github.com/neuravision/neuravision/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCompleter struct {
	mu          sync.Mutex
	credentials []string
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, credential string, req provider.ChatCompletionRequest) (*provider.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.credentials = append(f.credentials, credential)
	f.mu.Unlock()

	content, _ := json.Marshal("a red square")
	return &provider.ChatCompletionResponse{
		Model:   req.Model,
		Choices: []provider.Choice{{Message: provider.ResponseMessage{Content: content}}},
	}, nil
}

type fakeRepository struct {
	data []byte
	refs []repository.ImageRef
}

func (r *fakeRepository) Load(ctx context.Context, ref repository.ImageRef) ([]byte, error) {
	r.refs = append(r.refs, ref)
	return r.data, nil
}

type testServer struct {
	handler   http.Handler
	completer *fakeCompleter
	repo      *fakeRepository
	sessions  *session.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1<<20 + config.MultipartOverhead,
		Analysis:           config.AnalysisConfig{MaxImageBytes: 1 << 20, DefaultPrompt: "default prompt"},
	}

	ts := &testServer{
		completer: &fakeCompleter{},
		repo:      &fakeRepository{data: redPNG(t)},
		sessions:  session.NewStore(time.Hour),
	}
	pipeline := analyzer.NewPipeline(ts.completer, analyzer.DefaultOptions(), nil)
	svc := service.NewImageAnalysisService(pipeline, ts.repo, ts.sessions, strategy.DefaultRegistry(),
		validation.NewImageValidator(), cfg.Analysis.DefaultPrompt)
	ts.handler = NewHandler(svc, ts.sessions, observer.NewMetricsObserver(), cfg)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func redPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "red.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"available"`)
}

func TestListPresets(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/presets", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Presets []models.Preset `json:"presets"`
	}](t, w)
	require.Len(t, body.Presets, 3)
	assert.Equal(t, "technical", body.Presets[0].Name)
}

func TestAnalyzeUpload(t *testing.T) {
	tests := []struct {
		name       string
		header     map[string]string
		wantStatus int
		wantState  string
		wantResult string
	}{
		{
			name:       "bearer token",
			header:     map[string]string{"Authorization": "Bearer abc"},
			wantStatus: http.StatusOK,
			wantState:  "succeeded",
			wantResult: "▲▲ ANALYSIS COMPLETE ▲▲\n\na red square",
		},
		{
			name:       "api key header",
			header:     map[string]string{"X-API-Key": "abc"},
			wantStatus: http.StatusOK,
			wantState:  "succeeded",
			wantResult: "▲▲ ANALYSIS COMPLETE ▲▲\n\na red square",
		},
		{
			name:       "no credential",
			wantStatus: http.StatusUnauthorized,
			wantState:  "failed",
			wantResult: "❌ ERROR: API KEY REQUIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			req := uploadRequest(t, redPNG(t), map[string]string{"prompt": "describe"})
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}

			w := ts.do(req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decode[models.AnalysisResponse](t, w)
			assert.Equal(t, tt.wantState, resp.State)
			assert.Equal(t, tt.wantResult, resp.Result)
			assert.Equal(t, "describe", resp.Prompt)
		})
	}
}

func TestAnalyzeUpload_MissingImage(t *testing.T) {
	ts := newTestServer(t)
	req := uploadRequest(t, nil, map[string]string{"prompt": "describe"})
	req.Header.Set("Authorization", "Bearer abc")

	w := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "NO IMAGE DATA DETECTED")
	assert.Empty(t, ts.completer.credentials)
}

func TestAnalyzeUpload_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t)
	req := uploadRequest(t, bytes.Repeat([]byte{0xFF}, 3<<20), nil)
	req.Header.Set("Authorization", "Bearer abc")

	w := ts.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAnalyzeUpload_ImageJustOverLimit(t *testing.T) {
	ts := newTestServer(t)
	req := uploadRequest(t, bytes.Repeat([]byte{0xFF}, 1<<20+1), map[string]string{"prompt": "describe"})
	req.Header.Set("Authorization", "Bearer abc")

	w := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Image exceeds 1048576 bytes")
	assert.Empty(t, ts.completer.credentials)
}

func TestAnalyzeURL(t *testing.T) {
	ts := newTestServer(t)
	body := `{"url":"photos/red.png","source":"minio","preset":"artistic"}`
	req := httptest.NewRequest(http.MethodPost, "/analyze/url", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc")

	w := ts.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.AnalysisResponse](t, w)
	assert.Equal(t, "succeeded", resp.State)
	assert.Equal(t, "minio", resp.Source)
	require.Len(t, ts.repo.refs, 1)
	assert.Equal(t, "photos/red.png", ts.repo.refs[0].Location)
}

func TestAnalyzeURL_InvalidRequest(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{}`, `{"url":"a","source":"ftp"}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/analyze/url", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := ts.do(req)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/sessions",
		strings.NewReader(`{"api_key":"gsk_secret","preset":"emotional"}`)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "gsk_secret")
	created := decode[models.SessionResponse](t, w)
	assert.True(t, created.HasCredential)
	assert.Equal(t, "emotional", created.Preset)

	w = ts.do(httptest.NewRequest(http.MethodPut, "/sessions/"+created.ID,
		strings.NewReader(`{"prompt":"describe"}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "describe", decode[models.SessionResponse](t, w).Prompt)

	// The stored key authenticates an upload without credentials of its own.
	req := uploadRequest(t, redPNG(t), nil)
	req.Header.Set("X-Session-ID", created.ID)
	w = ts.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"gsk_secret"}, ts.completer.credentials)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/sessions/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.SessionResponse](t, w)
	require.NotNil(t, got.LastResult)
	assert.Equal(t, "succeeded", got.LastResult.State)

	w = ts.do(httptest.NewRequest(http.MethodDelete, "/sessions/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/sessions/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSession_PresetReplacesPrompt(t *testing.T) {
	ts := newTestServer(t)
	presets := map[string]string{}
	for _, p := range strategy.DefaultRegistry().List() {
		presets[p.Name()] = p.Prompt()
	}

	w := ts.do(httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"api_key":"abc","prompt":"describe"}`)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[models.SessionResponse](t, w).ID

	analyze := func() string {
		t.Helper()
		req := uploadRequest(t, redPNG(t), map[string]string{"preset": "technical"})
		req.Header.Set("X-Session-ID", id)
		w := ts.do(req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode[models.AnalysisResponse](t, w).Prompt
	}
	require.Equal(t, presets["technical"], analyze())

	w = ts.do(httptest.NewRequest(http.MethodPut, "/sessions/"+id, strings.NewReader(`{"preset":"emotional"}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.SessionResponse](t, w)
	assert.Equal(t, "emotional", updated.Preset)
	assert.Empty(t, updated.Prompt)

	req := uploadRequest(t, redPNG(t), nil)
	req.Header.Set("X-Session-ID", id)
	w = ts.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, presets["emotional"], decode[models.AnalysisResponse](t, w).Prompt)
}

func TestSession_UnknownPreset(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"preset":"surreal"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_EmptyBody(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/sessions", nil))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.False(t, decode[models.SessionResponse](t, w).HasCredential)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_analyses":0`)
}

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{"lowercase bearer", map[string]string{"Authorization": "bearer  abc "}, "abc"},
		{"api key", map[string]string{"X-API-Key": " xyz "}, "xyz"},
		{"bearer wins", map[string]string{"Authorization": "Bearer abc", "X-API-Key": "xyz"}, "abc"},
		{"basic auth ignored", map[string]string{"Authorization": "Basic Zm9v"}, ""},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.header {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, credentialFromRequest(c))
		})
	}
}
