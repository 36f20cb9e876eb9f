package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/cookbook/cmd/content-api/container"
	"github.com/lyzr/cookbook/cmd/content-api/handlers"
	"github.com/lyzr/cookbook/cmd/content-api/models"
	"github.com/lyzr/cookbook/cmd/content-api/repository"
	"github.com/lyzr/cookbook/cmd/content-api/routes"
	"github.com/lyzr/cookbook/cmd/content-api/service"
	"github.com/lyzr/cookbook/common/bootstrap"
	"github.com/lyzr/cookbook/common/config"
	"github.com/lyzr/cookbook/common/logger"
	"github.com/lyzr/cookbook/common/storage"
	"github.com/lyzr/cookbook/common/upload"
)

type docStore struct {
	mu   sync.Mutex
	docs map[string]*models.Document
	ids  []string
}

func (s *docStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return repository.ErrDuplicateID
	}
	for _, d := range s.docs {
		if d.Slug == doc.Slug {
			return repository.ErrDuplicateSlug
		}
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	s.ids = append(s.ids, doc.ID)
	return nil
}

func (s *docStore) GetByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *docStore) List(_ context.Context) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Document, 0, len(s.ids))
	for _, id := range s.ids {
		cp := *s.docs[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *docStore) Update(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		return repository.ErrDocumentNotFound
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

type testEnv struct {
	e    *echo.Echo
	dirs []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()

	dirs := []string{t.TempDir(), t.TempDir(), t.TempDir()}
	dests, err := storage.NewLocalDestinations(dirs)
	require.NoError(t, err)
	pipeline, err := upload.New(upload.Config{Destinations: dests}, upload.WithLogger(log))
	require.NoError(t, err)

	cfg, err := config.Load("content-api")
	require.NoError(t, err)

	docs := service.NewDocumentService(&docStore{docs: map[string]*models.Document{}}, nil, time.Minute, nil, nil, log)
	c := &container.Container{
		Components:      &bootstrap.Components{Config: cfg, Logger: log},
		Pipeline:        pipeline,
		UploadService:   service.NewUploadService(pipeline, "", log),
		LinkService:     service.NewLinkService(nil, nil, docs, nil, nil, log),
		DocumentService: docs,
	}

	e := echo.New()
	e.GET("/health", handlers.NewHealthHandler(c).Health)
	routes.RegisterUploadRoutes(e, c)
	routes.RegisterLinkRoutes(e, c)
	routes.RegisterDocumentRoutes(e, c)

	return &testEnv{e: e, dirs: dirs}
}

func (env *testEnv) do(method, target, contentType string, body []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var payload map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	return rec, payload
}

func (env *testEnv) doJSON(method, target string, v interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	body, _ := json.Marshal(v)
	return env.do(method, target, echo.MIMEApplicationJSON, body)
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, files []formFile, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.field, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec, payload := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "content-api", payload["service"])
}

func TestUpload_StoresInEveryDestination(t *testing.T) {
	env := newTestEnv(t)
	data := []byte("jpeg-bytes")
	body, ct := multipartBody(t, []formFile{{"file", "My Recipe Photo.JPG", "image/jpeg", data}}, nil)

	rec, payload := env.do(http.MethodPost, "/api/upload", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, true, payload["success"])
	path, _ := payload["path"].(string)
	assert.Regexp(t, regexp.MustCompile(`^/images/uploads/my-recipe-photo-\d+-[a-z0-9]{8}\.JPG$`), path)
	assert.Equal(t, path, payload["url"])
	assert.NotContains(t, payload, "webpUrl")
	assert.NotContains(t, payload, "avifUrl")

	for _, dir := range env.dirs {
		got, err := os.ReadFile(filepath.Join(dir, filepath.Base(path)))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestUpload_Optimized(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t,
		[]formFile{{"file", "wide.png", "image/png", pngBytes(t, 2000, 20)}},
		map[string]string{"optimize": "true"})

	rec, payload := env.do(http.MethodPost, "/api/upload", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, payload["path"], payload["originalUrl"])
	webpURL, _ := payload["webpUrl"].(string)
	assert.True(t, strings.HasSuffix(webpURL, "-optimized.webp"), webpURL)
	avifURL, _ := payload["avifUrl"].(string)
	assert.True(t, strings.HasSuffix(avifURL, "-optimized.avif"), avifURL)

	metadata, _ := payload["metadata"].(map[string]interface{})
	require.NotNil(t, metadata)
	assert.Equal(t, float64(2000), metadata["width"])
	optimization, _ := payload["optimization"].(map[string]interface{})
	require.NotNil(t, optimization)
	assert.Equal(t, float64(1600), optimization["width"])
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t)

	rec, payload := env.do(http.MethodPost, "/api/upload", echo.MIMEApplicationJSON, []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", payload["error"])

	body, ct := multipartBody(t, []formFile{{"file", "anim.gif", "image/gif", []byte("GIF89a")}}, nil)
	rec, payload = env.do(http.MethodPost, "/api/upload", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid-type", payload["code"])
	assert.Contains(t, payload["error"], "invalid file type")

	big := bytes.Repeat([]byte{0xff}, 11<<20)
	body, ct = multipartBody(t, []formFile{{"file", "huge.jpg", "image/jpeg", big}}, nil)
	rec, payload = env.do(http.MethodPost, "/api/upload", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "too-large", payload["code"])

	for _, dir := range env.dirs {
		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries)
	}
}

func TestUploadMany(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, []formFile{
		{"file0", "a.jpg", "image/jpeg", []byte("a")},
		{"file1", "b.png", "image/png", []byte("b")},
		{"file3", "skipped.png", "image/png", []byte("c")},
	}, nil)

	rec, payload := env.do(http.MethodPut, "/api/upload", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	uploads, _ := payload["uploads"].([]interface{})
	require.Len(t, uploads, 2)
	first := uploads[0].(map[string]interface{})
	assert.True(t, strings.HasPrefix(first["fileName"].(string), "a-"))
	assert.Len(t, first["destinationPaths"], 3)
	assert.Equal(t, float64(1), first["sizeBytes"])
}

func TestUploadMany_FailsWholeBatch(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, []formFile{
		{"file0", "a.jpg", "image/jpeg", []byte("a")},
		{"file1", "b.gif", "image/gif", []byte("b")},
	}, nil)

	rec, payload := env.do(http.MethodPut, "/api/upload", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, payload, "uploads")

	body, ct = multipartBody(t, []formFile{{"other", "a.jpg", "image/jpeg", []byte("a")}}, nil)
	rec, payload = env.do(http.MethodPut, "/api/upload", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No files provided", payload["error"])
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, []formFile{{"file", "stew.webp", "image/webp", []byte("w")}}, nil)
	_, payload := env.do(http.MethodPost, "/api/upload", ct, body)
	path := payload["path"].(string)

	rec, payload := env.doJSON(http.MethodDelete, "/api/upload", map[string]string{"path": path})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, payload["success"])

	for _, dir := range env.dirs {
		_, err := os.Stat(filepath.Join(dir, filepath.Base(path)))
		assert.True(t, os.IsNotExist(err))
	}

	rec, payload = env.do(http.MethodDelete, "/api/upload?path="+path, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])

	rec, payload = env.doJSON(http.MethodDelete, "/api/upload", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file path provided", payload["error"])

	rec, _ = env.doJSON(http.MethodDelete, "/api/upload", map[string]string{"path": "/images/uploads/.."})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinks(t *testing.T) {
	env := newTestEnv(t)
	beef := map[string]string{"keyword": "beef", "url": "/recipes/beef-stew", "displayLabel": "Beef Stew"}

	rec, payload := env.doJSON(http.MethodPost, "/api/links/insert", map[string]interface{}{
		"content":    "I love beef stew.",
		"insertions": []interface{}{beef},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	linked := payload["content"].(string)
	assert.Equal(t, `I love <a href="/recipes/beef-stew" class="internal-link" title="Beef Stew">beef</a> stew.`, linked)

	rec, _ = env.doJSON(http.MethodPost, "/api/links/insert", map[string]interface{}{
		"content":    "beef",
		"insertions": []interface{}{map[string]string{"keyword": "beef", "url": "javascript:alert(1)"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, payload = env.doJSON(http.MethodPost, "/api/links/extract", map[string]string{"content": linked})
	require.Equal(t, http.StatusOK, rec.Code)
	links := payload["links"].([]interface{})
	require.Len(t, links, 1)
	assert.Equal(t, "beef", links[0].(map[string]interface{})["keyword"])

	rec, payload = env.doJSON(http.MethodPost, "/api/links/remove", map[string]string{"content": linked})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I love beef stew.", payload["content"])

	rec, payload = env.do(http.MethodGet, "/api/links/slug?text=Mini+Chocolate-Chip+Cookies%21", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mini-chocolate-chip-cookies", payload["slug"])

	rec, _ = env.do(http.MethodGet, "/api/links/slug", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggest_UsesDocumentCatalog(t *testing.T) {
	env := newTestEnv(t)
	for _, doc := range []map[string]interface{}{
		{"title": "Beef Stew", "category": "mains", "ingredients": []string{"carrots"}},
		{"title": "Carrot Cake", "category": "dessert", "ingredients": []string{"carrots", "walnuts"}},
	} {
		rec, _ := env.doJSON(http.MethodPost, "/api/documents", doc)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, payload := env.doJSON(http.MethodPost, "/api/links/suggest", map[string]string{
		"content": "Shred the carrots and toast the walnuts.",
		"filter":  `entry.category == "dessert"`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	suggestions := payload["suggestions"].([]interface{})
	require.Len(t, suggestions, 2)
	first := suggestions[0].(map[string]interface{})
	assert.Equal(t, "carrots", first["keyword"])
	assert.Equal(t, "/recipes/carrot-cake", first["url"])

	rec, _ = env.doJSON(http.MethodPost, "/api/links/suggest", map[string]string{
		"content": "x",
		"filter":  "entry.category ==",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocuments(t *testing.T) {
	env := newTestEnv(t)

	rec, payload := env.doJSON(http.MethodPost, "/api/documents", map[string]interface{}{
		"title": "Beef Stew",
		"body":  "<p>Slow-cooked beef with carrots.</p>",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := payload["document"].(map[string]interface{})
	id := doc["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "beef-stew", doc["slug"])

	rec, _ = env.doJSON(http.MethodPost, "/api/documents", map[string]interface{}{"title": "Beef Stew"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.doJSON(http.MethodPost, "/api/documents", map[string]interface{}{"body": "untitled"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.doJSON(http.MethodPost, "/api/documents", map[string]interface{}{"id": id, "title": "Lamb Stew"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "document id already exists")

	rec, payload = env.do(http.MethodGet, "/api/documents/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Beef Stew", payload["document"].(map[string]interface{})["title"])

	rec, _ = env.do(http.MethodGet, "/api/documents/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, payload = env.do(http.MethodPatch, "/api/documents/"+id, "application/merge-patch+json",
		[]byte(`{"category":"mains","tags":["slow cooker"]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := payload["document"].(map[string]interface{})
	assert.Equal(t, "mains", patched["category"])
	assert.Equal(t, "Beef Stew", patched["title"])

	rec, _ = env.do(http.MethodPatch, "/api/documents/"+id, "application/merge-patch+json", []byte(`{"id":"other"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, payload = env.doJSON(http.MethodPost, "/api/documents/"+id+"/links", map[string]interface{}{
		"insertions": []map[string]string{{"keyword": "carrots", "url": "/recipes/carrot-cake", "displayLabel": "Carrot Cake"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), payload["added"])
	assert.Contains(t, payload["document"].(map[string]interface{})["body"], `title="Carrot Cake">carrots</a>`)

	rec, payload = env.do(http.MethodGet, "/api/documents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), payload["count"])
}

func TestDocuments_Unavailable(t *testing.T) {
	log := logger.Discard()
	cfg, err := config.Load("content-api")
	require.NoError(t, err)
	c := &container.Container{Components: &bootstrap.Components{Config: cfg, Logger: log}}

	e := echo.New()
	routes.RegisterDocumentRoutes(e, c)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
