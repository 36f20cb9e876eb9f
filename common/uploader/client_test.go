package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/cookbook/common/clients"
	"github.com/lyzr/cookbook/common/upload"
)

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) observe(ev ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ProgressEvent(nil), l.events...)
}

func (l *eventLog) count(state State) int {
	n := 0
	for _, ev := range l.snapshot() {
		if ev.State == state {
			n++
		}
	}
	return n
}

func assertWellFormed(t *testing.T, events []ProgressEvent, terminal State) {
	t.Helper()
	require.NotEmpty(t, events)

	var last int64
	for i, ev := range events {
		if ev.State == StateRunning {
			assert.GreaterOrEqual(t, ev.BytesTransferred, last, "event %d went backwards", i)
			last = ev.BytesTransferred
		}
		if ev.State.Terminal() {
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		}
	}
	assert.Equal(t, terminal, events[len(events)-1].State)
}

func sampleFile() File {
	return File{Name: "Beef Stew.jpg", ContentType: "image/jpeg", Data: []byte(strings.Repeat("x", 256*1024))}
}

func TestUpload_Success(t *testing.T) {
	var gotUser, gotOptimize, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		gotName = header.Filename
		gotUser = r.Header.Get("X-User-ID")
		gotOptimize = r.FormValue("optimize")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"url":          "/images/uploads/beef-stew-1-abcdefgh.jpg",
			"path":         "/images/uploads/beef-stew-1-abcdefgh.jpg",
			"webpUrl":      "/images/uploads/beef-stew-1-abcdefgh-optimized.webp",
			"avifUrl":      "/images/uploads/beef-stew-1-abcdefgh-optimized.avif",
			"optimization": map[string]any{"originalBytes": 262144, "webpBytes": 1000, "avifBytes": 800},
		})
	}))
	defer srv.Close()

	log := &eventLog{}
	ctx := clients.WithUserID(context.Background(), "chef")
	result, err := New(srv.URL).Upload(ctx, sampleFile(), WithOptimize(), WithProgress(log.observe))

	require.NoError(t, err)
	assert.Equal(t, "/images/uploads/beef-stew-1-abcdefgh.jpg", result.URL)
	assert.Equal(t, "/images/uploads/beef-stew-1-abcdefgh-optimized.webp", result.WebPURL)
	assert.Equal(t, "/images/uploads/beef-stew-1-abcdefgh-optimized.avif", result.AVIFURL)
	require.NotNil(t, result.Optimization)
	assert.Equal(t, int64(1000), result.Optimization.WebPBytes)
	assert.Equal(t, int64(800), result.Optimization.AVIFBytes)
	assert.Equal(t, "Beef Stew.jpg", gotName)
	assert.Equal(t, "chef", gotUser)
	assert.Equal(t, "true", gotOptimize)

	events := log.snapshot()
	assertWellFormed(t, events, StateSuccess)
	assert.Equal(t, StateRunning, events[0].State)
	final := events[len(events)-1]
	assert.Equal(t, final.TotalBytes, final.BytesTransferred)
	assert.Equal(t, 1, log.count(StateSuccess))
}

func TestUpload_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid file type \"image/gif\""}`))
	}))
	defer srv.Close()

	log := &eventLog{}
	result, err := New(srv.URL).Upload(context.Background(), sampleFile(), WithProgress(log.observe))

	assert.Nil(t, result)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, httpErr.Message, "invalid file type")
	assertWellFormed(t, log.snapshot(), StateError)
	assert.Equal(t, 1, log.count(StateError))
}

func TestUpload_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	log := &eventLog{}
	_, err := New(url).Upload(context.Background(), sampleFile(), WithProgress(log.observe))

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assertWellFormed(t, log.snapshot(), StateError)
}

func TestUpload_CancelWhilePaused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	log := &eventLog{}
	started := make(chan struct{})
	var once sync.Once
	observer := func(ev ProgressEvent) {
		log.observe(ev)
		if ev.State == StateRunning {
			once.Do(func() { close(started) })
		}
	}

	u := New(srv.URL).Start(context.Background(), sampleFile(), WithProgress(observer))
	<-started
	u.Pause()
	u.Cancel()

	result, err := u.Wait()
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCanceled, u.State())

	events := log.snapshot()
	assertWellFormed(t, events, StateCanceled)
	assert.Equal(t, 1, log.count(StatePaused))
	assert.Equal(t, 1, log.count(StateCanceled))
}

func TestUpload_PauseAndResume(t *testing.T) {
	resumed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-resumed
		_, _ = w.Write([]byte(`{"url":"/images/uploads/a.jpg","path":"/images/uploads/a.jpg"}`))
	}))
	defer srv.Close()

	log := &eventLog{}
	var once sync.Once
	var u *Upload
	ready := make(chan struct{})
	observer := func(ev ProgressEvent) {
		log.observe(ev)
		if ev.State == StateRunning {
			once.Do(func() {
				<-ready
				u.Pause()
				go func() {
					time.Sleep(20 * time.Millisecond)
					u.Resume()
					close(resumed)
				}()
			})
		}
	}

	u = New(srv.URL).Start(context.Background(), sampleFile(), WithProgress(observer))
	close(ready)

	result, err := u.Wait()
	require.NoError(t, err)
	assert.Equal(t, "/images/uploads/a.jpg", result.Path)

	assertWellFormed(t, log.snapshot(), StateSuccess)
	assert.Equal(t, 1, log.count(StatePaused))
}

func TestUpload_ParentContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	log := &eventLog{}
	u := New(srv.URL).Start(ctx, sampleFile(), WithProgress(log.observe))
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := u.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, log.count(StateCanceled))
}

func TestUpload_CancelAfterSuccessIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"url":"/a"}`))
	}))
	defer srv.Close()

	u := New(srv.URL).Start(context.Background(), sampleFile())
	_, err := u.Wait()
	require.NoError(t, err)

	u.Cancel()
	u.Pause()
	assert.Equal(t, StateSuccess, u.State())
}

func TestUploadMany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, a, err := r.FormFile("file0")
		require.NoError(t, err)
		_, b, err := r.FormFile("file1")
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"uploads": []upload.StoredAsset{
				{FileName: a.Filename, PublicURL: "/images/uploads/" + a.Filename, SizeBytes: a.Size},
				{FileName: b.Filename, PublicURL: "/images/uploads/" + b.Filename, SizeBytes: b.Size},
			},
		})
	}))
	defer srv.Close()

	files := []File{
		{Name: "one.jpg", ContentType: "image/jpeg", Data: []byte("1")},
		{Name: "two.png", ContentType: "image/png", Data: []byte("22")},
	}
	stored, err := New(srv.URL).UploadMany(context.Background(), files)

	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "one.jpg", stored[0].FileName)
	assert.Equal(t, int64(2), stored[1].SizeBytes)
}

func TestUploadMany_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"disk full"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).UploadMany(context.Background(), []File{{Name: "a.jpg", Data: []byte("a")}})

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "disk full", httpErr.Message)
}

func TestDelete(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		var body struct {
			Path string `json:"path"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPath = body.Path
		_, _ = w.Write([]byte(`{"success":true,"message":"Image deleted successfully"}`))
	}))
	defer srv.Close()

	ok, err := New(srv.URL+"/").Delete(context.Background(), "/images/uploads/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/images/uploads/a.jpg", gotPath)
}

func TestNewHTTPError_FallsBackToStatusText(t *testing.T) {
	assert.Equal(t, "Bad Gateway", newHTTPError(http.StatusBadGateway, nil).Message)
	assert.Equal(t, "plain failure", newHTTPError(http.StatusInternalServerError, []byte("plain failure\n")).Message)
	assert.Equal(t, "from echo", newHTTPError(http.StatusTooManyRequests, []byte(`{"message":"from echo"}`)).Message)
}
