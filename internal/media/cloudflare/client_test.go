package cloudflare

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/models"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(models.CloudflareConfig{
		AccountID:       "acct",
		APIToken:        "token",
		APIBaseURL:      srv.URL + "/client/v4/",
		StreamBaseURL:   "https://watch.example",
		Timeout:         5 * time.Second,
		BreakerFailures: 2,
		BreakerTimeout:  time.Hour,
	}, testLogger())
}

func TestClient_UploadImage_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/client/v4/accounts/acct/images/v1", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "picture-bytes", string(content))
		assert.Equal(t, "flyer.png", hdr.Filename)
		assert.JSONEq(t, `{"eventId":"e1"}`, r.FormValue("metadata"))

		io.WriteString(w, `{"success":true,"errors":[],"result":{"id":"img-1","variants":["https://img.example/img-1/public","https://img.example/img-1/thumb"]}}`)
	})

	asset, err := c.UploadImage(context.Background(), strings.NewReader("picture-bytes"), "flyer.png", map[string]string{"eventId": "e1"})
	require.NoError(t, err)
	assert.Equal(t, "img-1", asset.ID)
	assert.Equal(t, "https://img.example/img-1/public", asset.URL)
}

func TestClient_UploadVideo_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client/v4/accounts/acct/stream", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		io.WriteString(w, `{"success":true,"result":{"uid":"vid-9"}}`)
	})

	asset, err := c.UploadVideo(context.Background(), strings.NewReader("video-bytes"), "clip.mp4", nil)
	require.NoError(t, err)
	assert.Equal(t, "vid-9", asset.ID)
	assert.Equal(t, "https://watch.example/vid-9", asset.URL)
}

func TestClient_UploadImage_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"success":false,"errors":[{"code":5400,"message":"Bad image format"}],"result":null}`)
	})

	_, err := c.UploadImage(context.Background(), strings.NewReader("x"), "x.txt", nil)
	require.Error(t, err)
	upErr, ok := err.(*UpstreamError)
	require.True(t, ok)
	assert.Equal(t, "Bad image format", upErr.Message)
	assert.Equal(t, OpUploadImage, upErr.Operation)
	assert.Equal(t, http.StatusBadRequest, upErr.Status)
}

func TestClient_SuccessFlagFalseIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":false,"errors":[{"code":1,"message":"quota exceeded"}]}`)
	})

	_, err := c.UploadVideo(context.Background(), strings.NewReader("x"), "x.mp4", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestClient_Delete(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/stream/") {
			// Stream answers deletions without a body
			w.WriteHeader(http.StatusOK)
			return
		}
		io.WriteString(w, `{"success":true,"result":{}}`)
	})

	require.NoError(t, c.DeleteImage(context.Background(), "img-1"))
	require.NoError(t, c.DeleteVideo(context.Background(), "vid-1"))
	assert.Equal(t, []string{"/client/v4/accounts/acct/images/v1/img-1", "/client/v4/accounts/acct/stream/vid-1"}, paths)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		err := c.DeleteImage(context.Background(), "img")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, err.(*UpstreamError).Status)
	}
	err := c.DeleteImage(context.Background(), "img")
	require.Error(t, err)
	assert.Equal(t, 0, err.(*UpstreamError).Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClient_ClientErrorsDoNotOpenBreaker(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success":false,"errors":[{"code":5404,"message":"Image not found"}]}`)
	})

	for i := 0; i < 4; i++ {
		assert.Error(t, c.DeleteImage(context.Background(), "gone"))
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
}
