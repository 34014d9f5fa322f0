package download

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"agri-search-go/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostOf(t *testing.T, raw string) string {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Hostname()
}

func TestStream_AllowedHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("docx-bytes"))
	}))
	defer srv.Close()

	f := NewFetcher([]string{hostOf(t, srv.URL)})
	body, size, err := f.Stream(context.Background(), srv.URL+"/a.docx")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "docx-bytes", string(data))
	assert.Equal(t, int64(10), size)
}

func TestStream_RejectsUnlistedHost(t *testing.T) {
	f := NewFetcher(nil)
	_, _, err := f.Stream(context.Background(), "https://example.org/a.docx")
	assert.ErrorIs(t, err, ErrHostNotAllowed)
}

func TestStream_RejectsCrossHostRedirect(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("elsewhere"))
	}))
	defer other.Close()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 127.0.0.1 vs localhost makes the redirect cross-host
		target := "http://localhost:" + hostPort(t, other.URL) + "/a.docx"
		http.Redirect(w, r, target, http.StatusFound)
	}))
	defer origin.Close()

	f := NewFetcher([]string{hostOf(t, origin.URL)})
	_, _, err := f.Stream(context.Background(), origin.URL+"/a.docx")
	require.Error(t, err)
	assert.Equal(t, errs.KindNetwork, errs.KindOf(err))

	data, err := f.Fetch(context.Background(), origin.URL+"/a.docx")
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", string(data))
}

func hostPort(t *testing.T, raw string) string {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Port()
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(nil).Fetch(context.Background(), srv.URL+"/missing.docx")
	require.Error(t, err)
	assert.Equal(t, errs.KindServer, errs.KindOf(err))
}
