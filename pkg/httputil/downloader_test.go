package httputil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/small_glove.txt.vectors.npy", func(rw http.ResponseWriter, req *http.Request) {
		rw.Write([]byte("NUMPY-DATA"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	d, err := Download(zap.NewExample(), os.Stderr, ts.URL+"/small_glove.txt.vectors.npy")
	require.NoError(t, err)
	assert.Equal(t, "NUMPY-DATA", string(d))
}

func TestDownloadToFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/char.txt.table.npy", func(rw http.ResponseWriter, req *http.Request) {
		rw.Write([]byte("TABLE"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	fpath := filepath.Join(t.TempDir(), "embeddings", "char.txt.table.npy")
	require.NoError(t, DownloadToFile(zap.NewExample(), os.Stderr, ts.URL+"/char.txt.table.npy", fpath))

	d, err := os.ReadFile(fpath)
	require.NoError(t, err)
	assert.Equal(t, "TABLE", string(d))
}

func TestDownloadNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := Download(zap.NewExample(), nil, ts.URL+"/missing.npy")
	assert.Error(t, err)
}
