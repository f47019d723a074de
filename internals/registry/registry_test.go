package registry

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nodestash/nodestash/internals/resolver"
)

// buildTarball returns a gzipped tarball with a single
// package/index.js entry, the way registries package releases
func buildTarball(t *testing.T, content string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name: "package/index.js",
		Mode: 0644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeRegistry serves a single package with a single version
func fakeRegistry(t *testing.T, tarball []byte, shasum string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	versionDoc := fmt.Sprintf(`{
		"version": "2.4.2",
		"dist": {"tarball": "%s/chalk/-/chalk-2.4.2.tgz", "shasum": "%s"}
	}`, server.URL, shasum)

	mux.HandleFunc("/chalk", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"name": "chalk",
			"dist-tags": {"latest": "2.4.2"},
			"versions": {"2.4.2": %s}
		}`, versionDoc)
	})
	mux.HandleFunc("/chalk/2.4.2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, versionDoc)
	})
	mux.HandleFunc("/chalk/-/chalk-2.4.2.tgz", func(w http.ResponseWriter, r *http.Request) {
		w.Write(tarball)
	})

	return server
}

func TestListVersions(t *testing.T) {
	tarball := buildTarball(t, "// chalk")
	shasum := fmt.Sprintf("%x", sha1.Sum(tarball))
	server := fakeRegistry(t, tarball, shasum)

	info, err := New(server.URL, server.Client()).ListVersions(context.Background(), "chalk")
	if err != nil {
		t.Fatal(err)
	}

	if info.Latest != "2.4.2" {
		t.Errorf("unexpected latest %q", info.Latest)
	}
	if len(info.Versions) != 1 || info.Versions[0] != "2.4.2" {
		t.Errorf("unexpected versions %v", info.Versions)
	}
	if info.Dist["2.4.2"]["shasum"] != shasum {
		t.Errorf("dist metadata missing: %v", info.Dist)
	}
}

func TestListVersionsUnknownPackage(t *testing.T) {
	server := fakeRegistry(t, buildTarball(t, ""), "")

	_, err := New(server.URL, server.Client()).ListVersions(context.Background(), "no-such-package")
	var resErr *resolver.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected a ResolutionError, got %v", err)
	}
}

func TestFetchAndBuild(t *testing.T) {
	tarball := buildTarball(t, "module.exports = paint")
	shasum := fmt.Sprintf("%x", sha1.Sum(tarball))
	server := fakeRegistry(t, tarball, shasum)

	dest := t.TempDir()
	err := New(server.URL, server.Client()).FetchAndBuild(context.Background(), "chalk", "2.4.2", dest)
	if err != nil {
		t.Fatal(err)
	}

	payload := filepath.Join(dest, resolver.PayloadDirName, "index.js")
	buf, err := os.ReadFile(payload)
	if err != nil {
		t.Fatalf("payload not unpacked: %v", err)
	}
	if string(buf) != "module.exports = paint" {
		t.Errorf("unexpected payload content %q", buf)
	}
}

func TestFetchAndBuildRejectsBadShasum(t *testing.T) {
	tarball := buildTarball(t, "// chalk")
	server := fakeRegistry(t, tarball, "0000000000000000000000000000000000000000")

	err := New(server.URL, server.Client()).FetchAndBuild(context.Background(), "chalk", "2.4.2", t.TempDir())
	var fetchErr *resolver.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected a FetchError, got %v", err)
	}

	var shaErr *ErrInvalidShasum
	if !errors.As(err, &shaErr) {
		t.Fatalf("expected an ErrInvalidShasum cause, got %v", err)
	}
}
