package registry

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"

	"github.com/nodestash/nodestash/internals/resolver"
)

// FetchAndBuild downloads name@version into destDir and unpacks it.
// The package payload ends up in destDir/package (see
// resolver.PayloadDirName); the downloaded tarball stays next to it
// until the scratch dir is cleaned up.
func (c *Client) FetchAndBuild(ctx context.Context, name string, version string, destDir string) error {
	vDoc := versionDoc{}
	url := c.packageURL(name) + "/" + version
	if err := c.getJSON(ctx, url, &vDoc); err != nil {
		return &resolver.FetchError{Package: name, Version: version, Err: err}
	}
	if vDoc.Dist.Tarball == "" {
		return &resolver.FetchError{
			Package: name,
			Version: version,
			Err:     fmt.Errorf("registry document has no tarball url"),
		}
	}

	tarball := filepath.Join(destDir, "package.tgz")
	if err := c.download(ctx, vDoc.Dist.Tarball, tarball); err != nil {
		return &resolver.FetchError{Package: name, Version: version, Err: err}
	}

	if vDoc.Dist.Shasum != "" {
		if err := checkSha1(vDoc.Dist.Shasum, tarball); err != nil {
			return &resolver.FetchError{Package: name, Version: version, Err: err}
		}
	}

	if err := archiver.NewTarGz().Unarchive(tarball, destDir); err != nil {
		return &resolver.FetchError{Package: name, Version: version, Err: err}
	}

	return normalizePayload(destDir)
}

func (c *Client) download(ctx context.Context, url string, target string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "error while fetching %s", url)
	}
	defer res.Body.Close()

	if res.StatusCode != 200 {
		return fmt.Errorf("invalid status code: %s from %s", res.Status, url)
	}

	dest, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, res.Body); err != nil {
		dest.Close()
		return err
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		return err
	}
	return dest.Close()
}

// normalizePayload makes sure the unpacked payload lives at
// destDir/package. Nearly all registry tarballs use that root dir, a
// few old ones use the package name instead.
func normalizePayload(destDir string) error {
	payload := filepath.Join(destDir, resolver.PayloadDirName)
	if _, err := os.Stat(payload); err == nil {
		return nil
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return os.Rename(filepath.Join(destDir, entry.Name()), payload)
		}
	}
	return fmt.Errorf("tarball contained no package directory")
}

// ErrInvalidShasum is returned when a downloaded tarball does not
// match the shasum the registry advertised
type ErrInvalidShasum struct {
	FileName    string
	ExpectedSha string
	ActualSha   string
}

func (e *ErrInvalidShasum) Error() string {
	return fmt.Sprintf(
		"file corrupted: %s shasum is invalid.\n\texpected to be \"%s\"\n\tbut actually is \"%s\"",
		e.FileName,
		e.ExpectedSha,
		e.ActualSha,
	)
}

func checkSha1(sha string, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	hasher := sha1.New()
	if _, err := io.Copy(hasher, src); err != nil {
		// probably io error during hashing
		return err
	}

	actualSha := fmt.Sprintf("%x", hasher.Sum(nil))
	if actualSha != sha {
		os.Remove(srcPath)
		return &ErrInvalidShasum{srcPath, sha, actualSha}
	}
	return nil
}
