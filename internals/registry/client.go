// Package registry is a npm-registry-protocol client implementing the
// resolver.PackageResolver capability.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/nodestash/nodestash/internals/resolver"
)

// DefaultURL is the registry queried when none is configured
const DefaultURL = "https://registry.npmjs.org"

var defaultClient = http.Client{
	Transport: &http.Transport{
		Dial: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).Dial,
		TLSHandshakeTimeout:   20 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

// Client talks to a npm compatible registry
type Client struct {
	http    *http.Client
	baseURL string
}

// New returns a Client for the given registry url. Pass an empty
// string for the default registry, nil for the default http client.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = &defaultClient
	}
	return &Client{http: httpClient, baseURL: baseURL}
}

// packument is the registry's package metadata document
type packument struct {
	Name     string                `json:"name"`
	DistTags map[string]string     `json:"dist-tags"`
	Versions map[string]versionDoc `json:"versions"`
}

type versionDoc struct {
	Version string `json:"version"`
	Dist    struct {
		Tarball string `json:"tarball"`
		Shasum  string `json:"shasum"`
	} `json:"dist"`
}

// ListVersions fetches the packument for name and maps it to the
// resolver's PackageInfo
func (c *Client) ListVersions(ctx context.Context, name string) (*resolver.PackageInfo, error) {
	doc := packument{}
	if err := c.getJSON(ctx, c.packageURL(name), &doc); err != nil {
		return nil, &resolver.ResolutionError{Package: name, Err: err}
	}

	info := resolver.PackageInfo{
		Name:     doc.Name,
		Latest:   doc.DistTags["latest"],
		Versions: make([]string, 0, len(doc.Versions)),
		Dist:     make(map[string]map[string]string, len(doc.Versions)),
	}
	for version, vDoc := range doc.Versions {
		info.Versions = append(info.Versions, version)
		info.Dist[version] = map[string]string{
			"tarball": vDoc.Dist.Tarball,
			"shasum":  vDoc.Dist.Shasum,
		}
	}
	return &info, nil
}

// packageURL escapes the package name into a registry path. Scoped
// names keep their "@scope/" prefix as one path segment.
func (c *Client) packageURL(name string) string {
	return c.baseURL + "/" + url.PathEscape(name)
}

func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", url)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		// fall through to decode
	case 404:
		return fmt.Errorf("package not found (%s)", url)
	default:
		return fmt.Errorf("unexpected status code %d from %s", res.StatusCode, url)
	}

	return json.NewDecoder(res.Body).Decode(v)
}
