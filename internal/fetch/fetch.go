// Package fetch resolves ExternalPackage rules by downloading and
// unpacking an archive into the build's external-package directory.
// Supplemental to spec.md's core components, grounded on the existence of
// ExternalPackage in mbuild_types.generated.hpp/build_rules.hpp: its
// provide_headers() only makes sense once the package is actually present
// on disk, which is this package's job.
package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/bec-ca/mellow/internal/mellowerr"
)

// Fetcher downloads and unpacks ExternalPackage archives.
type Fetcher struct {
	client *retryablehttp.Client
}

// New creates a Fetcher with retry/backoff defaults.
func New() *Fetcher {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &Fetcher{client: client}
}

// FetchTarGz downloads the gzipped tarball at url and extracts it into
// destDir, which is created if necessary.
func (f *Fetcher) FetchTarGz(ctx context.Context, url, destDir string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %s", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetching %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "decompressing %s", url)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return &mellowerr.IO{Op: "mkdir", Path: destDir, Err: err}
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "reading tar from %s", url)
		}

		target := filepath.Join(destDir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &mellowerr.IO{Op: "mkdir", Path: target, Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &mellowerr.IO{Op: "mkdir", Path: filepath.Dir(target), Err: err}
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return &mellowerr.IO{Op: "create", Path: target, Err: err}
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return &mellowerr.IO{Op: "write", Path: target, Err: err}
			}
			out.Close()
		}
	}
}
