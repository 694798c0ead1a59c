package registry

import (
	"archive/tar"
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/gzip"
	"github.com/rudi-cli/rudi/internal/pkgrecord"
	"github.com/rudi-cli/rudi/internal/rudierr"
	"github.com/ulikunitz/xz"
)

// ArchiveType enumerates the archive extraction strategies from spec.md §4.B.
type ArchiveType string

const (
	ArchiveTarGz ArchiveType = "tar.gz"
	ArchiveTarXz ArchiveType = "tar.xz"
	ArchiveZip   ArchiveType = "zip"
)

// InferArchiveType infers the archive type from a URL/filename when the
// registry didn't declare one explicitly, per spec.md §4.B.
func InferArchiveType(url string) ArchiveType {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ArchiveTarGz
	case strings.HasSuffix(lower, ".tar.xz"):
		return ArchiveTarXz
	case strings.HasSuffix(lower, ".zip"):
		return ArchiveZip
	default:
		return ArchiveTarGz
	}
}

// downloadFile fetches url into destPath, failing with DownloadFailed on a
// non-2xx response.
func (c *Client) downloadFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &rudierr.DownloadFailed{URL: url, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &rudierr.DownloadFailed{URL: url, Status: resp.StatusCode}
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return &rudierr.DownloadFailed{URL: url, Cause: err}
	}
	return nil
}

// extractArchive extracts archivePath (of the given type) into destDir.
func extractArchive(archivePath string, kind ArchiveType, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return &rudierr.ExtractFailed{Archive: archivePath, Type: string(kind), Cause: err}
	}
	defer func() { _ = f.Close() }()

	var extractErr error
	switch kind {
	case ArchiveZip:
		extractErr = extractZip(archivePath, destDir)
	case ArchiveTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			extractErr = err
			break
		}
		extractErr = extractTar(tar.NewReader(xr), destDir)
	default: // tar.gz / tgz
		gz, err := gzip.NewReader(f)
		if err != nil {
			extractErr = err
			break
		}
		defer func() { _ = gz.Close() }()
		extractErr = extractTar(tar.NewReader(gz), destDir)
	}
	if extractErr != nil {
		return &rudierr.ExtractFailed{Archive: archivePath, Type: string(kind), Cause: extractErr}
	}
	return nil
}

func extractTar(tr *tar.Reader, destDir string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777|0o600)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return err
			}
			_ = out.Close()
		case tar.TypeSymlink:
			_ = os.Symlink(hdr.Linkname, target)
		}
	}
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			_ = rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		_ = rc.Close()
		_ = out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// safeJoin joins destDir and name, rejecting any traversal outside destDir
// (a "zip slip" style path in a hostile archive).
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	return target, nil
}

// relocateBinary finds a binary within extractedDir matching a glob pattern
// (where "*" matches exactly one path component, per spec.md §4.B) and
// copies the first match to destDir/name, then makes it executable.
func relocateBinary(extractedDir, pattern, destDir, name string) error {
	full := filepath.Join(extractedDir, pattern)
	matches, err := doublestar.FilepathGlob(full)
	if err != nil {
		return fmt.Errorf("globbing binary pattern %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		// The pattern may already be a literal relative path.
		if _, err := os.Stat(full); err == nil {
			matches = []string{full}
		} else {
			return fmt.Errorf("no file matched binary pattern %s", pattern)
		}
	}
	src := matches[0]
	dest := filepath.Join(destDir, name)
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Chmod(dest, 0o755)
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// chmodExecutables marks every regular file directly named as a binary
// executable (mode 0755), per spec.md §4.B "after extraction".
func chmodExecutables(installRoot string, binaries []string) {
	for _, b := range binaries {
		p := filepath.Join(installRoot, b)
		_ = os.Chmod(p, 0o755)
	}
}

// VerifyHash streams path through SHA-256 and compares it against
// expectedHex (case-insensitive).
func VerifyHash(path, expectedHex string) (bool, error) {
	actual, err := ComputeHash(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expectedHex), nil
}

// ComputeHash returns the lowercase hex-encoded SHA-256 digest of path.
func ComputeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DownloadArtifact selects the per-platform downloads list or, failing
// that, the legacy upstream URL for the given descriptor/platform and
// installs the result into installDir, writing a manifest.json on success.
// It returns an error when the descriptor has neither for platformArch.
func (c *Client) DownloadArtifact(ctx context.Context, kind string, d *PackageDescriptor, platformArch, installDir, downloadsDir string) (*pkgrecord.Record, error) {
	switch {
	case len(d.Downloads[platformArch]) > 0:
		return c.downloadMulti(ctx, kind, d, platformArch, installDir, downloadsDir)
	case d.Upstream[platformArch] != "":
		return c.downloadLegacy(ctx, kind, d, platformArch, installDir, downloadsDir)
	default:
		return nil, fmt.Errorf("no download strategy available for %s on %s", d.ID, platformArch)
	}
}

func (c *Client) downloadMulti(ctx context.Context, kind string, d *PackageDescriptor, platformArch, installDir, downloadsDir string) (*pkgrecord.Record, error) {
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return nil, err
	}
	seen := map[string]string{} // url -> extracted dir
	var binaries []string
	for _, entry := range d.Downloads[platformArch] {
		extractDir, ok := seen[entry.URL]
		if !ok {
			archivePath := filepath.Join(downloadsDir, archiveFileName(entry.URL))
			if err := c.downloadFile(ctx, entry.URL, archivePath); err != nil {
				return nil, err
			}
			archiveType := ArchiveType(entry.Type)
			if archiveType == "" {
				archiveType = InferArchiveType(entry.URL)
			}
			extractDir = filepath.Join(downloadsDir, "extracted-"+archiveFileName(entry.URL))
			if err := extractArchive(archivePath, archiveType, extractDir); err != nil {
				return nil, err
			}
			seen[entry.URL] = extractDir
		}
		if entry.Binary != "" {
			if err := relocateBinary(extractDir, entry.Binary, installDir, filepath.Base(entry.Binary)); err != nil {
				return nil, err
			}
			binaries = append(binaries, filepath.Base(entry.Binary))
		}
	}
	chmodExecutables(installDir, binaries)
	rec := pkgrecord.Record{
		ID: d.ID, Kind: kind, Name: d.Name, Version: d.Version,
		InstalledAt: pkgrecord.NowISO8601(), Source: pkgrecord.SourceRegistry,
		PlatformArch: platformArch, Binaries: binaries,
	}
	if err := pkgrecord.Write(installDir, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) downloadLegacy(ctx context.Context, kind string, d *PackageDescriptor, platformArch, installDir, downloadsDir string) (*pkgrecord.Record, error) {
	url := d.Upstream[platformArch]
	archiveType := ArchiveType(d.Extract[platformArch])
	if archiveType == "" {
		archiveType = InferArchiveType(url)
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return nil, err
	}
	archivePath := filepath.Join(downloadsDir, archiveFileName(url))
	if err := c.downloadFile(ctx, url, archivePath); err != nil {
		return nil, err
	}
	if err := extractArchive(archivePath, archiveType, installDir); err != nil {
		return nil, err
	}
	var binaries []string
	if d.Binary != "" {
		binaries = []string{d.Binary}
	}
	binaries = append(binaries, d.Binaries...)
	chmodExecutables(installDir, binaries)
	rec := pkgrecord.Record{
		ID: d.ID, Kind: kind, Name: d.Name, Version: d.Version,
		InstalledAt: pkgrecord.NowISO8601(), Source: pkgrecord.SourceRegistry,
		PlatformArch: platformArch, Binaries: binaries,
	}
	if err := pkgrecord.Write(installDir, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

const runtimeReleaseBaseURL = "https://runtimes.rudi.dev"

// DownloadRuntimePrerelease implements the third download strategy from
// spec.md §4.B: fetching a pre-packaged runtime release tarball.
func (c *Client) DownloadRuntimePrerelease(ctx context.Context, runtimeName, shortVersion, platformArch, installDir, downloadsDir string) (*pkgrecord.Record, error) {
	url := fmt.Sprintf("%s/%s-%s-%s.tar.gz", runtimeReleaseBaseURL, runtimeName, shortVersion, platformArch)
	archivePath := filepath.Join(downloadsDir, archiveFileName(url))
	if err := c.downloadFile(ctx, url, archivePath); err != nil {
		return nil, err
	}
	if err := extractStripComponents(archivePath, installDir, 1); err != nil {
		return nil, &rudierr.ExtractFailed{Archive: archivePath, Type: string(ArchiveTarGz), Cause: err}
	}
	rec := pkgrecord.Record{
		ID: "runtime:" + runtimeName, Kind: "runtime", Name: runtimeName, Version: shortVersion,
		InstalledAt: pkgrecord.NowISO8601(), Source: pkgrecord.SourceRegistry, PlatformArch: platformArch,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err == nil {
		_ = os.WriteFile(filepath.Join(installDir, "runtime.json"), data, 0o644)
	}
	return &rec, nil
}

func archiveFileName(url string) string {
	base := filepath.Base(url)
	if base == "" || base == "." || base == "/" {
		h := sha256.Sum256([]byte(url))
		return hex.EncodeToString(h[:8])
	}
	return base
}

// extractStripComponents extracts a tar.gz archive, dropping the first n
// path components of every entry (equivalent to `tar --strip-components=n`).
func extractStripComponents(archivePath, destDir string, n int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()
	tr := tar.NewReader(gz)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(hdr.Name), "/")
		if len(parts) <= n {
			continue
		}
		rel := strings.Join(parts[n:], "/")
		if rel == "" {
			continue
		}
		target, err := safeJoin(destDir, rel)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777|0o600)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return err
			}
			_ = out.Close()
		}
	}
}
