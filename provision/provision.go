// Package provision bootstraps FreeBSD base system releases: it
// downloads the release archives from a mirror, verifies them against
// the published MANIFEST checksums, and extracts them into a releases
// directory that jails are cloned from.
package provision

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ulikunitz/xz"

	blackerr "blackship/errors"
	"blackship/logging"
	"blackship/manifest"
)

// Release describes a bootstrapped FreeBSD release on disk.
type Release struct {
	Name string
	Path string
	Arch Arch
}

// Provisioner fetches and manages FreeBSD releases.
type Provisioner struct {
	mirrorURL   string
	releasesDir string
	cacheDir    string
	archives    []string
	arch        Arch
	retry       manifest.RetryConfig
	client      *http.Client
}

// New builds a Provisioner from explicit settings.
func New(mirrorURL, releasesDir, cacheDir string, archives []string, retry manifest.RetryConfig) (*Provisioner, error) {
	arch, err := CurrentArch()
	if err != nil {
		return nil, err
	}
	return &Provisioner{
		mirrorURL:   mirrorURL,
		releasesDir: releasesDir,
		cacheDir:    cacheDir,
		archives:    archives,
		arch:        arch,
		retry:       retry,
		client:      &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// FromConfig builds a Provisioner from a project's global config.
func FromConfig(config manifest.GlobalConfig) (*Provisioner, error) {
	return New(config.MirrorURL, config.ReleasesDir, config.CacheDir, config.BootstrapArchives, config.Retry)
}

func (p *Provisioner) archiveURL(release, archive string) string {
	return fmt.Sprintf("%s/%s/%s/%s.txz", p.mirrorURL, p.arch.FreeBSDName(), release, archive)
}

func (p *Provisioner) manifestURL(release string) string {
	return fmt.Sprintf("%s/%s/%s/MANIFEST", p.mirrorURL, p.arch.FreeBSDName(), release)
}

// parseManifest extracts the archive -> sha256 mapping from a FreeBSD
// MANIFEST file's tab-separated lines.
func parseManifest(content string) map[string]string {
	checksums := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		archive := strings.TrimSuffix(parts[0], ".txz")
		checksums[archive] = parts[1]
	}
	return checksums
}

// ReleasePath is where release would be (or is) extracted.
func (p *Provisioner) ReleasePath(release string) string {
	return filepath.Join(p.releasesDir, release)
}

// IsBootstrapped reports whether release looks fully extracted.
func (p *Provisioner) IsBootstrapped(release string) bool {
	path := p.ReleasePath(release)
	return dirExists(path) && dirExists(filepath.Join(path, "bin")) && dirExists(filepath.Join(path, "usr"))
}

// ListReleases returns every bootstrapped release, sorted by name.
func (p *Provisioner) ListReleases() ([]Release, error) {
	var releases []Release

	if !dirExists(p.releasesDir) {
		return releases, nil
	}

	entries, err := os.ReadDir(p.releasesDir)
	if err != nil {
		return nil, blackerr.New(blackerr.ErrRelease, "list releases", err.Error())
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(p.releasesDir, entry.Name())
		if dirExists(filepath.Join(path, "bin")) && dirExists(filepath.Join(path, "usr")) {
			releases = append(releases, Release{Name: entry.Name(), Path: path, Arch: p.arch})
		}
	}

	sort.Slice(releases, func(i, j int) bool { return releases[i].Name < releases[j].Name })
	return releases, nil
}

// Bootstrap downloads and extracts every configured archive for
// release, verifying each against the mirror's published checksum.
func (p *Provisioner) Bootstrap(release string, force bool) (string, error) {
	releasePath := p.ReleasePath(release)
	logger := logging.Default()

	if p.IsBootstrapped(release) && !force {
		return "", blackerr.New(blackerr.ErrRelease, "bootstrap release", "release '"+release+"' already bootstrapped")
	}

	manifestURL := p.manifestURL(release)
	if !p.urlExists(manifestURL) {
		return "", blackerr.New(blackerr.ErrRelease, "bootstrap release", "release '"+release+"' not found on mirror")
	}

	logger.Info("provision: bootstrapping release", "release", release, "arch", p.arch.FreeBSDName())

	manifestContent, err := p.fetchText(manifestURL)
	if err != nil {
		return "", err
	}
	checksums := parseManifest(manifestContent)

	if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
		return "", blackerr.New(blackerr.ErrRelease, "bootstrap release", err.Error())
	}
	if err := os.MkdirAll(releasePath, 0o755); err != nil {
		return "", blackerr.New(blackerr.ErrRelease, "bootstrap release", err.Error())
	}

	for _, archive := range p.archives {
		if err := p.fetchArchive(release, archive, releasePath, checksums, logger); err != nil {
			return "", err
		}
	}

	logger.Info("provision: bootstrap complete", "path", releasePath)
	return releasePath, nil
}

func (p *Provisioner) fetchArchive(release, archive, releasePath string, checksums map[string]string, logger *slog.Logger) error {
	url := p.archiveURL(release, archive)
	cacheFile := filepath.Join(p.cacheDir, fmt.Sprintf("%s-%s.txz", release, archive))
	expected, haveChecksum := checksums[archive]

	bo := p.newBackoff()
	var lastErr error

	for {
		needsDownload := true
		if fileExists(cacheFile) {
			if haveChecksum {
				actual, err := sha256File(cacheFile)
				needsDownload = err != nil || actual != expected
			} else {
				needsDownload = false
			}
		}

		err := func() error {
			if needsDownload {
				logger.Info("provision: downloading archive", "archive", archive)
				if e := p.downloadFile(url, cacheFile, expected); e != nil {
					return e
				}
			} else {
				logger.Info("provision: using cached archive", "archive", archive)
			}
			logger.Info("provision: extracting archive", "archive", archive)
			return extractTxz(cacheFile, releasePath)
		}()
		if err == nil {
			return nil
		}

		lastErr = err
		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return lastErr
		}
		logger.Warn("provision: archive fetch failed, retrying", "archive", archive, "error", err, "delay", delay)
		os.Remove(cacheFile)
		time.Sleep(delay)
	}
}

func (p *Provisioner) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(p.retry.BaseDelayMs) * time.Millisecond
	b.MaxInterval = time.Duration(p.retry.MaxDelayMs) * time.Millisecond
	b.Multiplier = p.retry.Multiplier
	b.RandomizationFactor = p.retry.JitterFactor
	b.MaxElapsedTime = time.Duration(p.retry.MaxAttempts) * b.MaxInterval
	return b
}

// Delete removes a bootstrapped release entirely.
func (p *Provisioner) Delete(release string) error {
	path := p.ReleasePath(release)
	if !dirExists(path) {
		return blackerr.New(blackerr.ErrRelease, "delete release", "release '"+release+"' not found")
	}
	if err := os.RemoveAll(path); err != nil {
		return blackerr.New(blackerr.ErrRelease, "delete release", err.Error())
	}
	logging.Default().Info("provision: deleted release", "release", release)
	return nil
}

// Verify checks that a handful of essential files exist in the
// release, a cheap sanity check that extraction actually completed.
func (p *Provisioner) Verify(release string) (bool, error) {
	if !p.IsBootstrapped(release) {
		return false, blackerr.New(blackerr.ErrRelease, "verify release", "release '"+release+"' not found")
	}
	releasePath := p.ReleasePath(release)
	for _, rel := range []string{"bin/sh", "usr/bin/env", "lib/libc.so.7"} {
		if !fileExists(filepath.Join(releasePath, rel)) {
			logging.Default().Warn("provision: missing essential file", "path", rel)
			return false, nil
		}
	}
	return true, nil
}

// CloneRelease copies a bootstrapped release's tree into a jail path
// with a manual walk (the destination may cross ZFS datasets, where a
// hardlink-preserving "cp -a" shortcut can't be relied on). Directories,
// regular files and symlinks are copied and new entries are created with
// the source's permission bits; ownership and timestamps are not copied,
// and hard links become separate files.
func CloneRelease(releasePath, jailPath string) error {
	if !dirExists(releasePath) {
		return blackerr.New(blackerr.ErrRelease, "clone release", "release path not found: "+releasePath)
	}
	if err := os.MkdirAll(jailPath, 0o755); err != nil {
		return blackerr.New(blackerr.ErrRelease, "clone release", err.Error())
	}
	return copyTree(releasePath, jailPath)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func extractTxz(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return blackerr.New(blackerr.ErrRelease, "extract archive", err.Error())
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return blackerr.New(blackerr.ErrRelease, "extract archive", err.Error())
	}

	tr := tar.NewReader(xr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return blackerr.New(blackerr.ErrRelease, "extract archive", err.Error())
		}
		if err := extractEntry(tr, hdr, dest); err != nil {
			return blackerr.New(blackerr.ErrRelease, "extract archive", err.Error())
		}
	}
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, dest string) error {
	target := filepath.Join(dest, hdr.Name)

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, os.FileMode(hdr.Mode))
	case tar.TypeSymlink:
		os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeLink:
		os.Remove(target)
		return os.Link(filepath.Join(dest, hdr.Linkname), target)
	default:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, tr)
		return err
	}
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		}
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}

func (p *Provisioner) urlExists(url string) bool {
	resp, err := p.client.Head(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *Provisioner) fetchText(url string) (string, error) {
	resp, err := p.client.Get(url)
	if err != nil {
		return "", blackerr.New(blackerr.ErrRelease, "fetch manifest", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", blackerr.New(blackerr.ErrRelease, "fetch manifest", fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", blackerr.New(blackerr.ErrRelease, "fetch manifest", err.Error())
	}
	return string(body), nil
}

func (p *Provisioner) downloadFile(url, dest, expectedSHA256 string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return blackerr.New(blackerr.ErrRelease, "download archive", err.Error())
	}

	resp, err := p.client.Get(url)
	if err != nil {
		return blackerr.New(blackerr.ErrRelease, "download archive", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return blackerr.New(blackerr.ErrRelease, "download archive", fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	out, err := os.Create(dest)
	if err != nil {
		return blackerr.New(blackerr.ErrRelease, "download archive", err.Error())
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return blackerr.New(blackerr.ErrRelease, "download archive", err.Error())
	}

	if expectedSHA256 != "" {
		actual, err := sha256File(dest)
		if err != nil {
			return blackerr.New(blackerr.ErrRelease, "verify checksum", err.Error())
		}
		if actual != expectedSHA256 {
			return blackerr.New(blackerr.ErrRelease, "verify checksum", "checksum mismatch for "+dest)
		}
	}
	return nil
}
