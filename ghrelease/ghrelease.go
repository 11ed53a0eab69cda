// Package ghrelease publishes and fetches meowzip artifacts through GitHub
// Releases, so a sync index's URLs can point at a release's asset download
// links instead of requiring a dedicated file server.
package ghrelease

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type release struct {
	ID     int64   `json:"id"`
	Tag    string  `json:"tag_name"`
	Assets []asset `json:"assets"`
}

type asset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

func fetchRelease(ctx context.Context, repoSlug, tag, token string) (release, error) {
	var rel release
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases/tags/%s", repoSlug, tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rel, err
	}
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return rel, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rel, fmt.Errorf("release %s/%s: status %d", repoSlug, tag, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return rel, err
	}
	return rel, nil
}

// FetchArtifactURLs scans repoSlug's release tagged tag and returns the
// download URLs for every asset ending in suffix (".mz" or ".mz.minisig").
func FetchArtifactURLs(ctx context.Context, repoSlug, tag, token, suffix string) ([]string, error) {
	rel, err := fetchRelease(ctx, repoSlug, tag, token)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, a := range rel.Assets {
		if strings.HasSuffix(a.Name, suffix) {
			urls = append(urls, a.BrowserDownloadURL)
		}
	}
	return urls, nil
}

// Fetcher implements fetch.Fetcher by downloading plain HTTPS URLs, the
// form GitHub Release asset download links take. It carries an optional
// token so private-repository releases can be fetched the same way.
type Fetcher struct {
	Token string
}

func (f Fetcher) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "token "+f.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(part)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(part)
		return err
	}
	return os.Rename(part, dest)
}

// Publish uploads the artifact at filePath (a ".mz" archive or its
// ".mz.minisig" detached signature) to repoSlug's release tagged tag,
// replacing any existing asset of the same name.
func Publish(ctx context.Context, repoSlug, tag, token, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return err
	}
	return publishReader(ctx, repoSlug, tag, token, filepath.Base(filePath), f, stat.Size())
}

func publishReader(ctx context.Context, repoSlug, tag, token, name string, content io.Reader, size int64) error {
	rel, err := fetchRelease(ctx, repoSlug, tag, token)
	if err != nil {
		return err
	}

	for _, a := range rel.Assets {
		if a.Name == name {
			delURL := fmt.Sprintf("https://api.github.com/repos/%s/releases/assets/%d", repoSlug, a.ID)
			delReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, delURL, nil)
			if err != nil {
				return err
			}
			delReq.Header.Set("Authorization", "token "+token)
			resp, err := http.DefaultClient.Do(delReq)
			if err != nil {
				return err
			}
			resp.Body.Close()
			break
		}
	}

	uploadURL := fmt.Sprintf("https://uploads.github.com/repos/%s/releases/%d/assets?name=%s", repoSlug, rel.ID, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, content)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = size

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("uploading %s: %s %s", name, resp.Status, body)
	}
	return nil
}
