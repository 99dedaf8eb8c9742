// Package storage persists the files a test run produces, such as failure
// screenshots.
package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// LocalFilePersister will persist files to a local file system.
type LocalFilePersister struct {
	fs afero.Fs
}

// NewLocalFilePersister returns a persister writing to fs.
func NewLocalFilePersister(fs afero.Fs) *LocalFilePersister {
	return &LocalFilePersister{fs: fs}
}

// Persist will write the contents of data to the file system on the
// specified path, creating its directory.
func (l *LocalFilePersister) Persist(_ context.Context, p string, data io.Reader) (err error) {
	cp := filepath.Clean(p)

	dir := filepath.Dir(cp)
	if err = l.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating a local directory %q: %w", dir, err)
	}

	f, err := l.fs.OpenFile(cp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating a local file %q: %w", cp, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing the local file %q: %w", cp, cerr)
		}
	}()

	bf := bufio.NewWriter(f)

	if _, err := io.Copy(bf, data); err != nil {
		return fmt.Errorf("copying data to file: %w", err)
	}

	if err := bf.Flush(); err != nil {
		return fmt.Errorf("flushing data to disk: %w", err)
	}

	return nil
}

// RemoteFilePersister uploads files to a remote store. For every file it
// asks the upload service for a pre-signed URL and then puts the file
// there.
type RemoteFilePersister struct {
	uploadServiceURL string
	headers          map[string]string
	basePath         string

	httpClient *http.Client
}

// NewRemoteFilePersister creates a new instance of RemoteFilePersister.
// Files are stored under basePath on the remote side.
func NewRemoteFilePersister(uploadServiceURL string, headers map[string]string, basePath string) *RemoteFilePersister {
	return &RemoteFilePersister{
		uploadServiceURL: uploadServiceURL,
		headers:          headers,
		basePath:         basePath,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Persist will upload the contents of data to the remote store.
func (r *RemoteFilePersister) Persist(ctx context.Context, p string, data io.Reader) error {
	pURL, err := r.preSignedURL(ctx, p)
	if err != nil {
		return fmt.Errorf("getting pre-signed url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, pURL, data)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType(p))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing upload request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("draining upload response body: %w", err)
	}

	if err := checkStatusCode(resp); err != nil {
		return fmt.Errorf("uploading: %w", err)
	}

	return nil
}

func contentType(p string) string {
	if strings.EqualFold(path.Ext(p), ".png") {
		return "image/png"
	}
	return "application/octet-stream"
}

func checkStatusCode(resp *http.Response) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("server returned %d (%s)", resp.StatusCode, strings.ToLower(http.StatusText(resp.StatusCode)))
	}

	return nil
}

type uploadFile struct {
	Name string `json:"name"`
}

type uploadRequest struct {
	Operation string       `json:"operation"`
	Files     []uploadFile `json:"files"`
}

type uploadResponse struct {
	URLs []struct {
		Name         string `json:"name"`
		PreSignedURL string `json:"pre_signed_url"` //nolint:tagliatelle
	} `json:"urls"`
}

// preSignedURL asks the upload service where to put the file p.
func (r *RemoteFilePersister) preSignedURL(ctx context.Context, p string) (string, error) {
	b, err := json.Marshal(uploadRequest{
		Operation: "upload",
		Files:     []uploadFile{{Name: path.Join(r.basePath, filepath.ToSlash(p))}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.uploadServiceURL, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.headers {
		req.Header.Add(k, v)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkStatusCode(resp); err != nil {
		return "", err
	}

	var rb uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return "", fmt.Errorf("decoding response body: %w", err)
	}
	if len(rb.URLs) == 0 || rb.URLs[0].PreSignedURL == "" {
		return "", errors.New("missing pre-signed url in response body")
	}

	return rb.URLs[0].PreSignedURL, nil
}
