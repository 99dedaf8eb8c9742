package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFilePersister(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		path         string
		existingData string
		data         string
	}{
		"new_file": {
			path: "test.png",
			data: "some data",
		},
		"new_file_in_new_dir": {
			path: "target/test-screenshots/login.png",
			data: "some data",
		},
		"overwrite_existing_file": {
			path:         "test.png",
			existingData: "existing data",
			data:         "new data",
		},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			if tt.existingData != "" {
				require.NoError(t, afero.WriteFile(fs, tt.path, []byte(tt.existingData), 0o600))
			}

			l := NewLocalFilePersister(fs)
			err := l.Persist(context.Background(), tt.path, strings.NewReader(tt.data))
			require.NoError(t, err)

			data, err := afero.ReadFile(fs, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(data))
		})
	}

	t.Run("read_only_fs", func(t *testing.T) {
		t.Parallel()

		l := NewLocalFilePersister(afero.NewReadOnlyFs(afero.NewMemMapFs()))
		err := l.Persist(context.Background(), "dir/test.png", strings.NewReader("x"))
		require.Error(t, err)
	})
}

func TestRemoteFilePersister(t *testing.T) {
	t.Parallel()

	const basePath = "screenshots/run-1"

	testCases := map[string]struct {
		path               string
		dataToUpload       string
		getPresignedStatus int
		uploadStatus       int
		wantError          string
	}{
		"upload_file": {
			path:               "target/test-screenshots/login.png",
			dataToUpload:       "here's some data",
			getPresignedStatus: http.StatusOK,
			uploadStatus:       http.StatusOK,
		},
		"get_presigned_fails": {
			path:               "some/path/file.png",
			dataToUpload:       "here's some data",
			getPresignedStatus: http.StatusTooManyRequests,
			wantError:          "getting pre-signed url: server returned 429 (too many requests)",
		},
		"upload_fails": {
			path:               "some/path/file.png",
			dataToUpload:       "here's some data",
			getPresignedStatus: http.StatusOK,
			uploadStatus:       http.StatusForbidden,
			wantError:          "uploading: server returned 403 (forbidden)",
		},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			s := httptest.NewServer(mux)
			defer s.Close()

			mux.HandleFunc("/presigned", func(w http.ResponseWriter, r *http.Request) {
				defer r.Body.Close() //nolint:errcheck

				assert.Equal(t, "token", r.Header.Get("Authorization"))

				var req uploadRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "upload", req.Operation)
				if assert.Len(t, req.Files, 1) {
					assert.Equal(t, basePath+"/"+tt.path, req.Files[0].Name)
				}

				w.WriteHeader(tt.getPresignedStatus)
				_, err := io.WriteString(w, `{"urls":[{"name":"`+tt.path+`","pre_signed_url":"`+s.URL+`/upload"}]}`)
				assert.NoError(t, err)
			})
			mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
				defer r.Body.Close() //nolint:errcheck

				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
				data, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				assert.Equal(t, tt.dataToUpload, string(data))

				w.WriteHeader(tt.uploadStatus)
			})

			r := NewRemoteFilePersister(s.URL+"/presigned", map[string]string{"Authorization": "token"}, basePath)
			err := r.Persist(context.Background(), tt.path, strings.NewReader(tt.dataToUpload))
			if tt.wantError != "" {
				assert.EqualError(t, err, tt.wantError)
				return
			}

			assert.NoError(t, err)
		})
	}
}
