package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/conductor/env"
	"github.com/liuxd6825/conductor/log"
)

const testDocument = `
defaults:
  timeout: 8
  retries: many
  customCapabilities:
    a: "1"
    b: "2"
currentSchemes: [staging, slow]
schemes:
  staging:
    baseUrl: https://staging.example.com
    path: /app
    customCapabilities:
      b: "3"
      c: "4"
      n: 4
  slow:
    timeout: 30
  prod:
    baseUrl: https://example.com
`

func newTestLoader(t *testing.T, files map[string]string, environ map[string]string) *Loader {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(data), 0o644))
	}
	return NewLoader(fs, env.MapLookup(environ), log.NewNullLogger())
}

func TestLoaderDefaults(t *testing.T) {
	t.Parallel()

	ld := newTestLoader(t, map[string]string{
		DefaultPropertiesPath: "timeout=3\nretries=2\nbrowser=chrome\n# comment\nscreenshot_on_fail=false\n",
		DefaultDocumentPath:   testDocument,
	}, nil)

	c, err := ld.Load(Layer{})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.Timeout())
	assert.Equal(t, 2, c.Retries())
	assert.Equal(t, BrowserChrome, c.Browser())
	assert.False(t, c.ScreenshotOnFail())
	assert.Equal(t, "https://staging.example.com/app", c.URL())
	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, c.CustomCapabilities())
	assert.Equal(t, []string{"staging", "slow"}, c.CurrentSchemes())
}

func TestLoaderSchemesFromEnv(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		schemes string
		url     string
		timeout time.Duration
	}{
		"replaced": {"prod", "https://example.com/", 8 * time.Second},
		"ordered":  {"slow, staging", "https://staging.example.com/app", 30 * time.Second},
		"cleared":  {"", "", 8 * time.Second},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ld := newTestLoader(t, map[string]string{DefaultDocumentPath: testDocument},
				map[string]string{env.CurrentSchemes: tt.schemes})
			c, err := ld.Load(Layer{})
			require.NoError(t, err)
			assert.Equal(t, tt.url, c.URL())
			assert.Equal(t, tt.timeout, c.Timeout())
		})
	}
}

func TestLoaderExternal(t *testing.T) {
	t.Parallel()

	ld := newTestLoader(t, map[string]string{DefaultDocumentPath: testDocument}, map[string]string{
		env.Timeout:            "15",
		env.Browser:            "firefox",
		env.ScreenshotsOnFail:  "false",
		env.CustomCapabilities: `{"c":"4","a":"9"}`,
		env.Hub:                "",
	})

	perTest, err := ParseLayer(SourcePerTest, map[string]string{"timeout": "10", "browser": "chrome"})
	require.NoError(t, err)

	c, err := ld.Load(perTest)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, c.Timeout())
	assert.Equal(t, BrowserFirefox, c.Browser())
	assert.False(t, c.ScreenshotOnFail())
	assert.Empty(t, c.Hub())
	assert.Equal(t, map[string]string{"a": "9", "b": "3", "c": "4"}, c.CustomCapabilities())
}

func TestLoaderExternalInvalid(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		environ map[string]string
		key     string
	}{
		"timeout":      {map[string]string{env.Timeout: "soon"}, env.Timeout},
		"retries":      {map[string]string{env.Retries: "-1"}, "retries"},
		"browser":      {map[string]string{env.Browser: "mosaic"}, "browser"},
		"screenshots":  {map[string]string{env.ScreenshotsOnFail: "maybe"}, env.ScreenshotsOnFail},
		"capabilities": {map[string]string{env.CustomCapabilities: `["a"]`}, env.CustomCapabilities},
		"capability":   {map[string]string{env.CustomCapabilities: `{"a":1}`}, env.CustomCapabilities},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ld := newTestLoader(t, nil, tt.environ)
			_, err := ld.Load(Layer{})
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, SourceExternal, cerr.Source)
			assert.Equal(t, tt.key, cerr.Key)
		})
	}
}

func TestLoaderMissingFiles(t *testing.T) {
	t.Parallel()

	c, err := newTestLoader(t, nil, nil).Load(Layer{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.Empty(t, c.CurrentSchemes())
}

func TestLoaderBrokenDocument(t *testing.T) {
	t.Parallel()

	_, err := newTestLoader(t, map[string]string{DefaultDocumentPath: "defaults: [\n"}, nil).Load(Layer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration document")
}

func TestEffectiveConfigMarshal(t *testing.T) {
	t.Parallel()

	l, err := ParseLayer(SourcePerTest, map[string]string{
		"url":                       "https://example.com",
		"customCapabilities.locale": "en",
	})
	require.NoError(t, err)
	c, err := Resolve(l, Layer{}, Layer{})
	require.NoError(t, err)

	j, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"url": "https://example.com",
		"browser": "none",
		"timeout": "5s",
		"retries": 5,
		"screenshotOnFail": true,
		"customCapabilities": {"locale": "en"}
	}`, string(j))

	y, err := yaml.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(y), "url: https://example.com")
	assert.Contains(t, string(y), "locale: en")
}
