/*
 *
 * conductor - synchronization engine for browser tests
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package chromium

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/conductor/common"
	"github.com/liuxd6825/conductor/config"
	"github.com/liuxd6825/conductor/errext"
	"github.com/liuxd6825/conductor/errext/exitcodes"
	"github.com/liuxd6825/conductor/log"
)

func TestBrowserTypeFlags(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		flag          string
		caps          map[string]string
		expInitVal    any
		expChangedVal any
	}{
		{
			flag:          "headless",
			expInitVal:    true,
			caps:          map[string]string{"headless": "false"},
			expChangedVal: false,
		},
		{
			flag:          "hide-scrollbars",
			expInitVal:    true,
			caps:          map[string]string{"headless": "false"},
			expChangedVal: nil,
		},
		{
			flag:          "window-size",
			expInitVal:    "800,600",
			caps:          map[string]string{"windowSize": "1280,1024"},
			expChangedVal: "1280,1024",
		},
		{
			flag:          "proxy-server",
			caps:          map[string]string{"proxy": "http://proxy:3128"},
			expChangedVal: "http://proxy:3128",
		},
		{
			flag:          "user-data-dir",
			caps:          map[string]string{"userDataDir": "/tmp/profile"},
			expChangedVal: "/tmp/profile",
		},
		{
			flag:          "browser-arg",
			caps:          map[string]string{"args": "browser-arg=value, --other"},
			expChangedVal: "value",
		},
		{
			flag:          "other",
			caps:          map[string]string{"args": "browser-arg=value, --other"},
			expChangedVal: true,
		},
		{
			flag:          "lang",
			caps:          map[string]string{"args": `lang="de-DE"`},
			expChangedVal: "de-DE",
		},
		{
			flag:          "no-first-run",
			expInitVal:    true,
			caps:          map[string]string{"ignoreDefaultArgs": "--no-first-run"},
			expChangedVal: nil,
		},
		{
			flag:          "disable-gpu",
			caps:          map[string]string{"disable-gpu": "true"},
			expChangedVal: true,
		},
		{
			flag:          "lang",
			caps:          map[string]string{"lang": "fr"},
			expChangedVal: "fr",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.flag, func(t *testing.T) {
			t.Parallel()

			flags, err := prepareFlags(nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expInitVal, flags[tc.flag])

			flags, err = prepareFlags(tc.caps)
			require.NoError(t, err)
			assert.Equal(t, tc.expChangedVal, flags[tc.flag])
		})
	}
}

func TestBrowserTypeFlagsInvalidHeadless(t *testing.T) {
	t.Parallel()

	_, err := prepareFlags(map[string]string{"headless": "sometimes"})
	assert.ErrorContains(t, err, `invalid headless capability "sometimes"`)
}

func TestBrowserTypeReservedCapabilitiesAreNotFlags(t *testing.T) {
	t.Parallel()

	flags, err := prepareFlags(map[string]string{
		"binary":            "/opt/chrome",
		"args":              "x=1",
		"ignoreDefaultArgs": "",
	})
	require.NoError(t, err)
	for _, name := range []string{"binary", "args", "ignoreDefaultArgs"} {
		assert.NotContains(t, flags, name)
	}
}

func TestAllocatorOptionsSkipDisabledSwitches(t *testing.T) {
	t.Parallel()

	flags := map[string]any{"headless": false, "mute-audio": true, "lang": "fr"}
	// ExecPath plus the two enabled flags.
	assert.Len(t, allocatorOptions("/opt/chrome", flags), 3)
}

func TestSyncHandles(t *testing.T) {
	t.Parallel()

	infos := func(ids ...target.ID) []*target.Info {
		out := make([]*target.Info, 0, len(ids))
		for _, id := range ids {
			out = append(out, &target.Info{TargetID: id, Type: "page"})
		}
		return out
	}

	t.Run("keeps_first_seen_order", func(t *testing.T) {
		t.Parallel()
		got := syncHandles([]target.ID{"b", "a"}, infos("a", "c", "b"))
		assert.Equal(t, []target.ID{"b", "a", "c"}, got)
	})
	t.Run("drops_closed", func(t *testing.T) {
		t.Parallel()
		got := syncHandles([]target.ID{"a", "b"}, infos("b"))
		assert.Equal(t, []target.ID{"b"}, got)
	})
	t.Run("ignores_non_pages", func(t *testing.T) {
		t.Parallel()
		in := append(infos("a"), &target.Info{TargetID: "w", Type: "service_worker"})
		got := syncHandles(nil, in)
		assert.Equal(t, []target.ID{"a"}, got)
	})
}

func newTestBrowserType() *BrowserType {
	bt := NewBrowserType(log.NewNullLogger())
	bt.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
	}
	return bt
}

func newConfig(t *testing.T, kv map[string]string) config.EffectiveConfig {
	t.Helper()

	l, err := config.ParseLayer(config.SourcePerTest, kv)
	require.NoError(t, err)
	cfg, err := config.Resolve(l, config.Layer{}, config.Layer{})
	require.NoError(t, err)
	return cfg
}

func TestBrowserTypeUnsupportedBrowser(t *testing.T) {
	t.Parallel()

	_, err := newTestBrowserType().NewDriver(context.Background(), newConfig(t, map[string]string{"browser": "firefox"}))
	require.Error(t, err)

	var serr *common.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "firefox", serr.Browser)
	assert.ErrorContains(t, err, `unsupported browser "firefox"`)

	var ecerr errext.HasExitCode
	require.ErrorAs(t, err, &ecerr)
	assert.Equal(t, exitcodes.BrowserSessionFailed, ecerr.ExitCode())
}

func TestBrowserTypeNoExecutable(t *testing.T) {
	t.Parallel()

	bt := newTestBrowserType()
	bt.LookPath = func(config.Browser) string { return "" }

	_, err := bt.NewDriver(context.Background(), newConfig(t, map[string]string{"browser": "chrome"}))
	require.ErrorIs(t, err, ErrNoExecutable)
	assert.ErrorContains(t, err, "launching chrome browser")
}

func TestBrowserTypeUnreachableHub(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(nil)
	hub := srv.URL
	srv.Close()

	_, err := newTestBrowserType().NewDriver(context.Background(), newConfig(t, map[string]string{"hub": hub}))
	require.Error(t, err)

	var serr *common.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, hub, serr.Hub)
	assert.Equal(t, "chrome", serr.Browser)
}

func TestBrowserTypeWebDriverHub(t *testing.T) {
	t.Parallel()

	for _, hub := range []string{"http://grid:4444/wd/hub", "http://grid:4444/wd/hub/"} {
		hub := hub
		t.Run("", func(t *testing.T) {
			t.Parallel()

			_, err := newTestBrowserType().NewDriver(context.Background(), newConfig(t, map[string]string{"hub": hub}))
			require.ErrorIs(t, err, ErrWebDriverHub)

			var serr *common.SessionError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, hub, serr.Hub)
		})
	}

	assert.False(t, isWebDriverHub("ws://127.0.0.1:9222/devtools/browser/abc"))
	assert.False(t, isWebDriverHub("http://127.0.0.1:9222"))
}
