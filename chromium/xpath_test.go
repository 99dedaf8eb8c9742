package chromium

import (
	"encoding/json"
	"testing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/conductor/common"
)

func TestTabQuery(t *testing.T) {
	t.Parallel()

	frame := &cdp.Node{NodeID: 7, NodeName: "IFRAME"}
	testCases := map[string]struct {
		loc      common.Locator
		frame    *cdp.Node
		wantSel  string
		wantOpts int
	}{
		"css_top":     {common.ByCSS("#a"), nil, "#a", 2},
		"css_frame":   {common.ByCSS("#a"), frame, "#a", 3},
		"id_frame":    {common.ByID("a"), frame, `[id="a"]`, 3},
		"xpath_top":   {common.ByXPath("//a"), nil, "//a", 2},
		"xpath_frame": {common.ByXPath("//a"), frame, "//a", 3},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tb := &tab{frame: tt.frame}
			sel, opts := tb.query(tt.loc)
			assert.Equal(t, tt.wantSel, sel)
			assert.Len(t, opts, tt.wantOpts)
		})
	}
}

func TestXPathArgs(t *testing.T) {
	t.Parallel()

	expr := `//a[@title="it's \ here"]`
	args, err := xpathArgs(expr)
	require.NoError(t, err)
	require.Len(t, args, 1)

	var got string
	require.NoError(t, json.Unmarshal(args[0].Value, &got))
	assert.Equal(t, expr, got)
}

func TestSnapshotObjects(t *testing.T) {
	t.Parallel()

	obj := func(id runtime.RemoteObjectID) *runtime.RemoteObject {
		return &runtime.RemoteObject{ObjectID: id}
	}
	props := []*runtime.PropertyDescriptor{
		{Name: "1", Value: obj("second")},
		{Name: "length", Value: &runtime.RemoteObject{}},
		{Name: "0", Value: obj("first")},
		{Name: "2", Value: obj("third")},
		{Name: "__proto__", Value: obj("proto")},
	}
	assert.Equal(t,
		[]runtime.RemoteObjectID{"first", "second", "third"},
		snapshotObjects(props))
	assert.Empty(t, snapshotObjects(nil))
}
