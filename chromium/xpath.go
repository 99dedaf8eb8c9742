package chromium

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const jsXPathSnapshot = `function(expr) {
	const doc = this.ownerDocument || this;
	const res = doc.evaluate(expr, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const nodes = [];
	for (let i = 0; i < res.snapshotLength; i++) {
		nodes.push(res.snapshotItem(i));
	}
	return nodes;
}`

// byXPath selects the nodes matching expr, evaluated with the query root
// as context node. For a frame element chromedp passes its content
// document as the root.
func byXPath(expr string) chromedp.QueryOption {
	return chromedp.ByFunc(func(ctx context.Context, n *cdp.Node) ([]cdp.NodeID, error) {
		args, err := xpathArgs(expr)
		if err != nil {
			return nil, err
		}
		root, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving query root: %w", err)
		}
		defer func() { _ = runtime.ReleaseObject(root.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(jsXPathSnapshot).
			WithObjectID(root.ObjectID).
			WithArguments(args).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if exc != nil {
			return nil, exc
		}
		defer func() { _ = runtime.ReleaseObject(res.ObjectID).Do(ctx) }()

		props, _, _, exc, err := runtime.GetProperties(res.ObjectID).WithOwnProperties(true).Do(ctx)
		if err != nil {
			return nil, err
		}
		if exc != nil {
			return nil, exc
		}
		return requestNodes(ctx, props)
	})
}

// requestNodes pushes the array elements among props to the DOM agent, in
// index order.
func requestNodes(ctx context.Context, props []*runtime.PropertyDescriptor) ([]cdp.NodeID, error) {
	objs := snapshotObjects(props)
	ids := make([]cdp.NodeID, 0, len(objs))
	for _, obj := range objs {
		id, err := dom.RequestNode(obj).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("requesting node: %w", err)
		}
		if id != cdp.EmptyNodeID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// snapshotObjects returns the object IDs of the indexed entries of an
// array's own properties, skipping length and the like.
func snapshotObjects(props []*runtime.PropertyDescriptor) []runtime.RemoteObjectID {
	byIndex := make(map[int]runtime.RemoteObjectID, len(props))
	for _, p := range props {
		i, err := strconv.Atoi(p.Name)
		if err != nil || i < 0 || p.Value == nil || p.Value.ObjectID == "" {
			continue
		}
		byIndex[i] = p.Value.ObjectID
	}
	objs := make([]runtime.RemoteObjectID, 0, len(byIndex))
	for i := 0; len(objs) < len(byIndex); i++ {
		if obj, ok := byIndex[i]; ok {
			objs = append(objs, obj)
		}
	}
	return objs
}

func xpathArgs(expr string) ([]*runtime.CallArgument, error) {
	v, err := json.Marshal(expr)
	if err != nil {
		return nil, err
	}
	return []*runtime.CallArgument{{Value: v}}, nil
}
