package axview

import (
	"context"
	"fmt"
	"strings"

	"simplepage/internal/driver"
)

// maxAncestorRounds bounds the ancestor-resolution BFS in resolveAncestry;
// real DOM depths never come close to it.
const maxAncestorRounds = 24

// resolveAncestry expands info until every node reachable from roots has
// its full ancestor chain present, by repeatedly asking the debug channel
// to describe whatever parent ids are still missing. The walk is batched
// per frame since DescribeNodes is a batch call.
func resolveAncestry(ctx context.Context, dc driver.DebugChannel, frameID string, info map[int64]driver.DOMNodeInfo, roots []int64) map[int64]driver.DOMNodeInfo {
	frontier := append([]int64{}, roots...)

	for round := 0; round < maxAncestorRounds && len(frontier) > 0; round++ {
		var missing []int64
		for _, id := range frontier {
			n, ok := info[id]
			if !ok {
				missing = append(missing, id)
				continue
			}
			if n.IsDocumentEl || n.ParentBackend == 0 {
				continue
			}
			if _, have := info[n.ParentBackend]; !have {
				missing = append(missing, n.ParentBackend)
			}
		}
		if len(missing) == 0 {
			break
		}
		batch, err := dc.DescribeNodes(ctx, frameID, missing)
		if err != nil {
			break
		}
		next := frontier[:0]
		for id, n := range batch {
			info[id] = n
			next = append(next, id)
		}
		frontier = next
	}
	return info
}

// buildXPath walks the parent chain recorded in info, from the document
// element down to backendID, producing an absolute indexed XPath such as
// "/html[1]/body[1]/div[2]/button[1]".
func buildXPath(info map[int64]driver.DOMNodeInfo, backendID int64) string {
	var parts []string
	cur := backendID
	seen := map[int64]bool{}
	for {
		n, ok := info[cur]
		if !ok || seen[cur] {
			break
		}
		seen[cur] = true
		if n.IsDocumentEl {
			parts = append(parts, "html[1]")
			break
		}
		if n.Tag == "" {
			break
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", n.Tag, max1(n.SiblingIndex)))
		if n.ParentBackend == 0 {
			break
		}
		cur = n.ParentBackend
	}
	if len(parts) == 0 {
		return ""
	}
	reversed := make([]string, len(parts))
	for i, p := range parts {
		reversed[len(parts)-1-i] = p
	}
	return "/" + strings.Join(reversed, "/")
}

func max1(i int) int {
	if i < 1 {
		return 1
	}
	return i
}
