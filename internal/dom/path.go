package dom

import (
	"fmt"
	"strings"
)

// CSSPath builds a structural selector from the document root to n, using
// nth-child positions. The live backend records one per ref at snapshot time
// so actions can find the same element in the real page. Paths cannot cross
// shadow boundaries; nodes inside shadow roots yield "".
func CSSPath(n *Node) string {
	var segments []string
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != ElementNode {
			return ""
		}
		if cur.Tag == "#shadow-root" {
			return ""
		}
		if cur.Parent == nil {
			segments = append(segments, cur.Tag)
			break
		}
		position := 0
		index := 0
		for _, sibling := range cur.Parent.Children {
			if sibling.Type != ElementNode {
				continue
			}
			index++
			if sibling == cur {
				position = index
				break
			}
		}
		segments = append(segments, fmt.Sprintf("%s:nth-child(%d)", cur.Tag, position))
	}

	// Reverse into document order.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, " > ")
}
