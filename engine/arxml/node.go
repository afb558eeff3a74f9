package arxml

import (
	"iter"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// children yields the element children of n, restricted to tags when given.
// A nil n yields nothing.
func children(n *xmlquery.Node, tags ...string) iter.Seq[*xmlquery.Node] {
	return func(yield func(*xmlquery.Node) bool) {
		if n == nil {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode {
				continue
			}
			if len(tags) > 0 && !matches(c.Data, tags) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func matches(tag string, tags []string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// child returns the first element child of n with tag.
func child(n *xmlquery.Node, tag string) *xmlquery.Node {
	for c := range children(n, tag) {
		return c
	}
	return nil
}

// at descends through a chain of tags, returning nil when any step is missing.
func at(n *xmlquery.Node, path ...string) *xmlquery.Node {
	for _, tag := range path {
		if n = child(n, tag); n == nil {
			return nil
		}
	}
	return n
}

// textAt returns the trimmed text of the element at path, or "".
func textAt(n *xmlquery.Node, path ...string) string {
	if n = at(n, path...); n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

// refsAt collects the texts of every leaf tag found below the container at
// path, looking through one level of *-CONDITIONAL wrappers.
func refsAt(n *xmlquery.Node, leaf string, path ...string) []string {
	var out []string
	for c := range children(at(n, path...)) {
		if c.Data == leaf {
			out = append(out, strings.TrimSpace(c.InnerText()))
			continue
		}
		for ref := range children(c, leaf) {
			out = append(out, strings.TrimSpace(ref.InnerText()))
		}
	}
	return out
}

// parseNumber accepts decimal, 0x hex, 0b binary and leading-zero octal
// integers as well as floats, including INF and -INF.
func parseNumber(s string) (float64, error) {
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(i), nil
	}
	if u, err := strconv.ParseUint(s, 0, 64); err == nil {
		return float64(u), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 0, 64)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.ToLower(s))
}
