// Package n42 implements the N42-2006 and N42-2012 XML reader/writer pair of
// spec.md §4.4/§4.5/§4.6, grounded on the teacher's hand-rolled N42 decoder
// in pkg/spectrum/n42.go but rebuilt against a namespace-agnostic XML tree so
// vendor dialects that prefix or omit the N42 namespace all parse the same
// way, per the DESIGN NOTES' call for a namespace-agnostic child lookup.
package n42

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
)

// children returns node's direct child elements whose local name (namespace
// prefix stripped) equals name, case-sensitively.
func children(node *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	if node == nil {
		return out
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && localName(c) == name {
			out = append(out, c)
		}
	}
	return out
}

// child returns the first direct child with local name == name, or nil.
func child(node *xmlquery.Node, name string) *xmlquery.Node {
	cs := children(node, name)
	if len(cs) == 0 {
		return nil
	}
	return cs[0]
}

// descendants returns every descendant element (any depth) with local name
// == name, in document order.
func descendants(node *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	if node == nil {
		return out
	}
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode {
				if localName(c) == name {
					out = append(out, c)
				}
				walk(c)
			}
		}
	}
	walk(node)
	return out
}

func localName(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	if idx := strings.IndexByte(n.Data, ':'); idx >= 0 {
		return n.Data[idx+1:]
	}
	return n.Data
}

func attr(n *xmlquery.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Name.Local == name || a.Name.Local == nameAfterColon(name) {
			return a.Value, true
		}
	}
	return "", false
}

func nameAfterColon(s string) string {
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

func text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

func childText(node *xmlquery.Node, name string) string {
	return text(child(node, name))
}

// parseFloats splits a whitespace-separated list of floats, replacing
// unparseable, NaN or infinite tokens with 0 rather than failing the whole
// list (an Arithmetic
// condition per spec.md §7: a bad float becomes 0 with a warning from the
// caller, not a hard failure here).
func parseFloats(s string) []float64 {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || isNaNOrInf(v) {
			v = 0
		}
		out = append(out, v)
	}
	return out
}

func isNaNOrInf(f float64) bool {
	return f != f || f > 1e308 || f < -1e308
}

// parseISO8601Duration parses the "PT12.5S", "PT3M", "PT1H2M3S" subset ISO
// 8601 durations the N42 formats use for RealTimeDuration/LiveTimeDuration,
// returning seconds.
func parseISO8601Duration(s string) float64 {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "PT") {
		return 0
	}
	s = s[2:]
	total := 0.0
	num := strings.Builder{}
	for _, r := range s {
		switch {
		case (r >= '0' && r <= '9') || r == '.':
			num.WriteRune(r)
		case r == 'H':
			v, _ := strconv.ParseFloat(num.String(), 64)
			total += v * 3600
			num.Reset()
		case r == 'M':
			v, _ := strconv.ParseFloat(num.String(), 64)
			total += v * 60
			num.Reset()
		case r == 'S':
			v, _ := strconv.ParseFloat(num.String(), 64)
			total += v
			num.Reset()
		}
	}
	return total
}

// formatISO8601Duration renders seconds as "PT{n}S" with up to 6 decimals,
// trailing zeros trimmed.
func formatISO8601Duration(seconds float64) string {
	s := strconv.FormatFloat(seconds, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return "PT" + s + "S"
}

// parseISO8601Time parses N42's extended ISO-8601 datetime, accepting an
// optional fractional-seconds part and either "Z" or a numeric offset.
func parseISO8601Time(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func formatISO8601Time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.999999999Z")
}

// isMostlyNonNull implements the first-512-bytes candidacy heuristic of
// spec.md §4.9: at most 8 null bytes among the first 512.
func isMostlyNonNull(data []byte) bool {
	n := len(data)
	if n > 512 {
		n = 512
	}
	nulls := 0
	for _, b := range data[:n] {
		if b == 0 {
			nulls++
		}
	}
	return nulls <= 8
}

// containsAnySentinel reports whether any of sentinels appears anywhere in
// data; the whole document is scanned, not only its first 512 bytes.
func containsAnySentinel(data []byte, sentinels []string) bool {
	for _, s := range sentinels {
		if bytes.Contains(data, []byte(s)) {
			return true
		}
	}
	return false
}

// NormalizeUTF16LE runs the §4.9 UTF-16LE narrowing pass ahead of N42
// candidacy detection; pkg/loader calls this once per input before trying
// either N42 reader, since the heuristic only needs to run once regardless
// of which N42 variant eventually matches.
func NormalizeUTF16LE(data []byte) []byte {
	return narrowUTF16LE(data)
}

// narrowUTF16LE implements the §4.9 UTF-16LE narrowing pass: if at least 480
// of the first 512 byte positions alternate non-null/null starting from an
// even index, the stream is rewritten by discarding zero bytes after the
// first '<'.
func narrowUTF16LE(data []byte) []byte {
	probe := data
	if len(probe) > 512 {
		probe = probe[:512]
	}
	if !looksUTF16LE(probe) {
		return data
	}
	start := bytes.IndexByte(data, '<')
	if start < 0 {
		return data
	}
	out := make([]byte, 0, len(data)-start)
	out = append(out, data[:start]...)
	for i := start; i < len(data); i++ {
		if data[i] == 0 {
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func looksUTF16LE(probe []byte) bool {
	if len(probe) < 64 {
		return false
	}
	head := probe
	if len(head) > 64 {
		head = head[:64]
	}
	if !alternatingRatio(head, 1.0) {
		return false
	}
	matches := 0
	for i := 0; i+1 < len(probe); i += 2 {
		if probe[i] != 0 && probe[i+1] == 0 {
			matches++
		}
	}
	return matches*2 >= 480
}

func alternatingRatio(head []byte, minRatio float64) bool {
	matches := 0
	pairs := 0
	for i := 0; i+1 < len(head); i += 2 {
		pairs++
		if head[i] != 0 && head[i+1] == 0 {
			matches++
		}
	}
	if pairs == 0 {
		return false
	}
	return float64(matches)/float64(pairs) >= minRatio
}
