// Package minor implements the lighter-fidelity readers of spec.md §4.8:
// ARAM, LZS, TRACS-MPS, RadiaCode XML, RadiaCode spectrogram, Micro-Raider,
// the spectroscopic daily file, and ScanData XML. Their bit-level grammars
// are explicitly out of scope (spec.md §1); each reader's job is to populate
// specmodel.SpectrumFile/Measurement correctly enough that pkg/reconcile's
// invariants hold, not to be byte-exact with any particular vendor dump.
package minor

import (
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
)

// A small, self-contained copy of pkg/n42's namespace-agnostic tree helpers:
// duplicated here rather than exported from pkg/n42 because the two packages
// have no other shared surface and a cross-import would exist only to save
// forty lines.

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

func child(node *xmlquery.Node, name string) *xmlquery.Node {
	cs := children(node, name)
	if len(cs) == 0 {
		return nil
	}
	return cs[0]
}

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
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
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

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

func parseFloats(s string) []float64 {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v != v {
			v = 0
		}
		out = append(out, v)
	}
	return out
}

// parseISO8601Time parses an ISO-8601 datetime, accepting an optional
// fractional-seconds part and either "Z" or a numeric offset.
func parseISO8601Time(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseDegMinSec parses a "DD MM SS.s H" (degrees, minutes, seconds, then N/S
// or E/W hemisphere letter) ASCII coordinate, per spec.md §4.8's Micro-Raider
// and ARAM GPS encodings, into a signed decimal degree value.
func parseDegMinSec(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return 0, false
	}
	deg, err1 := strconv.ParseFloat(fields[0], 64)
	min, err2 := strconv.ParseFloat(fields[1], 64)
	sec, err3 := strconv.ParseFloat(fields[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	val := deg + min/60 + sec/3600
	if len(fields) >= 4 {
		switch strings.ToUpper(fields[3]) {
		case "S", "W":
			val = -val
		}
	}
	return val, true
}
