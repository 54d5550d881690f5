// Package loader implements the format detection and dispatch engine of
// spec.md §2/§4.3/§4.9: it tries every known reader in file order against a
// byte stream and returns the first populated, reconciled aggregate.
package loader

import (
	"fmt"
	"os"

	"specfile/pkg/minor"
	"specfile/pkg/n42"
	"specfile/pkg/pcf"
	"specfile/pkg/reconcile"
	"specfile/pkg/specmodel"
)

type readFunc func([]byte) (*specmodel.SpectrumFile, bool, error)

type namedReader struct {
	format string
	load   readFunc
	n42ish bool
}

// readers is tried in order; N42 and PCF lead since they are the dominant
// formats (spec.md §2), the minor readers follow in the order spec.md §4.8
// lists them.
var readers = []namedReader{
	{"n42-2006", n42.Load2006, true},
	{"n42-2012", n42.Load2012, true},
	{"pcf", pcf.Load, false},
	{"aram", minor.LoadARAM, false},
	{"lzs", minor.LoadLZS, false},
	{"tracs-mps", minor.LoadTRACSMPS, false},
	{"radiacode-xml", minor.LoadRadiaCodeXML, false},
	{"radiacode-spectrogram", minor.LoadRadiaCodeSpectrogram, false},
	{"microraider", minor.LoadMicroRaider, false},
	{"dailyfile", minor.LoadDailyFile, false},
	{"scandata", minor.LoadScanData, false},
}

// Result is the outcome of a successful Load: the reconciled aggregate and
// the name of the reader that produced it.
type Result struct {
	File   *specmodel.SpectrumFile
	Format string
}

// Load tries every reader against data in order, per spec.md §4.3's dispatch
// contract: "tries readers in order until one succeeds; each reader is
// permitted to read, fail, and reset the input." Since every reader here
// only reads from the same in-memory slice, a failed attempt never mutates
// it — "rewind" is automatic. Not-candidate and Structural failures (§7)
// are indistinguishable from the caller's perspective: both just mean "try
// the next reader."
//
// The §4.9 UTF-16LE narrowing pass runs once, ahead of both N42 readers,
// since it only needs to run once regardless of which N42 variant matches.
func Load(data []byte) (*Result, error) {
	narrowed := n42.NormalizeUTF16LE(data)
	for _, r := range readers {
		input := data
		if r.n42ish {
			input = narrowed
		}
		f, ok, _ := r.load(input)
		if !ok {
			continue
		}
		if err := reconcile.Reconcile(f); err != nil {
			return nil, fmt.Errorf("loader: reconcile %s: %w", r.format, err)
		}
		return &Result{File: f, Format: r.format}, nil
	}
	return nil, fmt.Errorf("loader: no reader recognized this input")
}

// LoadFile reads path and dispatches it through Load.
func LoadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return Load(data)
}
