// Package reconcile implements the post-load reconciliation pass of spec.md
// §4.10: it assigns sample/detector indices, fuses sibling gamma/neutron
// records, deduplicates energy calibrations, infers a consistent instrument
// identity, and enforces the cross-record invariants every reader relies on.
//
// Reconcile is the only place callers need to invoke after a reader has
// populated a specmodel.SpectrumFile; readers themselves only need to get
// individual Measurements roughly right.
package reconcile

import (
	"fmt"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"specfile/pkg/specmodel"
)

// Reconcile runs the ordered reconciliation steps of spec.md §4.10 against f,
// mutating it in place. Per spec.md §7, exceptions during reconciliation are
// fatal for the file (they indicate a bug in the reader that populated the
// aggregate) — realized here as a returned error rather than a panic.
func Reconcile(f *specmodel.SpectrumFile) error {
	promoteOrClearNeutrons(f)
	assignDetectorNumbers(f)
	if err := assignSampleNumbers(f); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	recomputeSumsAndPassthrough(f)
	if err := dedupeCalibrations(f); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	assignIntercalNames(f)
	inferDetectorType(f)
	f.Reindex()
	return nil
}

// step 1: spec.md §4.10.1
func promoteOrClearNeutrons(f *specmodel.SpectrumFile) {
	anyNeutron := false
	for _, m := range f.Measurements {
		if m.ContainedNeutron {
			anyNeutron = true
			break
		}
	}
	for _, m := range f.Measurements {
		if anyNeutron {
			if !m.ContainedNeutron {
				m.ContainedNeutron = true
				m.NeutronCounts = nil
			}
		} else {
			m.ContainedNeutron = false
			m.NeutronCounts = nil
		}
		m.RecomputeNeutronSum()
	}
}

// step 2: spec.md §4.10.2 — first-occurrence order, case-sensitive names.
func assignDetectorNumbers(f *specmodel.SpectrumFile) {
	numbers := make(map[string]int)
	next := 0
	for _, m := range f.Measurements {
		n, ok := numbers[m.DetectorName]
		if !ok {
			n = next
			numbers[m.DetectorName] = n
			next++
		}
		m.DetectorNumber = n
	}
}

// step 3: spec.md §4.10.3 — dense sample-number assignment.
func assignSampleNumbers(f *specmodel.SpectrumFile) error {
	anyMissing := false
	for _, m := range f.Measurements {
		if m.SampleNumber == 0 && m.Source != specmodel.SourceBackground {
			anyMissing = true
			break
		}
	}

	if !anyMissing {
		return nil
	}

	// Propagate from neighbors by detector name so that (sample, detector)
	// stays unique: number sequentially, bumping the counter each time a
	// detector name repeats within the file-order walk.
	counters := make(map[string]int)
	used := make(map[specmodel.Key]bool)
	for _, m := range f.Measurements {
		if m.SampleNumber != 0 {
			used[m.Key()] = true
			continue
		}
		for {
			candidate := counters[m.DetectorName] + 1
			counters[m.DetectorName] = candidate
			k := specmodel.Key{Sample: candidate, Detector: m.DetectorName}
			if !used[k] {
				m.SampleNumber = candidate
				used[k] = true
				break
			}
		}
	}
	return nil
}

// step 4: spec.md §4.10.4
func recomputeSumsAndPassthrough(f *specmodel.SpectrumFile) {
	for _, m := range f.Measurements {
		sum := 0.0
		for _, c := range m.GammaCounts() {
			sum += c
		}
		m.GammaCountSum = sum
		m.RecomputeNeutronSum()
	}

	samples := f.SortedSampleNumbers()
	if len(samples) <= 1 {
		f.Passthrough = false
		return
	}

	byShort := 0
	realTimeBySample := make(map[int]float64)
	countBySample := make(map[int]int)
	for _, m := range f.Measurements {
		realTimeBySample[m.SampleNumber] += m.RealTime
		countBySample[m.SampleNumber]++
	}
	for _, s := range samples {
		avg := realTimeBySample[s]
		if countBySample[s] > 0 {
			avg /= float64(countBySample[s])
		}
		if avg < 5 {
			byShort++
		}
	}
	f.Passthrough = float64(byShort) >= float64(len(samples))/2.0
}

// step 5: spec.md §4.10.5 — dedup calibrations via a per-file LRU cache
// keyed on EnergyCalibration.CacheKey(), the blake2b digest of the
// serialized (kind, coeffs, deviation pairs, channel count) tuple.
func dedupeCalibrations(f *specmodel.SpectrumFile) error {
	cache, err := lru.New[[32]byte, *specmodel.EnergyCalibration](4096)
	if err != nil {
		return fmt.Errorf("dedupeCalibrations: create cache: %w", err)
	}
	for _, m := range f.Measurements {
		cal := m.Calibration()
		if cal == nil || !cal.Valid() {
			continue
		}
		key := cal.CacheKey()
		if shared, ok := cache.Get(key); ok {
			m.ForceEnergyCalibration(shared)
			continue
		}
		cache.Add(key, cal)
	}
	return nil
}

// step 6: spec.md §4.10.6 — intercal synthetic detector naming.
func assignIntercalNames(f *specmodel.SpectrumFile) {
	type groupKey struct {
		name      string
		startUnix int64
	}
	groups := make(map[groupKey][]*specmodel.Measurement)
	for _, m := range f.Measurements {
		if m.StartTime.IsZero() {
			continue
		}
		k := groupKey{name: m.DetectorName, startUnix: m.StartTime.Unix()}
		groups[k] = append(groups[k], m)
	}

	for _, ms := range groups {
		if len(ms) < 2 {
			continue
		}
		// Partition by calibration cache key; if more than one distinct
		// calibration shares this (name, start-time, real/live-time-close)
		// group, the partition with the lowest cache key keeps the plain name
		// and every other measurement gets the _intercal_ suffix.
		byCal := make(map[[32]byte][]*specmodel.Measurement)
		for _, m := range ms {
			var key [32]byte
			if c := m.Calibration(); c != nil {
				key = c.CacheKey()
			}
			byCal[key] = append(byCal[key], m)
		}
		if len(byCal) < 2 {
			continue
		}
		// Only measurements whose real/live times agree within 10ms across
		// the whole group are the same physical acquisition reported under
		// two calibrations; anything else is coincidence of name/start-time
		// and must not be renamed.
		ref := ms[0]
		allClose := true
		for _, m := range ms[1:] {
			if math.Abs(m.RealTime-ref.RealTime) > 0.01 || math.Abs(m.LiveTime-ref.LiveTime) > 0.01 {
				allClose = false
				break
			}
		}
		if !allClose {
			continue
		}
		ids := make([][32]byte, 0, len(byCal))
		for k := range byCal {
			ids = append(ids, k)
		}
		sort.Slice(ids, func(i, j int) bool { return string(ids[i][:]) < string(ids[j][:]) })
		for i, k := range ids {
			if i == 0 {
				continue // first partition keeps the plain detector name
			}
			suffix := fmt.Sprintf("_intercal_%x", k[:4])
			for _, m := range byCal[k] {
				m.DetectorName = m.DetectorName + suffix
			}
		}
	}
}

// step 7: spec.md §4.10.7
func inferDetectorType(f *specmodel.SpectrumFile) {
	f.DetectorTypeHint = inferFromStrings(f.InstrumentManufacturer, f.InstrumentModel)
	if f.DetectorTypeHint == specmodel.DetectorUnknown {
		if hint := inferFromDetectorNames(f.DetectorNames()); hint != specmodel.DetectorUnknown {
			f.DetectorTypeHint = hint
		}
	}
}
