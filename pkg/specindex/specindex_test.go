package specindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFromFile(t *testing.T) {
	f := specmodel.New()
	f.UUID = "abc-123"
	f.InstrumentID = "detective-x"
	f.Passthrough = true
	m := specmodel.NewMeasurement()
	m.DetectorName = "Aa1"
	m.SetGammaCounts([]float64{1, 2, 3}, 1, 1)
	f.AddMeasurement(m)
	f.Reindex()

	f.ParseWarnings = []string{"bad calibration"}

	rec := FromFile("sample.n42", "n42-2006", f, []byte("raw bytes"))
	assert.Equal(t, "sample.n42", rec.Filename)
	assert.Equal(t, "n42-2006", rec.Format)
	assert.Equal(t, "detective-x", rec.InstrumentID)
	assert.Equal(t, 1, rec.MeasurementCount)
	assert.Equal(t, []string{"Aa1"}, rec.DetectorNames)
	assert.True(t, rec.Passthrough)
	assert.Equal(t, 1, rec.ParseWarningCount)
}

func TestStoreInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := Record{
		Filename:               "a.pcf",
		Format:                 "pcf",
		InstrumentManufacturer: "FLIR",
		InstrumentModel:        "identiFINDER",
		InstrumentID:           "identiFINDER-1",
		UUID:                   "u-1",
		MeasurementCount:       3,
		DetectorNames:          []string{"Aa1", "Ab1"},
		Passthrough:            false,
		AnyNeutron:             true,
		ParseWarningCount:      2,
		RawData:                []byte("the quick brown fox jumps over the lazy dog"),
	}
	id, err := s.Insert(ctx, rec)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.Filename, got.Filename)
	assert.Equal(t, rec.Format, got.Format)
	assert.Equal(t, rec.InstrumentID, got.InstrumentID)
	assert.Equal(t, rec.InstrumentManufacturer, got.InstrumentManufacturer)
	assert.Equal(t, rec.InstrumentModel, got.InstrumentModel)
	assert.Equal(t, rec.DetectorNames, got.DetectorNames)
	assert.True(t, got.AnyNeutron)
	assert.Equal(t, rec.ParseWarningCount, got.ParseWarningCount)
	assert.Equal(t, rec.RawData, got.RawData)
}

func TestStoreListByFormat(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, Record{Filename: "a.n42", Format: "n42-2006", RawData: []byte("x")})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Record{Filename: "b.n42", Format: "n42-2006", RawData: []byte("y")})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Record{Filename: "c.pcf", Format: "pcf", RawData: []byte("z")})
	require.NoError(t, err)

	recs, err := s.ListByFormat(ctx, "n42-2006")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "n42-2006", r.Format)
		assert.Nil(t, r.RawData)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), 999)
	assert.Error(t, err)
}
