package n42

import (
	"bytes"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

func parseEquationNode(t *testing.T, doc string) *xmlquery.Node {
	t.Helper()
	root, err := xmlquery.Parse(bytes.NewReader([]byte(doc)))
	require.NoError(t, err)
	return firstElement(root)
}

func TestParseEquationCalibrationOtherLowerEdgeForm(t *testing.T) {
	eq := parseEquationNode(t, `<Equation Model="Other" form="Lower edge"><Coefficients>0 10 20 30</Coefficients></Equation>`)
	cal, warn := parseEquationCalibration(eq, 3)
	require.Equal(t, "", warn)
	require.NotNil(t, cal)
	assert.Equal(t, specmodel.CalibrationLowerChannelEdge, cal.Kind())
}

func TestParseEquationCalibrationOtherWithoutLowerEdgeFormFallsBackToPolynomial(t *testing.T) {
	eq := parseEquationNode(t, `<Equation Model="Other"><Coefficients>0 3.0</Coefficients></Equation>`)
	cal, warn := parseEquationCalibration(eq, 4)
	require.Equal(t, "", warn)
	require.NotNil(t, cal)
	assert.Equal(t, specmodel.CalibrationPolynomial, cal.Kind())
}

func TestParseEquationCalibrationKnownModels(t *testing.T) {
	frf := parseEquationNode(t, `<Equation Model="FullRangeFraction"><Coefficients>0 3.0</Coefficients></Equation>`)
	cal, _ := parseEquationCalibration(frf, 4)
	require.NotNil(t, cal)
	assert.Equal(t, specmodel.CalibrationFullRangeFraction, cal.Kind())

	lce := parseEquationNode(t, `<Equation Model="LowerChannelEnergy"><Coefficients>0 10 20 30</Coefficients></Equation>`)
	cal, _ = parseEquationCalibration(lce, 3)
	require.NotNil(t, cal)
	assert.Equal(t, specmodel.CalibrationLowerChannelEdge, cal.Kind())
}
