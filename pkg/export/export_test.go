package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderOrdersCellsByHeader(t *testing.T) {
	data := Dataset{
		Headers: []string{"Time", "Patient", "Email"},
		Rows:    [][]string{{"09:00", "Ana Silva", "ana@example.com"}},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Time,Patient,Email\n09:00,Ana Silva,ana@example.com\n", string(out))
}

func TestCSVRenderRejectsRaggedRow(t *testing.T) {
	data := Dataset{
		Headers: []string{"Time", "Patient"},
		Rows:    [][]string{{"09:00"}},
	}

	_, err := NewCSVExporter().Render(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRenderProducesDocument(t *testing.T) {
	data := Dataset{
		Title:   "Day plan for Dr. Reyes on 2026-09-01",
		Headers: []string{"Time", "Patient", "Email"},
		Weights: []float64{1, 2, 3},
		Rows:    [][]string{{"09:00", "Ana Silva", "ana@example.com"}},
	}

	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFollowWeights(t *testing.T) {
	widths := columnWidths(180, 3, []float64{1, 2, 3})
	require.Len(t, widths, 3)
	assert.InDelta(t, 30, widths[0], 0.001)
	assert.InDelta(t, 60, widths[1], 0.001)
	assert.InDelta(t, 90, widths[2], 0.001)
}

func TestColumnWidthsFallBackToEqual(t *testing.T) {
	for _, weights := range [][]float64{nil, {1, 2}, {1, -1, 1}} {
		widths := columnWidths(180, 3, weights)
		require.Len(t, widths, 3)
		for _, w := range widths {
			assert.InDelta(t, 60, w, 0.001)
		}
	}
}
