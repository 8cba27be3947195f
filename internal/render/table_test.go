package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/nutrition"
)

func TestTableRendersPNG(t *testing.T) {
	items := []nutrition.Result{
		{Name: "гречка", Grams: 200, Calories: 264, ProteinG: 9, FatG: 2.2, CarbsG: 50.8, FiberG: 5.4},
		{Name: "куриная грудка", Grams: 150, Calories: 248, ProteinG: 46.5, FatG: 5.4},
	}
	total := &nutrition.Result{Grams: 350, Calories: 512, ProteinG: 55.5, FatG: 7.6, CarbsG: 50.8, FiberG: 5.4}

	withTotal, err := Table(items, total)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(withTotal))
	require.NoError(t, err)
	assert.Equal(t, 4*rowHeight+2*margin, img.Bounds().Dy())
	assert.Greater(t, img.Bounds().Dx(), 2*margin)

	withoutTotal, err := Table(items, nil)
	require.NoError(t, err)
	img2, err := png.Decode(bytes.NewReader(withoutTotal))
	require.NoError(t, err)
	assert.Equal(t, 3*rowHeight+2*margin, img2.Bounds().Dy())

	// header cell is filled
	r, g, b, _ := img.At(margin+2, margin+2).RGBA()
	assert.Equal(t, [3]uint32{0x2e2e, 0x7d7d, 0x3232}, [3]uint32{r, g, b})
}

func TestTableEmpty(t *testing.T) {
	_, err := Table(nil, nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "рис", truncate("рис", 5))
	assert.Equal(t, "абвг…", truncate("абвгдеж", 5))
}

func TestFormatGrams(t *testing.T) {
	assert.Equal(t, "5.4", formatGrams(5.44))
	assert.Equal(t, "0.0", formatGrams(0))
}
