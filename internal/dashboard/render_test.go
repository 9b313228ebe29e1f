package dashboard

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carddash/internal/filter"
	"carddash/pkg/models"
)

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	all := append(scenario(), mk(cardSpec{rarity: "R", number: "BP01-001", year: "2023", character: "Zetton", feature: "Kaiju"}))
	v := build(all, filter.Criteria{})

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, v))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "Rarity distribution")
	assert.Contains(t, out, "Cards per publication year")
	assert.Contains(t, out, "Zetton")
}

func TestRenderHTMLEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, build([]models.Card{}, filter.Criteria{})))
	assert.Contains(t, buf.String(), "No data")
}
