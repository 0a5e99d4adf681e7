package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iris-se/iris/sources"
)

func available(source string, data sources.Payload) sources.Result {
	return sources.Result{
		Source:    source,
		Available: true,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func TestBuildContextEmpty(t *testing.T) {
	assert.Equal(t, "Ingen kontextdata tillgänglig från källor.", BuildContext(nil))
	assert.Equal(t, "Ingen kontextdata tillgänglig från källor.", BuildContext(sources.Collected{}))
}

func TestBuildContextSkipsUnavailableSources(t *testing.T) {
	collected := sources.Collected{
		"omx": {Source: "omx", Available: false, Error: "nere"},
		"scb": {Source: "scb", Available: true, Error: "delvis fel", Data: sources.Payload{"summary": "x"}},
	}
	assert.Equal(t, "Ingen kontextdata tillgänglig från källor.", BuildContext(collected))
}

func TestBuildContextOMX(t *testing.T) {
	collected := sources.Collected{
		"omx": available("omx", sources.Payload{
			"price":  2450.5,
			"change": 12.3,
		}),
	}

	got := BuildContext(collected)
	assert.Contains(t, got, "=== OMX ===")
	assert.Contains(t, got, "OMX Index: 2450.5 SEK")
	assert.Contains(t, got, "Förändring: 12.3")
}

func TestBuildContextSCB(t *testing.T) {
	collected := sources.Collected{
		"scb": available("scb", sources.Payload{
			"summary": "SCB-data för befolkning och ekonomi",
			"data": map[string]interface{}{
				"befolkning": "10.5 miljoner invånare (2024)",
				"inflation":  "3.1% årlig inflation",
			},
		}),
	}

	got := BuildContext(collected)
	assert.Contains(t, got, "=== SCB ===")
	assert.Contains(t, got, "SCB-data för befolkning och ekonomi")
	assert.Contains(t, got, "befolkning: 10.5 miljoner invånare (2024)")
	assert.Contains(t, got, "inflation: 3.1% årlig inflation")
}

func TestBuildContextNewsTruncatedToThree(t *testing.T) {
	collected := sources.Collected{
		"svenska_nyheter": available("svenska_nyheter", sources.Payload{
			"headlines": []string{"Ett", "Två", "Tre", "Fyra", "Fem"},
		}),
	}

	got := BuildContext(collected)
	assert.Contains(t, got, "Senaste nyheterna:")
	assert.Contains(t, got, "- Ett")
	assert.Contains(t, got, "- Tre")
	assert.NotContains(t, got, "- Fyra")
}

func TestBuildContextNewsFromCacheShape(t *testing.T) {
	// JSON round-trips turn []string into []interface{}
	collected := sources.Collected{
		"svenska_nyheter": available("svenska_nyheter", sources.Payload{
			"headlines": []interface{}{"Ett", "Två"},
		}),
	}

	got := BuildContext(collected)
	assert.Contains(t, got, "- Ett")
	assert.Contains(t, got, "- Två")
}

func TestBuildContextSMHI(t *testing.T) {
	collected := sources.Collected{
		"smhi": available("smhi", sources.Payload{
			"forecast":    "Delvis molnigt, 12°C i Stockholm",
			"temperature": 12,
		}),
	}

	got := BuildContext(collected)
	assert.Contains(t, got, "=== SMHI ===")
	assert.Contains(t, got, "Väder: Delvis molnigt, 12°C i Stockholm")
	assert.Contains(t, got, "Temperatur: 12°C")
}

func TestBuildContextUnknownSourceUsesSummary(t *testing.T) {
	collected := sources.Collected{
		"riksbanken": available("riksbanken", sources.Payload{
			"summary": "Styrräntan oförändrad",
		}),
	}

	got := BuildContext(collected)
	assert.Contains(t, got, "=== RIKSBANKEN ===")
	assert.Contains(t, got, "Styrräntan oförändrad")
}

func TestBuildContextDeterministicOrder(t *testing.T) {
	collected := sources.Collected{
		"smhi": available("smhi", sources.Payload{"forecast": "Sol"}),
		"omx":  available("omx", sources.Payload{"price": 2450.5}),
	}

	got := BuildContext(collected)
	omxIdx := strings.Index(got, "=== OMX ===")
	smhiIdx := strings.Index(got, "=== SMHI ===")
	assert.True(t, omxIdx >= 0 && smhiIdx >= 0)
	assert.Less(t, omxIdx, smhiIdx, "sources should be ordered by name")
}
