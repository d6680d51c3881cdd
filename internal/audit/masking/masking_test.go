package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskReference(t *testing.T) {
	assert.Equal(t, "****0123", MaskReference("REF-2026-000123"))
	assert.Equal(t, "****", MaskReference("AB1"))
	assert.Equal(t, "", MaskReference("   "))
}

func TestMaskMetadata(t *testing.T) {
	in := map[string]any{
		"reference": "HMRC-778899",
		"status":    "filed",
		"  ":        "dropped",
		"filing": map[string]any{
			"filing_reference": "REF-2026-000123",
			"filed_by":         "alice",
		},
		"references": []any{"kept-as-is"},
		"amount":     200,
	}

	out := MaskMetadata(in)

	assert.Equal(t, "****8899", out["reference"])
	assert.Equal(t, "filed", out["status"])
	assert.NotContains(t, out, "  ")
	nested := out["filing"].(map[string]any)
	assert.Equal(t, "****0123", nested["filing_reference"])
	assert.Equal(t, "alice", nested["filed_by"])
	assert.Equal(t, []any{"kept-as-is"}, out["references"])
	assert.Equal(t, 200, out["amount"])
	assert.Equal(t, "HMRC-778899", in["reference"])
}
