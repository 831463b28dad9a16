package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCollapsesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, "buy running shoes", Normalize("  Buy   Running\tShoes  "))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	once := Normalize("Buy Running Shoes")
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}
