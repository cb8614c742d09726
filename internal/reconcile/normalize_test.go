package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("   "))
	assert.Equal(t, "", Normalize("..--!!"))
}

func TestNormalize_Lowercases(t *testing.T) {
	assert.Equal(t, "john smith", Normalize("John Smith"))
	assert.Equal(t, "john smith", Normalize("JOHN SMITH"))
}

func TestNormalize_StripsPunctuation(t *testing.T) {
	assert.Equal(t, "john q smith", Normalize("John Q. Smith"))
	assert.Equal(t, "obrien", Normalize("O'Brien"))
	assert.Equal(t, "smith jr", Normalize("Smith, Jr."))
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "john smith", Normalize("  John   Smith  "))
	assert.Equal(t, "john smith", Normalize("John\tSmith"))
}

func TestNormalize_StripsDiacritics(t *testing.T) {
	assert.Equal(t, "jose garcia", Normalize("José García"))
	assert.Equal(t, "rene", Normalize("René"))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"John  Q. Smith", "  JOSÉ  ", "o'brien, jr.", ""}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_CaseWhitespaceInsensitive(t *testing.T) {
	assert.Equal(t, Normalize("john q smith"), Normalize("John  Q. Smith"))
}

func TestNormalizeEqual(t *testing.T) {
	assert.True(t, NormalizeEqual("Jon  Smith", "Jon Smith"))
	assert.False(t, NormalizeEqual("Jon Smith", "John Smith"))
}
