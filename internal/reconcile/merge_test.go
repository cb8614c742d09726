package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/honorwall/roster-cli/internal/model"
)

func testPolicy() *MergePolicy {
	return NewMergePolicy([]string{"Unknown", "N/A", "None", "TBD"})
}

func TestMergePolicy_SafeAddition(t *testing.T) {
	p := testPolicy()
	class, ok := p.Classify("", "Bronze Star")
	assert.True(t, ok)
	assert.Equal(t, model.SafeAddition, class)
}

func TestMergePolicy_SentinelExistingIsSafeAddition(t *testing.T) {
	p := testPolicy()
	class, ok := p.Classify("Unknown", "1st Infantry Division")
	assert.True(t, ok)
	assert.Equal(t, model.SafeAddition, class)

	class, ok = p.Classify("n/a", "1944-06-06")
	assert.True(t, ok)
	assert.Equal(t, model.SafeAddition, class)
}

func TestMergePolicy_SentinelProposedIsNoOp(t *testing.T) {
	p := testPolicy()
	_, ok := p.Classify("1st Infantry Division", "Unknown")
	assert.False(t, ok)

	_, ok = p.Classify("", "N/A")
	assert.False(t, ok)
}

func TestMergePolicy_BothEmptyNoOp(t *testing.T) {
	p := testPolicy()
	_, ok := p.Classify("", "")
	assert.False(t, ok)

	_, ok = p.Classify("  ", "")
	assert.False(t, ok)
}

func TestMergePolicy_LiteralEqualityNoOp(t *testing.T) {
	p := testPolicy()
	_, ok := p.Classify("Jon Smith", "Jon Smith")
	assert.False(t, ok)
}

func TestMergePolicy_FormattingOnly(t *testing.T) {
	p := testPolicy()
	class, ok := p.Classify("Jon  Smith", "Jon Smith")
	assert.True(t, ok)
	assert.Equal(t, model.FormattingOnly, class)
}

func TestMergePolicy_FormattingOnlyNumeric(t *testing.T) {
	p := testPolicy()
	class, ok := p.Classify("1,024", "1024")
	assert.True(t, ok)
	assert.Equal(t, model.FormattingOnly, class)
}

func TestMergePolicy_FormattingOnlyDates(t *testing.T) {
	p := testPolicy()
	class, ok := p.Classify("06/06/1944", "1944-06-06")
	assert.True(t, ok)
	assert.Equal(t, model.FormattingOnly, class)

	class, ok = p.Classify("June 6, 1944", "1944-06-06")
	assert.True(t, ok)
	assert.Equal(t, model.FormattingOnly, class)
}

func TestMergePolicy_Conflict(t *testing.T) {
	p := testPolicy()
	class, ok := p.Classify("SGT", "CPL")
	assert.True(t, ok)
	assert.Equal(t, model.Conflict, class)

	class, ok = p.Classify("1944-06-06", "1944-06-07")
	assert.True(t, ok)
	assert.Equal(t, model.Conflict, class)
}

func TestMergePolicy_NilReceiverBlank(t *testing.T) {
	var p *MergePolicy
	assert.True(t, p.Blank(""))
	assert.False(t, p.Blank("Unknown"))
}
