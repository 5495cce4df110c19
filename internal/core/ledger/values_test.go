package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		kind FieldKind
		a, b any
		want bool
	}{
		{"int vs numeric string", KindInteger, "3", 3, true},
		{"padded string", KindInteger, " 3 ", int64(3), true},
		{"float whole", KindInteger, 3.0, "3", true},
		{"json number", KindInteger, json.Number("4"), 4, true},
		{"blank vs nil", KindInteger, "", nil, true},
		{"blank vs zero", KindInteger, "", 0, false},
		{"different ints", KindInteger, "3", 4, false},
		{"text verbatim", KindText, "Alpha", "Alpha", true},
		{"text keeps spaces", KindText, "Alpha ", "Alpha", false},
		{"text of number", KindText, 3, "3", true},
		{"auto numeric", KindAuto, "10", 10, true},
		{"auto float", KindAuto, "1.5", 1.5, true},
		{"auto strings", KindAuto, "a", "b", false},
		{"auto bool", KindAuto, true, true, true},
		{"auto nil and blank", KindAuto, nil, "  ", true},
		{"whole decimal text", KindInteger, "3.0", 3, true},
		{"exponent is not an integer", KindInteger, "1e3", 1000, false},
		{"auto exponent vs integer", KindAuto, "1e3", 1000, false},
		{"past int64 vs min int64", KindAuto, "9223372036854775808", "-9223372036854775808", false},
		{"past int64 neighbours", KindAuto, "9223372036854775808", "9223372036854775809", false},
		{"past int64 integer kind", KindInteger, "9223372036854775808", "-9223372036854775808", false},
		{"float 2^63 vs min int64", KindInteger, float64(1 << 63), int64(-1 << 63), false},
		{"json number past int64", KindAuto, json.Number("9223372036854775808"), json.Number("9223372036854775809"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.kind, tt.a, tt.b))
		})
	}
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "7", NormalizeID(7))
	assert.Equal(t, "7", NormalizeID("7"))
	assert.Equal(t, "7", NormalizeID(7.0))
	assert.Equal(t, "7", NormalizeID(json.Number("7")))
	assert.Equal(t, "007", NormalizeID("007"), "text codes keep their padding")
	assert.Equal(t, "1e3", NormalizeID("1e3"))
	assert.NotEqual(t, NormalizeID("1e3"), NormalizeID("1000"))
	assert.Equal(t, "9223372036854775808", NormalizeID(uint64(1<<63)))
	assert.Equal(t, "9223372036854775808", NormalizeID(float64(1<<63)), "2^63 does not wrap")
	assert.Equal(t, "uc-7", NormalizeID(" uc-7 "))
	assert.Equal(t, "", NormalizeID(nil))
	assert.Equal(t, "7.5", NormalizeID(7.5))
}

func TestParseFieldKind(t *testing.T) {
	k, err := ParseFieldKind("select")
	require.NoError(t, err)
	assert.Equal(t, KindInteger, k)

	k, err = ParseFieldKind("")
	require.NoError(t, err)
	assert.Equal(t, KindAuto, k)

	_, err = ParseFieldKind("date")
	assert.Error(t, err)
	assert.Equal(t, "text", KindText.String())
}

func TestRefOrdering(t *testing.T) {
	refs := []Ref{NewRef("usecase", 10), NewRef("step", 3), NewRef("usecase", 9), NewRef("usecase", "x")}
	sortRefs(refs)
	assert.Equal(t, []Ref{
		{Kind: "step", ID: "3"},
		{Kind: "usecase", ID: "9"},
		{Kind: "usecase", ID: "10"},
		{Kind: "usecase", ID: "x"},
	}, refs)
	assert.Equal(t, "usecase:9", refs[1].String())
	assert.Equal(t, "9", NewRef("", 9).String())
}
