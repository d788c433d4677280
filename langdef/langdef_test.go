package langdef_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jibjab-lang/jj/langdef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_CanonicalSpellings(t *testing.T) {
	ld := langdef.Default()

	assert.Equal(t, "~>frob", ld.Keywords.Print)
	assert.Equal(t, "~>spew", ld.Keywords.Log)
	assert.Equal(t, "~>snag", ld.Keywords.Snag)
	assert.Equal(t, "~>kaboom", ld.Keywords.Throw)

	assert.Equal(t, "<~loop{", ld.Blocks.Loop)
	assert.Equal(t, "<~>>", ld.Blocks.End)
	assert.Equal(t, ">>", ld.Blocks.BlockSuffix)

	assert.Equal(t, "<+>", ld.Operators.Add.Symbol)
	assert.Equal(t, "+", ld.Operators.Add.Emit)
	assert.Equal(t, "<lte>", ld.Operators.Lte.Symbol)
	assert.Equal(t, "<=", ld.Operators.Lte.Emit)

	assert.Equal(t, "#", ld.Literals.NumberPrefix)
	assert.Equal(t, `"`, ld.Literals.StringDelim)
	assert.Equal(t, "@@", ld.Literals.Comment)
}

func TestLoad_RoundTrip(t *testing.T) {
	const doc = `{
		"keywords": {"print": "PR", "snag": "SN", "nil": "nada"},
		"blocks": {"loop": "LOOP{", "end": "END", "blockSuffix": "}}"},
		"operators": {"add": {"symbol": "plus", "emit": "+"}},
		"structure": {"action": "::", "range": "..", "colon": ":"},
		"syntax": {"emit": "emit", "val": "val"},
		"literals": {"numberPrefix": "$", "stringDelim": "'", "comment": "##"}
	}`
	path := filepath.Join(t.TempDir(), "lang.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	ld, err := langdef.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PR", ld.Keywords.Print)
	assert.Equal(t, "nada", ld.Keywords.Nil)
	assert.Equal(t, "LOOP{", ld.Blocks.Loop)
	assert.Equal(t, "}}", ld.Blocks.BlockSuffix)
	assert.Equal(t, "plus", ld.Operators.Add.Symbol)
	assert.Equal(t, "+", ld.Operators.Add.Emit)
	assert.Equal(t, "$", ld.Literals.NumberPrefix)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := langdef.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
	_, err := langdef.Load(path)
	assert.Error(t, err)
}
