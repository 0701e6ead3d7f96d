package token

import (
	"testing"

	"github.com/agentic-research/subreq/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_Multiple(t *testing.T) {
	s := "/ipsum/{{foo.body@$.things[*]}}/{{bar.body@$.things[*]}}/{{foo.body@$.stuff}}"
	got := Scan(s)
	require.Len(t, got, 3)

	assert.Equal(t, Expr{RequestID: "foo", Field: "body", Path: "$.things[*]"}, got[0].Expr)
	assert.Equal(t, Expr{RequestID: "bar", Field: "body", Path: "$.things[*]"}, got[1].Expr)
	assert.Equal(t, Expr{RequestID: "foo", Field: "body", Path: "$.stuff"}, got[2].Expr)

	for _, occ := range got {
		assert.False(t, occ.Exact)
		assert.Equal(t, occ.Raw, s[occ.Start:occ.End])
	}
	assert.Equal(t, "{{foo.body@$.things[*]}}", got[0].Raw)
	assert.Equal(t, 7, got[0].Start)
}

func TestScan_Exact(t *testing.T) {
	got := Scan("{{foo.body@$.stuff}}")
	require.Len(t, got, 1)
	assert.True(t, got[0].Exact)

	got = Scan("Who is number {{foo.body@$.Who}}?")
	require.Len(t, got, 1)
	assert.False(t, got[0].Exact)
}

func TestScan_Whitespace(t *testing.T) {
	got := Scan("{{ foo . body @ $.stuff }}")
	require.Len(t, got, 1)
	assert.Equal(t, Expr{RequestID: "foo", Field: "body", Path: "$.stuff"}, got[0].Expr)
	assert.True(t, got[0].Exact)
}

func TestScan_DottedRequestID(t *testing.T) {
	got := Scan("{{node.create.body@$.id}}")
	require.Len(t, got, 1)
	assert.Equal(t, Expr{RequestID: "node.create", Field: "body", Path: "$.id"}, got[0].Expr)
}

func TestScan_OpaqueField(t *testing.T) {
	got := Scan("{{foo.headers@$.etag}}")
	require.Len(t, got, 1)
	assert.Equal(t, "headers", got[0].Expr.Field)
}

func TestScan_MalformedStaysLiteral(t *testing.T) {
	for _, s := range []string{
		"{{foo.body@$.stuff",
		"{{foo.body $.stuff}}",
		"{{foo@$.stuff}}",
		"{{.body@$.stuff}}",
		"{{foo.body@}}",
		"{foo.body@$.stuff}",
		"plain text",
		"",
	} {
		assert.Empty(t, Scan(s), s)
	}
}

func TestScan_RecoversAfterMalformed(t *testing.T) {
	got := Scan("{{broken {{foo.body@$.a}}")
	require.Len(t, got, 1)
	assert.Equal(t, "$.a", got[0].Expr.Path)
	assert.False(t, got[0].Exact)
}

func TestScanValue_DocumentOrder(t *testing.T) {
	body := value.Object{
		{Key: "{{key.body@$.ignored}}", Value: value.String("{{a.body@$.x}}")},
		{Key: "list", Value: value.Array{
			value.Int(1),
			value.String("pre {{b.body@$.y}} post {{a.body@$.x}}"),
			value.Object{{Key: "deep", Value: value.String("{{c.body@$.z}}")}},
		}},
	}
	got := ScanValue(body)
	require.Len(t, got, 4)
	assert.Equal(t, "a", got[0].Expr.RequestID)
	assert.True(t, got[0].Exact)
	assert.Equal(t, "b", got[1].Expr.RequestID)
	assert.Equal(t, "a", got[2].Expr.RequestID)
	assert.Equal(t, "c", got[3].Expr.RequestID)
	assert.True(t, got[3].Exact)
}

func TestScanValue_NoStrings(t *testing.T) {
	assert.Empty(t, ScanValue(value.Array{value.Int(1), value.Null{}, value.Bool(true)}))
	assert.Empty(t, ScanValue(nil))
}

func TestExprString(t *testing.T) {
	assert.Equal(t, "{{foo.body@$.things[*]}}", Expr{RequestID: "foo", Field: "body", Path: "$.things[*]"}.String())
}
