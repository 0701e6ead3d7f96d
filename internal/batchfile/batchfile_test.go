package batchfile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agentic-research/subreq/api"
	"github.com/agentic-research/subreq/internal/value"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchJSON = `[
  {
    "uri": "/ipsum/{{foo.body@$.things[*]}}",
    "action": "sing",
    "requestId": "oop",
    "headers": {"Accept": "application/json"},
    "body": {"z": "{{foo.body@$.stuff}}", "a": 1.5, "n": 3},
    "waitFor": ["foo"]
  },
  {"uri": "/dolor", "requestId": "oof", "body": "bar"}
]`

const batchYAML = `
- uri: /ipsum/{{foo.body@$.things[*]}}
  action: sing
  requestId: oop
  headers:
    Accept: application/json
  body:
    z: "{{foo.body@$.stuff}}"
    a: 1.5
    n: 3
  waitFor: [foo]
- uri: /dolor
  requestId: oof
  body: bar
`

func TestLoadBatch(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "batch.json", []byte(batchJSON), 0o644))
	require.NoError(t, util.WriteFile(fs, "batch.yml", []byte(batchYAML), 0o644))

	fromJSON, err := LoadBatch(fs, "batch.json")
	require.NoError(t, err)
	fromYAML, err := LoadBatch(fs, "batch.yml")
	require.NoError(t, err)

	for name, batch := range map[string][]api.Subrequest{"json": fromJSON, "yaml": fromYAML} {
		t.Run(name, func(t *testing.T) {
			require.Len(t, batch, 2)
			first := batch[0]
			assert.Equal(t, "/ipsum/{{foo.body@$.things[*]}}", first.URI)
			assert.Equal(t, "sing", first.Action)
			assert.Equal(t, "oop", first.RequestID)
			assert.Equal(t, map[string]string{"Accept": "application/json"}, first.Headers)
			assert.Equal(t, []string{"foo"}, first.WaitFor)
			assert.False(t, first.Resolved)

			obj, ok := first.Body.(value.Object)
			require.True(t, ok)
			assert.Equal(t, []string{"z", "a", "n"}, obj.Keys())
			n, _ := obj.Get("n")
			assert.Equal(t, value.Int(3), n)
			a, _ := obj.Get("a")
			assert.Equal(t, value.Float(1.5), a)

			assert.Equal(t, value.String("bar"), batch[1].Body)
		})
	}
}

func TestLoadBatch_Errors(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "dup.json", []byte(`[{"uri":"/a","requestId":"x"},{"uri":"/b","requestId":"x"}]`), 0o644))
	require.NoError(t, util.WriteFile(fs, "anon.yaml", []byte("- uri: /a\n"), 0o644))
	require.NoError(t, util.WriteFile(fs, "bad.json", []byte(`{"uri":`), 0o644))
	require.NoError(t, util.WriteFile(fs, "bad.yaml", []byte("- [unclosed\n"), 0o644))

	_, err := LoadBatch(fs, "dup.json")
	assert.ErrorIs(t, err, ErrDuplicateRequestID)

	_, err = LoadBatch(fs, "anon.yaml")
	assert.ErrorIs(t, err, ErrMissingRequestID)

	_, err = LoadBatch(fs, "bad.json")
	assert.Error(t, err)

	_, err = LoadBatch(fs, "bad.yaml")
	assert.Error(t, err)

	_, err = LoadBatch(fs, "missing.json")
	assert.Error(t, err)
}

func TestLoadResponses(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "responses.json", []byte(`[
		{"headers": {"Content-ID": "<foo>"}, "body": {"things": ["what"], "stuff": 42}},
		{"id": "bar#1", "rawBody": "<html>not json</html>"}
	]`), 0o644))
	require.NoError(t, util.WriteFile(fs, "responses.yaml", []byte(`
- id: foo
  body:
    things: [what]
    stuff: 42
`), 0o644))

	resps, err := LoadResponses(fs, "responses.json")
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.Equal(t, "foo", resps[0].Identifier())
	assert.JSONEq(t, `{"things":["what"],"stuff":42}`, string(resps[0].Body))
	assert.Equal(t, "bar#1", resps[1].Identifier())
	assert.Equal(t, "<html>not json</html>", string(resps[1].Body))

	resps, err = LoadResponses(fs, "responses.yaml")
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, `{"things":["what"],"stuff":42}`, string(resps[0].Body))
}

func TestWriteBatch_JSON(t *testing.T) {
	batch := []api.Subrequest{{
		URI:       "/a/b",
		RequestID: "oop",
		Body:      value.Object{{Key: "z", Value: value.Int(42)}, {Key: "a", Value: value.String("x")}},
		Resolved:  true,
	}}

	var compact bytes.Buffer
	require.NoError(t, WriteBatch(&compact, batch, FormatJSON, false))
	assert.Equal(t, `[{"uri":"/a/b","requestId":"oop","body":{"z":42,"a":"x"},"_resolved":true}]`+"\n", compact.String())

	var indented bytes.Buffer
	require.NoError(t, WriteBatch(&indented, batch, FormatJSON, true))
	assert.Contains(t, indented.String(), "\n  {\n")
	assert.JSONEq(t, compact.String(), indented.String())

	var empty bytes.Buffer
	require.NoError(t, WriteBatch(&empty, nil, FormatJSON, false))
	assert.Equal(t, "[]\n", empty.String())
}

func TestWriteBatch_YAMLRoundTrip(t *testing.T) {
	batch, err := DecodeBatch([]byte(batchJSON), FormatJSON)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteBatch(&buf, batch, FormatYAML, true))
	assert.True(t, strings.HasPrefix(buf.String(), "- uri: "))

	back, err := DecodeBatch(buf.Bytes(), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, batch, back)
}

func TestFloatsStayFloats(t *testing.T) {
	batch, err := DecodeBatch([]byte("- uri: /p\n  requestId: p\n  body:\n    price: 1.0\n    count: 1\n"), FormatYAML)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	obj := batch[0].Body.(value.Object)
	price, _ := obj.Get("price")
	assert.Equal(t, value.Float(1), price)
	count, _ := obj.Get("count")
	assert.Equal(t, value.Int(1), count)

	out := []api.Subrequest{{
		URI:       "/p",
		RequestID: "p",
		Body:      value.Object{{Key: "price", Value: value.Float(42)}},
	}}

	var js bytes.Buffer
	require.NoError(t, WriteBatch(&js, out, FormatJSON, false))
	assert.Contains(t, js.String(), `{"price":42.0}`)
	back, err := DecodeBatch(js.Bytes(), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, out, back)

	var ym bytes.Buffer
	require.NoError(t, WriteBatch(&ym, out, FormatYAML, true))
	assert.Contains(t, ym.String(), "price: 42.0\n")
	back, err = DecodeBatch(ym.Bytes(), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, out, back)
}

func TestYAMLScalars(t *testing.T) {
	v, err := toJSON([]byte(`
s: "42"
i: 42
f: 4.6692
b: false
n: ~
big: 99999999999999999999
when: 2001-12-14
`), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, `{"s":"42","i":42,"f":4.6692,"b":false,"n":null,"big":100000000000000000000.0,"when":"2001-12-14"}`, string(v))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("toml")
	assert.Error(t, err)

	assert.Equal(t, FormatYAML, FormatOf("x.yaml"))
	assert.Equal(t, FormatJSON, FormatOf("x"))
}
