package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompose_SequentialEquivalence проверяет ключевое свойство композиции:
// применение Compose(diff(base,mid), diff(mid,final)) к base дает final.
func TestCompose_SequentialEquivalence(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		mid   string
		final string
	}{
		{
			name:  "chained replaces",
			base:  `{"gender":"male","name":"Ivan"}`,
			mid:   `{"gender":"female","name":"Ivan"}`,
			final: `{"gender":"other","name":"Ivan"}`,
		},
		{
			name:  "add then replace",
			base:  `{"name":"Ivan"}`,
			mid:   `{"name":"Ivan","phone":"111"}`,
			final: `{"name":"Ivan","phone":"222"}`,
		},
		{
			name:  "add then remove cancels out",
			base:  `{"name":"Ivan"}`,
			mid:   `{"name":"Ivan","phone":"111"}`,
			final: `{"name":"Ivan"}`,
		},
		{
			name:  "remove then add becomes replace",
			base:  `{"name":"Ivan","phone":"111"}`,
			mid:   `{"name":"Ivan"}`,
			final: `{"name":"Ivan","phone":"222"}`,
		},
		{
			name:  "revert to base value",
			base:  `{"gender":"male"}`,
			mid:   `{"gender":"female"}`,
			final: `{"gender":"male"}`,
		},
		{
			name:  "child change then parent replace",
			base:  `{"address":{"city":"Riga","zip":"1010"}}`,
			mid:   `{"address":{"city":"Tallinn","zip":"1010"}}`,
			final: `{"address":{"city":"Vilnius"}}`,
		},
		{
			name:  "parent add then child change",
			base:  `{"name":"Ivan"}`,
			mid:   `{"name":"Ivan","address":{"city":"Riga"}}`,
			final: `{"name":"Ivan","address":{"city":"Tallinn"}}`,
		},
		{
			name:  "arrays replaced twice",
			base:  `{"tags":["a"]}`,
			mid:   `{"tags":["a","b"]}`,
			final: `{"tags":["c"]}`,
		},
		{
			name:  "independent fields across both patches",
			base:  `{"a":1,"b":2,"c":3}`,
			mid:   `{"a":10,"b":2,"c":3}`,
			final: `{"a":10,"b":20,"d":4}`,
		},
		{
			name:  "array root becomes scalar",
			base:  `[1,2]`,
			mid:   `[1,2,3]`,
			final: `"done"`,
		},
		{
			name:  "scalar root becomes object then field edit",
			base:  `5`,
			mid:   `{"a":1}`,
			final: `{"a":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p1, err := Diff([]byte(tt.base), []byte(tt.mid))
			require.NoError(t, err)
			p2, err := Diff([]byte(tt.mid), []byte(tt.final))
			require.NoError(t, err)

			composed := Compose(p1, p2)

			got, err := Apply([]byte(tt.base), composed)
			require.NoError(t, err)

			want, err := Canonical([]byte(tt.final))
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

// TestCompose_MatchesDirectDiff проверяет структурное равенство композиции
// прямому диффу base→final (с точностью до порядка независимых операций).
func TestCompose_MatchesDirectDiff(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		mid   string
		final string
	}{
		{
			name:  "gender changed twice",
			base:  `{"gender":"male","name":"Ivan"}`,
			mid:   `{"gender":"female","name":"Ivan"}`,
			final: `{"gender":"other","name":"Ivan"}`,
		},
		{
			name:  "disjoint edits",
			base:  `{"a":1,"b":2}`,
			mid:   `{"a":10,"b":2}`,
			final: `{"a":10,"b":20}`,
		},
		{
			name:  "added field survives second edit",
			base:  `{"a":1}`,
			mid:   `{"a":1,"b":2}`,
			final: `{"a":5,"b":3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p1, err := Diff([]byte(tt.base), []byte(tt.mid))
			require.NoError(t, err)
			p2, err := Diff([]byte(tt.mid), []byte(tt.final))
			require.NoError(t, err)

			direct, err := Diff([]byte(tt.base), []byte(tt.final))
			require.NoError(t, err)

			assert.ElementsMatch(t, direct, Compose(p1, p2))
		})
	}
}

func TestCompose_KindMerging(t *testing.T) {
	tests := []struct {
		name string
		p1   Patch
		p2   Patch
		want Patch
	}{
		{
			name: "add superseded by replace stays add",
			p1:   Patch{{Op: OpAdd, Path: "/a", Value: json.RawMessage(`1`)}},
			p2:   Patch{{Op: OpReplace, Path: "/a", Value: json.RawMessage(`2`)}},
			want: Patch{{Op: OpAdd, Path: "/a", Value: json.RawMessage(`2`)}},
		},
		{
			name: "add cancelled by remove",
			p1:   Patch{{Op: OpAdd, Path: "/a", Value: json.RawMessage(`1`)}},
			p2:   Patch{{Op: OpRemove, Path: "/a"}},
			want: Patch{},
		},
		{
			name: "remove then add becomes replace",
			p1:   Patch{{Op: OpRemove, Path: "/a"}},
			p2:   Patch{{Op: OpAdd, Path: "/a", Value: json.RawMessage(`2`)}},
			want: Patch{{Op: OpReplace, Path: "/a", Value: json.RawMessage(`2`)}},
		},
		{
			name: "replace then remove keeps remove",
			p1:   Patch{{Op: OpReplace, Path: "/a", Value: json.RawMessage(`1`)}},
			p2:   Patch{{Op: OpRemove, Path: "/a"}},
			want: Patch{{Op: OpRemove, Path: "/a"}},
		},
		{
			name: "descendant ops dropped by parent replace",
			p1: Patch{
				{Op: OpReplace, Path: "/a/b", Value: json.RawMessage(`1`)},
				{Op: OpAdd, Path: "/a/c", Value: json.RawMessage(`2`)},
			},
			p2:   Patch{{Op: OpReplace, Path: "/a", Value: json.RawMessage(`{"d":3}`)}},
			want: Patch{{Op: OpReplace, Path: "/a", Value: json.RawMessage(`{"d":3}`)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.p1, tt.p2))
		})
	}
}

func TestComposeAll(t *testing.T) {
	p1 := Patch{{Op: OpReplace, Path: "/a", Value: json.RawMessage(`1`)}}
	p2 := Patch{{Op: OpReplace, Path: "/a", Value: json.RawMessage(`2`)}}
	p3 := Patch{{Op: OpAdd, Path: "/b", Value: json.RawMessage(`3`)}}

	got := ComposeAll([]Patch{p1, p2, p3})
	want := Patch{
		{Op: OpReplace, Path: "/a", Value: json.RawMessage(`2`)},
		{Op: OpAdd, Path: "/b", Value: json.RawMessage(`3`)},
	}
	assert.Equal(t, want, got)
}

func TestDecode(t *testing.T) {
	data := []byte(`[{"op":"replace","path":"/a","value":1},{"op":"remove","path":"/b"}]`)

	p, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, OpReplace, p[0].Op)
	assert.Equal(t, "/b", p[1].Path)

	_, err = Decode([]byte(`[{"op":"move","path":"/a","from":"/b"}]`))
	assert.Error(t, err)
}
