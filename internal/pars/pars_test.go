package pars

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templateText = `-1 -1 0.05 0.50 0.1 6.6 10.15
0.05 0.05 5 WFC475W,WFC814W
F475W 21.4 31.5
F814W 20.7 30.9
1
21.5 24.0 F475W
21.0 23.8 F814W
0
71
6.60 6.70
6.70 6.80
`

const resolutionText = `34
6.60 6.70
6.70 6.80
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadBaseline(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pars", templateText)

	d, err := ReadBaseline(p)
	require.NoError(t, err)
	assert.Equal(t, Depths{BlueFaint: 21.5, BlueBright: 24.0, RedFaint: 21.0, RedBright: 23.8}, d)
	assert.Equal(t, [4]float64{21.5, 24.0, 21.0, 23.8}, d.Array())
}

func TestReadBaseline_MinimalFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pars", "a\nb\nc\nd\ne\n21.5 24.0 x y\n21.0 23.8 x y\n")

	d, err := ReadBaseline(p)
	require.NoError(t, err)
	assert.Equal(t, Depths{BlueFaint: 21.5, BlueBright: 24.0, RedFaint: 21.0, RedBright: 23.8}, d)
}

func TestReadBaseline_TooShort(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pars", "a\nb\nc\nd\ne\n21.5 24.0\n")

	_, err := ReadBaseline(p)
	require.Error(t, err)
	var fe *FormatError
	require.True(t, errors.As(err, &fe), "expected FormatError, got %T", err)
	assert.Equal(t, p, fe.Path)
	assert.Equal(t, 6, fe.Line)
}

func TestReadBaseline_NonNumericField(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pars", "a\nb\nc\nd\ne\n21.5 24.0\n21.0 deep\n")

	_, err := ReadBaseline(p)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 6, fe.Line)
	assert.Equal(t, 1, fe.Field)
	var ne *strconv.NumError
	assert.True(t, errors.As(err, &ne), "parse error should be wrapped")
}

func TestReadBaseline_NonFiniteDepth(t *testing.T) {
	for name, tc := range map[string]struct {
		content string
		line    int
		field   int
	}{
		"nan faint":   {"a\nb\nc\nd\ne\nNaN 24.0 F475W\n21.0 23.8 F814W\n", 5, 0},
		"inf bright":  {"a\nb\nc\nd\ne\n21.5 24.0 F475W\n21.0 +Inf F814W\n", 6, 1},
		"-inf bright": {"a\nb\nc\nd\ne\n21.5 -inf F475W\n21.0 23.8 F814W\n", 5, 1},
	} {
		t.Run(name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "pars", tc.content)

			_, err := ReadBaseline(p)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
			assert.Equal(t, tc.line, fe.Line)
			assert.Equal(t, tc.field, fe.Field)
			assert.Contains(t, err.Error(), "not finite")
		})
	}
}

func TestReadBaseline_MissingFile(t *testing.T) {
	_, err := ReadBaseline(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFilterNames(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pars", templateText)

	f, err := FilterNames(p)
	require.NoError(t, err)
	assert.Equal(t, Filters{Blue: "F475W", Red: "F814W"}, f)
	assert.Equal(t, "F475W,F814W", f.String())
}

func TestMatchFilters(t *testing.T) {
	tests := []struct {
		line string
		want Filters
		ok   bool
	}{
		{line: "F475W,F814W,extra", want: Filters{Blue: "F475W", Red: "F814W"}, ok: true},
		{line: "0.05 0.05 5 WFC606W,WFC814W", want: Filters{Blue: "F606W", Red: "F814W"}, ok: true},
		{line: "UVIS336W, UVIS814W", want: Filters{Blue: "F336W", Red: "F814W"}, ok: true},
		{line: "21.5 24.0 F475W", ok: false},
		{line: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := MatchFilters(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestFilterNames_NotFound(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "pars", "a\nb\n21.5 24.0\n")

	_, err := FilterNames(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFiltersNotFound))
	assert.Contains(t, err.Error(), p)
}

func TestGenerate_SameDepthsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "pars", templateText)
	res := writeFile(t, dir, "sfh_fullres", resolutionText)
	out := filepath.Join(dir, "calcparsTEST000")

	base, err := ReadBaseline(tmpl)
	require.NoError(t, err)
	require.NoError(t, Generate(tmpl, out, base, res))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	gotLines := strings.Split(string(got), "\n")
	tmplLines := strings.Split(templateText, "\n")

	// Header, depth lines and trailer are reproduced exactly.
	assert.Equal(t, tmplLines[:9], gotLines[:9])
	// The template's own resolution block is replaced by the fragment.
	assert.Equal(t, strings.Join(tmplLines[:9], "\n")+"\n"+resolutionText, string(got))
}

func TestGenerate_ReplacesOnlyLeadingDepthFields(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "pars", templateText)
	res := writeFile(t, dir, "sfh_fullres", resolutionText)
	out := filepath.Join(dir, "calcparsTEST001")

	d := Depths{BlueFaint: 21.5, BlueBright: 23.75, RedFaint: 21.0, RedBright: 23.8 + 5*0.05}
	require.NoError(t, Generate(tmpl, out, d, res))

	f, err := Open(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"21.5", "23.75", "F475W"}, f.Blue.Fields)
	assert.Equal(t, []string{"21.0", "24.05", "F814W"}, f.Red.Fields)
	assert.InDelta(t, 24.05, f.Depths().RedBright, 1e-9)
	assert.Len(t, f.Header, 5)
	assert.Equal(t, []string{"0", "71"}, f.Trailer)
}

func TestRender_KeepsCRLF(t *testing.T) {
	f, err := Parse(strings.NewReader("h0\r\n20 22 a\r\n19 21 b\r\nt\r\nold block\r\n"), Layout{HeaderLines: 1, TrailerLines: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"h0"}, f.Header)
	assert.Equal(t, []string{"a"}, f.Blue.Fields[2:])

	var b strings.Builder
	require.NoError(t, f.Render(&b, Depths{BlueFaint: 20, BlueBright: 22.25, RedFaint: 19, RedBright: 21}, strings.NewReader("2\r\n6.6 6.7\r\n")))
	assert.Equal(t, "h0\r\n20.0 22.25 a\r\n19.0 21.0 b\r\nt\r\n2\r\n6.6 6.7\r\n", b.String())
}

func TestRender_UnterminatedLastLine(t *testing.T) {
	f, err := Parse(strings.NewReader("h\n20 22 a\n19 21 b"), Layout{HeaderLines: 1})
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, f.Render(&b, f.Depths(), nil))
	assert.Equal(t, "h\n20.0 22.0 a\n19.0 21.0 b\n", b.String())
}

func TestParse_CustomLayout(t *testing.T) {
	f, err := Parse(strings.NewReader("h\n20 22 a\n19 21 b\nt\nrest\n"), Layout{HeaderLines: 1, TrailerLines: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"h"}, f.Header)
	assert.Equal(t, []string{"t"}, f.Trailer)
	assert.Equal(t, []string{"rest"}, f.Rest)
	assert.Equal(t, Depths{BlueFaint: 20, BlueBright: 22, RedFaint: 19, RedBright: 21}, f.Depths())
}

func TestLayout_Validate(t *testing.T) {
	assert.NoError(t, DefaultLayout.Validate())
	assert.Error(t, Layout{HeaderLines: -1}.Validate())
	assert.Error(t, Layout{TrailerLines: -2}.Validate())
	assert.Equal(t, 5, DefaultLayout.BlueLine())
	assert.Equal(t, 6, DefaultLayout.RedLine())
}

func TestFormatDepth(t *testing.T) {
	assert.Equal(t, "24.0", FormatDepth(24))
	assert.Equal(t, "23.75", FormatDepth(24.0-5*0.05))
	assert.Equal(t, "24.05", FormatDepth(23.8+5*0.05))
	assert.Equal(t, "-1.5", FormatDepth(-1.5))
}
