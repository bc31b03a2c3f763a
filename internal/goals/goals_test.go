package goals

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBundledCatalogFillsAFiveByFiveBoard(t *testing.T) {
	cat, err := Bundled()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cat.Len(), 25)
}

func TestNewCatalogReportsEveryProblem(t *testing.T) {
	_, err := NewCatalog([]Goal{
		{ID: "", Text: "no id"},
		{ID: "a", Text: ""},
		{ID: "b", Text: "ok", Difficulty: 7},
		{ID: "c", Text: "ok"},
		{ID: "c", Text: "again"},
		{ID: FreeID, Text: "reserved"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidGoal))
	assert.True(t, errors.Is(err, ErrDuplicateGoal))
	assert.Equal(t, 5, strings.Count(err.Error(), ";")+1)
}

func TestWeightIsBounded(t *testing.T) {
	for _, w := range []string{"1e15", "101", "-1", "NaN", "Inf"} {
		_, err := ParseCSV(strings.NewReader("id,text,weight\na,A," + w + "\n"))
		assert.ErrorIs(t, err, ErrInvalidGoal, w)
	}

	got, err := ParseCSV(strings.NewReader("id,text,weight\na,A,100\n"))
	require.NoError(t, err)
	assert.Equal(t, MaxWeight, got[0].Weight)

	_, err = NewCatalog([]Goal{{ID: "a", Text: "A", Weight: 1_000_000}})
	assert.ErrorIs(t, err, ErrInvalidGoal)
}

func TestFreeIDAlwaysResolves(t *testing.T) {
	cat, err := NewCatalog([]Goal{{ID: "a", Text: "A", Difficulty: 1}})
	require.NoError(t, err)

	g, ok := cat.Get(FreeID)
	require.True(t, ok)
	assert.Equal(t, FreeText, g.Text)
	assert.Equal(t, DefaultDifficulty, cat.Difficulty(FreeID))
	assert.Equal(t, 1, cat.Difficulty("a"))
	assert.Equal(t, DefaultDifficulty, cat.Difficulty("missing"))
}

func TestParseCSV(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []Goal
	}{
		{
			name: "comma separated",
			in:   "id,text,difficulty,weight\nx,Do X,1,2\ny,Do Y,,\n",
			want: []Goal{{ID: "x", Text: "Do X", Difficulty: 1, Weight: 2}, {ID: "y", Text: "Do Y"}},
		},
		{
			name: "semicolon separated with reordered columns",
			in:   "text;id;difficulty\nDo Z;z;3\n",
			want: []Goal{{ID: "z", Text: "Do Z", Difficulty: 3}},
		},
		{
			name: "fractional weight floors",
			in:   "id,text,weight\nw,Weighted,2.7\n",
			want: []Goal{{ID: "w", Text: "Weighted", Weight: 2}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveFallsBackToBundled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(zap.NewNop())
	res, err := f.Resolve(context.Background(), SourceSheets, srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, BundledSource, res.Source)
	assert.Equal(t, SourceLocal, res.Type)
}

func TestResolveUsesRemoteCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("id,text,difficulty\na,Alpha,1\nb,Beta,2\n"))
	}))
	defer srv.Close()

	f := NewFetcher(zap.NewNop())
	res, err := f.Resolve(context.Background(), SourceSheets, srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, 2, res.Catalog.Len())
	assert.Equal(t, "Beta", res.Catalog.Label("b"))
}
