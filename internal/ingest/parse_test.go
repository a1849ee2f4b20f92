package ingest

import (
	"errors"
	"testing"
	"time"

	"betterreads/internal/dump"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(text string) dump.Line {
	return dump.Line{Number: 7, Text: text}
}

func requireParseError(t *testing.T, err error, field string) *LineParseError {
	t.Helper()
	var lpe *LineParseError
	require.True(t, errors.As(err, &lpe), "expected LineParseError, got %v", err)
	assert.Equal(t, 7, lpe.Line)
	assert.Equal(t, field, lpe.Field)
	return lpe
}

func TestPolicyTables_CoverEveryPathOnce(t *testing.T) {
	for name, fields := range map[string][]Field{"author": AuthorFields, "work": WorkFields} {
		seen := map[string]bool{}
		for _, f := range fields {
			assert.False(t, seen[f.Path], "%s table repeats %s", name, f.Path)
			seen[f.Path] = true
		}
	}

	assert.Equal(t, Mandatory, workPolicies.lookup("key"))
	assert.Equal(t, BestEffort, authorPolicies.lookup("key"))
	assert.Equal(t, BestEffort, workPolicies.lookup("created"))
	assert.Equal(t, Mandatory, workPolicies.lookup("created.value"))
	assert.Panics(t, func() { workPolicies.lookup("subjects") })
}

func TestParseAuthor(t *testing.T) {
	t.Run("full record with dump prefix", func(t *testing.T) {
		a, err := parseAuthor(line("/type/author\t/authors/OL23919A\t1\t2008-04-01T03:28:50.625462\t" +
			`{"key":"/authors/OL23919A","name":"J. K. Rowling","personal_name":"Joanne Rowling"}`))
		require.NoError(t, err)
		assert.Equal(t, "OL23919A", a.ID)
		assert.Equal(t, "J. K. Rowling", a.Name)
		assert.Equal(t, "Joanne Rowling", a.PersonalName)
	})

	t.Run("missing and mistyped fields are empty", func(t *testing.T) {
		a, err := parseAuthor(line(`{"name":42,"personal_name":null}`))
		require.NoError(t, err)
		assert.Equal(t, "", a.ID)
		assert.Equal(t, "", a.Name)
		assert.Equal(t, "", a.PersonalName)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := parseAuthor(line(`{"key":"/authors/OL1A"`))
		requireParseError(t, err, "")
	})

	t.Run("no object on line", func(t *testing.T) {
		_, err := parseAuthor(line("just text"))
		lpe := requireParseError(t, err, "")
		assert.ErrorIs(t, lpe, ErrNoObject)
	})
}

func TestParseWork(t *testing.T) {
	t.Run("prefixed work line", func(t *testing.T) {
		b, err := parseWork(line(`xyz{"key":"/works/OL1W","title":"Test Book","created":{"type":"/type/datetime","value":"2008-04-01T03:28:50.625462"}}`))
		require.NoError(t, err)
		assert.Equal(t, "OL1W", b.ID)
		assert.Equal(t, "Test Book", b.Title)
		require.NotNil(t, b.PublishDate)
		assert.Equal(t, time.Date(2008, 4, 1, 0, 0, 0, 0, time.UTC), *b.PublishDate)
		assert.Empty(t, b.AuthorIDs)
		assert.Nil(t, b.CoverIDs)
		assert.Equal(t, "", b.Description)
	})

	t.Run("all nested fields", func(t *testing.T) {
		b, err := parseWork(line(`{"key":"/works/OL2W","title":"T",` +
			`"description":{"type":"/type/text","value":"About it"},` +
			`"authors":[{"author":{"key":"/authors/OL1A"}},{"type":{"key":"/type/author_role"},"author":{"key":"/authors/OL2A"}},{"author":{"key":"/authors/OL1A"}}],` +
			`"covers":["11","22"]}`))
		require.NoError(t, err)
		assert.Equal(t, "About it", b.Description)
		assert.Equal(t, []string{"OL1A", "OL2A", "OL1A"}, b.AuthorIDs)
		assert.Equal(t, []string{"11", "22"}, b.CoverIDs)
		assert.Nil(t, b.PublishDate)
	})

	t.Run("empty arrays stay empty but present", func(t *testing.T) {
		b, err := parseWork(line(`{"key":"/works/OL3W","authors":[],"covers":[]}`))
		require.NoError(t, err)
		assert.NotNil(t, b.AuthorIDs)
		assert.Empty(t, b.AuthorIDs)
		assert.NotNil(t, b.CoverIDs)
		assert.Empty(t, b.CoverIDs)
	})

	t.Run("best-effort containers of the wrong type are ignored", func(t *testing.T) {
		b, err := parseWork(line(`{"key":"/works/OL4W","title":["x"],"description":"plain text","authors":"nobody","covers":12,"created":"2008"}`))
		require.NoError(t, err)
		assert.Equal(t, "", b.Title)
		assert.Equal(t, "", b.Description)
		assert.Nil(t, b.AuthorIDs)
		assert.Nil(t, b.CoverIDs)
		assert.Nil(t, b.PublishDate)
	})

	t.Run("description without value", func(t *testing.T) {
		b, err := parseWork(line(`{"key":"/works/OL5W","description":{"type":"/type/text"}}`))
		require.NoError(t, err)
		assert.Equal(t, "", b.Description)
	})

	failures := []struct {
		name  string
		json  string
		field string
		is    error
	}{
		{"missing key", `{"title":"No key"}`, "key", ErrMissingField},
		{"numeric key", `{"key":5}`, "key", ErrWrongType},
		{"author entry not an object", `{"key":"/works/OL1W","authors":["/authors/OL1A"]}`, "authors[0]", ErrWrongType},
		{"author entry without author", `{"key":"/works/OL1W","authors":[{"author":{"key":"/authors/OL1A"}},{"role":"x"}]}`, "authors[1].author", ErrMissingField},
		{"author without key", `{"key":"/works/OL1W","authors":[{"author":{}}]}`, "authors[0].author.key", ErrMissingField},
		{"numeric cover", `{"key":"/works/OL1W","covers":["1",2]}`, "covers[1]", ErrWrongType},
		{"created without value", `{"key":"/works/OL1W","created":{"type":"/type/datetime"}}`, "created.value", ErrMissingField},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseWork(line(tc.json))
			lpe := requireParseError(t, err, tc.field)
			assert.ErrorIs(t, lpe, tc.is)
		})
	}

	t.Run("created value not a date", func(t *testing.T) {
		_, err := parseWork(line(`{"key":"/works/OL1W","created":{"value":"not-a-date"}}`))
		requireParseError(t, err, "created.value")
	})

	t.Run("created value without microseconds", func(t *testing.T) {
		_, err := parseWork(line(`{"key":"/works/OL1W","created":{"value":"2008-04-01T03:28:50"}}`))
		requireParseError(t, err, "created.value")
	})
}

func TestLineParseError_Message(t *testing.T) {
	err := &LineParseError{Line: 3, Field: "covers[1]", Err: ErrWrongType}
	assert.Equal(t, "line 3: field covers[1]: wrong type", err.Error())

	err = &LineParseError{Line: 4, Err: ErrNoObject}
	assert.Equal(t, "line 4: no JSON object on line", err.Error())
}
