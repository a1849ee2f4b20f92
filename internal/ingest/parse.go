package ingest

import (
	"errors"
	"strings"
	"time"

	"betterreads/internal/catalog"
	"betterreads/internal/dump"

	"github.com/goccy/go-json"
)

const (
	authorKeyPrefix = "/authors/"
	workKeyPrefix   = "/works/"

	// createdLayout is yyyy-MM-dd'T'HH:mm:ss.SSSSSS.
	createdLayout = "2006-01-02T15:04:05.000000"
)

// decodeLine drops everything before the first '{' and decodes the rest as a JSON object.
func decodeLine(line dump.Line, policies policyTable) (object, error) {
	start := strings.IndexByte(line.Text, '{')
	if start < 0 {
		return object{}, &LineParseError{Line: line.Number, Err: ErrNoObject}
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(line.Text[start:]), &values); err != nil {
		return object{}, &LineParseError{Line: line.Number, Err: err}
	}
	return newRoot(policies, values), nil
}

// atLine stamps the line number onto a field error raised by the extractor.
func atLine(err error, n int) error {
	var lpe *LineParseError
	if errors.As(err, &lpe) {
		lpe.Line = n
	}
	return err
}

func parseAuthor(line dump.Line) (catalog.Author, error) {
	rec, err := decodeLine(line, authorPolicies)
	if err != nil {
		return catalog.Author{}, err
	}

	var a catalog.Author
	if a.Name, err = rec.String("name"); err != nil {
		return catalog.Author{}, atLine(err, line.Number)
	}
	if a.PersonalName, err = rec.String("personal_name"); err != nil {
		return catalog.Author{}, atLine(err, line.Number)
	}
	key, err := rec.String("key")
	if err != nil {
		return catalog.Author{}, atLine(err, line.Number)
	}
	a.ID = strings.TrimPrefix(key, authorKeyPrefix)
	return a, nil
}

// parseWork builds a Book from a work line. AuthorNames is left for the caller
// to resolve against the store.
func parseWork(line dump.Line) (catalog.Book, error) {
	rec, err := decodeLine(line, workPolicies)
	if err != nil {
		return catalog.Book{}, err
	}
	b, err := extractWork(rec)
	if err != nil {
		return catalog.Book{}, atLine(err, line.Number)
	}
	return b, nil
}

func extractWork(rec object) (catalog.Book, error) {
	var b catalog.Book

	key, err := rec.String("key")
	if err != nil {
		return b, err
	}
	b.ID = strings.TrimPrefix(key, workKeyPrefix)

	if b.Title, err = rec.String("title"); err != nil {
		return b, err
	}

	if desc, ok, err := rec.Object("description"); err != nil {
		return b, err
	} else if ok {
		if b.Description, err = desc.String("value"); err != nil {
			return b, err
		}
	}

	if b.AuthorIDs, err = extractAuthorIDs(rec); err != nil {
		return b, err
	}

	if covers, ok, err := rec.Array("covers"); err != nil {
		return b, err
	} else if ok {
		b.CoverIDs = make([]string, 0, len(covers))
		for i, v := range covers {
			id, err := rec.StringAt("covers", i, v)
			if err != nil {
				return b, err
			}
			b.CoverIDs = append(b.CoverIDs, id)
		}
	}

	if created, ok, err := rec.Object("created"); err != nil {
		return b, err
	} else if ok {
		value, err := created.String("value")
		if err != nil {
			return b, err
		}
		date, err := parseCreated(value)
		if err != nil {
			return b, &LineParseError{Field: "created.value", Err: err}
		}
		b.PublishDate = &date
	}

	return b, nil
}

func extractAuthorIDs(rec object) ([]string, error) {
	authors, ok, err := rec.Array("authors")
	if err != nil || !ok {
		return nil, err
	}
	ids := make([]string, 0, len(authors))
	for i, v := range authors {
		entry, err := rec.ObjectAt("authors", i, v)
		if err != nil {
			return nil, err
		}
		author, _, err := entry.Object("author")
		if err != nil {
			return nil, err
		}
		key, err := author.String("key")
		if err != nil {
			return nil, err
		}
		ids = append(ids, strings.TrimPrefix(key, authorKeyPrefix))
	}
	return ids, nil
}

// parseCreated keeps the calendar date of a dump timestamp.
func parseCreated(value string) (time.Time, error) {
	ts, err := time.Parse(createdLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
}
