package ingest

import (
	"errors"
	"fmt"
	"strconv"
)

// Policy says what a missing or mistyped field does to its line.
type Policy uint8

const (
	// BestEffort fields fall back to their zero value.
	BestEffort Policy = iota
	// Mandatory fields fail the whole line.
	Mandatory
)

func (p Policy) String() string {
	if p == Mandatory {
		return "mandatory"
	}
	return "best-effort"
}

// Field binds a dotted record path to its policy. "[]" marks array elements.
type Field struct {
	Path   string
	Policy Policy
}

// AuthorFields is the extraction contract for author dump records.
var AuthorFields = []Field{
	{Path: "key", Policy: BestEffort},
	{Path: "name", Policy: BestEffort},
	{Path: "personal_name", Policy: BestEffort},
}

// WorkFields is the extraction contract for work dump records. Flat scalars
// degrade to empty values; once a nested container is present its inner
// structure has to be complete.
var WorkFields = []Field{
	{Path: "key", Policy: Mandatory},
	{Path: "title", Policy: BestEffort},
	{Path: "description", Policy: BestEffort},
	{Path: "description.value", Policy: BestEffort},
	{Path: "authors", Policy: BestEffort},
	{Path: "authors[]", Policy: Mandatory},
	{Path: "authors[].author", Policy: Mandatory},
	{Path: "authors[].author.key", Policy: Mandatory},
	{Path: "covers", Policy: BestEffort},
	{Path: "covers[]", Policy: Mandatory},
	{Path: "created", Policy: BestEffort},
	{Path: "created.value", Policy: Mandatory},
}

var (
	ErrNoObject     = errors.New("no JSON object on line")
	ErrMissingField = errors.New("missing field")
	ErrWrongType    = errors.New("wrong type")
)

type policyTable map[string]Policy

func newPolicyTable(fields []Field) policyTable {
	t := make(policyTable, len(fields))
	for _, f := range fields {
		t[f.Path] = f.Policy
	}
	return t
}

func (t policyTable) lookup(path string) Policy {
	p, ok := t[path]
	if !ok {
		panic(fmt.Sprintf("ingest: no policy for field %q", path))
	}
	return p
}

var (
	authorPolicies = newPolicyTable(AuthorFields)
	workPolicies   = newPolicyTable(WorkFields)
)

// object is a decoded JSON object positioned at some path inside a record.
// Every accessor consults the policy table for the field it reads.
type object struct {
	policies policyTable
	path     string // policy path prefix, e.g. "authors[]."
	where    string // display prefix with indexes, e.g. "authors[2]."
	values   map[string]any
}

func newRoot(policies policyTable, values map[string]any) object {
	return object{policies: policies, values: values}
}

// check applies the policy for path to v. ok is false for a tolerated miss.
func (o object) check(path, display string, v any, present bool, want string) (ok bool, err error) {
	got := kindOf(v)
	if present && got == want {
		return true, nil
	}
	if o.policies.lookup(path) == BestEffort {
		return false, nil
	}
	if !present || got == "null" {
		return false, &LineParseError{Field: display, Err: ErrMissingField}
	}
	return false, &LineParseError{Field: display, Err: fmt.Errorf("%w: want %s, got %s", ErrWrongType, want, got)}
}

func (o object) String(name string) (string, error) {
	v, present := o.values[name]
	ok, err := o.check(o.path+name, o.where+name, v, present, "string")
	if !ok {
		return "", err
	}
	return v.(string), nil
}

// Object returns the nested object name. found is false when a best-effort
// object is absent or not an object.
func (o object) Object(name string) (child object, found bool, err error) {
	v, present := o.values[name]
	ok, err := o.check(o.path+name, o.where+name, v, present, "object")
	if !ok {
		return object{}, false, err
	}
	return o.nested(name+".", name+".", v.(map[string]any)), true, nil
}

// Array returns the elements of array name. found is false when a best-effort
// array is absent or not an array.
func (o object) Array(name string) (elems []any, found bool, err error) {
	v, present := o.values[name]
	ok, err := o.check(o.path+name, o.where+name, v, present, "array")
	if !ok {
		return nil, false, err
	}
	return v.([]any), true, nil
}

// ObjectAt reads element i of array name as an object.
func (o object) ObjectAt(name string, i int, v any) (object, error) {
	path, display := o.path+name+"[]", o.where+name+"["+strconv.Itoa(i)+"]"
	ok, err := o.check(path, display, v, true, "object")
	if !ok {
		return object{}, err
	}
	return o.nested(name+"[].", name+"["+strconv.Itoa(i)+"].", v.(map[string]any)), nil
}

// StringAt reads element i of array name as a string.
func (o object) StringAt(name string, i int, v any) (string, error) {
	path, display := o.path+name+"[]", o.where+name+"["+strconv.Itoa(i)+"]"
	ok, err := o.check(path, display, v, true, "string")
	if !ok {
		return "", err
	}
	return v.(string), nil
}

func (o object) nested(path, display string, values map[string]any) object {
	return object{
		policies: o.policies,
		path:     o.path + path,
		where:    o.where + display,
		values:   values,
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}
