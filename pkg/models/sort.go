package models

import (
	"strings"

	"github.com/dukex/flytestate/internal/wire"
)

type SortDirection int32

const (
	SortDescending SortDirection = iota
	SortAscending
)

var sortDirectionNames = []string{"DESCENDING", "ASCENDING"}

func (d SortDirection) String() string {
	return enumString(sortDirectionNames, d, "SortDirection")
}

func (d SortDirection) MarshalText() ([]byte, error) {
	if err := checkEnum(sortDirectionNames, d, "sort direction"); err != nil {
		return nil, err
	}

	return []byte(d.String()), nil
}

func (d *SortDirection) UnmarshalText(text []byte) error {
	v, err := parseEnum[SortDirection](sortDirectionNames, string(text), "sort direction")
	if err != nil {
		return err
	}

	*d = v

	return nil
}

// Sort orders a listing by a single key.
type Sort struct {
	Key       string        `json:"key"`
	Direction SortDirection `json:"direction"`
}

const (
	sortAsc  = "asc("
	sortDesc = "desc("
)

// ParseSort reads the "asc(<key>)" / "desc(<key>)" form. The directive is
// case-sensitive and surrounding whitespace of the key is dropped.
func ParseSort(s string) (Sort, error) {
	trimmed := strings.TrimSpace(s)

	if !strings.HasSuffix(trimmed, ")") {
		return Sort{}, &ParseError{Input: s, Reason: "missing closing parenthesis"}
	}

	var (
		direction SortDirection
		rest      string
	)

	switch {
	case strings.HasPrefix(trimmed, sortAsc):
		direction = SortAscending
		rest = trimmed[len(sortAsc):]
	case strings.HasPrefix(trimmed, sortDesc):
		direction = SortDescending
		rest = trimmed[len(sortDesc):]
	default:
		return Sort{}, &ParseError{Input: s, Reason: "expected asc(<key>) or desc(<key>)"}
	}

	key := strings.TrimSpace(strings.TrimSuffix(rest, ")"))
	if key == "" {
		return Sort{}, &ParseError{Input: s, Reason: "empty sort key"}
	}

	if strings.ContainsAny(key, "()") {
		return Sort{}, &ParseError{Input: s, Reason: "sort key contains parentheses"}
	}

	return Sort{Key: key, Direction: direction}, nil
}

func (s Sort) String() string {
	if s.Direction == SortAscending {
		return sortAsc + s.Key + ")"
	}

	return sortDesc + s.Key + ")"
}

func (s Sort) MarshalBinary() ([]byte, error) {
	if err := checkEnum(sortDirectionNames, s.Direction, "sort direction"); err != nil {
		return nil, err
	}

	var e wire.Encoder
	e.String(1, s.Key)
	e.Enum(2, int32(s.Direction))

	return e.Bytes(), nil
}

func (s *Sort) UnmarshalBinary(data []byte) error {
	var out Sort

	err := decode("Sort", data, func(f wire.Field) error {
		var err error

		switch f.Num {
		case 1:
			out.Key, err = f.AsString()
			err = at("key", err)
		case 2:
			out.Direction, err = asEnum[SortDirection](f, sortDirectionNames)
			err = at("direction", err)
		}

		return err
	})
	if err != nil {
		return err
	}

	*s = out

	return nil
}
