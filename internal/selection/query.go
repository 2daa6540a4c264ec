package selection

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type QueryKind int

const (
	QueryLatest QueryKind = iota
	QueryAll
	QueryLast
)

// Query - политика выбора строк списка: all, latest или last<N>.
type Query struct {
	Kind  QueryKind
	Count int // только для QueryLast, >= 1
}

var lastPattern = regexp.MustCompile(`^last(\d+)$`)

// ParseQuery разбирает строку запроса. Все, что не распознано (включая last0),
// означает latest.
func ParseQuery(s string) Query {
	s = strings.ToLower(strings.TrimSpace(s))

	if s == "all" {
		return Query{Kind: QueryAll}
	}

	if m := lastPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 {
			return Query{Kind: QueryLast, Count: n}
		}
	}

	return Query{Kind: QueryLatest}
}

func (q Query) String() string {
	switch q.Kind {
	case QueryAll:
		return "all"
	case QueryLast:
		return fmt.Sprintf("last%d", q.Count)
	default:
		return "latest"
	}
}

// Apply оставляет строки согласно запросу. rows должны быть в хронологическом порядке
// (от старых к новым); порядок результата тот же.
func (q Query) Apply(rows []Row) []Row {
	if len(rows) == 0 {
		return nil
	}

	switch q.Kind {
	case QueryAll:
		return rows
	case QueryLast:
		if q.Count < len(rows) {
			return rows[len(rows)-q.Count:]
		}
		return rows
	default:
		return rows[len(rows)-1:]
	}
}
