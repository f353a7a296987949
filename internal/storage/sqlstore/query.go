package sqlstore

import (
	"strings"

	"bugtracker/internal/models"
)

// query accumulates SQL text and its bind arguments.
type query struct {
	strings.Builder
	args    []any
	dialect *Dialect
}

func (s *Store) newQuery() *query {
	return &query{dialect: &s.dialect}
}

// arg records v and returns the placeholder that refers to it.
func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return q.dialect.Placeholder(len(q.args))
}

func (q *query) page(p models.Page) {
	switch {
	case p.Take != nil:
		q.WriteString(` LIMIT ` + q.arg(*p.Take))
	case p.Skip > 0 && q.dialect.NoLimit != "":
		q.WriteString(` ` + q.dialect.NoLimit)
	}
	if p.Skip > 0 {
		q.WriteString(` OFFSET ` + q.arg(p.Skip))
	}
}

// QuestionMarks is the placeholder style of SQLite.
func QuestionMarks(int) string { return "?" }
