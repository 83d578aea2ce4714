// Package sqlxrepos implements the repositories on top of jmoiron/sqlx.
// The queries stick to the SQL shared by postgres & sqlite and are rebound per driver.
package sqlxrepos

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/quizdesk/core"
)

// stringList is stored as a JSON array in a TEXT column.
type stringList []string

var (
	_ sql.Scanner   = (*stringList)(nil)
	_ driver.Valuer = stringList(nil)
)

func (l *stringList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("stringList: cannot scan %T", src)
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.Wrap(err, "stringList")
	}
	if len(list) == 0 {
		list = nil
	}
	*l = list
	return nil
}

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// isUniqueViolation reports whether err comes from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// orderBy builds an ORDER BY clause from the orderings whose Field is in `columns`.
// Unknown fields are ignored; `fallback` is used when none is left.
func orderBy(ordering []core.DBOrdering, columns map[string]string, fallback string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(orderList) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

// where accumulates AND-ed conditions & their args.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likePattern(search string) string {
	return "%" + strings.ToLower(search) + "%"
}

// wrapErr annotates err with msg. A connection the pool could not recover is a shutdown error.
func wrapErr(err error, msg string) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return core.NewShutdownError(err, msg+": database connection lost")
	}
	return errors.Wrap(err, msg)
}
