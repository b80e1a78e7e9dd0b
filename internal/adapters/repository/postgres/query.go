package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/chronos/internal/core/query"
	pgdb "github.com/ogurasousui/chronos/internal/platform/db/postgres"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

// columnResolver はフィールド名を列名に変換します。未対応のフィールドでは ok=false を返します。
type columnResolver func(field string) (column string, ok bool)

// argBinder はプレースホルダーと引数を順に積み上げます。
type argBinder struct {
	args []any
}

func (b *argBinder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// selectedFields は Projection が nil の場合にすべてのフィールドを返します。
func selectedFields(fields query.Projection, all []string) []string {
	if !fields.Restricted() {
		return all
	}
	return fields
}

func columnList(fields []string, resolve columnResolver) (string, error) {
	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		column, ok := resolve(f)
		if !ok {
			return "", fmt.Errorf("postgres: unsupported field %q", f)
		}
		columns = append(columns, column)
	}
	return strings.Join(columns, ", "), nil
}

// whereClause は述語を AND で結合した WHERE 句に変換します。
func whereClause(b *argBinder, filter query.Filter, resolve columnResolver) (string, error) {
	if filter.Empty() {
		return "", nil
	}

	conditions := make([]string, 0, len(filter.Predicates()))
	for _, p := range filter.Predicates() {
		column, ok := resolve(p.Field)
		if !ok {
			return "", fmt.Errorf("postgres: unsupported filter field %q", p.Field)
		}

		switch p.Op {
		case query.OpEqual:
			conditions = append(conditions, column+" = "+b.bind(p.Value))
		case query.OpContainsFold:
			value, ok := p.Value.(string)
			if !ok {
				return "", fmt.Errorf("postgres: filter %q expects a string value", p.Field)
			}
			conditions = append(conditions, column+` ILIKE `+b.bind("%"+escapeLike(value)+"%")+` ESCAPE '\'`)
		default:
			return "", fmt.Errorf("postgres: unsupported operator for %q", p.Field)
		}
	}

	return " WHERE " + strings.Join(conditions, " AND "), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

// countRows は OFFSET がすべての行を読み飛ばした場合に総件数を取得し直します。
func countRows(ctx context.Context, exec pgdb.Queryer, table, where string, args []any) (int, error) {
	var total int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
