package sql

import (
	stdsql "database/sql"
	"fmt"

	"github.com/dukex/flytestate/pkg/models"
)

const OutputName = "results"

// Table is a query result in column order.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Records returns each row as a column -> value map.
func (t Table) Records() []map[string]any {
	records := make([]map[string]any, 0, len(t.Rows))

	for _, row := range t.Rows {
		record := make(map[string]any, len(t.Columns))
		for i, column := range t.Columns {
			record[column] = row[i]
		}

		records = append(records, record)
	}

	return records
}

// Literal renders the table as a collection of map literals, one per row.
func (t Table) Literal() (models.Literal, error) {
	items := make([]models.Literal, 0, len(t.Rows))

	for i, record := range t.Records() {
		row := make(map[string]models.Literal, len(record))

		for column, value := range record {
			lit, err := models.LiteralFromValue(value)
			if err != nil {
				return models.Literal{}, fmt.Errorf("row %d column %q: %w", i, column, err)
			}

			row[column] = lit
		}

		items = append(items, models.MapLiteral(row))
	}

	return models.CollectionLiteral(items...), nil
}

// Outputs is the task output binding: {"results": Literal()}.
func (t Table) Outputs() (models.LiteralMap, error) {
	lit, err := t.Literal()
	if err != nil {
		return models.LiteralMap{}, err
	}

	return models.NewLiteralMap(map[string]models.Literal{OutputName: lit}), nil
}

func scanTable(rows *stdsql.Rows) (Table, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Table{}, err
	}

	table := Table{Columns: columns, Rows: make([][]any, 0)}

	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))

		for i := range values {
			targets[i] = &values[i]
		}

		err := rows.Scan(targets...)
		if err != nil {
			return Table{}, err
		}

		for i, v := range values {
			values[i] = normalize(v)
		}

		table.Rows = append(table.Rows, values)
	}

	err = rows.Err()
	if err != nil {
		return Table{}, err
	}

	return table, nil
}

// normalize maps driver values onto the kinds LiteralFromValue accepts.
func normalize(v any) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}
