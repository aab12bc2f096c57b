package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
)

var orderingParam = "ordering"

type (
	ordering struct {
		Field     string
		Ascending bool
	}

	// Ordering binds the `?ordering=field,-other` query parameter.
	Ordering struct {
		Orderings []ordering
	}
)

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, ordering{Field: field, Ascending: !descending})
	}
}

// Fields returns the ordered field names, for validation.
func (ord *Ordering) Fields() []string {
	fields := make([]string, 0, len(ord.Orderings))
	for _, o := range ord.Orderings {
		fields = append(fields, o.Field)
	}
	return fields
}
