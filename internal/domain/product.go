// Package domain holds the records processed by the application jobs.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Product is a line of the product file: id,name,price.
type Product struct {
	ID    int64   `parquet:"name=id, type=INT64"`
	Name  string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price float64 `parquet:"name=price, type=DOUBLE"`
}

// ProductFromFields maps the fields of one CSV record to a Product.
func ProductFromFields(fields []string) (Product, error) {
	if len(fields) != 3 {
		return Product{}, fmt.Errorf("expected 3 fields (id,name,price), got %d", len(fields))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return Product{}, fmt.Errorf("invalid id %q: %w", fields[0], err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return Product{}, fmt.Errorf("invalid price %q: %w", fields[2], err)
	}
	return Product{ID: id, Name: strings.TrimSpace(fields[1]), Price: price}, nil
}

// ProductFields returns the CSV fields of p in file order.
func ProductFields(p Product) []string {
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.Name,
		strconv.FormatFloat(p.Price, 'f', -1, 64),
	}
}
