// Package query serves the read side: paginated, filtered listings built directly
// in SQL. Nothing here writes.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Facade struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Facade {
	return &Facade{db: db}
}

// PageRequest is the common paging and sorting input. Zero values take defaults.
type PageRequest struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	SortBy   string `json:"sort_by"`
	SortDir  string `json:"sort_dir"`
}

type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// limits applies defaults and caps. The offset saturates for pages too far out
// to multiply, which lands past any real total and yields an empty page.
func (p PageRequest) limits() (page, size int, offset int64) {
	page, size = p.Page, p.PageSize
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	skip := int64(page - 1)
	if skip > math.MaxInt64/int64(size) {
		return page, size, math.MaxInt64
	}
	return page, size, skip * int64(size)
}

// orderBy resolves SortBy against a whitelist of column expressions. Unknown
// columns fall back to the default so user input never reaches the SQL text.
func (p PageRequest) orderBy(columns map[string]string, fallback string) string {
	col, ok := columns[strings.ToLower(p.SortBy)]
	if !ok {
		col = columns[fallback]
	}
	dir := "DESC"
	if strings.EqualFold(p.SortDir, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

func newPage[T any](data []T, total int64, page, size int) *Page[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := int((total + int64(size) - 1) / int64(size))
	return &Page[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}
}

// where accumulates AND-ed conditions with ? placeholders, rebound per driver.
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

func like(keyword string) string {
	return "%" + keyword + "%"
}

// list runs the count and page queries for one listing.
func list[T any](ctx context.Context, db *sqlx.DB, from string, columns string, w *where, order string, req PageRequest) (*Page[T], error) {
	page, size, offset := req.limits()

	var total int64
	countSQL := db.Rebind("SELECT COUNT(*) FROM " + from + w.String())
	if err := db.GetContext(ctx, &total, countSQL, w.args...); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	rows := make([]T, 0)
	if offset < total {
		selectSQL := db.Rebind(fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT ? OFFSET ?", columns, from, w.String(), order))
		args := append(append([]interface{}{}, w.args...), size, offset)
		if err := db.SelectContext(ctx, &rows, selectSQL, args...); err != nil {
			return nil, fmt.Errorf("failed to select rows: %w", err)
		}
	}
	return newPage(rows, total, page, size), nil
}

// one selects a single row. A missing row is reported as notFound.
func one[T any](ctx context.Context, db *sqlx.DB, from string, columns string, w *where, notFound error) (*T, error) {
	var row T
	selectSQL := db.Rebind(fmt.Sprintf("SELECT %s FROM %s%s", columns, from, w.String()))
	if err := db.GetContext(ctx, &row, selectSQL, w.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to select row: %w", err)
	}
	return &row, nil
}

// ParsePageRequest reads page, page_size, sort_by and sort_dir from a query string.
// Malformed numbers fall back to defaults.
func ParsePageRequest(values url.Values) PageRequest {
	req := PageRequest{
		SortBy:  values.Get("sort_by"),
		SortDir: values.Get("sort_dir"),
	}
	if n, err := strconv.Atoi(values.Get("page")); err == nil {
		req.Page = n
	}
	if n, err := strconv.Atoi(values.Get("page_size")); err == nil {
		req.PageSize = n
	}
	return req
}

// ParseBool returns nil for an absent or malformed flag.
func ParseBool(values url.Values, key string) *bool {
	raw := values.Get(key)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

func ParseInt64(values url.Values, key string) *int64 {
	raw := values.Get(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
