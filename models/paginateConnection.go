package models

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"gorm.io/gorm"
)

type Edge[T any] struct {
	Cursor string `json:"cursor"`
	Node   *T     `json:"node"`
}

type Connection[T any] struct {
	Edges    []Edge[T] `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
}

type Cursorable interface {
	GetId() string
}

type CompositeCursorable interface {
	Cursorable
	GetCursorValue() string
}

// FetchPageCursor pages a query ordered by id alone. The caller supplies a
// query already scoped with its filters; limit+1 rows are fetched to detect
// the next page.
func FetchPageCursor[T Cursorable](ctx context.Context, query *gorm.DB, limit int, after *string) (*Connection[T], error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	query = query.WithContext(ctx)
	if after != nil && *after != "" {
		id, err := DecodeCursor(*after)
		if err != nil {
			return nil, err
		}
		query = query.Where("id > ?", id)
	}
	var rows []T
	if err := query.Order("id ASC").Limit(limit + 1).Find(&rows).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "FetchPageCursor", "find", "", err)
		return nil, err
	}
	return buildConnection(rows, limit, after != nil && *after != "", func(row T) string {
		return EncodeCursor(row.GetId())
	}), nil
}

// FetchPageCompositeCursor pages a query ordered by a non-unique column with
// the id as tiebreaker. column must be a trusted identifier, never user input.
func FetchPageCompositeCursor[T CompositeCursorable](ctx context.Context, query *gorm.DB, column string, limit int, after *string) (*Connection[T], error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	query = query.WithContext(ctx)
	if after != nil && *after != "" {
		value, id, err := DecodeCompositeCursor(*after)
		if err != nil {
			return nil, err
		}
		query = query.Where(fmt.Sprintf("(%s > ?) OR (%s = ? AND id > ?)", column, column), value, value, id)
	}
	order := fmt.Sprintf("%s ASC, id ASC", column)
	var rows []T
	if err := query.Order(order).Limit(limit + 1).Find(&rows).Error; err != nil {
		config.LogError(config.GetLogger(), "models", "FetchPageCompositeCursor", "find", "", err)
		return nil, err
	}
	return buildConnection(rows, limit, after != nil && *after != "", func(row T) string {
		return EncodeCompositeCursor(row.GetCursorValue(), row.GetId())
	}), nil
}

func buildConnection[T any](rows []T, limit int, hasPrevious bool, cursorOf func(T) string) *Connection[T] {
	hasNext := len(rows) > limit
	if hasNext {
		rows = rows[:limit]
	}
	conn := &Connection[T]{
		Edges: make([]Edge[T], 0, len(rows)),
		PageInfo: PageInfo{
			HasNextPage:     hasNext,
			HasPreviousPage: hasPrevious,
		},
	}
	for i := range rows {
		row := rows[i]
		conn.Edges = append(conn.Edges, Edge[T]{Cursor: cursorOf(row), Node: &row})
	}
	if len(conn.Edges) > 0 {
		start := conn.Edges[0].Cursor
		end := conn.Edges[len(conn.Edges)-1].Cursor
		conn.PageInfo.StartCursor = &start
		conn.PageInfo.EndCursor = &end
	}
	return conn
}
