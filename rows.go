package pawmate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ============================================================================
// Row API
//
// The backend exposes every table under /rest/v1/{table} with query-string
// filters. This is the narrow "row query/insert API" the rest of the SDK is
// built on; sub-clients add typing, nothing else.
// ============================================================================

// Filter is a conjunction of column conditions, with an optional pair
// disjunction (see PairFilter).
type Filter struct {
	conds [][2]string // column, encoded condition ("eq.value")
	or    string
}

// Eq matches rows where column equals value.
func Eq(column, value string) Filter {
	return Filter{conds: [][2]string{{column, "eq." + value}}}
}

// And combines two filters into one conjunction.
func (f Filter) And(other Filter) Filter {
	out := Filter{
		conds: append(append([][2]string{}, f.conds...), other.conds...),
		or:    f.or,
	}
	if out.or == "" {
		out.or = other.or
	}
	return out
}

// PairFilter matches rows where (colA,colB) is (v1,v2) in either
// orientation. Used to select a conversation regardless of which
// participant sent each message.
func PairFilter(colA, colB, v1, v2 string) Filter {
	return Filter{
		or: fmt.Sprintf("(and(%s.eq.%s,%s.eq.%s),and(%s.eq.%s,%s.eq.%s))",
			colA, v1, colB, v2, colA, v2, colB, v1),
	}
}

func (f Filter) apply(q url.Values) {
	for _, c := range f.conds {
		q.Add(c[0], c[1])
	}
	if f.or != "" {
		q.Set("or", f.or)
	}
}

// Order is a sort specification for Select.
type Order string

func Asc(column string) Order  { return Order(column + ".asc") }
func Desc(column string) Order { return Order(column + ".desc") }

// Query describes a Select.
type Query struct {
	Filter Filter
	Order  Order
	Limit  int
}

// RowsClient is the generic row-level API.
type RowsClient struct {
	client *Client
}

// Select fetches rows matching the query into dest (a pointer to a slice).
func (r *RowsClient) Select(ctx context.Context, table string, q Query, dest any) error {
	query := url.Values{}
	q.Filter.apply(query)
	if q.Order != "" {
		query.Set("order", string(q.Order))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	data, err := r.client.doRequest(ctx, "GET", "/rest/v1/"+table, nil, query, nil)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s rows: %w", table, err)
	}
	return nil
}

// Insert creates a row and, when dest is non-nil, decodes the server's
// representation of the created row into it.
func (r *RowsClient) Insert(ctx context.Context, table string, row any, dest any) error {
	return r.write(ctx, table, row, dest, "return=representation")
}

// Upsert inserts or merges a row by primary key.
func (r *RowsClient) Upsert(ctx context.Context, table string, row any, dest any) error {
	return r.write(ctx, table, row, dest, "resolution=merge-duplicates,return=representation")
}

func (r *RowsClient) write(ctx context.Context, table string, row, dest any, prefer string) error {
	data, err := r.client.doRequest(ctx, "POST", "/rest/v1/"+table, row, nil,
		map[string]string{"Prefer": prefer})
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return decodeRow(table, data, dest)
}

// Update patches all rows matching filter.
func (r *RowsClient) Update(ctx context.Context, table string, filter Filter, changes map[string]any) error {
	query := url.Values{}
	filter.apply(query)
	_, err := r.client.doRequest(ctx, "PATCH", "/rest/v1/"+table, changes, query, nil)
	return err
}

// Delete removes all rows matching filter.
func (r *RowsClient) Delete(ctx context.Context, table string, filter Filter) error {
	query := url.Values{}
	filter.apply(query)
	_, err := r.client.doRequest(ctx, "DELETE", "/rest/v1/"+table, nil, query, nil)
	return err
}

// decodeRow accepts either a bare object or a one-element array; the
// backend returns an array for inserts.
func decodeRow(table string, data []byte, dest any) error {
	trimmed := data
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\n' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return fmt.Errorf("failed to unmarshal %s rows: %w", table, err)
		}
		if len(rows) == 0 {
			return &APIError{Code: "EMPTY_RESULT", Message: "insert returned no rows"}
		}
		trimmed = rows[0]
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s row: %w", table, err)
	}
	return nil
}
