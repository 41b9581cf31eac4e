package repo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const defaultListLimit = 100

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Neo4jRepo is a generic Neo4j-backed repository of nodes with one label.
type Neo4jRepo[T any, ID comparable] struct {
	driver     neo4j.DriverWithContext
	label      string
	idKey      string
	database   string
	fromRecord func(*neo4j.Record) (T, error)
	newSession func(ctx context.Context) runner // for testing
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// WithDatabase selects a database other than the server default.
func WithDatabase[T any, ID comparable](name string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.database = name }
}

// NewNeo4jRepo creates a repository over nodes labelled label. fromRecord
// decodes a record whose "n" column holds the node.
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		driver:     driver,
		label:      label,
		idKey:      "id",
		fromRecord: fromRecord,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Compile-time interface check.
var _ Reader[any, string] = (*Neo4jRepo[any, string])(nil)

// neo4jSessionAdapter adapts neo4j.SessionWithContext to the runner interface.
type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (r *Neo4jRepo[T, ID]) session(ctx context.Context) runner {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.database,
	})}
}

// Ping verifies the driver can reach the server.
func (r *Neo4jRepo[T, ID]) Ping(ctx context.Context) error {
	if r.driver == nil {
		return errors.New("repo: no neo4j driver")
	}
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n LIMIT 1", r.label, r.idKey)
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, fmt.Errorf("repo: get %s: %w", r.label, err)
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return zero, fmt.Errorf("repo: get %s: %w", r.label, err)
		}
		return zero, fmt.Errorf("%w: %s %v", ErrNotFound, r.label, id)
	}
	return r.fromRecord(res.Record())
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	where, params, err := whereClause(opts.Filter)
	if err != nil {
		return nil, err
	}
	order := ""
	if opts.OrderBy != "" {
		if !identRe.MatchString(opts.OrderBy) {
			return nil, fmt.Errorf("repo: invalid order key %q", opts.OrderBy)
		}
		order = " ORDER BY n." + opts.OrderBy
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := max(opts.Offset, 0)
	params["offset"] = offset
	params["limit"] = limit

	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s)%s RETURN n%s SKIP $offset LIMIT $limit", r.label, where, order)
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("repo: list %s: %w", r.label, err)
	}

	items := []T{}
	for res.Next(ctx) {
		item, err := r.fromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("repo: list %s: %w", r.label, err)
	}
	return items, nil
}

func (r *Neo4jRepo[T, ID]) Count(ctx context.Context, filter map[string]any) (int64, error) {
	where, params, err := whereClause(filter)
	if err != nil {
		return 0, err
	}
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s)%s RETURN count(n) AS total", r.label, where)
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return 0, fmt.Errorf("repo: count %s: %w", r.label, err)
	}
	if !res.Next(ctx) {
		return 0, res.Err()
	}
	v, ok := res.Record().Get("total")
	if !ok {
		return 0, fmt.Errorf("repo: count %s: missing total", r.label)
	}
	total, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("repo: count %s: unexpected %T", r.label, v)
	}
	return total, nil
}

// whereClause renders an equality filter with parameters named f_<key>, in
// key order so the generated cypher is stable.
func whereClause(filter map[string]any) (string, map[string]any, error) {
	params := make(map[string]any, len(filter)+2)
	if len(filter) == 0 {
		return "", params, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !identRe.MatchString(k) {
			return "", nil, fmt.Errorf("repo: invalid filter key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("n.%s = $f_%s", k, k)
		params["f_"+k] = filter[k]
	}
	return " WHERE " + strings.Join(conds, " AND "), params, nil
}

// NodeProps returns the properties of the node in column key, accepting both
// driver nodes and plain maps.
func NodeProps(rec *neo4j.Record, key string) (map[string]any, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return nil, fmt.Errorf("repo: record has no %q column", key)
	}
	switch v := raw.(type) {
	case neo4j.Node:
		return v.Props, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("repo: column %q is %T, not a node", key, raw)
	}
}
