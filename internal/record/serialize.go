package record

import (
	"context"
	"fmt"

	"github.com/relstack-labs/relstore/internal/query"
	"github.com/relstack-labs/relstore/internal/store"
	"github.com/relstack-labs/relstore/pkg/schema"
)

// Serializer converts records into nested, depth-bounded documents
// suitable for transport and indexing.
type Serializer struct {
	sess     *store.Session
	registry *schema.Registry
}

// NewSerializer returns a serializer resolving relationships through sess.
func NewSerializer(sess *store.Session, registry *schema.Registry) *Serializer {
	return &Serializer{sess: sess, registry: registry}
}

// ToDict serializes a record at its model's default nesting depth.
func (s *Serializer) ToDict(ctx context.Context, rec *Record) (map[string]any, error) {
	return s.ToDictDepth(ctx, rec, rec.Model().NestingDepth)
}

// ToDictDepth serializes a record with an explicit depth override.
//
// Relationships not configured for nesting, or once depth is exhausted,
// are emitted as bare primary-key values (a list of them for to-many).
// Nested relationships with depth remaining recurse with depth-1. The
// document always carries a type tag and the string form of the primary
// key under _pk.
func (s *Serializer) ToDictDepth(ctx context.Context, rec *Record, depth int) (map[string]any, error) {
	m := rec.Model()
	doc := make(map[string]any, len(m.Fields)+len(m.Relationships)+2)

	for _, name := range m.ColumnNames() {
		doc[name] = rec.Get(name)
	}

	for i := range m.Relationships {
		rel := &m.Relationships[i]
		val, err := s.serializeRelationship(ctx, rec, rel, depth)
		if err != nil {
			return nil, err
		}
		doc[rel.Name] = val
	}

	doc["_type"] = m.Name
	doc["_pk"] = rec.PKString()
	return doc, nil
}

func (s *Serializer) serializeRelationship(ctx context.Context, rec *Record, rel *schema.Relationship, depth int) (any, error) {
	target, err := s.registry.Get(rel.Target)
	if err != nil {
		return nil, fmt.Errorf("relationship %s.%s: %w", rec.Model().Name, rel.Name, err)
	}
	embed := rel.Nested && depth > 0

	if rel.ToMany {
		related, err := s.relatedMany(ctx, rec, rel, target)
		if err != nil {
			return nil, err
		}
		if !embed {
			pks := make([]any, len(related))
			for i, r := range related {
				pks[i] = r.PK()
			}
			return pks, nil
		}
		docs := make([]any, len(related))
		for i, r := range related {
			doc, err := s.ToDictDepth(ctx, r, depth-1)
			if err != nil {
				return nil, err
			}
			docs[i] = doc
		}
		return docs, nil
	}

	fk := rec.Get(rel.ForeignKey)
	if fk == nil {
		return nil, nil
	}
	if !embed {
		return fk, nil
	}
	related, err := LoadByPK(ctx, s.sess, target, fk)
	if err != nil {
		return nil, err
	}
	if related == nil {
		return fk, nil
	}
	return s.ToDictDepth(ctx, related, depth-1)
}

func (s *Serializer) relatedMany(ctx context.Context, rec *Record, rel *schema.Relationship, target *schema.Model) ([]*Record, error) {
	rows, err := query.New(s.sess, target).
		WhereEq(rel.ForeignKey, rec.PK()).
		OrderBy(target.PKField(), false).
		Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("relationship %s.%s: %w", rec.Model().Name, rel.Name, err)
	}
	related := make([]*Record, len(rows))
	for i, row := range rows {
		related[i] = Loaded(target, row)
	}
	return related, nil
}

// LoadByPK loads one record by primary key. Returns nil when no row
// matches.
func LoadByPK(ctx context.Context, sess *store.Session, m *schema.Model, pk any) (*Record, error) {
	f := m.PK()
	coerced, err := schema.Coerce(f, pk)
	if err != nil {
		return nil, err
	}
	rows, err := query.New(sess, m).WhereEq(f.Name, coerced).Limit(1).Rows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return Loaded(m, rows[0]), nil
}
