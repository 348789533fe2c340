package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ammar0144/staffdb/pkg/db"
	"github.com/ammar0144/staffdb/pkg/redis"

	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options carries the optional collaborators of a GenericRepository
type Options struct {
	// Cache is the second-level row cache; nil disables it
	Cache RowCache
	// Scope roots the repository metrics; nil uses tally.NoopScope
	Scope tally.Scope
	// Logger defaults to the database manager's logger
	Logger *logrus.Entry
}

// GenericRepository maps entities of type E onto rows of type R.
// Every instance it returns is registered in its identity map, so two
// lookups of the same id yield the same pointer.
type GenericRepository[E any, R Record] struct {
	db        *gorm.DB
	dbManager *db.Manager
	cache     RowCache
	identity  *IdentityMap[E]
	mapping   Mapping[E, R]
	keys      keyBuilder
	tableName string
	metrics   *Metrics
	log       *logrus.Entry
}

// NewGenericRepository creates a repository for one table
func NewGenericRepository[E any, R Record](dbManager *db.Manager, mapping Mapping[E, R], opts Options) *GenericRepository[E, R] {
	if dbManager == nil {
		panic("repository: nil database manager")
	}
	if mapping.ToRecord == nil || mapping.FromRecord == nil || mapping.Refresh == nil ||
		mapping.ID == nil || mapping.SetID == nil {
		panic(fmt.Sprintf("repository: incomplete mapping for %q", mapping.Entity))
	}

	var rec R
	tableName := rec.TableName()
	if tableName == "" {
		panic(fmt.Sprintf("record type %T returned empty TableName()", rec))
	}

	log := opts.Logger
	if log == nil {
		log = dbManager.Logger()
	}

	return &GenericRepository[E, R]{
		db:        dbManager.DB(),
		dbManager: dbManager,
		cache:     activeCache(opts.Cache),
		identity:  NewIdentityMap[E](),
		mapping:   mapping,
		keys:      keyBuilder{dbName: dbManager.DatabaseName(), tableName: tableName},
		tableName: tableName,
		metrics:   NewMetrics(opts.Scope, tableName),
		log:       log.WithField("table", tableName),
	}
}

// activeCache drops caches that are configured off, including a nil *redis.Manager
func activeCache(c RowCache) RowCache {
	if c == nil {
		return nil
	}
	if e, ok := c.(interface{ Enabled() bool }); ok && !e.Enabled() {
		return nil
	}
	return c
}

// TableName returns the table this repository manages
func (r *GenericRepository[E, R]) TableName() string {
	return r.tableName
}

// withQueryTimeout wraps a context with the configured query timeout
func (r *GenericRepository[E, R]) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.dbManager.Config() != nil {
		if timeout := r.dbManager.Config().QueryTimeout; timeout > 0 {
			return context.WithTimeout(ctx, timeout)
		}
	}
	return ctx, func() {}
}

// ============================================================================
// TABLE LIFECYCLE
// ============================================================================

// CreateTable creates the table if it does not exist yet
func (r *GenericRepository[E, R]) CreateTable(ctx context.Context) error {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	migrator := r.db.WithContext(ctx).Migrator()
	if migrator.HasTable(r.tableName) {
		return nil
	}
	if err := migrator.CreateTable(new(R)); err != nil {
		return fmt.Errorf("create table %s: %w", r.tableName, err)
	}

	r.log.Debug("table created")
	return nil
}

// DropTable drops the table if it exists and forgets every tracked instance
func (r *GenericRepository[E, R]) DropTable(ctx context.Context) error {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Migrator().DropTable(new(R)); err != nil {
		return fmt.Errorf("drop table %s: %w", r.tableName, db.TranslateError(err))
	}

	r.identity.Clear()
	r.invalidate(ctx)
	r.log.Debug("table dropped")
	return nil
}

// ============================================================================
// ROW LIFECYCLE
// ============================================================================

// Save inserts an unsaved entity and registers it in the identity map.
// An entity that already has an id is updated instead.
func (r *GenericRepository[E, R]) Save(ctx context.Context, entity E) error {
	if isNil(entity) {
		return fmt.Errorf("%s cannot be nil", r.mapping.Entity)
	}
	if r.mapping.ID(entity) != 0 {
		return r.Update(ctx, entity)
	}
	if err := r.validate(entity); err != nil {
		return err
	}

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	rec := r.mapping.ToRecord(entity)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		r.metrics.CreateFail.Inc(1)
		return fmt.Errorf("insert %s: %w", r.mapping.Entity, db.TranslateError(err))
	}

	id := rec.GetPrimaryKeyValue()
	r.mapping.SetID(entity, id)
	r.identity.Put(id, entity)
	r.metrics.Create.Inc(1)
	r.invalidate(ctx)

	r.log.WithField("id", id).Debug("row inserted")
	return nil
}

// Update overwrites the row matching the entity's id
func (r *GenericRepository[E, R]) Update(ctx context.Context, entity E) error {
	if isNil(entity) {
		return fmt.Errorf("%s cannot be nil", r.mapping.Entity)
	}
	id := r.mapping.ID(entity)
	if id == 0 {
		return &StateError{Entity: r.mapping.Entity, Op: "update", Err: ErrNotPersisted}
	}
	if err := r.validate(entity); err != nil {
		return err
	}

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	rec := r.mapping.ToRecord(entity)
	result := r.db.WithContext(ctx).Model(&rec).Select("*").Omit(clause.Associations).Updates(&rec)
	if result.Error != nil {
		r.metrics.UpdateFail.Inc(1)
		return fmt.Errorf("update %s %d: %w", r.mapping.Entity, id, db.TranslateError(result.Error))
	}
	if result.RowsAffected == 0 {
		r.metrics.UpdateFail.Inc(1)
		return &StateError{Entity: r.mapping.Entity, Op: "update", ID: id, Err: ErrNotFound}
	}

	// An older instance may still be tracked for id, e.g. after Reset.
	if tracked, ok := r.identity.Get(id); ok {
		if err := r.mapping.Refresh(tracked, rec); err != nil {
			return fmt.Errorf("refresh %s %d: %w", r.mapping.Entity, id, err)
		}
	} else {
		r.identity.Put(id, entity)
	}
	r.metrics.Update.Inc(1)
	r.invalidate(ctx)

	r.log.WithField("id", id).Debug("row updated")
	return nil
}

// Delete removes the entity's row, evicts it from the identity map and
// clears its id. The entity may be saved again afterwards as a new row.
func (r *GenericRepository[E, R]) Delete(ctx context.Context, entity E) error {
	if isNil(entity) {
		return fmt.Errorf("%s cannot be nil", r.mapping.Entity)
	}
	id := r.mapping.ID(entity)
	if id == 0 {
		return &StateError{Entity: r.mapping.Entity, Op: "delete", Err: ErrNotPersisted}
	}

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Delete(new(R), id)
	if result.Error != nil {
		r.metrics.DeleteFail.Inc(1)
		return fmt.Errorf("delete %s %d: %w", r.mapping.Entity, id, db.TranslateError(result.Error))
	}
	if result.RowsAffected == 0 {
		r.log.WithField("id", id).Debug("row already absent")
	}

	r.identity.Evict(id)
	r.mapping.SetID(entity, 0)
	r.metrics.Delete.Inc(1)
	r.invalidate(ctx)

	r.log.WithField("id", id).Debug("row deleted")
	return nil
}

// ============================================================================
// READ OPERATIONS - Identity Map First
// ============================================================================

// FindByID returns the tracked instance for id, loading it when needed.
// A missing row returns the zero E and a nil error.
func (r *GenericRepository[E, R]) FindByID(ctx context.Context, id int64) (E, error) {
	var zero E
	if id <= 0 {
		return zero, nil
	}

	if e, ok := r.identity.Get(id); ok {
		r.metrics.IdentityHit.Inc(1)
		return e, nil
	}
	r.metrics.IdentityMiss.Inc(1)

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("context cancelled before operation: %w", err)
	}

	cacheKey := r.keys.forID(id)

	var rec R
	if r.cacheGet(ctx, cacheKey, &rec) {
		r.metrics.Get.Inc(1)
		return r.InstanceFromRecord(rec)
	}

	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.metrics.NotFound.Inc(1)
			return zero, nil
		}
		r.metrics.GetFail.Inc(1)
		return zero, fmt.Errorf("database error: %w", err)
	}
	r.metrics.Get.Inc(1)

	r.cacheSet(ctx, cacheKey, rec)
	return r.InstanceFromRecord(rec)
}

// GetAll returns every row in id order, materialised through the identity map
func (r *GenericRepository[E, R]) GetAll(ctx context.Context) ([]E, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before operation: %w", err)
	}

	cacheKey := r.keys.forOperation("find_all", "")

	var recs []R
	if !r.cacheGet(ctx, cacheKey, &recs) {
		if err := r.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
			r.metrics.GetFail.Inc(1)
			return nil, fmt.Errorf("database error: %w", err)
		}
		r.cacheSet(ctx, cacheKey, recs)
	}
	r.metrics.Get.Inc(1)

	return r.instancesFromRecords(recs)
}

// FindWhere returns the rows matching a where clause in id order.
// Column names in query must come from trusted code, never from user input;
// values are always passed as args.
func (r *GenericRepository[E, R]) FindWhere(ctx context.Context, query string, args ...interface{}) ([]E, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before operation: %w", err)
	}

	cacheKey := r.keys.forQuery("find_where", query, args...)

	var recs []R
	if !r.cacheGet(ctx, cacheKey, &recs) {
		if err := r.db.WithContext(ctx).Where(query, args...).Order("id").Find(&recs).Error; err != nil {
			r.metrics.GetFail.Inc(1)
			return nil, fmt.Errorf("database error: %w", err)
		}
		r.cacheSet(ctx, cacheKey, recs)
	}
	r.metrics.Get.Inc(1)

	return r.instancesFromRecords(recs)
}

// First returns the lowest-id row matching a where clause, or the zero E
func (r *GenericRepository[E, R]) First(ctx context.Context, query string, args ...interface{}) (E, error) {
	var zero E

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("context cancelled before operation: %w", err)
	}

	cacheKey := r.keys.forQuery("first", query, args...)

	var rec R
	if r.cacheGet(ctx, cacheKey, &rec) {
		r.metrics.Get.Inc(1)
		return r.InstanceFromRecord(rec)
	}

	if err := r.db.WithContext(ctx).Where(query, args...).Order("id").First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.metrics.NotFound.Inc(1)
			return zero, nil
		}
		r.metrics.GetFail.Inc(1)
		return zero, fmt.Errorf("database error: %w", err)
	}
	r.metrics.Get.Inc(1)

	r.cacheSet(ctx, cacheKey, rec)
	return r.InstanceFromRecord(rec)
}

// Count counts the rows of the table
func (r *GenericRepository[E, R]) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	var count int64
	if err := r.db.WithContext(ctx).Model(new(R)).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return count, nil
}

// Exists checks the table, not the identity map, for a row with id
func (r *GenericRepository[E, R]) Exists(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	var count int64
	if err := r.db.WithContext(ctx).Model(new(R)).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}

// ============================================================================
// IDENTITY MAP
// ============================================================================

// InstanceFromRecord converts a row into the entity tracked for its id.
// A tracked instance is refreshed in place; otherwise a new one is built
// and registered.
func (r *GenericRepository[E, R]) InstanceFromRecord(rec R) (E, error) {
	var zero E
	id := rec.GetPrimaryKeyValue()
	if id == 0 {
		return zero, fmt.Errorf("%s record has no primary key", r.mapping.Entity)
	}

	if e, ok := r.identity.Get(id); ok {
		if err := r.mapping.Refresh(e, rec); err != nil {
			return zero, fmt.Errorf("refresh %s %d: %w", r.mapping.Entity, id, err)
		}
		return e, nil
	}

	e, err := r.mapping.FromRecord(rec)
	if err != nil {
		return zero, fmt.Errorf("load %s %d: %w", r.mapping.Entity, id, err)
	}
	r.mapping.SetID(e, id)
	r.identity.Put(id, e)
	return e, nil
}

func (r *GenericRepository[E, R]) instancesFromRecords(recs []R) ([]E, error) {
	entities := make([]E, 0, len(recs))
	for _, rec := range recs {
		e, err := r.InstanceFromRecord(rec)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// Cached returns the tracked instance for id without touching the database
func (r *GenericRepository[E, R]) Cached(id int64) (E, bool) {
	return r.identity.Get(id)
}

// Tracked returns the number of instances in the identity map
func (r *GenericRepository[E, R]) Tracked() int {
	return r.identity.Len()
}

// Reset forgets every tracked instance. Instances already handed out keep
// their ids and may still be updated or deleted.
func (r *GenericRepository[E, R]) Reset() {
	r.identity.Clear()
}

// ============================================================================
// HELPER METHODS
// ============================================================================

func (r *GenericRepository[E, R]) validate(entity E) error {
	if r.mapping.Validate == nil {
		return nil
	}
	return r.mapping.Validate(entity)
}

// cacheGet reads key into target; any failure counts as a miss
func (r *GenericRepository[E, R]) cacheGet(ctx context.Context, key string, target interface{}) bool {
	if r.cache == nil {
		return false
	}
	err := r.cache.GetValue(ctx, key, target)
	if err == nil {
		return true
	}
	if !redis.IsKeyNotFound(err) {
		r.log.WithError(err).WithField("key", key).Warn("row cache read failed")
	}
	return false
}

// cacheSet stores value under key on a best effort basis
func (r *GenericRepository[E, R]) cacheSet(ctx context.Context, key string, value interface{}) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetValue(ctx, key, value); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("row cache write failed")
	}
}

// invalidate drops every cached row and query result for the table
func (r *GenericRepository[E, R]) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidatePattern(ctx, r.keys.tablePattern()); err != nil {
		r.log.WithError(err).Warn("row cache invalidation failed")
	}
}

// isNil reports whether e is nil or a nil pointer
func isNil(e interface{}) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
