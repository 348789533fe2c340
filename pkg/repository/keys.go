package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Cache key constants for consistent key generation.
// The row cache adds its own prefix in front of these keys.
const (
	cacheKeySeparator  = ":"
	cacheKeyHashLength = 12
)

// keyBuilder produces row cache keys isolated per database and table
type keyBuilder struct {
	dbName    string
	tableName string
}

// forOperation creates a cache key for simple operations, e.g.
// "main:employees:find_by_id:7"
func (k keyBuilder) forOperation(operation, suffix string) string {
	parts := []string{k.dbName, k.tableName, operation}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, cacheKeySeparator)
}

// forID creates the point lookup key for a row id
func (k keyBuilder) forID(id int64) string {
	return k.forOperation("find_by_id", fmt.Sprintf("%d", id))
}

// forQuery creates a cache key from a where clause and its arguments.
// The clause and arguments are hashed with xxhash to keep keys short.
func (k keyBuilder) forQuery(operation, query string, args ...interface{}) string {
	argsData, err := json.Marshal(args)
	if err != nil {
		argsData = []byte(fmt.Sprintf("%v", args))
	}

	hash := xxhash.Sum64String(query + cacheKeySeparator + string(argsData))
	hashStr := fmt.Sprintf("%016x", hash)
	return k.forOperation(operation, hashStr[:cacheKeyHashLength])
}

// tablePattern matches every key cached for the table
func (k keyBuilder) tablePattern() string {
	return k.forOperation("*", "")
}
