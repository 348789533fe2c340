package repository

import (
	"github.com/uber-go/tally/v4"
)

// Metrics tracks the row lifecycle and lookup paths of one repository
type Metrics struct {
	IdentityHit  tally.Counter
	IdentityMiss tally.Counter

	Create     tally.Counter
	CreateFail tally.Counter

	Update     tally.Counter
	UpdateFail tally.Counter

	Delete     tally.Counter
	DeleteFail tally.Counter

	Get      tally.Counter
	GetFail  tally.Counter
	NotFound tally.Counter
}

// NewMetrics returns a new Metrics struct tagged with the table name
func NewMetrics(scope tally.Scope, table string) *Metrics {
	if scope == nil {
		scope = tally.NoopScope
	}
	repoScope := scope.SubScope("repository").Tagged(map[string]string{"table": table})
	identityScope := repoScope.SubScope("identity")
	successScope := repoScope.Tagged(map[string]string{"result": "success"})
	failScope := repoScope.Tagged(map[string]string{"result": "fail"})
	notFoundScope := repoScope.Tagged(map[string]string{"result": "not_found"})

	return &Metrics{
		IdentityHit:  identityScope.Counter("hit"),
		IdentityMiss: identityScope.Counter("miss"),

		Create:     successScope.Counter("create"),
		CreateFail: failScope.Counter("create"),
		Update:     successScope.Counter("update"),
		UpdateFail: failScope.Counter("update"),
		Delete:     successScope.Counter("delete"),
		DeleteFail: failScope.Counter("delete"),
		Get:        successScope.Counter("get"),
		GetFail:    failScope.Counter("get"),
		NotFound:   notFoundScope.Counter("get"),
	}
}
