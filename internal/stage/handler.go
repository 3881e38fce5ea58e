package stage

import (
	"context"
	"strings"
)

// Handler describes the contract the orchestrator needs from each stage. J is
// the run-scoped work state a stage reads and extends.
type Handler[J any] interface {
	Execute(context.Context, J) error
	HealthCheck(context.Context) Health
}

// Health summarizes whether a stage can accept work.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Unhealthy reports a stage that cannot run.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Need is one precondition of a stage and the detail reported when it is unmet.
type Need struct {
	Met    bool
	Detail string
}

// Requires builds a Need.
func Requires(met bool, detail string) Need {
	return Need{Met: met, Detail: detail}
}

// Assess checks every need and reports all unmet ones together, so a stage
// missing two settings shows both at once.
func Assess(name string, needs ...Need) Health {
	var unmet []string
	for _, need := range needs {
		if !need.Met {
			unmet = append(unmet, need.Detail)
		}
	}
	if len(unmet) > 0 {
		return Unhealthy(name, strings.Join(unmet, "; "))
	}
	return Health{Name: name, Ready: true}
}
