package workflow

import (
	"fmt"

	"go.uber.org/zap"
)

// Supported actions.
const (
	ActionQueue   = "queue"
	ActionTag     = "tag"
	ActionLog     = "log"
	ActionWebhook = "webhook"
)

const (
	StatusCompleted = "completed"
	StatusIgnored   = "ignored"
)

type Result struct {
	Action  string
	Status  string
	Message string
}

// Executor carries out a routing decision.  Actions are side-effect-light
// placeholders; the audited decision trail is the point, not the delivery
// mechanism.
type Executor struct {
	logger *zap.Logger
}

func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

func (e *Executor) Execute(route Route) Result {
	res := Result{Action: route.Action, Status: StatusCompleted}

	switch route.Action {
	case ActionQueue:
		res.Message = "item queued for processing"
	case ActionTag:
		res.Message = "metadata tag applied"
		if route.Target != "" {
			res.Message = fmt.Sprintf("metadata tag %q applied", route.Target)
		}
	case ActionLog:
		res.Message = "logged only (no side effects)"
	case ActionWebhook:
		// TODO: deliver to route.Target once an outbound webhook sink exists.
		res.Message = "webhook execution placeholder"
		e.logger.Info("webhook route executed (placeholder)", zap.String("target", route.Target))
	default:
		res.Status = StatusIgnored
		res.Message = fmt.Sprintf("unknown action: %s", route.Action)
	}

	return res
}
