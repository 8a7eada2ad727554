package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/server/internal/docuflow/security"
	"github.com/docuflow/server/internal/docuflow/store"
	"github.com/docuflow/server/internal/docuflow/types"
	"github.com/docuflow/server/internal/docuflow/workflow"
	"github.com/docuflow/server/internal/nlp"
)

// WorkflowService classifies free text and routes it through the rule
// table.  Execution and rule reloads are capability-gated and audited.
type WorkflowService struct {
	router    *workflow.Router
	exec      *workflow.Executor
	eval      *security.Evaluator
	audit     store.AuditStore
	rulesPath string
	logger    *zap.Logger
}

func NewWorkflowService(
	router *workflow.Router,
	exec *workflow.Executor,
	eval *security.Evaluator,
	audit store.AuditStore,
	rulesPath string,
	logger *zap.Logger,
) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		router:    router,
		exec:      exec,
		eval:      eval,
		audit:     audit,
		rulesPath: rulesPath,
		logger:    logger,
	}
}

func (s *WorkflowService) Execute(ctx context.Context, role string, req types.WorkflowRequest) (types.WorkflowResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return types.WorkflowResponse{}, invalidf("text", "text is required")
	}

	decision := s.eval.DecideCapability(role, security.CapExecuteWorkflow)
	if !decision.Allowed {
		if err := s.auditWorkflow(ctx, role, opWorkflow, store.DecisionDenied, store.OutcomeSkipped, decision.Reason); err != nil {
			return types.WorkflowResponse{}, err
		}
		return types.WorkflowResponse{}, &AccessDeniedError{Reason: decision.Reason}
	}

	cls := nlp.Classify(text)
	route := s.router.Route(cls.Label, text)
	result := s.exec.Execute(route)

	s.logger.Info("workflow executed",
		zap.String("role", role),
		zap.String("classification", cls.Label),
		zap.String("action", result.Action),
		zap.String("status", result.Status))

	if err := s.auditWorkflow(ctx, role, opWorkflow, store.DecisionAllowed, store.OutcomeCompleted, result.Action); err != nil {
		return types.WorkflowResponse{}, err
	}

	return types.WorkflowResponse{
		OK:             true,
		Classification: cls.Label,
		Confidence:     cls.Confidence,
		Action:         result.Action,
		Status:         result.Status,
		Message:        result.Message,
	}, nil
}

// ReloadRules re-reads the rule table from the configured file and swaps it
// in atomically.  Requires the manage_rules capability.
func (s *WorkflowService) ReloadRules(ctx context.Context, role string) error {
	decision := s.eval.DecideCapability(role, security.CapManageRules)
	if !decision.Allowed {
		if err := s.auditWorkflow(ctx, role, opManageRules, store.DecisionDenied, store.OutcomeSkipped, decision.Reason); err != nil {
			return err
		}
		return &AccessDeniedError{Reason: decision.Reason}
	}

	rules, err := workflow.LoadRules(s.rulesPath)
	if err != nil {
		if auditErr := s.auditWorkflow(ctx, role, opManageRules, store.DecisionAllowed, store.OutcomeFailed, "rules_load_failed"); auditErr != nil {
			return auditErr
		}
		return err
	}
	s.router.Reload(rules)
	s.logger.Info("workflow rules reloaded", zap.String("path", s.rulesPath), zap.Int("routes", len(rules.Routes)))

	return s.auditWorkflow(ctx, role, opManageRules, store.DecisionAllowed, store.OutcomeCompleted, decision.Reason)
}

func (s *WorkflowService) auditWorkflow(ctx context.Context, role, op, decision, outcome, reason string) error {
	rec := store.AuditRecord{
		Role:      role,
		Operation: op,
		Decision:  decision,
		Outcome:   outcome,
		Reason:    reason,
	}
	rec.Timestamp = time.Now().UTC()
	if _, err := s.audit.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("audit append failed", zap.String("operation", op), zap.Error(err))
		return err
	}
	return nil
}
