package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/engram-dev/engram/pkg/domain/model"
	"github.com/engram-dev/engram/pkg/domain/types"
	"github.com/engram-dev/engram/pkg/tenant"
	"github.com/engram-dev/engram/pkg/usecase"
	"github.com/engram-dev/engram/pkg/utils/errutil"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// TenantIDArg is the argument key carrying the caller's tenant.
const TenantIDArg = "tenantId"

// Dispatcher routes named operations to registered tools. Every
// invocation runs through the same stages: argument parse, tenant
// resolution, tenant binding, tool invocation, envelope rendering.
// Each stage is a possible exit point; the first failure wins.
type Dispatcher struct {
	tools    map[string]gollem.Tool
	order    []string
	registry *model.TenantRegistry
	audit    *usecase.AuditUseCase
}

type DispatcherOption func(*Dispatcher)

// WithTenantRegistry makes dispatch reject tenants the registry does
// not declare. Without it (or with an empty registry) any well-formed
// tenant ID is accepted.
func WithTenantRegistry(registry *model.TenantRegistry) DispatcherOption {
	return func(d *Dispatcher) {
		d.registry = registry
	}
}

// WithAuditLog records every dispatch outcome asynchronously.
func WithAuditLog(audit *usecase.AuditUseCase) DispatcherOption {
	return func(d *Dispatcher) {
		d.audit = audit
	}
}

func NewDispatcher(tools []gollem.Tool, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		tools: make(map[string]gollem.Tool),
	}
	for _, t := range tools {
		d.Register(t)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a tool under its spec name, replacing any previous
// tool of the same name.
func (d *Dispatcher) Register(t gollem.Tool) {
	name := t.Spec().Name
	if _, exists := d.tools[name]; !exists {
		d.order = append(d.order, name)
	}
	d.tools[name] = t
}

// Specs returns the registered tool specs in registration order.
func (d *Dispatcher) Specs() []gollem.ToolSpec {
	specs := make([]gollem.ToolSpec, 0, len(d.order))
	for _, name := range d.order {
		specs = append(specs, d.tools[name].Spec())
	}
	return specs
}

// Operations returns the registered operation names in registration
// order.
func (d *Dispatcher) Operations() []string {
	return append([]string{}, d.order...)
}

// Execute runs the named operation and always returns an envelope:
// {success: true, tenantId, ...tool fields} or {success: false, error,
// errorCode, errorCategory, timestamp}. It never returns an error;
// failures are classified and rendered instead.
func (d *Dispatcher) Execute(ctx context.Context, operation string, args map[string]any) map[string]any {
	startTime := time.Now()

	// Unknown operations exit before any tenant context is bound.
	t, ok := d.tools[operation]
	if !ok {
		env := d.errorEnvelope(ctx, fmt.Errorf("%w: unknown operation: %s", ErrInvalidArgument, operation))
		env["error"] = fmt.Sprintf("Unknown operation: %s", operation)
		d.record(ctx, "", operation, startTime, types.ErrorCategoryValidation)
		return env
	}

	if args == nil {
		env := d.errorEnvelope(ctx, goerr.Wrap(ErrInvalidArgument, "missing argument bundle",
			goerr.V("operation", operation)))
		d.record(ctx, "", operation, startTime, types.ErrorCategoryValidation)
		return env
	}

	rawTenant, _ := args[TenantIDArg].(string)
	tenantID, err := types.NormalizeTenantID(rawTenant)
	if err != nil {
		env := d.errorEnvelope(ctx, goerr.Wrap(err, "invalid tenantId argument",
			goerr.V("field", TenantIDArg)))
		d.record(ctx, "", operation, startTime, types.ErrorCategoryValidation)
		return env
	}

	if d.registry != nil && !d.registry.Empty() {
		if _, err := d.registry.Get(tenantID); err != nil {
			env := d.errorEnvelope(ctx, err)
			d.record(ctx, tenantID, operation, startTime, types.ErrorCategoryTenant)
			return env
		}
	}

	var result map[string]any
	runErr := tenant.Run(ctx, tenantID.String(), func(ctx context.Context) error {
		var err error
		result, err = t.Run(ctx, args)
		return err
	})
	if runErr != nil {
		env := d.errorEnvelope(ctx, runErr)
		d.record(ctx, tenantID, operation, startTime, Classify(runErr))
		return env
	}

	env := map[string]any{}
	for k, v := range result {
		env[k] = v
	}
	env["success"] = true
	env[TenantIDArg] = tenantID.String()

	d.record(ctx, tenantID, operation, startTime, "")
	return env
}

// errorEnvelope classifies the failure and renders the uniform error
// shape. Unclassified failures reach the caller as a generic message;
// the detail stays in the server log.
func (d *Dispatcher) errorEnvelope(ctx context.Context, err error) map[string]any {
	category := Classify(err)

	message := err.Error()
	if category == types.ErrorCategoryInternal {
		_ = errutil.Handle(ctx, err, "tool dispatch failed")
		message = "internal error"
	}

	env := map[string]any{
		"success":       false,
		"error":         message,
		"errorCode":     category.Code(),
		"errorCategory": category.String(),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}

	var ge *goerr.Error
	if category != types.ErrorCategoryInternal && errors.As(err, &ge) {
		if values := ge.Values(); len(values) > 0 {
			env["details"] = values
		}
	}

	return env
}

func (d *Dispatcher) record(ctx context.Context, tenantID types.TenantID, operation string, startTime time.Time, category types.ErrorCategory) {
	if d.audit == nil {
		return
	}

	entry := &model.AuditLog{
		TenantID:  tenantID,
		Operation: operation,
		Success:   category == "",
		LatencyMS: time.Since(startTime).Milliseconds(),
	}
	if category != "" {
		entry.ErrorCategory = category.String()
	}
	d.audit.Record(ctx, entry)
}
