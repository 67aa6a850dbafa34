package tools

import (
	"context"
	"strings"

	"github.com/pithecene-io/ocean/store"
	"github.com/pithecene-io/ocean/types"
)

// ClogResolver looks up registered adapters for peer calls.
type ClogResolver interface {
	Resolve(id string) (*types.Clog, bool)
}

// Factory builds tool invokers bound to a tick context. Each adapter gets
// its own invoker with an independent budget and ledger; a single shared
// invoker would let a peer silently spend the caller's budget.
type Factory struct {
	Scoped   *store.ScopedStore
	Events   *store.EventStore
	Resolver ClogResolver
	// OnEvent, when set, is called after every successful append. Used for
	// best-effort event mirroring; it must not fail the append.
	OnEvent func(ctx context.Context, event *types.EventEnvelope)
	// OnPeerCall, when set, is called before each dispatched peer call.
	OnPeerCall func(callerID, calleeID, method string)
}

// For returns a fresh invoker bound to (tc, clogID) with a zeroed budget
// and an empty ledger.
func (f *Factory) For(tc types.TickContext, clogID string) *Invoker {
	return &Invoker{
		factory: f,
		tc:      tc,
		clogID:  clogID,
		ledger:  NewLedger(),
	}
}

// Invoker is the per-adapter per-tick tool surface. Not goroutine-safe:
// a tick's handler runs synchronously and owns its invoker.
type Invoker struct {
	factory *Factory
	tc      types.TickContext
	clogID  string
	ledger  *Ledger

	readCalled  bool
	writeCalled bool
}

// Invoke dispatches a tool call by name. Handler-visible failures come back
// as coded errors in the result rather than Go errors, so adapter code can
// branch on Result.Error.Code.
func (v *Invoker) Invoke(ctx context.Context, name string, input any) types.Result {
	switch name {
	case types.ToolReadScoped:
		in, ok := asReadInput(input)
		if !ok {
			return types.ErrResult(types.NewToolError(types.CodeInvalidScope,
				"read_scoped expects ReadScopedInput, got %T", input))
		}
		return v.readScoped(ctx, in)
	case types.ToolWriteScoped:
		in, ok := asWriteInput(input)
		if !ok {
			return types.ErrResult(types.NewToolError(types.CodeInvalidScope,
				"write_scoped expects WriteScopedInput, got %T", input))
		}
		return v.writeScoped(ctx, in)
	case types.ToolEmit:
		in, ok := asEmitInput(input)
		if !ok {
			return types.ErrResult(types.NewToolError(types.CodeInvalidScope,
				"emit expects EmitInput, got %T", input))
		}
		return v.emit(ctx, in)
	case types.ToolClogCall:
		in, ok := asClogCallInput(input)
		if !ok {
			return types.ErrResult(types.NewToolError(types.CodeInvalidScope,
				"clog.call expects ClogCallInput, got %T", input))
		}
		return v.clogCall(ctx, in)
	default:
		return types.ErrResult(types.NewToolError(types.CodeUnknownTool,
			"unknown tool %q", name))
	}
}

// --- read_scoped ---

func (v *Invoker) readScoped(ctx context.Context, in types.ReadScopedInput) types.Result {
	if v.readCalled {
		return types.ErrResult(types.NewToolError(types.CodeReadAlreadyCalled,
			"read_scoped already called this tick for clog %q", v.clogID))
	}

	// Validate every plan before executing any; a validation failure does
	// not consume the read budget.
	for i := range in.Plans {
		if err := v.validatePlan(&in.Plans[i]); err != nil {
			return types.ErrResult(err)
		}
	}
	snapshot := make([]types.SnapshotEntry, 0, len(in.Plans))
	for i := range in.Plans {
		entry, err := v.executePlan(ctx, &in.Plans[i])
		if err != nil {
			return types.ErrResult(err)
		}
		snapshot = append(snapshot, *entry)
	}

	// The budget is spent only on success; a storage fault leaves the tick
	// able to retry the read.
	v.readCalled = true
	return types.OKResult(types.ReadScopedOutput{Snapshot: snapshot})
}

func (v *Invoker) validatePlan(plan *types.ReadPlan) *types.ToolError {
	switch plan.Kind {
	case types.PlanGlobal:
		return nil
	case types.PlanSession:
		if plan.SessionID != v.tc.SessionID {
			return types.NewToolError(types.CodeInvalidScope,
				"session plan targets %q, tick context is %q", plan.SessionID, v.tc.SessionID)
		}
	case types.PlanRun:
		if plan.RunID != v.tc.RunID {
			return types.NewToolError(types.CodeInvalidScope,
				"run plan targets %q, tick context is %q", plan.RunID, v.tc.RunID)
		}
	case types.PlanTickRows:
		if plan.RunID != v.tc.RunID || plan.TickID != v.tc.TickID {
			return types.NewToolError(types.CodeInvalidScope,
				"tick rows plan targets %s/%s, tick context is %s/%s",
				plan.RunID, plan.TickID, v.tc.RunID, v.tc.TickID)
		}
	case types.PlanHistory:
		if plan.RunID != v.tc.RunID {
			return types.NewToolError(types.CodeInvalidScope,
				"history plan targets %q, tick context is %q", plan.RunID, v.tc.RunID)
		}
		if plan.Order != "" && plan.Order != types.HistoryAsc && plan.Order != types.HistoryDesc {
			return types.NewToolError(types.CodeInvalidScope,
				"history plan has unknown order %q", plan.Order)
		}
	default:
		return types.NewToolError(types.CodeInvalidScope,
			"unknown read plan kind %q", plan.Kind)
	}
	return nil
}

func (v *Invoker) executePlan(ctx context.Context, plan *types.ReadPlan) (*types.SnapshotEntry, *types.ToolError) {
	entry := types.SnapshotEntry{Plan: plan.Kind}

	switch plan.Kind {
	case types.PlanGlobal:
		value, found, err := v.factory.Scoped.GetGlobal(ctx, v.clogID)
		if err != nil {
			return nil, internalErr(err)
		}
		if found {
			entry.Value = value
		}
		v.ledger.RecordGlobal()

	case types.PlanSession:
		value, found, err := v.factory.Scoped.GetSession(ctx, v.clogID, v.tc.SessionID)
		if err != nil {
			return nil, internalErr(err)
		}
		if found {
			entry.Value = value
		}
		v.ledger.RecordSession(v.tc.SessionID)

	case types.PlanRun:
		value, found, err := v.factory.Scoped.GetRun(ctx, v.clogID, v.tc.RunID)
		if err != nil {
			return nil, internalErr(err)
		}
		if found {
			entry.Value = value
		}
		v.ledger.RecordRun(v.tc.RunID)

	case types.PlanTickRows:
		rows, err := v.factory.Scoped.GetTickRows(ctx, v.clogID, v.tc.RunID, v.tc.TickID, plan.RowIDs)
		if err != nil {
			return nil, internalErr(err)
		}
		entry.Rows = rows
		// Requested row identities unlock writes whether or not a row
		// exists yet; an unfiltered read unlocks what it returned.
		v.ledger.RecordTickRead(v.tc.RunID, v.tc.TickID)
		for _, rowID := range plan.RowIDs {
			v.ledger.RecordTickRow(v.tc.RunID, v.tc.TickID, rowID)
		}
		for rowID := range rows {
			v.ledger.RecordTickRow(v.tc.RunID, v.tc.TickID, rowID)
		}

	case types.PlanHistory:
		ticks, err := v.factory.Scoped.History(ctx, v.clogID, v.tc.RunID,
			plan.RowIDs, plan.LimitTicks, plan.Order == types.HistoryDesc)
		if err != nil {
			return nil, internalErr(err)
		}
		entry.Ticks = ticks
		// History reads record nothing: they unlock no writes.
	}

	return &entry, nil
}

// --- write_scoped ---

func (v *Invoker) writeScoped(ctx context.Context, in types.WriteScopedInput) types.Result {
	if !v.readCalled {
		return types.ErrResult(types.NewToolError(types.CodeWriteBeforeRead,
			"write_scoped called before read_scoped for clog %q", v.clogID))
	}
	if v.writeCalled {
		return types.ErrResult(types.NewToolError(types.CodeWriteAlreadyCalled,
			"write_scoped already called this tick for clog %q", v.clogID))
	}

	// Fail fast: validate every op against the ledger before applying any.
	for i := range in.Ops {
		if err := v.validateOp(&in.Ops[i]); err != nil {
			return types.ErrResult(err)
		}
	}
	applied, err := v.factory.Scoped.ApplyOps(ctx, v.clogID, v.tc, in.Ops)
	if err != nil {
		return types.ErrResult(internalErr(err))
	}
	v.writeCalled = true
	return types.OKResult(types.WriteScopedOutput{Applied: applied})
}

func (v *Invoker) validateOp(op *types.WriteOp) *types.ToolError {
	rbw := func(target string) *types.ToolError {
		return types.NewToolError(types.CodeRBWViolation,
			"%s targets %s, which was not read this tick", op.Kind, target).
			WithDetail("op", string(op.Kind))
	}

	switch op.Kind {
	case types.OpGlobalSet, types.OpGlobalClear:
		if !v.ledger.HasGlobal() {
			return rbw("global row")
		}
	case types.OpSessionSet, types.OpSessionClear, types.OpSessionDelete:
		if !v.ledger.HasSession(v.tc.SessionID) {
			return rbw("session " + v.tc.SessionID)
		}
	case types.OpRunSet, types.OpRunClear, types.OpRunDelete:
		if !v.ledger.HasRun(v.tc.RunID) {
			return rbw("run " + v.tc.RunID)
		}
	case types.OpTickSet, types.OpTickDel:
		if op.RowID == "" {
			return types.NewToolError(types.CodeInvalidScope,
				"%s requires a row id", op.Kind)
		}
		if !v.ledger.HasTickRow(v.tc.RunID, v.tc.TickID, op.RowID) {
			return rbw("tick row " + op.RowID)
		}
	case types.OpTickDelete:
		if !v.ledger.HasTickRead(v.tc.RunID, v.tc.TickID) {
			return rbw("tick " + v.tc.TickID)
		}
	default:
		return types.NewToolError(types.CodeInvalidScope,
			"unknown write op kind %q", op.Kind)
	}
	return nil
}

// --- events.emit ---

func (v *Invoker) emit(ctx context.Context, in types.EmitInput) types.Result {
	if !in.Scope.Valid() {
		return types.ErrResult(types.NewToolError(types.CodeInvalidScope,
			"unknown event scope %q", in.Scope))
	}

	var sessionID, runID, tickID *string
	switch in.Scope {
	case types.ScopeSession:
		sessionID = &v.tc.SessionID
	case types.ScopeRun:
		sessionID, runID = &v.tc.SessionID, &v.tc.RunID
	case types.ScopeTick:
		sessionID, runID, tickID = &v.tc.SessionID, &v.tc.RunID, &v.tc.TickID
	}

	row, err := v.factory.Events.Append(ctx, in.Scope, sessionID, runID, tickID, in.Type, in.Payload)
	if err != nil {
		return types.ErrResult(internalErr(err))
	}

	if v.factory.OnEvent != nil {
		v.factory.OnEvent(ctx, row.Envelope())
	}
	return types.OKResult(types.EmitOutput{Seq: row.Seq, EventID: row.ID})
}

// --- clog.call ---

func (v *Invoker) clogCall(ctx context.Context, in types.ClogCallInput) types.Result {
	calleeID, method, err := ParseAddress(in.Address)
	if err != nil {
		return types.ErrResult(types.NewToolError(types.CodeUnknownClog,
			"bad address %q: %v", in.Address, err))
	}

	callee, ok := v.factory.Resolver.Resolve(calleeID)
	if !ok {
		return types.ErrResult(types.NewToolError(types.CodeUnknownClog,
			"clog %q is not registered", calleeID))
	}
	endpoint, ok := callee.Endpoints[method]
	if !ok {
		return types.ErrResult(types.NewToolError(types.CodeUnknownEndpoint,
			"clog %q has no endpoint %q", calleeID, method))
	}

	if v.factory.OnPeerCall != nil {
		v.factory.OnPeerCall(v.clogID, calleeID, method)
	}

	// Same tick, fresh budget: the callee gets its own invoker so it cannot
	// spend the caller's read/write allowance, and its ledger starts empty.
	peerTools := v.factory.For(v.tc, calleeID)
	result, callErr := endpoint(ctx, in.Payload, &types.EndpointContext{Tools: peerTools})
	if callErr != nil {
		return types.ErrResult(types.NewToolError(types.CodeInternal,
			"endpoint %s failed: %v", in.Address, callErr))
	}
	return types.OKResult(types.ClogCallOutput{Result: result})
}

// ParseAddress splits a peer-call address "clog.<id>.<method>" into its id
// and method. The method may itself contain dots.
func ParseAddress(address string) (clogID, method string, err error) {
	parts := strings.SplitN(address, ".", 3)
	if len(parts) != 3 || parts[0] != "clog" || parts[1] == "" || parts[2] == "" {
		return "", "", errInvalidAddress
	}
	return parts[1], parts[2], nil
}

var errInvalidAddress = addressError("address must have the form clog.<id>.<method>")

type addressError string

func (e addressError) Error() string { return string(e) }

func internalErr(err error) *types.ToolError {
	return types.NewToolError(types.CodeInternal, "%v", err)
}

// --- input coercion ---

func asReadInput(input any) (types.ReadScopedInput, bool) {
	switch in := input.(type) {
	case types.ReadScopedInput:
		return in, true
	case *types.ReadScopedInput:
		return *in, true
	}
	return types.ReadScopedInput{}, false
}

func asWriteInput(input any) (types.WriteScopedInput, bool) {
	switch in := input.(type) {
	case types.WriteScopedInput:
		return in, true
	case *types.WriteScopedInput:
		return *in, true
	}
	return types.WriteScopedInput{}, false
}

func asEmitInput(input any) (types.EmitInput, bool) {
	switch in := input.(type) {
	case types.EmitInput:
		return in, true
	case *types.EmitInput:
		return *in, true
	}
	return types.EmitInput{}, false
}

func asClogCallInput(input any) (types.ClogCallInput, bool) {
	switch in := input.(type) {
	case types.ClogCallInput:
		return in, true
	case *types.ClogCallInput:
		return *in, true
	}
	return types.ClogCallInput{}, false
}
