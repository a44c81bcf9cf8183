package extensions

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/davecgh/go-spew/spew"

	fabrik "github.com/fabrik-go/fabrik"
)

var traceSpew = &spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true, DisableCapacities: true}

// BuildTraceObserver tracks which fields resolved during a build and, when
// an operation fails, logs the step chain and the attributes resolved so
// far. Attach one per build call; it keeps per-build state.
type BuildTraceObserver struct {
	fabrik.BaseObserver
	logger   *slog.Logger
	resolved []string
	failed   map[string]error
}

// NewBuildTraceObserver creates a build trace observer writing through
// handler.
func NewBuildTraceObserver(handler slog.Handler) *BuildTraceObserver {
	return &BuildTraceObserver{
		BaseObserver: fabrik.NewBaseObserver("build-trace"),
		logger:       slog.New(handler),
		failed:       make(map[string]error),
	}
}

// Resolved returns the fields resolved so far, in resolution order, as
// "factory.field" labels.
func (o *BuildTraceObserver) Resolved() []string {
	return append([]string(nil), o.resolved...)
}

func (o *BuildTraceObserver) Wrap(next func() (any, error), op *fabrik.Operation) (any, error) {
	result, err := next()
	if op.Kind == fabrik.OpEvaluate || op.Kind == fabrik.OpPostGeneration {
		label := op.FactoryName + "." + op.FieldName
		if err != nil {
			o.failed[label] = err
		} else {
			o.resolved = append(o.resolved, label)
		}
	}
	return result, err
}

func (o *BuildTraceObserver) OnError(err error, op *fabrik.Operation) {
	if op.Kind != fabrik.OpBuild {
		return
	}
	o.logger.Error("build failed",
		"factory", op.FactoryName,
		"error", err.Error(),
		"step_chain", o.formatChain(op.Step),
		"resolved", o.resolved,
		"attributes", strings.TrimSpace(traceSpew.Sdump(op.Step.Attributes())),
	)
}

func (o *BuildTraceObserver) formatChain(step *fabrik.BuildStep) string {
	var sb strings.Builder
	depth := 0
	for s := step; s != nil; s = s.Parent() {
		if depth == 0 {
			fmt.Fprintf(&sb, "%s (seq=%d)", s.FactoryName(), s.Sequence())
		} else {
			fmt.Fprintf(&sb, " -> %s (seq=%d)", s.FactoryName(), s.Sequence())
		}
		depth++
	}
	return sb.String()
}
