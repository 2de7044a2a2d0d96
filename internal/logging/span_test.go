package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestStartSpanEnrichesContextAndLogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	ctx, span := StartSpan(ctx, "paginate videos")

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		t.Fatal("expected a trace id on the derived context")
	}
	spanID := SpanIDFromContext(ctx)
	if spanID == "" {
		t.Fatal("expected a span id on the derived context")
	}

	span.End()

	out := buf.String()
	if !strings.Contains(out, "span completed") {
		t.Fatalf("expected completion log, got %q", out)
	}
	if !strings.Contains(out, "paginate videos") || !strings.Contains(out, spanID) {
		t.Fatalf("expected span metadata in log, got %q", out)
	}
}

func TestStartSpanLinksChildToParent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	ctx, parent := StartSpan(ctx, "handle request")
	parentID := SpanIDFromContext(ctx)

	childCtx, child := StartSpan(ctx, "paginate comments")
	if TraceIDFromContext(childCtx) != TraceIDFromContext(ctx) {
		t.Fatal("expected child to share the parent's trace id")
	}
	if SpanIDFromContext(childCtx) == parentID {
		t.Fatal("expected child to get its own span id")
	}

	child.End()
	parent.End()

	out := buf.String()
	if !strings.Contains(out, "parent_span_id") || !strings.Contains(out, parentID) {
		t.Fatalf("expected child completion to reference the parent span, got %q", out)
	}
}

func TestEndOnNilSpanIsSafe(t *testing.T) {
	var span *Span
	span.End()
}
