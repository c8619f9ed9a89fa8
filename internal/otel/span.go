// Package otel provides OpenTelemetry instrumentation helpers for the replication server.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// Attribute keys shared by every span of the replication server.
const (
	AttrResourceType = attribute.Key("resource.type")
	AttrResourceID   = attribute.Key("resource.id")
	AttrDecision     = attribute.Key("sync.decision")
	AttrOutcome      = attribute.Key("replication.outcome")
	AttrNodeName     = attribute.Key("node.name")
	AttrEventCount   = attribute.Key("events.count")
)

// ResourceAttributes returns the attributes identifying key
func ResourceAttributes(key resource.Key) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrResourceType.String(string(key.Type)),
		AttrResourceID.String(key.ID),
	}
}

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// The status description stays generic so remote URLs and credentials never
// reach the trace status. The full error is kept in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
