package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey        contextKey = "trace_id"
	RequestIDKey      contextKey = "request_id"
	EventIDKey        contextKey = "event_id"
	OrganizationIDKey contextKey = "organization_id"
	ModuleNameKey     contextKey = "module_name"
	ServiceNameKey    contextKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

// WithScope tags ctx with the tenant scope of an evaluation.
func WithScope(ctx context.Context, organizationID, moduleName string) context.Context {
	ctx = context.WithValue(ctx, OrganizationIDKey, organizationID)
	return context.WithValue(ctx, ModuleNameKey, moduleName)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

func GetEventID(ctx context.Context) string {
	return stringValue(ctx, EventIDKey)
}

func GetOrganizationID(ctx context.Context) string {
	return stringValue(ctx, OrganizationIDKey)
}

func GetModuleName(ctx context.Context) string {
	return stringValue(ctx, ModuleNameKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if eventID := GetEventID(ctx); eventID != "" {
		fields = append(fields, "event_id", eventID)
	}

	if orgID := GetOrganizationID(ctx); orgID != "" {
		fields = append(fields, "organization_id", orgID)
	}

	if module := GetModuleName(ctx); module != "" {
		fields = append(fields, "module_name", module)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
