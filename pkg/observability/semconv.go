// Package observability provides orderflow-specific instrumentation helpers.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Order-pipeline semantic convention attributes.
var (
	// Entity attributes
	AttrEntityID   = attribute.Key("orderflow.entity.id")
	AttrEntityType = attribute.Key("orderflow.entity.type")

	// OrgVM attributes
	AttrOrgVMState  = attribute.Key("orderflow.orgvm.state")
	AttrOrgVMEpoch  = attribute.Key("orderflow.orgvm.epoch")
	AttrOrgVMAction = attribute.Key("orderflow.orgvm.action")

	// Morphogenesis attributes
	AttrMutationID     = attribute.Key("orderflow.mutation.id")
	AttrMutationField  = attribute.Key("orderflow.mutation.field")
	AttrMutationStatus = attribute.Key("orderflow.mutation.status")

	// PDP/Governance attributes
	AttrPolicyDomain = attribute.Key("orderflow.policy.domain")
	AttrPolicyAction = attribute.Key("orderflow.policy.action")
	AttrPDPDecision  = attribute.Key("orderflow.pdp.decision")
	AttrPDPLatencyMs = attribute.Key("orderflow.pdp.latency_ms")

	// Compliance attributes
	AttrJurisdiction = attribute.Key("orderflow.compliance.jurisdiction")
	AttrRegulation   = attribute.Key("orderflow.compliance.regulation")
	AttrObligationID = attribute.Key("orderflow.compliance.obligation_id")
	AttrComplianceOK = attribute.Key("orderflow.compliance.compliant")

	// PQC Crypto attributes
	AttrCryptoAlgorithm = attribute.Key("orderflow.crypto.algorithm")
	AttrCryptoOperation = attribute.Key("orderflow.crypto.operation")
	AttrCryptoKeyID     = attribute.Key("orderflow.crypto.key_id")
)

// OrgVMOperation creates attributes for OrgVM operations.
func OrgVMOperation(entityID, state, action string, epoch int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEntityID.String(entityID),
		AttrOrgVMState.String(state),
		AttrOrgVMAction.String(action),
		AttrOrgVMEpoch.Int64(epoch),
	}
}

// MutationOperation creates attributes for mutation operations.
func MutationOperation(entityID, mutationID, field, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEntityID.String(entityID),
		AttrMutationID.String(mutationID),
		AttrMutationField.String(field),
		AttrMutationStatus.String(status),
	}
}

// PDPOperation creates attributes for PDP evaluation.
func PDPOperation(domain, action, decision string, latencyMs float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrPolicyDomain.String(domain),
		AttrPolicyAction.String(action),
		AttrPDPDecision.String(decision),
		AttrPDPLatencyMs.Float64(latencyMs),
	}
}

// ComplianceOperation creates attributes for compliance checks.
func ComplianceOperation(jurisdiction, regulation, obligationID string, compliant bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrJurisdiction.String(jurisdiction),
		AttrRegulation.String(regulation),
		AttrObligationID.String(obligationID),
		AttrComplianceOK.Bool(compliant),
	}
}

// CryptoOperation creates attributes for cryptographic operations.
func CryptoOperation(algorithm, operation, keyID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCryptoAlgorithm.String(algorithm),
		AttrCryptoOperation.String(operation),
		AttrCryptoKeyID.String(keyID),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus sets the span status based on error.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
