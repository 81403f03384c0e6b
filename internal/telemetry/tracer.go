package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys used on orchestration spans.
const (
	AttrPolicy   = "spoticord.policy"
	AttrStage    = "spoticord.stage"
	AttrDuty     = "spoticord.duty"
	AttrVariant  = "responder.variant"
	AttrAddress  = "responder.address"
	AttrDatabase = "db.system"
	AttrShards   = "discord.shards"
)

// Span names.
const (
	SpanStartup      = "orchestrator.startup"
	SpanOpenStore    = "orchestrator.open_store"
	SpanBuildClient  = "orchestrator.build_client"
	SpanRunPrimary   = "orchestrator.run_primary"
	SpanRunResponder = "orchestrator.run_responder"
	SpanShutdown     = "orchestrator.shutdown"
	SpanMigrate      = "store.migrate"
)

// Policy returns an attribute for the completion policy.
func Policy(name string) attribute.KeyValue {
	return attribute.String(AttrPolicy, name)
}

// Stage returns an attribute for the startup stage reached.
func Stage(name string) attribute.KeyValue {
	return attribute.String(AttrStage, name)
}

// Duty returns an attribute for a duty name.
func Duty(name string) attribute.KeyValue {
	return attribute.String(AttrDuty, name)
}

// Variant returns an attribute for the responder variant.
func Variant(name string) attribute.KeyValue {
	return attribute.String(AttrVariant, name)
}

// Address returns an attribute for a listen address.
func Address(addr string) attribute.KeyValue {
	return attribute.String(AttrAddress, addr)
}

// Database returns an attribute for the store backend.
func Database(kind string) attribute.KeyValue {
	return attribute.String(AttrDatabase, kind)
}

// Shards returns an attribute for the gateway shard count.
func Shards(n int) attribute.KeyValue {
	return attribute.Int(AttrShards, n)
}
