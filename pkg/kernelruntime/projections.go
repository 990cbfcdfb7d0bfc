package kernelruntime

// NoopProjections is the interfaces.ProjectionEngine the Runtime holds until
// a real projection store exists. Runtime only keeps a reference today (see
// Query's "For Node 7" comment); this satisfies that dependency without
// pretending a projection rebuild path exists yet.
type NoopProjections struct{}
