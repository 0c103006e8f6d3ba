// Package core defines the shared data model and execution contracts of the
// engine: the Event/Content/Part wire types, the polymorphic Agent interface,
// the per-invocation RunContext, the RunConfig options, the collaborator
// service interfaces (session, artifact, memory) and the error taxonomy.
//
// Every other package depends on core; core depends on nothing above it.
package core
