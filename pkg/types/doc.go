// Package types defines the property aggregate, its child record types, the
// keyed Collection container, the collaborator interfaces the editing engine
// calls into, and the standard errors for the gazetteer.
package types
