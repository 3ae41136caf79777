// Package executor drives one project through the stage table.
//
// Execute is a guarded sequential walk. Terminal states are returned
// untouched. Otherwise every transition is persisted before the next
// side-effecting call, so a crash leaves the state record at the last
// completed boundary and a later run resumes there. Stages with work attached
// (script generation, audio synthesis) run when the walk enters them; once no
// later stage has work the walk commits directly to the table's final stage.
//
// Any failure is converted into a persisted ErrorState carrying the last
// persisted stage, then returned to the caller.
package executor
