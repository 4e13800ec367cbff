// Package codegen generates the short numeric passcodes sent to users.
//
// Callers should depend on the Generator interface so tests can substitute a
// deterministic sequence of codes.
package codegen
