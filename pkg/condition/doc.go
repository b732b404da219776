// Package condition implements the rule condition language: field extraction, operator
// comparison, nested AND/OR trees with short-circuit evaluation and a complexity guard.
//
// Conditions arrive as Node values (decoded from rule rows or API bodies). A Node is checked
// by Guard.Validate, turned into a Condition by Compile and evaluated by an Evaluator.
package condition
