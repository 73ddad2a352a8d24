/*
Package render compiles and executes text templates against a canonical
configuration mapping.

The grammar and evaluation are delegated entirely to the standard
text/template engine; this package contributes the policy around it: a
fixed, vetted function allow-list, a static guard that rejects template
invocation constructs and oversized literal loop bounds, forgiving versus
strict handling of undefined variables, an execution budget that bounds
runaway output, and optional whitespace post-processing of the result.

Errors never propagate as panics or Go errors across the rendering
boundary. Every call returns a Result that is either the rendered text with
accumulated warnings or a classified failure with source location context.
*/
package render
