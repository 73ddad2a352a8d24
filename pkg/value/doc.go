/*
Package value defines the canonical in-memory representation of a parsed
configuration file, independent of its source format.

Every parsed document becomes a tree of Value nodes drawn from a closed set
of kinds: String, Number, Bool, Null, List, and Map. Maps preserve the key
declaration order of the source document, which plain Go maps cannot do.
Downstream consumers (the template renderer and the debug formatter) operate
over this single sum type rather than on format-specific shapes.

A Value tree is immutable after construction by convention: parsers build it
once and everything else only reads it.
*/
package value
