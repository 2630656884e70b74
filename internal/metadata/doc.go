// Package metadata describes how Go structs map onto graph nodes.
//
// A struct becomes a node class once registered. Its label is the type
// name unless the type implements Labeler. Exported fields become node
// properties, except pointer-to-struct and slice-of-pointer-to-struct
// fields, which become relationships to other registered classes.
//
// Fields are tuned with the ogm struct tag, options separated by ';':
//
//	ID       *int64     `ogm:"id"`
//	Name     string     `ogm:"name=title;unique"`
//	Updated  time.Time  `ogm:"converter=epochmillis"`
//	Program  *Program   `ogm:"relationship=BELONGS_TO;direction=outgoing"`
//	Scratch  string     `ogm:"-"`
//
// Property names default to the field name with a lower-case first letter.
// Relationship types default to the upper snake case field name.
package metadata
