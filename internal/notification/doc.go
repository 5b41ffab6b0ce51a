// Package notification models a desktop notification record and its
// reversible flat text encoding.
//
// A record crosses process and storage boundaries as a flat map of field name
// to text (see [Entity.ToMap]). The list field (actions) is joined with "|",
// the map field (hints) is written as key!!!value| per entry.
package notification
