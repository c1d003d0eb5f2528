// Package story holds the rules that keep a branching story forest consistent:
// node lifecycle, viewer visibility, in-memory tree assembly and ancestry
// path resolution. Nothing here touches the database directly; storage is
// reached only through the small interfaces declared next to each algorithm.
package story
