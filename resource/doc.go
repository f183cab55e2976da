// Package resource provides the handle table that holds objects activated
// inside an isolated context.
//
// Each context owns one Table. A proxy keeps only the handle; the object
// itself never leaves the table until the proxy is closed:
//
//	table := resource.NewTable()
//	h, err := table.Insert("*linker.PathResolver", resolver)
//	v, ok := table.GetKind(h, "*linker.PathResolver")
//	table.Remove(h)
//
// Handle 0 is never issued. Values implementing Dropper are dropped when they
// leave the table, including when the table closes with the context.
package resource
