// Package parser extracts C++ entity declarations and relationships from raw
// source text.
//
// Extraction is pattern based. There is no AST and no preprocessor, so
// results are best effort: functions in this package never return errors and
// yield empty or partial structures on input they do not understand.
//
// # Basic Usage
//
//	x := parser.New()
//	entity := x.BuildGraph("FHitResult", headerText, "Engine/HitResult.h")
//	fmt.Print(parser.RenderTree(entity))
//
// BuildGraph caches every graph by entity name for the lifetime of the
// Extractor; Reset clears the cache.
//
// # Building Blocks
//
//   - ExtractInheritance: bases of the first class/struct definition
//   - ExtractMembers: annotated members, then plain uppercase-typed members
//   - ExtractDependencies: #include paths in order
//   - FindDeclarations / FindDefinition: locate entities for the catalog
//   - KindFromName: the F/U/A/I/E naming convention
package parser
