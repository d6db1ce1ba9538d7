// Package resolver walks the static import graph of a JavaScript module.
//
// Resolution is textual: specifiers are extracted from import, export-from,
// require() and dynamic import() forms with regular expressions rather than
// a language parser. A specifier that only appears inside a comment or a
// string literal is still picked up; this is a known limitation.
//
// Module identity is the slash-separated path relative to the resolution
// root (an fs.FS), so bundles never embed host filesystem layout.
//
//	r := resolver.New(os.DirFS("src"), resolver.Options{
//	    Extensions: []string{".js", ".ts"},
//	    MaxDepth:   64,
//	})
//	modules, err := r.Resolve(ctx, "main.js")
//	// modules is post-order: dependencies first, main.js last.
package resolver
