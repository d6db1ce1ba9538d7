// Package bundle assembles browser-deliverable JavaScript bundles.
//
// A Generator resolves the module graph below an entry point (see package
// resolver), rewrites each module's import/export statements into a small
// CommonJS-style loader, and concatenates everything into a single script:
//
//	(function (global) {
//	    ...loader runtime (define / require)...
//	    define("util.js", function (module, exports, require) { ... }, {});
//	    define("main.js", function (module, exports, require) { ... }, {"./util": "util.js"});
//	    ... require("main.js") ...
//	})(globalThis);
//
// Modules are registered in dependency order with the entry last. The
// entry's exports are published on globalThis.__kiln[entry].
//
// The transform is line and token based, not a JavaScript parser. It
// handles the common import/export forms and leaves anything it does not
// recognise untouched. Minification is likewise conservative: comments are
// dropped and whitespace runs collapsed outside string, template and regex
// literals.
//
// Result.Hash is a content fingerprint of Result.Code and is stable for a
// fixed source tree and Options.
package bundle
