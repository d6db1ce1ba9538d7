package bundle

import (
	"encoding/json"
	"strings"
)

// runtimeHeader opens the bundle IIFE and defines the loader. Module
// factories are called as factory(module, exports, require) where require
// resolves specifiers through the module's dependency map and falls back to
// a host require for externals.
const runtimeHeader = `(function (global) {
var __kilnRegistry = {};
var __kilnCache = {};
var __kilnHas = Object.prototype.hasOwnProperty;
function define(id, factory, deps) {
  __kilnRegistry[id] = { factory: factory, deps: deps || {} };
}
function require(id) {
  if (__kilnHas.call(__kilnCache, id)) return __kilnCache[id].exports;
  var def = __kilnRegistry[id];
  if (!def) throw new Error("kiln: unknown module " + id);
  var module = { id: id, exports: {} };
  __kilnCache[id] = module;
  def.factory.call(module.exports, module, module.exports, function (spec) {
    if (__kilnHas.call(def.deps, spec)) return require(def.deps[spec]);
    if (typeof global.require === "function") return global.require(spec);
    throw new Error("kiln: cannot find module '" + spec + "' from " + id);
  });
  return module.exports;
}
function __kilnDefault(m) {
  return m && m.__esModule ? m["default"] : m;
}
function __kilnExport(exports, getters) {
  for (var k in getters) {
    if (__kilnHas.call(getters, k)) Object.defineProperty(exports, k, { enumerable: true, get: getters[k] });
  }
}
function __kilnStar(exports, m) {
  Object.keys(m).forEach(function (k) {
    if (k === "default" || __kilnHas.call(exports, k)) return;
    Object.defineProperty(exports, k, { enumerable: true, get: function () { return m[k]; } });
  });
}
function __kilnImport(req, spec) {
  return Promise.resolve().then(function () { return req(spec); });
}
`

const runtimeFooter = `})(typeof globalThis !== "undefined" ? globalThis : this);
`

// hydrationTemplate mounts the entry against the root element. %ENTRY% and
// %ROOT% are replaced with JSON string literals.
const hydrationTemplate = `(function (global) {
  if (typeof document === "undefined") return;
  var m = global.__kiln && global.__kiln[%ENTRY%];
  if (!m) return;
  var el = document.getElementById(%ROOT%);
  var names = ["hydrate", "mount", "render"];
  var targets = [m, m["default"]];
  for (var i = 0; i < targets.length; i++) {
    var t = targets[i];
    if (!t) continue;
    for (var j = 0; j < names.length; j++) {
      if (typeof t[names[j]] === "function") {
        t[names[j]](el);
        return;
      }
    }
  }
})(typeof globalThis !== "undefined" ? globalThis : this);
`

// jsString returns s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// writeDefine appends one module registration.
func writeDefine(b *strings.Builder, id, body string, deps map[string]string) {
	depJSON, err := json.Marshal(deps)
	if err != nil || len(deps) == 0 {
		depJSON = []byte("{}")
	}
	b.WriteString("define(")
	b.WriteString(jsString(id))
	b.WriteString(", function (module, exports, require) {\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("}, ")
	b.Write(depJSON)
	b.WriteString(");\n")
}

// writeEntry runs the entry and publishes its exports.
func writeEntry(b *strings.Builder, entry string) {
	id := jsString(entry)
	b.WriteString("global.__kiln = global.__kiln || {};\n")
	b.WriteString("global.__kiln[" + id + "] = require(" + id + ");\n")
}

func hydrationCode(entry, rootID string) string {
	r := strings.NewReplacer("%ENTRY%", jsString(entry), "%ROOT%", jsString(rootID))
	return r.Replace(hydrationTemplate)
}
