package resolver

import (
	"regexp"
	"sort"
)

var specifierPatterns = []*regexp.Regexp{
	// import x from "y", import {a} from "y", export * from "y"
	regexp.MustCompile(`\bfrom\s*['"]([^'"\n]+)['"]`),
	// import "y"
	regexp.MustCompile(`\bimport\s*['"]([^'"\n]+)['"]`),
	// require("y"), import("y")
	regexp.MustCompile(`\b(?:require|import)\s*\(\s*['"]([^'"\n]+)['"]\s*\)`),
}

// Specifiers returns the module specifiers referenced by src, in source
// order, without duplicates.
func Specifiers(src []byte) []string {
	type hit struct {
		offset int
		spec   string
	}

	var hits []hit
	for _, re := range specifierPatterns {
		for _, m := range re.FindAllSubmatchIndex(src, -1) {
			hits = append(hits, hit{offset: m[2], spec: string(src[m[2]:m[3]])})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].offset < hits[j].offset
	})

	seen := make(map[string]bool, len(hits))
	specs := make([]string, 0, len(hits))
	for _, h := range hits {
		if seen[h.spec] {
			continue
		}
		seen[h.spec] = true
		specs = append(specs, h.spec)
	}
	return specs
}
