// Package gitignore implements gitignore-syntax pattern matching, used by
// internal/scanner to decide which files a project's indexing run should
// skip (vendored dependencies, build output, anything the project's own
// .gitignore already excludes from version control).
//
// Pattern syntax follows https://git-scm.com/docs/gitignore:
//   - literal and glob segments (*.log, temp/)
//   - wildcards (*, ?, **)
//   - root-anchored patterns (/build)
//   - negation (!important.log)
//   - directory-only patterns (build/)
//   - patterns contributed by nested .gitignore files at different depths
//
// A Matcher is safe for concurrent use, since the scanner walks a project
// tree with multiple worker goroutines.
//
// Usage:
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddPattern("/build/")
//
//	if m.Match("error.log", false) {
//	    // excluded from indexing
//	}
//
// Nested .gitignore files contribute patterns scoped to their own
// subdirectory:
//
//	m.AddFromFile("/path/to/project/.gitignore", "")
//	m.AddFromFile("/path/to/project/src/.gitignore", "src")
package gitignore
