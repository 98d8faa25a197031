// Package submodules manages nested repository references: child repositories pinned by a parent
// at a path and commit.
//
// A reference lives on three surfaces that change independently. The metadata file committed in
// the parent records the intended path and url. The parent's local configuration records the url
// actually used for fetches. The child checkout holds the commit that is really present.
//
// Registry reads and writes the two textual surfaces. Walker enumerates references in path order
// from either the committed tree or the index. Manager sequences add, update, sync and remove so
// that a failure part way through leaves the parent reconstructable.
package submodules
