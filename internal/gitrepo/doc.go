// Package gitrepo implements the repository capability on top of the git CLI.
//
// RepositoryManager opens, clones and stages repositories. ConfigStore reads and edits
// git-config formatted files and committed blobs; every edit is applied to a temporary
// copy and renamed over the target while an advisory lock in the git directory is held.
package gitrepo
