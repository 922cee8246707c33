// Package git checks whether a wallet store sits inside a git work tree.
//
// Checks performed:
//   - Whether the store file is tracked by git (should not be)
//   - Whether the store file is in .gitignore (should be)
//
// The store holds encrypted seeds; committing it publishes them to anyone
// with access to the repository, where they are open to offline guessing.
package git
