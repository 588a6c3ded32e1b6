// Package acquire stages source media into job workspaces from the object
// store or remote URLs.
package acquire
