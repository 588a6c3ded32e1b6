// Package textutil sanitizes caller-supplied text before it becomes part of
// an object key or a filesystem path. Object keys embed user ids and upload
// filenames verbatim, so both are scrubbed here first.
package textutil
