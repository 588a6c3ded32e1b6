// Package services holds cross-cutting helpers shared by pipeline
// components: the error taxonomy used to classify stage failures, and
// context annotations that flow job/user/stage identifiers into logs.
package services
