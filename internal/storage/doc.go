// Package storage provides the durable object store for source uploads and
// published outputs, plus HMAC-signed time-limited download links.
package storage
