// Package wire is the external interface surface: the request/response
// types and fixed HTTP routes a shard node exposes, and the pooled Client
// used to call them.
//
// This is a deliberately small stand-in for the request/response transport
// the rest of the module assumes is already available off the shelf. It is
// JSON-over-HTTP rather than a generated RPC stub because no gRPC/protobuf
// toolchain appears anywhere in this module's reference material; the
// request/response field names and semantics still match the RPC table one
// for one, so swapping in a generated stub later only touches this package.
package wire
