// Package indexcodec persists search indexes as a msgpack document stream
// behind a small uncompressed header that names the compression codec.
//
// Streaming codecs (none, gzip, zstd, brotli) encode and compress documents
// as they are visited, so serialization memory stays bounded by the codec
// window. Block codecs such as s2 buffer the encoded stream first.
package indexcodec
