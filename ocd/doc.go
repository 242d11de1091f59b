// Package ocd reads and writes OCD, the engine's chunked binary resource
// format.
//
// Every OCD file starts with an 8-byte header: a little-endian FourCC
// ("OCD ") followed by a resource type id. The payload that follows is
// type specific and made of fixed-size records plus variable-length data
// blocks. All multi-byte values are little-endian and all records and
// blocks start on 8-byte boundaries.
//
// # Images
//
//	[u32 fourcc][u32 type=TypeImage]
//	[u32 format][u32 mipCount]
//	mipCount x [u64 offset][u64 size][u32 width][u32 height]
//	[u64 dataSize][dataSize bytes]
//
// Mip offsets are relative to the start of the trailing data block.
//
// # Scenes
//
//	[u32 fourcc][u32 type=TypeScene]
//	[u32 subresourceCount][u32 objectCount]
//	[u64 subresourcesOffset][u64 objectsOffset][u64 payloadSize]
//	subresource records, object records, component records,
//	component data, subresource data, string data
//
// Every offset stored in a scene (section offsets, pathOffset, nameOffset,
// componentsOffset, dataOffset) is absolute from the first byte of the
// file. The SceneBuilder writes them block-relative first and globalizes
// them in a second pass once every section has been laid out.
//
// Objects form a tree through parent, first/last child and sibling
// indices. ObjectNone marks a missing link.
package ocd
