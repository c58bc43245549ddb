// Package archive turns an uploaded feed artifact into the canonical byte buffer the
// record reconstructor reads line by line
//
// Design choices:
//   - Dispatch is by filename suffix only, never by opening the name as a path.
//   - Each format is one fallible attempt; the first success wins and an exhausted list
//     yields the input bytes unchanged. Normalize never fails.
//   - Containers (tar, zip) contribute their first regular member only. Multi-member
//     archives lose every member after the first.
//   - Zip entries may be stored, deflated, bzip2 (method 12) or lzma (method 14). A tar
//     stream may itself be gzip, bzip2 or xz compressed; this is detected by magic bytes.
package archive
