// Package metadata encodes and navigates the block metadata of a boundary-tagged heap: header
// and footer words, the previous-free bit that lets allocated blocks omit their footer, the
// size class index, and the segregated free list table whose links live inside free blocks.
//
// Nothing in this package grows memory or decides where allocations go; it only reads and
// writes metadata through a View over arena bytes.
package metadata
