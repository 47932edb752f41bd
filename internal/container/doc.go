// Package container indexes the files of an extracted OFD package.
//
// Files are addressed by logical container names: "/"-rooted, forward
// slash separated paths such as /Doc_0/Pages/Page_0/Content.xml,
// independent of the host path separator.
package container
