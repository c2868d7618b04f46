// Package docs bundles the tmx guide into the binary.
package docs

import "embed"

// IndexFile lists the guide topics, relative to Root.
const IndexFile = "index.yaml"

// Root is the directory within FS that holds the guide.
const Root = "guide"

//go:embed guide
var FS embed.FS
