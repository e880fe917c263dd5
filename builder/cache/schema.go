package cache

// Namespaces of the document store, relative to the cache root. The file
// extension comes from the codec.
const (
	IndexDir           = "search-index"
	ImageMetaDir       = "image-metadata"
	ImagesDir          = "images"
	RenderedHTMLDir    = "rendered-html"
	NamespacePosts     = IndexDir + "/posts"
	NamespaceIndex     = IndexDir + "/index"
	NamespaceImageMeta = ImageMetaDir + "/metadata"
)

// BoltDB bucket names for the rendered-HTML cache
const (
	BucketRendered = "rendered" // {PostID} -> RenderedHTML
	BucketMeta     = "meta"     // schema_version

	KeySchemaVersion = "schema_version"
)

// AllNamespaces lists every document namespace, used by stats and clear.
func AllNamespaces() []string {
	return []string{
		NamespacePosts,
		NamespaceIndex,
		NamespaceImageMeta,
	}
}
