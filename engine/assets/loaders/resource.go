package loaders

// ResourceType tells which loader reads a file.
type ResourceType uint8

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeShader
	ResourceTypeImage
	ResourceTypeBitmapFont
	ResourceTypeSystemFont
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeBitmapFont:
		return "bitmap_font"
	case ResourceTypeSystemFont:
		return "system_font"
	}
	return "none"
}

// Resource is what a loader read from disk. Data holds the decoded
// payload, whose concrete type depends on the loader.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}
