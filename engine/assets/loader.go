package assets

import "github.com/spaghettifunk/anima2d/engine/assets/loaders"

type Loader interface {
	Load(path string, params interface{}) (*loaders.Resource, error) // `interface{}` here allows loaders to take their own parameters
	Unload(*loaders.Resource) error
}
