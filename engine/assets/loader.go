package assets

import "github.com/spaghettifunk/dyne/engine/resources"

type Loader interface {
	// Load reads the file at path. params is loader specific and may be nil.
	Load(path string, params interface{}) (*resources.Resource, error)
	Unload(*resources.Resource) error
}
