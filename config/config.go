package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Load reads the yaml file at the given path into the config object.
func Load(path string, config interface{}) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "fail to read config file")
	}

	return yaml.Unmarshal(data, config)
}
