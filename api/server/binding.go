package server

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	ipfscid "github.com/ipfs/go-cid"
)

// registerValidations installs the custom binding tags used by the
// request structs.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("cid", func(fl validator.FieldLevel) bool {
		_, err := ipfscid.Decode(fl.Field().String())
		return err == nil
	})
}
