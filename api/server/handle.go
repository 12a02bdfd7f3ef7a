package server

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/scobru/shogun-relay/api/pagination"
	"github.com/scobru/shogun-relay/api/service"
)

// handleFunc is a service handler in one of the admitted shapes:
//
//	func(c *gin.Context) error
//	func(c *gin.Context) (*resp, error)
//	func(c *gin.Context, req *reqType) error
//	func(c *gin.Context, req *reqType) (*resp, error)
//	func(c *gin.Context, req *reqType, page *pagination.Query) (*pagination.Result, error)
//
// The request pointer is allocated and bound from the query string or
// the JSON body before the handler runs.
type handleFunc interface{}

var (
	ginCtxType     = reflect.TypeOf(&gin.Context{})
	pageQueryType  = reflect.TypeOf(&pagination.Query{})
	pageResultType = reflect.TypeOf(&pagination.Result{})
	errType        = reflect.TypeOf((*error)(nil)).Elem()
)

func validateFunc(fn handleFunc) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return errors.New("handler is not a function")
	}

	if t.NumIn() < 1 || t.NumIn() > 3 {
		return errors.New("handler must take one to three parameters")
	}

	if t.In(0) != ginCtxType {
		return errors.New("first parameter must be *gin.Context")
	}

	if t.NumIn() >= 2 && t.In(1).Kind() != reflect.Ptr {
		return errors.New("second parameter must be a pointer")
	}

	if t.NumIn() == 3 && t.In(2) != pageQueryType {
		return errors.New("third parameter must be *pagination.Query")
	}

	if t.NumOut() < 1 || t.NumOut() > 2 {
		return errors.New("handler must return one or two values")
	}

	if !t.Out(t.NumOut() - 1).Implements(errType) {
		return errors.New("last return value must be an error")
	}

	if t.NumOut() == 2 {
		paged := t.In(t.NumIn()-1) == pageQueryType
		if paged && t.Out(0) != pageResultType {
			return errors.New(
				"paginated handler must return *pagination.Result",
			)
		}

		if !paged && t.Out(0).Kind() != reflect.Ptr {
			return errors.New("first return value must be a pointer")
		}
	}

	return nil
}

// handle adapts a service handler into a gin handler: it allocates and
// binds the request parameter, invokes the handler and writes the
// response envelope. Errors are deferred to the handleError middleware.
func (s *Server) handle(fn handleFunc) gin.HandlerFunc {
	if err := validateFunc(fn); err != nil {
		panic(err)
	}

	v := reflect.ValueOf(fn)
	t := v.Type()
	return func(c *gin.Context) {
		args := make([]reflect.Value, 0, t.NumIn())
		args = append(args, reflect.ValueOf(c))
		for i := 1; i < t.NumIn(); i++ {
			if t.In(i) == pageQueryType {
				args = append(args, reflect.ValueOf(pagination.ParseQuery(c)))
				continue
			}

			req := reflect.New(t.In(i).Elem())
			if err := c.ShouldBind(req.Interface()); err != nil {
				_ = c.Error(errors.Wrap(service.ErrInvalidRequest, err.Error()))
				return
			}

			args = append(args, req)
		}

		outs := v.Call(args)
		if errOut := outs[len(outs)-1]; !errOut.IsNil() {
			_ = c.Error(errOut.Interface().(error))
			return
		}

		var data interface{}
		if len(outs) == 2 {
			data = outs[0].Interface()
		}

		c.JSON(http.StatusOK, gin.H{
			"code": http.StatusOK,
			"msg":  "ok",
			"data": data,
		})
	}
}
