package contracts

import "github.com/julienschmidt/httprouter"

// Handler is one domain's HTTP surface. pkg/app mounts every Handler on a
// shared router behind the common middleware chain.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
