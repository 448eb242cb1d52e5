package relay

import (
	"errors"

	"pairchat/internal/domain"
)

// Subscription ops sent by clients.
const (
	opOn  = "on"
	opMap = "map"
	opOff = "off"
)

// ErrStatus wraps non-2xx relay answers.
var ErrStatus = errors.New("relay error status")

type putRequest struct {
	Path  []string     `json:"path"`
	Value domain.Value `json:"value"`
}

type onceRequest struct {
	Path []string `json:"path"`
}

type onceResponse struct {
	Value domain.Value `json:"value"`
}

type subscribeFrame struct {
	Op   string   `json:"op"`
	ID   uint64   `json:"id"`
	Path []string `json:"path,omitempty"`
}

type deliveryFrame struct {
	ID    uint64       `json:"id"`
	Key   string       `json:"key"`
	Value domain.Value `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// node walks path from the root of store.
func node(store domain.Store, path []string) domain.Node {
	n := store.Get(path[0])
	for _, k := range path[1:] {
		n = n.Get(k)
	}
	return n
}

func validPath(path []string) bool {
	if len(path) == 0 {
		return false
	}
	for _, k := range path {
		if k == "" {
			return false
		}
	}
	return true
}
